package client

// GraphQL documents sent to the Audiothek API. The server receives the raw
// document text as a query-string parameter, so these stay verbatim strings.

const episodeQuery = `query EpisodeQuery($id: ID!) {
  result: item(id: $id) {
    id
    title
    description
    summary
    duration
    publishDate
    image {
      url
      url1X1
    }
    programSet {
      id
      title
      path
    }
    audios {
      title
      url
      downloadUrl
    }
  }
}`

const programSetEpisodesQuery = `query ProgramSetEpisodesQuery($id: ID!, $offset: Int!, $count: Int!) {
  result: programSet(id: $id) {
    id
    coreId
    title
    synopsis
    numberOfElements
    image {
      url
      url1X1
    }
    editorialCategoryId
    imageCollectionId
    publicationServiceId
    coreDocument
    rowId
    nodeId
    items(offset: $offset, first: $count, orderBy: PUBLISH_DATE_DESC, filter: {isPublished: {equalTo: true}}) {
      pageInfo {
        hasNextPage
        endCursor
      }
      nodes {
        id
        title
        description
        summary
        duration
        publishDate
        image {
          url
          url1X1
        }
        programSet {
          id
          title
          path
        }
        audios {
          title
          url
          downloadUrl
        }
      }
    }
  }
}`

const editorialCollectionQuery = `query EditorialCollectionQuery($id: ID!, $offset: Int!, $count: Int!) {
  result: editorialCollection(id: $id) {
    id
    coreId
    title
    synopsis
    summary
    editorialDescription
    image {
      url
      url1X1
    }
    sharingUrl
    path
    numberOfElements
    broadcastDuration
    items(offset: $offset, first: $count) {
      pageInfo {
        hasNextPage
      }
      nodes {
        id
        title
        description
        summary
        duration
        publishDate
        image {
          url
          url1X1
        }
        programSet {
          id
          title
          path
        }
        audios {
          title
          url
          downloadUrl
        }
      }
    }
  }
}`

const programSetsByEditorialCategoryQuery = `query ProgramSetsByEditorialCategoryId($editorialCategoryId: ID!, $offset: Int!, $count: Int!) {
  result: programSets(filter: {editorialCategoryId: {equalTo: $editorialCategoryId}}, offset: $offset, first: $count) {
    pageInfo {
      hasNextPage
    }
    nodes {
      id
      coreId
      title
      synopsis
      numberOfElements
      image {
        url
        url1X1
      }
      editorialCategoryId
    }
  }
}`

const editorialCategoryCollectionsQuery = `query EditorialCategoryCollections($id: ID!, $offset: Int!, $count: Int!) {
  result: editorialCategory(id: $id) {
    sections(offset: $offset, first: $count) {
      nodes {
        ... on EditorialCollection {
          id
          title
          synopsis
          summary
          image {
            url
            url1X1
          }
          sharingUrl
          path
          numberOfElements
        }
      }
    }
  }
}`
