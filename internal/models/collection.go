package models

// ProgramSet is the collection-level record for a show, persisted once per
// program folder as <id>.json.
type ProgramSet struct {
	ID                   string `json:"id"`
	CoreID               string `json:"coreId,omitempty"`
	Title                string `json:"title"`
	Synopsis             string `json:"synopsis,omitempty"`
	NumberOfElements     int    `json:"numberOfElements,omitempty"`
	Image                Image  `json:"image,omitempty"`
	EditorialCategoryID  string `json:"editorialCategoryId,omitempty"`
	ImageCollectionID    string `json:"imageCollectionId,omitempty"`
	PublicationServiceID string `json:"publicationServiceId,omitempty"`
	CoreDocument         string `json:"coreDocument,omitempty"`
	RowID                string `json:"rowId,omitempty"`
	NodeID               string `json:"nodeId,omitempty"`
}

// Collection is the editorial-collection counterpart of ProgramSet. The two
// query shapes are nearly identical but expose different metadata fields.
type Collection struct {
	ID                   string `json:"id"`
	CoreID               string `json:"coreId,omitempty"`
	Title                string `json:"title"`
	Synopsis             string `json:"synopsis,omitempty"`
	Summary              string `json:"summary,omitempty"`
	EditorialDescription string `json:"editorialDescription,omitempty"`
	Image                Image  `json:"image,omitempty"`
	SharingURL           string `json:"sharingUrl,omitempty"`
	Path                 string `json:"path,omitempty"`
	NumberOfElements     int    `json:"numberOfElements,omitempty"`
	BroadcastDuration    int64  `json:"broadcastDuration,omitempty"`
}

// DownloadResult is the aggregate outcome of every top-level operation.
type DownloadResult struct {
	Success bool
	Message string
	Err     error
}
