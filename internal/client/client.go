// Package client talks to the Audiothek GraphQL API and the CDN hosting the
// audio and image assets. All payloads are decoded into typed records at this
// boundary; nothing downstream touches raw JSON maps.
package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"audiothek-downloader/internal/cache"
	"audiothek-downloader/internal/models"
	"audiothek-downloader/internal/resource"
)

const (
	defaultEndpoint = "https://api.ardaudiothek.de/graphql"

	// pageSize is the fixed page size for all paginated queries.
	pageSize = 24

	// DefaultSearchLimit bounds category-search accumulation.
	DefaultSearchLimit = 200
)

// Options configures a Client.
type Options struct {
	// Endpoint overrides the GraphQL endpoint; used by tests.
	Endpoint string
	// Proxy is an optional HTTP or SOCKS proxy URL applied to every request.
	Proxy string
	// Timeout bounds each request; zero means 30 seconds.
	Timeout time.Duration
	// Cache is the response cache; nil means caching is off.
	Cache *cache.Store
	// Logger must not be nil in production use; a nop logger is substituted.
	Logger *zap.Logger
}

// Client issues GraphQL queries and asset downloads over one shared
// *http.Client. It is safe for concurrent use.
type Client struct {
	http     *http.Client
	endpoint string
	cache    *cache.Store
	logger   *zap.Logger
}

// New constructs a Client. An invalid proxy URL is a configuration error.
func New(opts Options) (*Client, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url %q: %w", opts.Proxy, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	store := opts.Cache
	if store == nil {
		store = cache.Disabled(logger)
	}

	return &Client{
		http:     &http.Client{Transport: transport, Timeout: timeout},
		endpoint: endpoint,
		cache:    store,
		logger:   logger,
	}, nil
}

// Query executes a GraphQL document with the given variables, consulting the
// response cache first. The raw response body is returned on success.
func (c *Client) Query(name, query string, variables map[string]any) (json.RawMessage, error) {
	if cached, ok := c.cache.Get(query, variables); ok {
		c.logger.Debug("graphql cache hit", zap.String("query", name))
		return cached, nil
	}

	encodedVars, err := json.Marshal(variables)
	if err != nil {
		return nil, &GraphQLError{QueryName: name, Variables: variables, Err: err}
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("variables", string(encodedVars))

	resp, err := c.http.Get(c.endpoint + "?" + params.Encode())
	if err != nil {
		return nil, &GraphQLError{QueryName: name, Variables: variables, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &GraphQLError{QueryName: name, Variables: variables, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &GraphQLError{QueryName: name, Variables: variables, Err: err}
	}
	if !json.Valid(body) {
		return nil, &GraphQLError{QueryName: name, Variables: variables, Err: fmt.Errorf("malformed JSON response")}
	}

	c.cache.Set(name, query, variables, body)
	return body, nil
}

type pageInfo struct {
	HasNextPage bool `json:"hasNextPage"`
}

type itemsPage struct {
	PageInfo pageInfo         `json:"pageInfo"`
	Nodes    []models.Episode `json:"nodes"`
}

// Episode fetches one episode node by ID. A missing episode yields (nil, nil).
func (c *Client) Episode(id string) (*models.Episode, error) {
	raw, err := c.Query("EpisodeQuery", episodeQuery, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Data struct {
			Result *models.Episode `json:"result"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &GraphQLError{QueryName: "EpisodeQuery", Variables: map[string]any{"id": id}, Err: err}
	}
	return envelope.Data.Result, nil
}

// ProgramSetEpisodes paginates through a program set and returns its episode
// nodes in server order plus the program-set metadata captured from the
// first page.
func (c *Client) ProgramSetEpisodes(id string) ([]models.Episode, *models.ProgramSet, error) {
	var episodes []models.Episode
	var meta *models.ProgramSet

	offset := 0
	for {
		variables := map[string]any{"id": id, "offset": offset, "count": pageSize}
		raw, err := c.Query("ProgramSetEpisodesQuery", programSetEpisodesQuery, variables)
		if err != nil {
			return nil, nil, err
		}

		var envelope struct {
			Data struct {
				Result *struct {
					models.ProgramSet
					Items itemsPage `json:"items"`
				} `json:"result"`
			} `json:"data"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return nil, nil, &GraphQLError{QueryName: "ProgramSetEpisodesQuery", Variables: variables, Err: err}
		}

		result := envelope.Data.Result
		if result == nil {
			break
		}
		if meta == nil {
			ps := result.ProgramSet
			meta = &ps
		}

		episodes = append(episodes, result.Items.Nodes...)
		if !result.Items.PageInfo.HasNextPage || len(result.Items.Nodes) == 0 {
			break
		}
		offset += pageSize
	}

	return episodes, meta, nil
}

// EditorialCollection paginates through an editorial collection, returning
// its episode nodes plus the collection metadata from the first page.
func (c *Client) EditorialCollection(id string) ([]models.Episode, *models.Collection, error) {
	var episodes []models.Episode
	var meta *models.Collection

	offset := 0
	for {
		variables := map[string]any{"id": id, "offset": offset, "count": pageSize}
		raw, err := c.Query("EditorialCollectionQuery", editorialCollectionQuery, variables)
		if err != nil {
			return nil, nil, err
		}

		var envelope struct {
			Data struct {
				Result *struct {
					models.Collection
					Items itemsPage `json:"items"`
				} `json:"result"`
			} `json:"data"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return nil, nil, &GraphQLError{QueryName: "EditorialCollectionQuery", Variables: variables, Err: err}
		}

		result := envelope.Data.Result
		if result == nil {
			break
		}
		if meta == nil {
			col := result.Collection
			meta = &col
		}

		episodes = append(episodes, result.Items.Nodes...)
		if !result.Items.PageInfo.HasNextPage || len(result.Items.Nodes) == 0 {
			break
		}
		offset += pageSize
	}

	return episodes, meta, nil
}

// ProgramSetsByCategory searches program sets by editorial category,
// accumulating at most limit results.
func (c *Client) ProgramSetsByCategory(categoryID string, limit int) ([]models.ProgramSet, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	var sets []models.ProgramSet
	offset := 0
	for len(sets) < limit {
		count := pageSize
		if remaining := limit - len(sets); remaining < count {
			count = remaining
		}

		variables := map[string]any{"editorialCategoryId": categoryID, "offset": offset, "count": count}
		raw, err := c.Query("ProgramSetsByEditorialCategoryId", programSetsByEditorialCategoryQuery, variables)
		if err != nil {
			return nil, err
		}

		var envelope struct {
			Data struct {
				Result *struct {
					PageInfo pageInfo            `json:"pageInfo"`
					Nodes    []models.ProgramSet `json:"nodes"`
				} `json:"result"`
			} `json:"data"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return nil, &GraphQLError{QueryName: "ProgramSetsByEditorialCategoryId", Variables: variables, Err: err}
		}

		result := envelope.Data.Result
		if result == nil || len(result.Nodes) == 0 {
			break
		}

		sets = append(sets, result.Nodes...)
		if len(sets) > limit {
			sets = sets[:limit]
		}
		if !result.PageInfo.HasNextPage {
			break
		}
		offset += pageSize
	}

	return sets, nil
}

// CollectionsByCategory searches editorial collections by category ID. The
// section layout can repeat collections across pages, so results are
// de-duplicated by ID while preserving first-seen order.
func (c *Client) CollectionsByCategory(categoryID string, limit int) ([]models.Collection, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	seen := make(map[string]struct{})
	var collections []models.Collection
	offset := 0
	for len(collections) < limit {
		count := pageSize
		if remaining := limit - len(collections); remaining < count {
			count = remaining
		}

		variables := map[string]any{"id": categoryID, "offset": offset, "count": count}
		raw, err := c.Query("EditorialCategoryCollections", editorialCategoryCollectionsQuery, variables)
		if err != nil {
			return nil, err
		}

		var envelope struct {
			Data struct {
				Result *struct {
					Sections []struct {
						Nodes []models.Collection `json:"nodes"`
					} `json:"sections"`
				} `json:"result"`
			} `json:"data"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return nil, &GraphQLError{QueryName: "EditorialCategoryCollections", Variables: variables, Err: err}
		}

		result := envelope.Data.Result
		if result == nil || len(result.Sections) == 0 {
			break
		}

		before := len(collections)
		for _, section := range result.Sections {
			for _, node := range section.Nodes {
				if node.ID == "" {
					continue
				}
				if _, dup := seen[node.ID]; dup {
					continue
				}
				seen[node.ID] = struct{}{}
				collections = append(collections, node)
				if len(collections) == limit {
					break
				}
			}
			if len(collections) == limit {
				break
			}
		}

		// A page that contributes nothing new means the section layout
		// repeats; stop instead of looping forever.
		if len(collections) == before {
			break
		}
		offset += pageSize
	}

	return collections, nil
}

// Title looks up the display title for a resolved resource. Used by the
// folder migration to name legacy directories.
func (c *Client) Title(info resource.Info) (string, bool) {
	switch info.Type {
	case resource.TypeEpisode:
		episode, err := c.Episode(info.ID)
		if err != nil || episode == nil {
			return "", false
		}
		if episode.ProgramSet.Title != "" {
			return episode.ProgramSet.Title, true
		}
		return episode.Title, episode.Title != ""
	case resource.TypeCollection:
		_, meta, err := c.EditorialCollection(info.ID)
		if err != nil || meta == nil || meta.Title == "" {
			return "", false
		}
		return meta.Title, true
	default:
		_, meta, err := c.ProgramSetEpisodes(info.ID)
		if err != nil || meta == nil || meta.Title == "" {
			return "", false
		}
		return meta.Title, true
	}
}
