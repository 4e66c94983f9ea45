package models

// Audio is one rendition attached to an episode node. The API usually carries
// a streaming URL and, when downloads are allowed, a separate download URL.
type Audio struct {
	Title       string `json:"title,omitempty"`
	URL         string `json:"url,omitempty"`
	DownloadURL string `json:"downloadUrl,omitempty"`
}

// Image carries the templated cover art URLs ("{width}" placeholder).
type Image struct {
	URL    string `json:"url,omitempty"`
	URL1X1 string `json:"url1X1,omitempty"`
}

// ProgramSetRef is the show linkage embedded in an episode node.
type ProgramSetRef struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title,omitempty"`
	Path  string `json:"path,omitempty"`
}

// Episode is one GraphQL episode node, decoded at the client boundary so the
// rest of the program never touches untyped maps.
type Episode struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Summary     string        `json:"summary,omitempty"`
	Duration    int64         `json:"duration,omitempty"`
	PublishDate string        `json:"publishDate,omitempty"`
	Image       Image         `json:"image,omitempty"`
	ProgramSet  ProgramSetRef `json:"programSet,omitempty"`
	Audios      []Audio       `json:"audios,omitempty"`
}

// EpisodeSidecar is the JSON document written next to each audio file.
type EpisodeSidecar struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Summary     string         `json:"summary,omitempty"`
	Duration    int64          `json:"duration,omitempty"`
	PublishDate string         `json:"publishDate,omitempty"`
	ProgramSet  *ProgramSetRef `json:"programSet,omitempty"`
}

// Sidecar builds the per-episode metadata document persisted to disk.
func (e Episode) Sidecar() EpisodeSidecar {
	ps := e.ProgramSet
	return EpisodeSidecar{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Summary:     e.Summary,
		Duration:    e.Duration,
		PublishDate: e.PublishDate,
		ProgramSet:  &ps,
	}
}
