package client

import (
	"io"
	"net/http"
	"os"
	"strings"

	"go.uber.org/zap"
)

// softErrorBodyLimit is the size below which a 200 response body is sniffed
// for error-page text. CDNs in front of the API sometimes answer HTTP 200
// with a small HTML or text error body instead of a proper 404.
const softErrorBodyLimit = 1000

var softErrorIndicators = []string{
	"not found",
	"error",
	"deleted",
	"removed",
	"unavailable",
	"404",
}

// Probe is the tri-state outcome of a HEAD availability check.
type Probe struct {
	// Available is false only for a definite 404. Transport errors leave it
	// true: the file may exist, the size just could not be determined.
	Available bool
	// Length is the advertised content length; valid only when HasLength.
	Length int64
	// HasLength reports whether the server advertised a usable length.
	HasLength bool
}

// ContentLength issues a HEAD request and returns the advertised size.
// Any failure excludes the URL from size-based candidate ranking.
func (c *Client) ContentLength(rawURL string) (int64, bool) {
	resp, err := c.http.Head(rawURL)
	if err != nil {
		return 0, false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusNotFound {
			c.logger.Warn("audio file not found during content length check", zap.String("url", rawURL))
		}
		return 0, false
	}
	if resp.ContentLength <= 0 {
		return 0, false
	}
	return resp.ContentLength, true
}

// CheckFile probes a URL's availability and content length via HEAD.
func (c *Client) CheckFile(rawURL string) Probe {
	resp, err := c.http.Head(rawURL)
	if err != nil {
		// Network errors: the file might still be available.
		return Probe{Available: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		c.logger.Warn("audio file not found during availability check", zap.String("url", rawURL))
		return Probe{Available: false}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Probe{Available: true}
	}
	if resp.ContentLength <= 0 {
		return Probe{Available: true}
	}
	return Probe{Available: true, Length: resp.ContentLength, HasLength: true}
}

// DownloadFile fetches a URL straight to a local file. Used for cover art,
// which has no backup semantics.
func (c *Client) DownloadFile(rawURL, path string) error {
	resp, err := c.http.Get(rawURL)
	if err != nil {
		return &DownloadError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &DownloadError{URL: rawURL, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &DownloadError{URL: rawURL, Err: err}
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return &DownloadError{URL: rawURL, Err: err}
	}
	return nil
}

// DownloadAudio fetches audio to a local file, falling back to fallbackURL
// when the preferred URL is unavailable (hard 404 or soft error page).
// It returns (false, nil) when both candidates are unavailable and a non-nil
// error only for transport-level failures.
func (c *Client) DownloadAudio(preferredURL, fallbackURL, path string) (bool, error) {
	ok, err := c.fetchAudio(preferredURL, path)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}

	if fallbackURL == "" || fallbackURL == preferredURL {
		return false, nil
	}

	c.logger.Info("preferred audio url unavailable, trying fallback",
		zap.String("preferred", preferredURL), zap.String("fallback", fallbackURL))
	return c.fetchAudio(fallbackURL, path)
}

// fetchAudio downloads one URL, classifying 404s and disguised error pages
// as unavailable rather than as errors.
func (c *Client) fetchAudio(rawURL, path string) (bool, error) {
	resp, err := c.http.Get(rawURL)
	if err != nil {
		return false, &DownloadError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		c.logger.Warn("audio file not found", zap.String("url", rawURL))
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, &DownloadError{URL: rawURL, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, &DownloadError{URL: rawURL, Err: err}
	}

	if isSoftError(body) {
		c.logger.Warn("audio file appears to be an error page, discarding",
			zap.String("url", rawURL), zap.Int("bytes", len(body)))
		return false, nil
	}

	if err := os.WriteFile(path, body, 0o644); err != nil {
		return false, &DownloadError{URL: rawURL, Err: err}
	}
	return true, nil
}

func isSoftError(body []byte) bool {
	if len(body) >= softErrorBodyLimit {
		return false
	}
	text := strings.ToLower(string(body))
	for _, indicator := range softErrorIndicators {
		if strings.Contains(text, indicator) {
			return true
		}
	}
	return false
}
