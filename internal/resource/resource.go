// Package resource classifies Audiothek URLs and bare identifiers into a
// resource type plus canonical ID. Everything here is a pure function; the
// downloader aborts when an input cannot be classified.
package resource

import (
	"regexp"
	"strings"
)

// Type enumerates the downloadable resource kinds.
type Type string

const (
	TypeEpisode    Type = "episode"
	TypeProgram    Type = "program"
	TypeCollection Type = "collection"
)

// Info is the result of a successful resolution.
type Info struct {
	Type Type
	ID   string
}

var (
	urnPathPattern     = regexp.MustCompile(`/(urn:ard:[^/]+)/?$`)
	numericPathPattern = regexp.MustCompile(`/(\d+)/?$`)
	numericPattern     = regexp.MustCompile(`^\d+$`)
	alphaNumPattern    = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
)

const (
	episodePrefix = "urn:ard:episode:"
	pagePrefix    = "urn:ard:page:"
	showPrefix    = "urn:ard:show:"
	urnPrefix     = "urn:ard:"
)

// Resolve classifies a bare identifier. URN namespaces decide the type;
// plain numeric and alphanumeric IDs are treated as program sets.
func Resolve(id string) (Info, bool) {
	switch {
	case strings.HasPrefix(id, episodePrefix):
		return Info{Type: TypeEpisode, ID: id}, true
	case strings.HasPrefix(id, pagePrefix):
		return Info{Type: TypeCollection, ID: id}, true
	case strings.HasPrefix(id, showPrefix):
		return Info{Type: TypeProgram, ID: id}, true
	case strings.HasPrefix(id, urnPrefix):
		// Unknown URN namespaces behave like program sets.
		return Info{Type: TypeProgram, ID: id}, true
	case numericPattern.MatchString(id):
		return Info{Type: TypeProgram, ID: id}, true
	case id != "" && alphaNumPattern.MatchString(id):
		return Info{Type: TypeProgram, ID: id}, true
	}
	return Info{}, false
}

// ParseURL extracts the trailing URN or numeric path segment from an
// Audiothek URL and resolves it.
func ParseURL(url string) (Info, bool) {
	if m := urnPathPattern.FindStringSubmatch(url); m != nil {
		return Resolve(m[1])
	}
	if m := numericPathPattern.FindStringSubmatch(url); m != nil {
		return Resolve(m[1])
	}
	return Info{}, false
}
