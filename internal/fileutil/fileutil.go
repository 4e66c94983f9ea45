// Package fileutil holds the filesystem primitives the downloader builds on:
// backup/restore renames, compare-before-write JSON persistence, publish-date
// modification times, and folder/file name derivation.
package fileutil

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strings"
	"time"
)

// MaxFolderNameLength caps sanitized folder names to avoid filesystem limits.
const MaxFolderNameLength = 100

// BackupSuffix is appended when an existing file is set aside before a
// re-download.
const BackupSuffix = ".bak"

var (
	illegalChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	multiSpace   = regexp.MustCompile(`\s+`)
	wordTokens   = regexp.MustCompile(`[\p{L}\p{N}_]+`)
)

// OpError describes a failed filesystem operation with enough context to log.
type OpError struct {
	Path string
	Op   string
	Err  error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("failed to %s file %s: %v", e.Op, e.Path, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// EnsureDir creates the directory (and parents) when missing.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return &OpError{Path: path, Op: "create directory", Err: err}
	}
	return nil
}

// SanitizeFolderName makes a title safe for use as a directory name:
// illegal characters become underscores, whitespace is collapsed, leading and
// trailing spaces/dots are stripped, and the result is length-capped.
// Identical inputs always yield identical output.
func SanitizeFolderName(name string) string {
	sanitized := illegalChars.ReplaceAllString(name, "_")
	sanitized = strings.Trim(sanitized, " .")
	sanitized = multiSpace.ReplaceAllString(sanitized, " ")
	if len(sanitized) > MaxFolderNameLength {
		sanitized = strings.TrimRight(sanitized[:MaxFolderNameLength], " ")
	}
	return sanitized
}

// ProgramFolderName derives the directory name for a program set or
// collection: "<id> <sanitized title>", or just the id when no title exists.
func ProgramFolderName(id, title string) string {
	if title == "" {
		return id
	}
	return id + " " + SanitizeFolderName(title)
}

// FilenameStem derives the shared stem for an episode's asset triple from the
// title's word tokens and the episode id. The id suffix keeps stems unique
// even when titles collide.
func FilenameStem(title, id string) string {
	tokens := wordTokens.FindAllString(title, -1)
	base := id
	if len(tokens) > 0 {
		base = strings.Join(tokens, "_")
	}
	return base + "_" + id
}

// CompareJSONFile reports whether the file at path parses to the same JSON
// data as v. Unreadable or corrupt files compare as unequal so the caller
// rewrites them.
func CompareJSONFile(path string, v any) bool {
	raw, err := os.ReadFile(path)
	if err != nil {
		return false
	}

	var existing any
	if err := json.Unmarshal(raw, &existing); err != nil {
		return false
	}

	proposed, err := json.Marshal(v)
	if err != nil {
		return false
	}
	var next any
	if err := json.Unmarshal(proposed, &next); err != nil {
		return false
	}

	return reflect.DeepEqual(existing, next)
}

// WriteJSON writes v as indented JSON.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return &OpError{Path: path, Op: "encode", Err: err}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &OpError{Path: path, Op: "write", Err: err}
	}
	return nil
}

// SetModTime stamps the file with the episode's publish date. The API uses
// ISO 8601 timestamps, sometimes without a zone designator.
func SetModTime(path, publishDate string) error {
	ts, err := parsePublishDate(publishDate)
	if err != nil {
		return err
	}
	if err := os.Chtimes(path, ts, ts); err != nil {
		return &OpError{Path: path, Op: "set modification time of", Err: err}
	}
	return nil
}

func parsePublishDate(publishDate string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.000",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, publishDate); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable publish date %q", publishDate)
}

// BackupFile renames the file to <path>.bak and returns the backup path.
func BackupFile(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", &OpError{Path: path, Op: "back up", Err: err}
	}
	backupPath := path + BackupSuffix
	if err := os.Rename(path, backupPath); err != nil {
		return "", &OpError{Path: path, Op: "back up", Err: err}
	}
	return backupPath, nil
}

// RestoreBackup renames a backup file back to its original name.
func RestoreBackup(backupPath, originalPath string) error {
	if _, err := os.Stat(backupPath); err != nil {
		return &OpError{Path: backupPath, Op: "restore", Err: err}
	}
	if err := os.Rename(backupPath, originalPath); err != nil {
		return &OpError{Path: backupPath, Op: "restore", Err: err}
	}
	return nil
}

// FileSize returns the file's byte size, reporting false when it is absent.
func FileSize(path string) (int64, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, false
	}
	return info.Size(), true
}
