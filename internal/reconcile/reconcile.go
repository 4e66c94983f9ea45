// Package reconcile keeps episode files on disk in step with their remote
// counterparts. Existing files are only replaced when the remote copy is
// known (or suspected) to be better, and every replacement is guarded by a
// backup so a failed download never loses data.
package reconcile

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"audiothek-downloader/internal/client"
	"audiothek-downloader/internal/fileutil"
	"audiothek-downloader/internal/models"
)

// Sizer reports the advertised byte length of a remote file.
type Sizer interface {
	ContentLength(rawURL string) (int64, bool)
}

// Transport is the subset of HTTP operations the engine needs. It is
// satisfied by *client.Client.
type Transport interface {
	Sizer
	CheckFile(rawURL string) client.Probe
	DownloadFile(rawURL, path string) error
	DownloadAudio(preferredURL, fallbackURL, path string) (bool, error)
}

// audioCandidate pairs a URL with its advertised size for priority sorting.
type audioCandidate struct {
	url  string
	size int64
}

// SelectAudioURLs extracts the audio URLs of an episode in download priority
// order. Download URLs and streaming URLs form separate pools; when both are
// present every URL is sized with a HEAD request and the largest file wins,
// with download URLs ahead of streaming URLs on equal size. URLs whose size
// cannot be determined keep their original relative order at the end.
func SelectAudioURLs(audios []models.Audio, sizer Sizer) []string {
	var downloads, streams []string
	for _, audio := range audios {
		if audio.DownloadURL != "" {
			downloads = append(downloads, audio.DownloadURL)
		}
		if audio.URL != "" {
			streams = append(streams, audio.URL)
		}
	}
	downloads = dedupe(downloads)
	streams = dedupe(streams)

	if len(downloads) == 0 {
		return streams
	}
	if len(streams) == 0 {
		return downloads
	}

	merged := dedupe(append(append([]string{}, downloads...), streams...))

	var candidates []audioCandidate
	for _, url := range merged {
		if size, ok := sizer.ContentLength(url); ok {
			candidates = append(candidates, audioCandidate{url: url, size: size})
		}
	}
	if len(candidates) == 0 {
		return merged
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].size > candidates[j].size
	})

	ordered := make([]string, 0, len(merged))
	for _, candidate := range candidates {
		ordered = append(ordered, candidate.url)
	}
	// Unsized URLs go last, original order preserved.
	for _, url := range merged {
		if !contains(ordered, url) {
			ordered = append(ordered, url)
		}
	}
	return ordered
}

func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := urls[:0:0]
	for _, url := range urls {
		if _, dup := seen[url]; dup {
			continue
		}
		seen[url] = struct{}{}
		out = append(out, url)
	}
	return out
}

func contains(urls []string, url string) bool {
	for _, u := range urls {
		if u == url {
			return true
		}
	}
	return false
}

// AudioExtension picks the file extension for an audio URL.
func AudioExtension(rawURL string) string {
	lower := strings.ToLower(rawURL)
	switch {
	case strings.HasSuffix(lower, ".m4a"):
		return ".m4a"
	case strings.HasSuffix(lower, ".mp3"):
		return ".mp3"
	case strings.Contains(lower, "aac"):
		return ".aac"
	case strings.Contains(lower, "mp4"):
		return ".mp4"
	}
	return ".mp3"
}

// ImageWidth is substituted into the {width} placeholder of image URL
// templates.
const ImageWidth = "2000"

// ImageURL expands an image URL template to a concrete URL.
func ImageURL(template string) string {
	return strings.ReplaceAll(template, "{width}", ImageWidth)
}

// Engine synchronizes individual episode assets. All file mutations happen
// under a per-path advisory lock so concurrent workers (or processes) never
// write the same asset at once.
type Engine struct {
	transport   Transport
	logger      *zap.Logger
	lockTimeout time.Duration
}

func NewEngine(transport Transport, logger *zap.Logger, lockTimeout time.Duration) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{transport: transport, logger: logger, lockTimeout: lockTimeout}
}

// withLock runs fn while holding an advisory lock on a sidecar next to path.
// Failing to acquire the lock within the timeout fails the whole operation.
func (e *Engine) withLock(path string, fn func() error) error {
	lock := flock.New(path + ".lock")
	ctx, cancel := context.WithTimeout(context.Background(), e.lockTimeout)
	defer cancel()

	locked, err := lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil || !locked {
		return fmt.Errorf("acquire lock for %s: %w", path, err)
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(lock.Path())
	}()

	return fn()
}

// SyncAudio brings the audio file at path up to date against the candidate
// URLs. The first URL is preferred, the second (when present) serves as
// fallback. The decision table for an existing local file:
//
//	remote 404                -> keep local file
//	remote length == local    -> keep local file, no download
//	remote length  > local    -> back up local, re-download
//	remote length  < local    -> keep local file
//	remote length unknown     -> back up local, re-download
//
// A failed download removes the partial file and restores the backup.
func (e *Engine) SyncAudio(urls []string, path, publishDate string) error {
	if len(urls) == 0 {
		return fmt.Errorf("no audio urls for %s", path)
	}
	preferred := urls[0]
	fallback := preferred
	if len(urls) > 1 {
		fallback = urls[1]
	}

	return e.withLock(path, func() error {
		localSize, exists := fileutil.FileSize(path)
		if exists {
			probe := e.transport.CheckFile(preferred)
			switch {
			case !probe.Available:
				e.logger.Warn("audio no longer available, keeping local file",
					zap.String("path", path), zap.String("url", preferred))
				return nil
			case probe.HasLength && probe.Length == localSize:
				e.logger.Info("audio file already complete", zap.String("path", path))
				return nil
			case probe.HasLength && probe.Length < localSize:
				e.logger.Info("remote audio smaller than local, keeping local file",
					zap.String("path", path),
					zap.Int64("local", localSize), zap.Int64("remote", probe.Length))
				return nil
			case probe.HasLength:
				e.logger.Info("remote audio larger than local, backing up and re-downloading",
					zap.String("path", path),
					zap.Int64("local", localSize), zap.Int64("remote", probe.Length))
			default:
				e.logger.Info("remote audio length unknown, backing up and re-downloading",
					zap.String("path", path))
			}
			if _, err := fileutil.BackupFile(path); err != nil {
				return fmt.Errorf("backup before re-download: %w", err)
			}
		}

		ok, err := e.transport.DownloadAudio(preferred, fallback, path)
		if ok {
			if publishDate != "" {
				if terr := fileutil.SetModTime(path, publishDate); terr != nil {
					e.logger.Warn("failed to set audio modification time",
						zap.String("path", path), zap.Error(terr))
				}
			}
			return nil
		}

		// Clean up whatever the failed attempt left behind, then put the
		// original file back if we moved it aside.
		if _, stillThere := fileutil.FileSize(path); stillThere {
			if rerr := os.Remove(path); rerr != nil {
				e.logger.Error("failed to remove partial audio file",
					zap.String("path", path), zap.Error(rerr))
			}
		}
		backupPath := path + fileutil.BackupSuffix
		if _, hasBackup := fileutil.FileSize(backupPath); hasBackup {
			if rerr := fileutil.RestoreBackup(backupPath, path); rerr != nil {
				e.logger.Error("failed to restore backup",
					zap.String("path", backupPath), zap.Error(rerr))
			} else {
				e.logger.Info("restored local audio file from backup", zap.String("path", path))
				return nil
			}
		}
		if err != nil {
			return err
		}
		return fmt.Errorf("audio unavailable: %s", preferred)
	})
}

// SyncImage downloads an image only when it is missing locally. Existing
// images are never refreshed.
func (e *Engine) SyncImage(template, path, publishDate string) error {
	if template == "" {
		return nil
	}
	return e.withLock(path, func() error {
		if _, exists := fileutil.FileSize(path); exists {
			return nil
		}
		if err := e.transport.DownloadFile(ImageURL(template), path); err != nil {
			return err
		}
		if publishDate != "" {
			if err := fileutil.SetModTime(path, publishDate); err != nil {
				e.logger.Warn("failed to set image modification time",
					zap.String("path", path), zap.Error(err))
			}
		}
		return nil
	})
}

// SyncJSON writes a metadata document, skipping the write when the file
// already carries the same content so modification times stay meaningful.
func (e *Engine) SyncJSON(payload any, path, publishDate string) error {
	return e.withLock(path, func() error {
		if fileutil.CompareJSONFile(path, payload) {
			e.logger.Debug("metadata unchanged", zap.String("path", path))
			return nil
		}
		if err := fileutil.WriteJSON(path, payload); err != nil {
			return err
		}
		if publishDate != "" {
			if err := fileutil.SetModTime(path, publishDate); err != nil {
				e.logger.Warn("failed to set metadata modification time",
					zap.String("path", path), zap.Error(err))
			}
		}
		return nil
	})
}

// SyncMetadata writes the sidecar document for one episode.
func (e *Engine) SyncMetadata(episode models.Episode, path string) error {
	return e.SyncJSON(episode.Sidecar(), path, episode.PublishDate)
}
