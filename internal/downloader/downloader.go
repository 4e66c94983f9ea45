// Package downloader turns a resolved resource into reconciliation work:
// fetching episode nodes, laying out program folders and fanning episodes
// out to a worker pool.
package downloader

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"audiothek-downloader/internal/client"
	"audiothek-downloader/internal/config"
	"audiothek-downloader/internal/fileutil"
	"audiothek-downloader/internal/models"
	"audiothek-downloader/internal/quality"
	"audiothek-downloader/internal/reconcile"
	"audiothek-downloader/internal/resource"
)

// Transport assertion: the engine runs over the real client.
var _ reconcile.Transport = (*client.Client)(nil)

// Options configures a Downloader.
type Options struct {
	Client      *client.Client
	Logger      *zap.Logger
	Folder      string
	Workers     int
	LockTimeout time.Duration
}

// Downloader drives full download and maintenance operations against an
// output folder.
type Downloader struct {
	client  *client.Client
	engine  *reconcile.Engine
	logger  *zap.Logger
	folder  string
	workers int
}

func New(opts Options) *Downloader {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	folder := opts.Folder
	if folder == "" {
		folder = config.DefaultOutputFolder()
	}
	lockTimeout := opts.LockTimeout
	if lockTimeout <= 0 {
		lockTimeout = config.LockTimeout()
	}
	return &Downloader{
		client:  opts.Client,
		engine:  reconcile.NewEngine(opts.Client, logger, lockTimeout),
		logger:  logger,
		folder:  folder,
		workers: config.ClampWorkers(opts.Workers),
	}
}

// DownloadFromURL downloads the resource a share URL points at.
func (d *Downloader) DownloadFromURL(rawURL string) models.DownloadResult {
	info, ok := resource.ParseURL(rawURL)
	if !ok {
		message := "Could not determine resource ID from URL."
		d.logger.Error(message, zap.String("url", rawURL))
		return models.DownloadResult{Success: false, Message: message}
	}
	return d.download(info)
}

// DownloadFromID downloads the resource behind a raw or URN-style ID.
func (d *Downloader) DownloadFromID(id string) models.DownloadResult {
	info, ok := resource.Resolve(id)
	if !ok {
		message := "Could not determine resource type from ID."
		d.logger.Error(message, zap.String("id", id))
		return models.DownloadResult{Success: false, Message: message}
	}
	return d.download(info)
}

func (d *Downloader) download(info resource.Info) models.DownloadResult {
	switch info.Type {
	case resource.TypeEpisode:
		return d.downloadEpisode(info.ID)
	case resource.TypeCollection:
		return d.downloadCollection(info.ID, true)
	default:
		return d.downloadCollection(info.ID, false)
	}
}

func (d *Downloader) downloadEpisode(id string) models.DownloadResult {
	episode, err := d.client.Episode(id)
	if err != nil {
		message := fmt.Sprintf("Error downloading episode %s: %v", id, err)
		d.logger.Error("episode download failed", zap.String("id", id), zap.Error(err))
		return models.DownloadResult{Success: false, Message: message, Err: err}
	}
	if episode == nil {
		message := fmt.Sprintf("Episode not found for %s", id)
		d.logger.Error(message)
		return models.DownloadResult{Success: false, Message: message}
	}
	return d.saveNodes([]models.Episode{*episode})
}

func (d *Downloader) downloadCollection(id string, editorial bool) models.DownloadResult {
	var (
		nodes []models.Episode
		meta  *collectionMeta
		err   error
	)
	if editorial {
		var collection *models.Collection
		nodes, collection, err = d.client.EditorialCollection(id)
		if collection != nil {
			meta = &collectionMeta{
				id:       collection.ID,
				title:    collection.Title,
				imageURL: collection.Image.URL,
				payload:  collection,
			}
		}
	} else {
		var programSet *models.ProgramSet
		nodes, programSet, err = d.client.ProgramSetEpisodes(id)
		if programSet != nil {
			meta = &collectionMeta{
				id:       programSet.ID,
				title:    programSet.Title,
				imageURL: programSet.Image.URL,
				payload:  programSet,
			}
		}
	}
	if err != nil {
		kind := "program"
		if editorial {
			kind = "collection"
		}
		message := fmt.Sprintf("Error downloading %s %s: %v", kind, id, err)
		d.logger.Error("collection download failed", zap.String("id", id), zap.Error(err))
		return models.DownloadResult{Success: false, Message: message, Err: err}
	}
	if len(nodes) == 0 {
		kind := "program"
		if editorial {
			kind = "collection"
		}
		return models.DownloadResult{Success: true, Message: fmt.Sprintf("No episodes found for %s %s", kind, id)}
	}

	result := d.saveNodes(nodes)
	if meta != nil {
		d.saveCollectionMetadata(meta, nodes)
	}
	return result
}

// collectionMeta is the collection-level record written alongside episodes.
type collectionMeta struct {
	id       string
	title    string
	imageURL string
	payload  any
}

// saveCollectionMetadata persists the collection document and cover image
// into the program folder. The folder is derived from the first episode's
// program-set linkage, falling back to the collection's own identity.
func (d *Downloader) saveCollectionMetadata(meta *collectionMeta, nodes []models.Episode) {
	first := nodes[0]
	id := first.ProgramSet.ID
	title := first.ProgramSet.Title
	if id == "" {
		id = meta.id
		title = meta.title
	}
	if id == "" {
		id = "collection"
	}

	programPath := filepath.Join(d.folder, fileutil.ProgramFolderName(id, title))
	if err := fileutil.EnsureDir(programPath); err != nil {
		d.logger.Error("failed to create collection folder", zap.String("path", programPath), zap.Error(err))
		return
	}

	metaID := meta.id
	if metaID == "" {
		metaID = id
	}
	publishDate := first.PublishDate

	jsonPath := filepath.Join(programPath, metaID+".json")
	if err := d.engine.SyncJSON(meta.payload, jsonPath, publishDate); err != nil {
		d.logger.Error("failed to save collection metadata", zap.String("path", jsonPath), zap.Error(err))
	}

	imagePath := filepath.Join(programPath, metaID+".jpg")
	if err := d.engine.SyncImage(meta.imageURL, imagePath, publishDate); err != nil {
		d.logger.Error("failed to save collection cover image", zap.String("path", imagePath), zap.Error(err))
	}
}

type nodeOutcome int

const (
	outcomeDownloaded nodeOutcome = iota
	outcomeSkipped
	outcomeFailed
)

// saveNodes reconciles every episode, fanning out to the worker pool when
// more than one node is pending.
func (d *Downloader) saveNodes(nodes []models.Episode) models.DownloadResult {
	if len(nodes) == 0 {
		return models.DownloadResult{Success: true, Message: "No episodes to download"}
	}

	var downloaded, skipped, failed atomic.Int64
	record := func(outcome nodeOutcome) {
		switch outcome {
		case outcomeDownloaded:
			downloaded.Add(1)
		case outcomeSkipped:
			skipped.Add(1)
		default:
			failed.Add(1)
		}
	}
	// A panic in one episode must not take down its siblings.
	process := func(i int) (outcome nodeOutcome) {
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("panic while processing episode",
					zap.Int("index", i), zap.Any("panic", r))
				outcome = outcomeFailed
			}
		}()
		return d.processNode(nodes[i], i, len(nodes))
	}

	if len(nodes) == 1 || d.workers == 1 {
		for i := range nodes {
			record(process(i))
		}
	} else {
		d.logger.Debug("parallel download",
			zap.Int("workers", d.workers), zap.Int("episodes", len(nodes)))
		var wg sync.WaitGroup
		sem := make(chan struct{}, d.workers)
		for i := range nodes {
			wg.Add(1)
			sem <- struct{}{}
			go func(i int) {
				defer wg.Done()
				defer func() { <-sem }()
				record(process(i))
			}(i)
		}
		wg.Wait()
	}

	success := downloaded.Load()
	errors := failed.Load()
	skips := skipped.Load()
	switch {
	case errors > 0:
		return models.DownloadResult{
			Success: success > 0,
			Message: fmt.Sprintf("Downloaded %d episodes with %d errors", success, errors),
		}
	case skips > 0:
		return models.DownloadResult{
			Success: true,
			Message: fmt.Sprintf("Successfully downloaded %d episodes (%d skipped)", success, skips),
		}
	default:
		return models.DownloadResult{
			Success: true,
			Message: fmt.Sprintf("Successfully downloaded %d episodes", success),
		}
	}
}

// processNode reconciles all assets of a single episode. An episode without
// any audio URL is skipped before anything touches the filesystem.
func (d *Downloader) processNode(node models.Episode, index, total int) nodeOutcome {
	nodeID := node.ID
	if nodeID == "" {
		nodeID = strconv.Itoa(index)
	}
	title := node.Title
	if title == "" {
		title = nodeID
	}

	urls := reconcile.SelectAudioURLs(node.Audios, d.client)
	if len(urls) == 0 {
		d.logger.Warn("no audio URL found for episode, skipping", zap.String("id", nodeID))
		return outcomeSkipped
	}

	programSetID := node.ProgramSet.ID
	if programSetID == "" {
		programSetID = "episode"
	}
	programPath := filepath.Join(d.folder, fileutil.ProgramFolderName(programSetID, node.ProgramSet.Title))
	if err := fileutil.EnsureDir(programPath); err != nil {
		d.logger.Error("failed to create program folder",
			zap.String("path", programPath), zap.Error(err))
		return outcomeFailed
	}

	stem := fileutil.FilenameStem(title, nodeID)

	if err := d.engine.SyncImage(node.Image.URL, filepath.Join(programPath, stem+".jpg"), node.PublishDate); err != nil {
		d.logger.Error("failed to download episode image", zap.String("id", nodeID), zap.Error(err))
	}
	if err := d.engine.SyncImage(node.Image.URL1X1, filepath.Join(programPath, stem+"_x1.jpg"), node.PublishDate); err != nil {
		d.logger.Error("failed to download square episode image", zap.String("id", nodeID), zap.Error(err))
	}
	if err := d.engine.SyncMetadata(node, filepath.Join(programPath, stem+".json")); err != nil {
		d.logger.Error("failed to save episode metadata", zap.String("id", nodeID), zap.Error(err))
	}

	audioPath := filepath.Join(programPath, stem+reconcile.AudioExtension(urls[0]))
	d.logger.Info("downloading episode",
		zap.Int("index", index+1), zap.Int("total", total), zap.String("path", audioPath))
	if err := d.engine.SyncAudio(urls, audioPath, node.PublishDate); err != nil {
		d.logger.Error("failed to download audio", zap.String("id", nodeID), zap.Error(err))
		return outcomeFailed
	}
	return outcomeDownloaded
}

var leadingID = regexp.MustCompile(`^(\d+)`)

// UpdateAllFolders re-downloads every program folder beneath the output
// root, keyed by the numeric ID its name starts with.
func (d *Downloader) UpdateAllFolders() models.DownloadResult {
	entries, err := os.ReadDir(d.folder)
	if err != nil {
		message := fmt.Sprintf("Output directory %s does not exist.", d.folder)
		d.logger.Error(message, zap.Error(err))
		return models.DownloadResult{Success: false, Message: message, Err: err}
	}

	d.logger.Info("updating all folders", zap.String("folder", d.folder))
	updated := 0
	failed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		match := leadingID.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		d.logger.Info("processing folder",
			zap.String("folder", entry.Name()), zap.String("id", match[1]))
		if result := d.DownloadFromID(match[1]); result.Success {
			updated++
		} else {
			failed++
		}
	}
	return models.DownloadResult{
		Success: true,
		Message: fmt.Sprintf("Update completed. Updated: %d, Errors: %d", updated, failed),
	}
}

// MigrateFolders renames purely numeric legacy folders to the current
// "<id> <title>" scheme. Folders whose title cannot be determined stay put.
func (d *Downloader) MigrateFolders() models.DownloadResult {
	entries, err := os.ReadDir(d.folder)
	if err != nil {
		message := fmt.Sprintf("Output directory %s does not exist.", d.folder)
		d.logger.Error(message, zap.Error(err))
		return models.DownloadResult{Success: false, Message: message, Err: err}
	}

	d.logger.Info("migrating legacy folders", zap.String("folder", d.folder))
	renamed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !isNumeric(entry.Name()) {
			continue
		}
		d.logger.Info("found legacy folder", zap.String("folder", entry.Name()))

		info, ok := resource.Resolve(entry.Name())
		if !ok {
			d.logger.Warn("could not determine resource type for folder",
				zap.String("folder", entry.Name()))
			continue
		}
		title, ok := d.client.Title(info)
		if !ok || title == "" {
			d.logger.Warn("could not determine title for folder",
				zap.String("folder", entry.Name()))
			continue
		}

		newName := fileutil.ProgramFolderName(entry.Name(), title)
		oldPath := filepath.Join(d.folder, entry.Name())
		newPath := filepath.Join(d.folder, newName)
		if err := os.Rename(oldPath, newPath); err != nil {
			d.logger.Error("failed to rename folder",
				zap.String("folder", entry.Name()), zap.Error(err))
			continue
		}
		d.logger.Info("renamed folder",
			zap.String("from", entry.Name()), zap.String("to", newName))
		renamed++
	}
	return models.DownloadResult{
		Success: true,
		Message: fmt.Sprintf("Migration completed. Renamed: %d", renamed),
	}
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// RemoveLowerQuality deletes redundant lower-quality encodings beneath the
// output root.
func (d *Downloader) RemoveLowerQuality(dryRun bool) models.DownloadResult {
	cleaner := quality.NewCleaner(d.logger, dryRun)
	result, err := cleaner.Run(d.folder)
	if err != nil {
		message := fmt.Sprintf("Output directory %s does not exist.", d.folder)
		d.logger.Error(message, zap.Error(err))
		return models.DownloadResult{Success: false, Message: message, Err: err}
	}
	action := "Removed"
	if dryRun {
		action = "Would remove"
	}
	return models.DownloadResult{
		Success: true,
		Message: fmt.Sprintf("Quality cleanup completed. %s: %d, Errors: %d", action, result.Removed, result.Errors),
	}
}
