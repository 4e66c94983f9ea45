package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"audiothek-downloader/internal/cache"
	"audiothek-downloader/internal/client"
	"audiothek-downloader/internal/config"
	"audiothek-downloader/internal/downloader"
	"audiothek-downloader/internal/models"
)

type options struct {
	url                 string
	id                  string
	updateFolders       bool
	migrateFolders      bool
	editorialCategoryID string
	removeLowerQuality  bool

	folder     string
	proxy      string
	searchType string
	workers    int
	dryRun     bool
	verbose    bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "audiothek",
		Short:         "Download shows, collections and episodes from the ARD Audiothek",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.url, "url", "u", "", "Audiothek URL (e.g. https://www.ardaudiothek.de/sendung/.../urn:ard:show:e01e22ff9344b2a4/)")
	flags.StringVarP(&opts.id, "id", "i", "", "Audiothek resource ID (e.g. urn:ard:episode:123456789 or 123456789)")
	flags.BoolVar(&opts.updateFolders, "update-folders", false, "Update all subfolders in the output directory by crawling through existing IDs")
	flags.BoolVar(&opts.migrateFolders, "migrate-folders", false, "Migrate existing folders to the current naming scheme (ID + title)")
	flags.StringVar(&opts.editorialCategoryID, "editorial-category-id", "", "Search program sets and/or editorial collections by editorial category ID")
	flags.BoolVar(&opts.removeLowerQuality, "remove-lower-quality", false, "Remove lower quality audio files when a better encoding exists")

	flags.StringVarP(&opts.folder, "folder", "f", "./output", "Output folder for downloaded files")
	flags.StringVar(&opts.proxy, "proxy", "", "HTTP or SOCKS proxy URL for all outbound requests")
	flags.StringVar(&opts.searchType, "search-type", "all", "What to return for --editorial-category-id: program-sets, collections or all")
	flags.IntVar(&opts.workers, "workers", 0, "Parallel download workers (1-16, default 4)")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "With --remove-lower-quality, only report what would be removed")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.MarkFlagsOneRequired("url", "id", "update-folders", "migrate-folders", "editorial-category-id", "remove-lower-quality")
	cmd.MarkFlagsMutuallyExclusive("url", "id", "update-folders", "migrate-folders", "editorial-category-id", "remove-lower-quality")

	return cmd
}

func run(cmd *cobra.Command, opts *options) error {
	switch opts.searchType {
	case "program-sets", "collections", "all":
	default:
		return fmt.Errorf("invalid --search-type %q", opts.searchType)
	}

	logger, err := buildLogger(opts.verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	settings, err := config.LoadSettings()
	if err != nil {
		logger.Warn("failed to load settings file", zap.Error(err))
	}
	if !cmd.Flags().Changed("folder") && settings.Folder != "" {
		opts.folder = settings.Folder
	}
	if !cmd.Flags().Changed("proxy") && settings.Proxy != "" {
		opts.proxy = settings.Proxy
	}
	if !cmd.Flags().Changed("workers") && settings.Workers != 0 {
		opts.workers = settings.Workers
	}

	folder, err := filepath.Abs(opts.folder)
	if err != nil {
		return fmt.Errorf("resolve output folder: %w", err)
	}

	store := openCache(settings.CacheDir, logger)
	defer func() { _ = store.Close() }()

	c, err := client.New(client.Options{
		Proxy:   opts.proxy,
		Timeout: config.RequestTimeout(),
		Cache:   store,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	d := downloader.New(downloader.Options{
		Client:  c,
		Logger:  logger,
		Folder:  folder,
		Workers: opts.workers,
	})

	var result models.DownloadResult
	switch {
	case opts.migrateFolders:
		result = d.MigrateFolders()
	case opts.updateFolders:
		result = d.UpdateAllFolders()
	case opts.removeLowerQuality:
		result = d.RemoveLowerQuality(opts.dryRun)
	case opts.editorialCategoryID != "":
		return search(cmd, c, opts, logger)
	case opts.id != "":
		result = d.DownloadFromID(opts.id)
	default:
		result = d.DownloadFromURL(opts.url)
	}

	if result.Success {
		logger.Info(result.Message)
	} else {
		logger.Error(result.Message, zap.Error(result.Err))
	}
	return nil
}

// search prints the program sets and/or collections of an editorial
// category, one JSON document per line.
func search(cmd *cobra.Command, c *client.Client, opts *options, logger *zap.Logger) error {
	out := cmd.OutOrStdout()

	if opts.searchType == "program-sets" || opts.searchType == "all" {
		sets, err := c.ProgramSetsByCategory(opts.editorialCategoryID, client.DefaultSearchLimit)
		if err != nil {
			logger.Error("program set search failed", zap.Error(err))
		}
		for _, programSet := range sets {
			line, err := json.Marshal(programSet)
			if err != nil {
				continue
			}
			fmt.Fprintln(out, string(line))
		}
	}

	if opts.searchType == "collections" || opts.searchType == "all" {
		collections, err := c.CollectionsByCategory(opts.editorialCategoryID, client.DefaultSearchLimit)
		if err != nil {
			logger.Error("collection search failed", zap.Error(err))
		}
		for _, collection := range collections {
			line, err := json.Marshal(collection)
			if err != nil {
				continue
			}
			fmt.Fprintln(out, string(line))
		}
	}
	return nil
}

func buildLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if env := os.Getenv("AUDIOTHEK_LOG_LEVEL"); env != "" {
		level, err := zapcore.ParseLevel(env)
		if err != nil {
			return nil, fmt.Errorf("invalid AUDIOTHEK_LOG_LEVEL %q: %w", env, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(level)
	}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

// openCache opens the response cache, degrading to a disabled store when the
// cache directory cannot be prepared.
func openCache(dirOverride string, logger *zap.Logger) *cache.Store {
	if config.CacheDisabled() {
		logger.Debug("response cache disabled via environment")
		return cache.Disabled(logger)
	}
	dir, err := config.ResolveCacheDir(dirOverride)
	if err != nil {
		logger.Warn("could not resolve cache directory, running without cache", zap.Error(err))
		return cache.Disabled(logger)
	}
	store, err := cache.Open(dir, config.CacheTTL(), logger)
	if err != nil {
		logger.Warn("could not open response cache, running without cache", zap.Error(err))
		return cache.Disabled(logger)
	}
	return store
}
