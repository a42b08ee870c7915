package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/oshokin/dmd-downloader/internal/catalog"
	"github.com/oshokin/dmd-downloader/internal/config"
	"github.com/oshokin/dmd-downloader/internal/logger"
	"github.com/oshokin/dmd-downloader/internal/store"
)

var (
	// ErrAPIKeyMissing is returned when no API key is available.
	ErrAPIKeyMissing = config.ErrAPIKeyMissing
	// ErrNoReleases is returned when the catalog lists nothing for the item.
	ErrNoReleases = errors.New("no releases found")
	// ErrSyncFailed is returned when at least one release could not be synchronized.
	ErrSyncFailed = errors.New("synchronization failed")
)

// Options are inputs accepted by the pass entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// EnvFile is the dotenv file consulted for the API key.
	EnvFile string
	// ItemID overrides the configured catalog item.
	ItemID string
	// DataDir overrides the configured archive store root.
	DataDir string
	// Settings, when set, is used instead of reading ConfigPath.
	Settings *config.Config
	// HTTPClient overrides the client used for catalog calls and downloads.
	HTTPClient *http.Client
	// Progress receives download progress bars. Nil disables them.
	Progress io.Writer
}

// Run performs one synchronization pass and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) error {
	if opts == nil {
		opts = &Options{}
	}

	ctx = logger.WithName(ctx, "dmd-downloader")
	ctx = logger.WithKV(ctx, "run_id", uuid.NewString())

	settings, err := resolveSettings(opts)
	if err != nil {
		return err
	}

	if settings.APIKey == "" {
		settings.APIKey, err = config.LoadAPIKey(opts.EnvFile)
		if err != nil {
			logger.ErrorKV(ctx, "API key is not configured", "env", config.APIKeyEnv, "error", err)
			return err
		}
	}

	client, err := catalog.NewClient(settings.APIKey,
		catalog.WithBaseURL(settings.APIBaseURL),
		catalog.WithHTTPClient(opts.HTTPClient),
		catalog.WithCallTimeout(settings.Timeout),
	)
	if err != nil {
		return fmt.Errorf("create catalog client: %w", err)
	}

	archives, err := store.New(settings.DataDir)
	if err != nil {
		return err
	}

	marker, err := AcquireMarker(ctx, archives.Root())
	if err != nil {
		logger.ErrorKV(ctx, "Unable to start synchronization", "error", err)
		return err
	}

	defer marker.Release(ctx)

	syncer := NewSynchronizer(archives,
		WithHTTPClient(opts.HTTPClient),
		WithProgressWriter(opts.Progress),
		WithProbeTimeout(settings.Timeout),
		WithDownloadTimeout(settings.DownloadTimeout),
		WithLocation(settings.Location()),
		WithRedactor(client.Redact),
	)

	logger.InfoKV(ctx, "Starting synchronization",
		"item_id", settings.ItemID, "data_dir", archives.Root(), "latest_only", settings.LatestOnly)

	if err = syncReleases(ctx, client, syncer, settings); err != nil {
		logger.ErrorKV(ctx, "Synchronization failed at "+syncer.Timestamp(), "error", err)
		return err
	}

	logger.Info(ctx, "All downloads and extractions completed successfully at "+syncer.Timestamp())

	return nil
}

// syncReleases fetches the release list and synchronizes every release in order.
func syncReleases(ctx context.Context, client *catalog.Client, syncer *Synchronizer, settings *config.Config) error {
	releases := client.GetReleases(ctx, settings.ItemID, settings.LatestOnly)
	if len(releases) == 0 {
		return fmt.Errorf("item %s: %w", settings.ItemID, ErrNoReleases)
	}

	syncOpts := SyncOptions{
		IncludeChecksum:      settings.IncludeChecksum,
		IncludeSignature:     settings.IncludeSignature,
		ExtractAfterDownload: settings.Extract,
	}

	var failed []string

	for _, rel := range releases {
		outcome := syncer.SyncRelease(ctx, rel, syncOpts)
		if outcome.OK() {
			continue
		}

		logger.ErrorKV(ctx, "Release was not synchronized",
			"release_id", string(rel.ID), "failed_files", outcome.Failed())

		failed = append(failed, string(rel.ID))
	}

	if len(failed) > 0 {
		return fmt.Errorf("%d of %d releases (%s): %w",
			len(failed), len(releases), strings.Join(failed, ", "), ErrSyncFailed)
	}

	return nil
}

// resolveSettings loads the settings and applies the overrides from opts.
func resolveSettings(opts *Options) (*config.Config, error) {
	settings := opts.Settings
	if settings == nil {
		var err error

		settings, err = config.Load(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
	}

	if itemID := strings.TrimSpace(opts.ItemID); itemID != "" {
		settings.ItemID = itemID
	}

	if dataDir := strings.TrimSpace(opts.DataDir); dataDir != "" {
		settings.DataDir = dataDir
	}

	if err := config.Validate(settings); err != nil {
		return nil, err
	}

	return settings, nil
}
