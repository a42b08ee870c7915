package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/dmd-downloader/internal/config"
	"github.com/oshokin/dmd-downloader/internal/logger"
	"github.com/oshokin/dmd-downloader/internal/service/downloader"
	"github.com/oshokin/dmd-downloader/internal/version"
)

var errInvalidLogLevel = errors.New("invalid log level")

var (
	// configPath stores the path to the configuration YAML file.
	configPath string
	// envFile is the dotenv file holding the API key.
	envFile string
	// itemID overrides the configured catalog item.
	itemID string
	// dataDir overrides the configured archive store root.
	dataDir string
	// logLevel overrides the configured log level.
	logLevel string

	// rootCmd performs a single synchronization pass.
	rootCmd = &cobra.Command{
		Use:   version.Name,
		Short: "Download the latest dm+d release from NHS TRUD.",
		Long: `Fetch the latest release of a TRUD catalog item (dm+d, item 24, by default),
download the archive and its checksum companion, skip files that are already
current and extract the archive under extracted/<archive name>.

The API key is read from the TRUD_API_KEY environment variable or from the
.env file in the working directory. The command exits with status 1 when any
file of any release could not be synchronized.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			ctx, settings, cleanup, err := bootstrap(ctx)
			if err != nil {
				return err
			}

			defer cleanup()

			return downloader.Run(ctx, passOptions(settings, cmd.ErrOrStderr()))
		},
	}
)

// Execute runs the dmd-downloader CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// bootstrap loads the settings, applies flag overrides, builds the logger
// and resolves the API key before anything touches the network.
func bootstrap(ctx context.Context) (context.Context, *config.Config, func(), error) {
	settings, err := config.Load(configPath)
	if err != nil {
		return ctx, nil, nil, fmt.Errorf("load configuration: %w", err)
	}

	if itemID != "" {
		settings.ItemID = itemID
	}

	if dataDir != "" {
		settings.DataDir = dataDir
	}

	if logLevel != "" {
		settings.LogLevel = logLevel
	}

	if err = config.Validate(settings); err != nil {
		return ctx, nil, nil, err
	}

	level, ok := logger.ParseLogLevel(settings.LogLevel)
	if !ok {
		return ctx, nil, nil, fmt.Errorf("%q: %w", settings.LogLevel, errInvalidLogLevel)
	}

	log, cleanup, err := logger.New(logger.Config{
		Level:    level,
		Dir:      settings.LogDir,
		Tool:     version.Name,
		Location: settings.Location(),
	})
	if err != nil {
		return ctx, nil, nil, fmt.Errorf("create logger: %w", err)
	}

	ctx = logger.ToContext(ctx, log)

	logger.InfoKV(ctx, "Starting "+version.Name, version.Fields()...)

	settings.APIKey, err = config.LoadAPIKey(envFile)
	if err != nil {
		logger.ErrorKV(ctx, "API key is not configured", "env", config.APIKeyEnv, "error", err)
		cleanup()

		return ctx, nil, nil, err
	}

	return ctx, settings, cleanup, nil
}

// passOptions builds the inputs of one synchronization pass from resolved settings.
func passOptions(settings *config.Config, progress io.Writer) *downloader.Options {
	return &downloader.Options{
		EnvFile:  envFile,
		Settings: settings,
		Progress: progress,
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Flags shared by the pass and the watch loop.
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	flags.StringVar(&envFile, "env-file", config.DefaultEnvFilename, "dotenv file holding "+config.APIKeyEnv)
	flags.StringVarP(&itemID, "item", "i", "", "catalog item id (default from configuration, 24)")
	flags.StringVarP(&dataDir, "data-dir", "d", "", "root of downloads/ and extracted/ (default from configuration)")
	flags.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}
