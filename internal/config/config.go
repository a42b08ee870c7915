package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	// Timezone names must resolve on hosts without a system zoneinfo database.
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the settings of a synchronization pass.
type Config struct {
	// APIBaseURL is the root of the TRUD catalog API.
	APIBaseURL string `yaml:"api_base_url"`
	// ItemID is the catalog item whose releases are synchronized.
	ItemID string `yaml:"item_id"`
	// LatestOnly asks the catalog for the latest release only.
	LatestOnly bool `yaml:"latest_only"`
	// IncludeChecksum downloads the checksum companion file of each release.
	IncludeChecksum bool `yaml:"include_checksum"`
	// IncludeSignature downloads the signature companion file of each release.
	IncludeSignature bool `yaml:"include_signature"`
	// Extract unpacks the primary archive after a successful download.
	Extract bool `yaml:"extract"`
	// DataDir is the root of the archive store (downloads/ and extracted/).
	DataDir string `yaml:"data_dir"`
	// LogDir holds the daily run logs. Empty disables file logging.
	LogDir string `yaml:"log_dir"`
	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
	// Timezone is the IANA zone used for log and report timestamps.
	Timezone string `yaml:"timezone"`
	// Timeout bounds catalog calls and freshness probes.
	Timeout time.Duration `yaml:"timeout"`
	// DownloadTimeout bounds a single file download.
	DownloadTimeout time.Duration `yaml:"download_timeout"`
	// Schedule is the crontab used by the watch command.
	Schedule string `yaml:"schedule"`

	// APIKey is read from the environment, never from YAML.
	APIKey string `yaml:"-"`

	location *time.Location
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "dmd-downloader-settings.yaml"

	// DefaultEnvFilename is the dotenv file consulted for the API key.
	DefaultEnvFilename = ".env"

	// APIKeyEnv is the environment variable holding the TRUD API key.
	APIKeyEnv = "TRUD_API_KEY"

	// DefaultAPIBaseURL is the public TRUD API root.
	DefaultAPIBaseURL = "https://isd.digital.nhs.uk/trud/api/v1"

	// DefaultItemID is the dm+d catalog item.
	DefaultItemID = "24"

	// DefaultTimezone is the zone used for human readable timestamps.
	DefaultTimezone = "Asia/Dhaka"

	// DefaultTimeout is the default duration for catalog calls and probes.
	DefaultTimeout = 30 * time.Second

	// DefaultDownloadTimeout is the default duration for a single download.
	DefaultDownloadTimeout = 30 * time.Minute

	// DefaultSchedule runs the watch pass every day at 06:00.
	DefaultSchedule = "0 6 * * *"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// ErrAPIKeyMissing is returned when no API key is configured.
	ErrAPIKeyMissing = errors.New(APIKeyEnv + " is not set")

	// ErrConfigExists is returned by Init when the settings file is already present.
	ErrConfigExists = errors.New("settings file already exists")

	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errItemIDRequired is returned when the catalog item is empty.
	errItemIDRequired = errors.New("item id must be provided")
	// errBaseURLRequired is returned when the API base URL is empty.
	errBaseURLRequired = errors.New("api base url must be provided")
	// errScheduleRequired is returned when the watch crontab is empty.
	errScheduleRequired = errors.New("schedule must be provided")
)

// Default returns the settings used when no file is present.
func Default() *Config {
	return &Config{
		APIBaseURL:       DefaultAPIBaseURL,
		ItemID:           DefaultItemID,
		LatestOnly:       true,
		IncludeChecksum:  true,
		IncludeSignature: false,
		Extract:          true,
		DataDir:          ".",
		LogDir:           "logs",
		LogLevel:         "info",
		Timezone:         DefaultTimezone,
		Timeout:          DefaultTimeout,
		DownloadTimeout:  DefaultDownloadTimeout,
		Schedule:         DefaultSchedule,
	}
}

// Load reads settings from path on top of Default and validates them.
// A missing file at the default location is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	cfg := Default()

	contents, err := os.ReadFile(filepath.Clean(path))

	switch {
	case errors.Is(err, os.ErrNotExist) && path == DefaultConfigFilename:
		// Nothing to merge.
	case err != nil:
		return nil, fmt.Errorf("read settings: %w", err)
	default:
		if err = yaml.Unmarshal(contents, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Init writes the default settings to path and returns the path written.
// An existing file is only replaced when overwrite is set.
func Init(path string, overwrite bool) (string, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	_, err := os.Stat(filepath.Clean(path))

	switch {
	case err == nil && !overwrite:
		return path, fmt.Errorf("%s: %w", path, ErrConfigExists)
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return path, fmt.Errorf("inspect settings: %w", err)
	}

	return path, Save(path, Default())
}

// Validate checks required fields, fills defaults for zero values and resolves the timezone.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	settings.ItemID = strings.TrimSpace(settings.ItemID)
	if settings.ItemID == "" {
		return errItemIDRequired
	}

	if settings.APIBaseURL == "" {
		return errBaseURLRequired
	}

	if _, err := url.ParseRequestURI(settings.APIBaseURL); err != nil {
		return fmt.Errorf("invalid api base url: %w", err)
	}

	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	if settings.DownloadTimeout <= 0 {
		settings.DownloadTimeout = DefaultDownloadTimeout
	}

	if settings.DataDir == "" {
		settings.DataDir = "."
	}

	if strings.TrimSpace(settings.Schedule) == "" {
		return errScheduleRequired
	}

	if settings.Timezone == "" {
		settings.Timezone = "UTC"
	}

	location, err := time.LoadLocation(settings.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", settings.Timezone, err)
	}

	settings.location = location

	return nil
}

// Location returns the resolved reporting timezone, UTC before validation.
func (c *Config) Location() *time.Location {
	if c == nil || c.location == nil {
		return time.UTC
	}

	return c.location
}

// LoadAPIKey loads envFile (if it exists) into the process environment without
// overriding variables that are already set, then returns the API key.
func LoadAPIKey(envFile string) (string, error) {
	if envFile != "" {
		err := godotenv.Load(filepath.Clean(envFile))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	apiKey := strings.TrimSpace(os.Getenv(APIKeyEnv))
	if apiKey == "" {
		return "", ErrAPIKeyMissing
	}

	return apiKey, nil
}
