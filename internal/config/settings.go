package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/handiism/bandcamp-purchases/internal/bandcamp"
)

// Environment variables that override file settings.
const (
	EnvBaseURL   = "BANDCAMP_BASE_URL"
	EnvCachePath = "BANDCAMP_CACHE_PATH"
	EnvExportDir = "BANDCAMP_EXPORT_DIR"
	EnvCookie    = "BANDCAMP_COOKIE"
)

// Export formats accepted by ExportFormat.
const (
	FormatCSV     = "csv"
	FormatJSON    = "json"
	FormatParquet = "parquet"
)

// Settings holds all configuration options.
type Settings struct {
	// Upstream settings
	BaseURL        string `json:"base_url" yaml:"base_url"`
	UserAgent      string `json:"user_agent" yaml:"user_agent"`
	RequestTimeout int    `json:"request_timeout" yaml:"request_timeout"` // seconds

	// Harvest settings
	PageSize    int `json:"page_size" yaml:"page_size"`
	PageDelayMS int `json:"page_delay_ms" yaml:"page_delay_ms"`
	MaxPages    int `json:"max_pages" yaml:"max_pages"`

	// Storage and export
	CachePath    string `json:"cache_path" yaml:"cache_path"`
	ExportDir    string `json:"export_dir" yaml:"export_dir"`
	ExportFormat string `json:"export_format" yaml:"export_format"` // csv, json, parquet

	// Cover art settings
	CoverArtResize              bool    `json:"cover_art_resize" yaml:"cover_art_resize"`
	CoverArtMaxSize             int     `json:"cover_art_max_size" yaml:"cover_art_max_size"`
	ConvertCoverArtToJPG        bool    `json:"convert_cover_art_to_jpg" yaml:"convert_cover_art_to_jpg"`
	MaxConcurrentCoverDownloads int     `json:"max_concurrent_cover_downloads" yaml:"max_concurrent_cover_downloads"`
	DownloadMaxRetries          int     `json:"download_max_retries" yaml:"download_max_retries"`
	DownloadRetryCooldown       float64 `json:"download_retry_cooldown" yaml:"download_retry_cooldown"`
	DownloadRetryExponent       float64 `json:"download_retry_exponent" yaml:"download_retry_exponent"`

	LogLevel string `json:"log_level" yaml:"log_level"`
}

// DefaultDir is ~/.bandcamp-export, where the cache and config live by default.
func DefaultDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".bandcamp-export")
}

// DefaultPath is the config file read when no --config flag is given.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.yaml")
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	homeDir, _ := os.UserHomeDir()
	return &Settings{
		BaseURL:        bandcamp.DefaultBaseURL,
		RequestTimeout: 60,

		PageSize:    bandcamp.DefaultPageSize,
		PageDelayMS: int(bandcamp.DefaultPageDelay / time.Millisecond),
		MaxPages:    bandcamp.DefaultMaxPages,

		CachePath:    filepath.Join(DefaultDir(), "cache.db"),
		ExportDir:    filepath.Join(homeDir, "Documents", "Bandcamp"),
		ExportFormat: FormatCSV,

		CoverArtResize:              true,
		CoverArtMaxSize:             1000,
		ConvertCoverArtToJPG:        true,
		MaxConcurrentCoverDownloads: 4,
		DownloadMaxRetries:          7,
		DownloadRetryCooldown:       0.2,
		DownloadRetryExponent:       4.0,

		LogLevel: "info",
	}
}

// Load reads settings from a JSON or YAML file, chosen by extension.
//
// A missing file yields the defaults. Fields absent from the file keep
// their default values.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, err
	}

	settings := DefaultSettings()
	if isYAML(path) {
		err = yaml.Unmarshal(data, settings)
	} else {
		err = json.Unmarshal(data, settings)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return settings, nil
}

// Save writes settings to a JSON or YAML file, chosen by extension.
func (s *Settings) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = s.YAML()
	} else {
		data, err = json.MarshalIndent(s, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// YAML returns the settings in the YAML config format.
func (s *Settings) YAML() ([]byte, error) {
	return yaml.Marshal(s)
}

// ApplyEnv overrides settings from BANDCAMP_* environment variables.
func (s *Settings) ApplyEnv() {
	if v := os.Getenv(EnvBaseURL); v != "" {
		s.BaseURL = v
	}
	if v := os.Getenv(EnvCachePath); v != "" {
		s.CachePath = v
	}
	if v := os.Getenv(EnvExportDir); v != "" {
		s.ExportDir = v
	}
}

// Validate reports settings that cannot work.
func (s *Settings) Validate() error {
	switch s.ExportFormat {
	case FormatCSV, FormatJSON, FormatParquet:
	default:
		return fmt.Errorf("unsupported export format %q (want csv, json or parquet)", s.ExportFormat)
	}
	if s.PageSize <= 0 {
		return fmt.Errorf("page_size must be positive, got %d", s.PageSize)
	}
	if s.MaxPages <= 0 {
		return fmt.Errorf("max_pages must be positive, got %d", s.MaxPages)
	}
	if !strings.HasPrefix(s.BaseURL, "http://") && !strings.HasPrefix(s.BaseURL, "https://") {
		return fmt.Errorf("base_url must be an http(s) URL, got %q", s.BaseURL)
	}
	return nil
}

// Timeout returns RequestTimeout as a duration.
func (s *Settings) Timeout() time.Duration {
	return time.Duration(s.RequestTimeout) * time.Second
}

// ToHarvestOptions converts settings to the harvester's pagination options.
func (s *Settings) ToHarvestOptions() bandcamp.Options {
	return bandcamp.Options{
		PageSize:  s.PageSize,
		MaxPages:  s.MaxPages,
		PageDelay: time.Duration(s.PageDelayMS) * time.Millisecond,
	}
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
