// Package config provides configuration management for bandcamp-export.
//
// This package handles:
//   - Loading and saving settings from JSON or YAML files
//   - Default configuration values
//   - BANDCAMP_* environment overrides
//   - Conversion to the harvester's pagination options
//
// # Loading from File
//
//	settings, err := config.Load(config.DefaultPath())
//	if err != nil {
//	    // Uses defaults if file doesn't exist
//	}
//	settings.ApplyEnv()
//
// # Configuration Options
//
// Settings includes options for:
//   - The upstream origin, user agent and request timeout
//   - Page size, inter-page delay and the per-pass page limit
//   - Cache location, export directory and format
//   - Cover art download, resizing and retry behavior
package config
