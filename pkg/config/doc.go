// Package config provides configuration management for shuttle.
//
// This package handles loading, validating, and managing configuration from
// YAML files with environment variable overrides.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("config.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention SHUTTLE_SECTION_FIELD.
// For example:
//
//   - SHUTTLE_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - SHUTTLE_JOURNAL_BACKEND overrides journal.backend
//   - SHUTTLE_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// The CLI loads a .env file first, so overrides may also live there.
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// Validation uses go-playground/validator struct tags plus a few
// cross-field rules; all failures are reported together as a
// ValidationError.
//
// # Singleton Pattern
//
// For application-wide configuration access, use the singleton:
//
//	if err := config.Initialize("config.yaml"); err != nil {
//	    log.Fatal(err)
//	}
//	cfg := config.GetConfig()
//
// # Hot Reload
//
// Watcher observes the configuration file with fsnotify and calls
// ReloadConfig once writes settle. A failed reload keeps the previous
// configuration.
package config
