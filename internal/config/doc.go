// Package config handles configuration loading for statekeeper.
//
// # Configuration File
//
// Default location (in order):
//
//  1. Path from STATEKEEPER_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/statekeeper/config.yaml
//  3. ~/.config/statekeeper/config.yaml
//
// Files ending in .toml are parsed as TOML; everything else as YAML.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${STATEKEEPER_JWT_SECRET}"
//
// Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	server:
//	  shutdown_timeout: "5s"
//	storage:
//	  busy_timeout: "2s"
//
// # Defaults
//
// Every field has a default, so an empty file is a valid configuration:
// an HTTP listener on 127.0.0.1:7420, the file backend under
// $XDG_DATA_HOME/statekeeper, a history cap of 1000 with a default read
// limit of 100, and a scan cache cap of 50.
package config
