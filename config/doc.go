// Package config loads agentwatch settings.
//
// Values are resolved in three layers: built-in defaults, then an optional
// YAML (or JSON) file, then AGENTWATCH_* environment variables. Validate
// reports every missing or invalid setting as a types.ConfigurationError so
// the console can fail before any session starts.
package config
