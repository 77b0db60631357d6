// Package config loads and validates HomeHub Core configuration.
//
// Configuration is layered: hardcoded defaults, then the YAML file, then
// HOMEHUB_* environment variable overrides. Validation is fail-fast so a
// misconfigured hub never starts serving.
package config
