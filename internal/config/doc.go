// Package config loads, normalizes, and validates cocod configuration.
//
// Settings come from a TOML file (default ~/.config/coco/config.toml) with a
// .env file or environment variables supplying secrets such as the backend
// API key. Every numeric threshold the pipeline depends on — battery cutoffs,
// HTTP timeout, failure limits, probe intervals — is an explicit field here
// rather than a constant scattered through the code.
package config
