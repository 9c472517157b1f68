// Package config defines the agent settings and provides helpers to load,
// validate and save them in YAML format.
//
// Legacy JSON settings files (agentConfig.json) are valid YAML and load as-is.
// Secrets can also come from the environment or from an optional .env file.
package config
