// Package config loads application configuration from environment variables
// and YAML files.
//
// Load wraps github.com/joho/godotenv and github.com/caarlos0/env/v11:
// it reads an optional .env file once per process, parses the environment
// into any struct via `env` field tags, and caches each successfully loaded
// type so repeated loads are cheap and consistent. LoadYAML covers
// file-based configuration for deployments that prefer a config file over
// environment variables; when a struct carries both tag sets, load the YAML
// first and let Load overlay environment values.
//
// Reset clears the cache, which tests use to reload a type with different
// environment values.
package config
