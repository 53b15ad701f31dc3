// Package config loads SDK configuration from environment variables or from
// a bundled YAML file.
//
// Environment loading is backed by caarlos0/env with struct field tags, with
// an optional .env file picked up once per process via godotenv. LoadFile
// covers integrations that ship configuration as a file instead.
package config
