package config

import "errors"

var (
	// ErrParsingConfig is returned when configuration values cannot be parsed into the struct.
	ErrParsingConfig = errors.New("failed to parse configuration")

	// ErrReadingConfigFile is returned when a configuration file cannot be read.
	ErrReadingConfigFile = errors.New("failed to read configuration file")

	// ErrNilPointer is returned when a nil pointer is provided to a loader.
	ErrNilPointer = errors.New("nil pointer provided to config loader")
)
