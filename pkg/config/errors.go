package config

import "errors"

var (
	// ErrParsingConfig is returned when the source cannot be parsed into the
	// config struct.
	ErrParsingConfig = errors.New("failed to parse configuration")

	// ErrConfigNotLoaded is returned when a config type is read before any
	// successful load.
	ErrConfigNotLoaded = errors.New("configuration has not been loaded")

	// ErrNilPointer is returned when a nil pointer is passed to a loader.
	ErrNilPointer = errors.New("nil pointer provided to config loader")
)
