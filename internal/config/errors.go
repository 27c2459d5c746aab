package config

import "errors"

var (
	// ErrLoadConfig wraps failures reading the .env file, the YAML file or
	// the environment.
	ErrLoadConfig = errors.New("load config failed")
	// ErrInvalidConfig wraps values rejected by Validate.
	ErrInvalidConfig = errors.New("invalid config")
)
