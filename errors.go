package cryptodocs

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedOption is returned when an option value has the wrong
	// type or shape.
	ErrMalformedOption = errors.New("malformed option")
	// ErrUnresolvable is returned when an extension, parser or theme
	// identifier cannot be resolved.
	ErrUnresolvable = errors.New("unresolvable identifier")
	// ErrNoParser is returned when no source suffix matches a file.
	ErrNoParser = errors.New("no parser for source file")
)

// ConfigError is a configuration problem tied to a specific option.
type ConfigError struct {
	Option string
	Err    error
	Detail string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %v: %s", e.Option, e.Err, e.Detail)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func malformed(option string, format string, a ...any) error {
	return &ConfigError{
		Option: option,
		Err:    ErrMalformedOption,
		Detail: fmt.Sprintf(format, a...),
	}
}

func unresolvable(option string, format string, a ...any) error {
	return &ConfigError{
		Option: option,
		Err:    ErrUnresolvable,
		Detail: fmt.Sprintf(format, a...),
	}
}
