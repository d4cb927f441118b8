package config

import (
	"errors"
	"fmt"
)

var errNotPositive = errors.New("must be positive")

// MissingVariableError reports a required variable that is absent or empty.
type MissingVariableError struct {
	Name string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("missing required environment variable %s", e.Name)
}

// InvalidVariableError reports a variable whose value cannot be parsed.
type InvalidVariableError struct {
	Name  string
	Value string
	Err   error
}

func (e *InvalidVariableError) Error() string {
	return fmt.Sprintf("invalid value %q for environment variable %s: %v", e.Value, e.Name, e.Err)
}

func (e *InvalidVariableError) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err, or anything it wraps, came from
// resolving the environment.
func IsConfigurationError(err error) bool {
	var missing *MissingVariableError
	var invalid *InvalidVariableError
	return errors.As(err, &missing) || errors.As(err, &invalid)
}

// VariableName returns the environment variable a configuration error is
// about, or "" for any other error.
func VariableName(err error) string {
	var missing *MissingVariableError
	if errors.As(err, &missing) {
		return missing.Name
	}
	var invalid *InvalidVariableError
	if errors.As(err, &invalid) {
		return invalid.Name
	}
	return ""
}

var (
	errPort           = errors.New("must be a port number between 1 and 65535")
	errNotNonNegative = errors.New("must be a non-negative integer")
)
