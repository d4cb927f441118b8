package lifecycle

import (
	"fmt"

	"github.com/cloud-sandbox/notebook-agent/internal/config"
)

// Class is the failure category of a fatal lifecycle error.
type Class string

const (
	ClassConfiguration Class = "configuration"
	ClassStartup       Class = "startup"
)

// FatalError ends the process with a non-zero exit code.
type FatalError struct {
	Class Class
	Err   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s failure: %v", e.Class, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Cause lets github.com/pkg/errors.Cause walk through a FatalError.
func (e *FatalError) Cause() error {
	return e.Err
}

// Classify maps err to its failure class.
func Classify(err error) Class {
	if config.IsConfigurationError(err) {
		return ClassConfiguration
	}
	return ClassStartup
}

// Hint returns an operator-facing remediation for err, or "" when there is
// nothing more useful to say than the error itself.
func Hint(err error) string {
	name := config.VariableName(err)
	if name == "" {
		return ""
	}
	switch name {
	case config.EnvNotebookID:
		return "set NOTEBOOK_ID to the id of the notebook this runtime serves"
	case config.EnvAuthToken:
		return "set AUTH_TOKEN to a runtime token issued for this notebook"
	case config.EnvHeartbeatInterval:
		return "set HEARTBEAT_INTERVAL to a positive duration such as 30s, or milliseconds"
	default:
		return fmt.Sprintf("check the value of %s", name)
	}
}
