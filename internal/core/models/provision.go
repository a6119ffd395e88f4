package models

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

type ErrorKind string

const (
	ErrorKindConfiguration       ErrorKind = "configuration"
	ErrorKindEnvironmentCreation ErrorKind = "environment_creation"
	ErrorKindDependencyInstall   ErrorKind = "dependency_install"
	ErrorKindLaunch              ErrorKind = "launch"
)

const (
	MsgSandboxCreateFailed = "Failed to create sandbox"
	MsgDependencyFailed    = "Failed to install Python dependencies"
	MsgSandboxURLRequired  = "sandboxUrl is required"
	MsgDownstreamFailed    = "Failed to fetch data from sandbox"
)

var (
	ErrSandboxURLRequired = errors.New(MsgSandboxURLRequired)
	ErrDownstreamFailed   = errors.New(MsgDownstreamFailed)
)

// ProvisionError is the only error type returned by a provisioning run.
// Message is safe to show to callers; Err carries the underlying cause for logs.
type ProvisionError struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	Err        error
}

func (e *ProvisionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}

func NewConfigurationError(variable string) *ProvisionError {
	return &ProvisionError{
		Kind:       ErrorKindConfiguration,
		Message:    fmt.Sprintf("%s environment variable is not set", variable),
		StatusCode: http.StatusInternalServerError,
	}
}

func NewEnvironmentCreationError(err error) *ProvisionError {
	return &ProvisionError{
		Kind:       ErrorKindEnvironmentCreation,
		Message:    MsgSandboxCreateFailed,
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewDependencyInstallError(err error) *ProvisionError {
	return &ProvisionError{
		Kind:       ErrorKindDependencyInstall,
		Message:    MsgDependencyFailed,
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewLaunchError(err error) *ProvisionError {
	return &ProvisionError{
		Kind:       ErrorKindLaunch,
		Message:    MsgSandboxCreateFailed,
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}

type ProvisionResult struct {
	URL        string        `json:"url"`
	SandboxID  string        `json:"-"`
	AgentState AgentState    `json:"-"`
	Duration   time.Duration `json:"-"`
}
