package models

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validSpec() EnvironmentSpec {
	return EnvironmentSpec{
		Source:    Source{URL: "https://github.com/example/app.git", Type: SourceTypeGit},
		Resources: Resources{VCPUs: 4, Runtime: "python3.13"},
		Timeout:   45 * time.Minute,
		Ports:     []int{5000},
	}
}

func TestEnvironmentSpec_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*EnvironmentSpec)
		wantErr bool
	}{
		{name: "valid", mutate: func(*EnvironmentSpec) {}},
		{name: "missing url", mutate: func(s *EnvironmentSpec) { s.Source.URL = "" }, wantErr: true},
		{name: "unknown source type", mutate: func(s *EnvironmentSpec) { s.Source.Type = "tarball" }, wantErr: true},
		{name: "zero vcpus", mutate: func(s *EnvironmentSpec) { s.Resources.VCPUs = 0 }, wantErr: true},
		{name: "missing runtime", mutate: func(s *EnvironmentSpec) { s.Resources.Runtime = "" }, wantErr: true},
		{name: "zero timeout", mutate: func(s *EnvironmentSpec) { s.Timeout = 0 }, wantErr: true},
		{name: "bad port", mutate: func(s *EnvironmentSpec) { s.Ports = []int{70000} }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := validSpec()
			tt.mutate(&spec)
			err := spec.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEnvironment_Exposes(t *testing.T) {
	env := Environment{Ports: []int{5000, 8126}}
	assert.True(t, env.Exposes(5000))
	assert.False(t, env.Exposes(3000))
}

func TestCommandResult(t *testing.T) {
	var nilResult *CommandResult
	assert.False(t, nilResult.Success())
	assert.Empty(t, nilResult.Output())

	r := &CommandResult{ExitCode: 0, Stdout: "ok\n", Stderr: "  warn \n"}
	assert.True(t, r.Success())
	assert.Equal(t, "ok\nwarn", r.Output())

	assert.False(t, (&CommandResult{ExitCode: 1}).Success())
}

func TestCommand_String(t *testing.T) {
	assert.Equal(t, "pip install -r requirements.txt", Command{Cmd: "pip", Args: []string{"install", "-r", "requirements.txt"}}.String())
	assert.Equal(t, "true", Command{Cmd: "true"}.String())
}

func TestAgentState(t *testing.T) {
	assert.True(t, AgentStateRunning.IsRunning())
	assert.True(t, AgentStateRunningDegraded.IsRunning())
	assert.False(t, AgentStateInstalledNotRunning.IsRunning())
	assert.False(t, AgentStateInstalledNotRunning.IsRunning())
	assert.False(t, AgentStateInstallFailed.IsRunning())
}

func TestProvisionError(t *testing.T) {
	cause := errors.New("quota exceeded")
	err := NewEnvironmentCreationError(cause)

	assert.Equal(t, http.StatusInternalServerError, err.StatusCode)
	assert.Equal(t, MsgSandboxCreateFailed, err.Message)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "quota exceeded")

	cfgErr := NewConfigurationError("DD_API_KEY")
	assert.Equal(t, "DD_API_KEY environment variable is not set", cfgErr.Message)
	assert.Equal(t, ErrorKindConfiguration, cfgErr.Kind)
	assert.Nil(t, errors.Unwrap(cfgErr))
}
