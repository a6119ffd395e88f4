package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theblitlabs/sandbox-provisioner/internal/core/models"
	"github.com/theblitlabs/sandbox-provisioner/internal/mocks"
)

func testConfig() Config {
	return Config{
		Dir:              "flask-api",
		Requirements:     "requirements.txt",
		Entrypoint:       "app.py",
		ServiceName:      "flask-api",
		Version:          "1.0.0",
		PropagationStyle: "tracecontext",
		TraceAgentURL:    "http://localhost:8126",
		TracingShim:      true,
		APIKey:           "dd-secret",
		Site:             "datadoghq.com",
		Env:              "dev",
	}
}

func TestInstaller_Install(t *testing.T) {
	sb := mocks.NewFakeSandbox("sb-1")

	result, err := NewInstaller(testConfig()).Install(context.Background(), sb)
	require.NoError(t, err)
	assert.True(t, result.Success())

	cmd, ok := sb.Find("pip install")
	require.True(t, ok)
	assert.Equal(t, []string{"install", "-r", "/vercel/sandbox/flask-api/requirements.txt"}, cmd.Args)
	assert.False(t, cmd.Sudo)
	assert.False(t, cmd.Detached)
}

func TestInstaller_NonZeroExit(t *testing.T) {
	sb := mocks.NewFakeSandbox("sb-1").On("pip install", 1)

	result, err := NewInstaller(testConfig()).Install(context.Background(), sb)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ExitCode)
}

func TestInstaller_TransportError(t *testing.T) {
	sb := mocks.NewFakeSandbox("sb-1").OnResult("pip install", models.CommandResult{}, errors.New("timeout"))

	_, err := NewInstaller(testConfig()).Install(context.Background(), sb)
	assert.ErrorContains(t, err, "timeout")
}

func TestLauncher_Environment(t *testing.T) {
	l := NewLauncher(testConfig())

	running := l.Environment(models.AgentStateRunning)
	assert.Equal(t, "dd-secret", running["DD_API_KEY"])
	assert.Equal(t, "flask-api", running["DD_SERVICE"])
	assert.Equal(t, "1.0.0", running["DD_VERSION"])
	assert.Equal(t, "tracecontext", running["DD_TRACE_PROPAGATION_STYLE"])
	assert.Equal(t, "http://localhost:8126", running["DD_TRACE_AGENT_URL"])
	assert.Equal(t, "false", running["DD_TRACE_LOG_STREAM_HANDLER"])
	assert.Equal(t, "false", running["DD_TRACE_STARTUP_LOGS"])
	assert.Equal(t, "false", running["DD_TRACE_HEALTH_METRICS_ENABLED"])
	assert.NotContains(t, running, "DD_TRACE_ENABLED")

	degraded := l.Environment(models.AgentStateRunningDegraded)
	assert.NotContains(t, degraded, "DD_TRACE_ENABLED")

	for _, state := range []models.AgentState{
		models.AgentStateNotAttempted,
		models.AgentStateInstallFailed,
		models.AgentStateInstalledNotRunning,
	} {
		assert.Equal(t, "false", l.Environment(state)["DD_TRACE_ENABLED"], string(state))
	}
}

func TestLauncher_Launch(t *testing.T) {
	sb := mocks.NewFakeSandbox("sb-1")

	result, err := NewLauncher(testConfig()).Launch(context.Background(), sb, models.AgentStateRunning)
	require.NoError(t, err)
	assert.True(t, result.Detached)

	cmd, ok := sb.Find("ddtrace-run")
	require.True(t, ok)
	assert.True(t, cmd.Detached)
	assert.Equal(t, "/vercel/sandbox/flask-api", cmd.WorkDir)
	assert.Contains(t, cmd.String(), "ddtrace-run python /vercel/sandbox/flask-api/app.py")
	assert.NotContains(t, cmd.String(), "dd-secret")
	assert.Equal(t, "dd-secret", cmd.Env["DD_API_KEY"])
}

func TestLauncher_WithoutShim(t *testing.T) {
	cfg := testConfig()
	cfg.TracingShim = false
	sb := mocks.NewFakeSandbox("sb-1")

	_, err := NewLauncher(cfg).Launch(context.Background(), sb, models.AgentStateInstallFailed)
	require.NoError(t, err)

	cmd, ok := sb.Find("python")
	require.True(t, ok)
	assert.NotContains(t, cmd.String(), "ddtrace-run")
	assert.Equal(t, "false", cmd.Env["DD_TRACE_ENABLED"])
}

func TestLauncher_Rejected(t *testing.T) {
	sb := mocks.NewFakeSandbox("sb-1").OnResult("python", models.CommandResult{}, errors.New("exec refused"))

	_, err := NewLauncher(testConfig()).Launch(context.Background(), sb, models.AgentStateRunning)
	assert.ErrorContains(t, err, "launch rejected")
}
