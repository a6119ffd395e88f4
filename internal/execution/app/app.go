// Package app installs and starts the sandboxed application.
package app

import (
	"context"
	"fmt"
	"path"

	"github.com/rs/zerolog"

	"github.com/theblitlabs/sandbox-provisioner/internal/core/models"
	"github.com/theblitlabs/sandbox-provisioner/internal/core/ports"
	"github.com/theblitlabs/sandbox-provisioner/internal/utils/shellutil"
	"github.com/theblitlabs/sandbox-provisioner/pkg/logger"
)

type Config struct {
	Dir              string
	Requirements     string
	Entrypoint       string
	ServiceName      string
	Version          string
	PropagationStyle string
	TraceAgentURL    string
	TracingShim      bool

	APIKey string
	Site   string
	Env    string
}

// root returns the application directory inside the sandbox.
func (c Config) root(env models.Environment) string {
	return path.Join(env.WorkDir, c.Dir)
}

type Installer struct {
	config Config
	log    zerolog.Logger
}

func NewInstaller(cfg Config) *Installer {
	return &Installer{config: cfg, log: logger.WithComponent("installer")}
}

// Install runs pip against the declared requirements. The caller decides what
// a non-zero exit means; an error is returned only when the command could not
// be run.
func (i *Installer) Install(ctx context.Context, sb ports.Sandbox) (*models.CommandResult, error) {
	requirements := path.Join(i.config.root(sb.Info()), i.config.Requirements)
	log := i.log.With().Str("sandbox_id", sb.Info().ID).Str("requirements", requirements).Logger()
	log.Info().Msg("Installing Python dependencies")

	stdout := logger.NewWriter(log, "stdout")
	stderr := logger.NewWriter(log, "stderr")
	defer stdout.Flush()
	defer stderr.Flush()

	result, err := sb.RunCommand(ctx, models.Command{
		Cmd:    "pip",
		Args:   []string{"install", "-r", requirements},
		Stdout: stdout,
		Stderr: stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("dependency install could not run: %w", err)
	}

	if result.Success() {
		log.Info().Msg("Python dependencies installed")
	} else {
		log.Error().Int("exit_code", result.ExitCode).Str("output", result.Output()).Msg("Dependency install failed")
	}
	return result, nil
}

type Launcher struct {
	config Config
	log    zerolog.Logger
}

func NewLauncher(cfg Config) *Launcher {
	return &Launcher{config: cfg, log: logger.WithComponent("launcher")}
}

// Environment returns the variables the application is started with. Tracing
// is switched off when no agent is known to be running.
func (l *Launcher) Environment(agentState models.AgentState) map[string]string {
	env := map[string]string{
		"DD_API_KEY":                      l.config.APIKey,
		"DD_SITE":                         l.config.Site,
		"DD_ENV":                          l.config.Env,
		"DD_SERVICE":                      l.config.ServiceName,
		"DD_VERSION":                      l.config.Version,
		"DD_TRACE_PROPAGATION_STYLE":      l.config.PropagationStyle,
		"DD_TRACE_AGENT_URL":              l.config.TraceAgentURL,
		"DD_TRACE_LOG_STREAM_HANDLER":     "false",
		"DD_TRACE_STARTUP_LOGS":           "false",
		"DD_TRACE_HEALTH_METRICS_ENABLED": "false",
	}
	if !agentState.IsRunning() {
		env["DD_TRACE_ENABLED"] = "false"
	}
	return env
}

// Launch starts the application detached. Only a rejected launch is an error;
// whether the process keeps running is not observed.
func (l *Launcher) Launch(ctx context.Context, sb ports.Sandbox, agentState models.AgentState) (*models.CommandResult, error) {
	entrypoint := path.Join(l.config.root(sb.Info()), l.config.Entrypoint)

	words := []string{"python", entrypoint}
	if l.config.TracingShim {
		words = append([]string{"ddtrace-run"}, words...)
	}
	line, err := shellutil.Join(words...)
	if err != nil {
		return nil, err
	}
	script, err := shellutil.Script("exec %s", line)
	if err != nil {
		return nil, err
	}

	l.log.Info().
		Str("sandbox_id", sb.Info().ID).
		Str("entrypoint", entrypoint).
		Bool("tracing_shim", l.config.TracingShim).
		Str("agent_state", string(agentState)).
		Msg("Launching application")

	result, err := sb.RunCommand(ctx, models.Command{
		Cmd:      "bash",
		Args:     []string{"-c", script},
		Env:      l.Environment(agentState),
		WorkDir:  l.config.root(sb.Info()),
		Detached: true,
	})
	if err != nil {
		return nil, fmt.Errorf("launch rejected: %w", err)
	}
	return result, nil
}
