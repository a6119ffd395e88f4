// Package agent installs the telemetry agent inside a sandbox and tries to
// bring it up. Nothing in this package can fail a provisioning run: the
// bootstrapper reports an Outcome value and has no error path.
package agent

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/theblitlabs/sandbox-provisioner/internal/core/models"
	"github.com/theblitlabs/sandbox-provisioner/internal/core/ports"
	"github.com/theblitlabs/sandbox-provisioner/internal/utils/shellutil"
	"github.com/theblitlabs/sandbox-provisioner/pkg/logger"
)

type Config struct {
	APIKey           string
	Site             string
	Env              string
	APMEnabled       bool
	InstallScriptURL string
	InstallDir       string
	ConfigFile       string
	ServiceName      string
	LogFile          string
	StartupWait      time.Duration
}

func (c Config) binary() string {
	return path.Join(c.InstallDir, "bin", "agent", "agent")
}

// Outcome is the advisory result of a bootstrap attempt.
type Outcome struct {
	State    models.AgentState
	Strategy string
	Notes    []string
}

func (o *Outcome) note(format string, args ...interface{}) {
	o.Notes = append(o.Notes, fmt.Sprintf(format, args...))
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration)

func contextSleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

type Bootstrapper struct {
	config     Config
	strategies []Strategy
	sleep      SleepFunc
	log        zerolog.Logger
}

type Option func(*Bootstrapper)

// WithStrategies replaces the default systemd, service, direct chain.
func WithStrategies(strategies ...Strategy) Option {
	return func(b *Bootstrapper) {
		b.strategies = strategies
	}
}

func WithSleep(sleep SleepFunc) Option {
	return func(b *Bootstrapper) {
		b.sleep = sleep
	}
}

func NewBootstrapper(cfg Config, opts ...Option) *Bootstrapper {
	b := &Bootstrapper{
		config: cfg,
		sleep:  contextSleep,
		log:    logger.WithComponent("agent"),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.strategies == nil {
		b.strategies = DefaultStrategies(cfg, b.sleep)
	}
	return b
}

// Bootstrap installs the agent and walks the start strategies in order. A
// strategy whose probe fails or whose start action fails hands over to the
// next one; none is tried twice.
// Panics raised while talking to the sandbox are recovered into the outcome.
func (b *Bootstrapper) Bootstrap(ctx context.Context, sb ports.Sandbox) (outcome Outcome) {
	log := b.log.With().Str("sandbox_id", sb.Info().ID).Logger()
	outcome.State = models.AgentStateNotAttempted

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Agent bootstrap aborted")
			outcome.note("bootstrap aborted: %v", r)
			if outcome.State == models.AgentStateNotAttempted {
				outcome.State = models.AgentStateInstallFailed
			}
		}
	}()

	log.Info().Msg("Installing telemetry agent")
	if err := b.install(ctx, sb); err != nil {
		log.Warn().Err(err).Msg("Agent installation failed, continuing without agent")
		outcome.State = models.AgentStateInstallFailed
		outcome.note("install: %v", err)
		return outcome
	}
	outcome.State = models.AgentStateInstalledNotRunning

	b.inspectInstall(ctx, sb, log)

	attempted := false
	for _, strategy := range b.strategies {
		slog := log.With().Str("strategy", strategy.Name()).Logger()
		if !strategy.Probe(ctx, sb) {
			slog.Debug().Msg("Strategy not applicable")
			continue
		}

		attempted = true
		slog.Info().Msg("Starting agent")
		state, notes, err := strategy.Attempt(ctx, sb)
		outcome.Strategy = strategy.Name()
		outcome.Notes = append(outcome.Notes, notes...)
		if err != nil {
			slog.Warn().Err(err).Msg("Agent start failed, trying next strategy")
			outcome.note("%s: %v", strategy.Name(), err)
			continue
		}
		outcome.State = state

		ev := slog.Info()
		if !state.IsRunning() {
			ev = slog.Warn()
		}
		ev.Str("state", string(state)).Msg("Agent start finished")
		return outcome
	}

	if attempted {
		log.Warn().Msg("Every applicable agent start strategy failed")
		outcome.note("all applicable start strategies failed")
		return outcome
	}
	log.Warn().Msg("No agent start strategy applicable")
	outcome.note("no start strategy applicable")
	return outcome
}

func (b *Bootstrapper) install(ctx context.Context, sb ports.Sandbox) error {
	url, err := shellutil.Quote(b.config.InstallScriptURL)
	if err != nil {
		return err
	}
	script, err := shellutil.Script(`bash -c "$(curl -L %s)"`, url)
	if err != nil {
		return err
	}

	stdout := logger.NewWriter(b.log, "stdout")
	stderr := logger.NewWriter(b.log, "stderr")
	defer stdout.Flush()
	defer stderr.Flush()

	result, err := sb.RunCommand(ctx, models.Command{
		Cmd:  "bash",
		Args: []string{"-c", script},
		Env: map[string]string{
			"DD_API_KEY":     b.config.APIKey,
			"DD_SITE":        b.config.Site,
			"DD_APM_ENABLED": strconv.FormatBool(b.config.APMEnabled),
			"DD_ENV":         b.config.Env,
		},
		Sudo:   true,
		Stdout: stdout,
		Stderr: stderr,
	})
	if err != nil {
		return fmt.Errorf("install command failed: %w", err)
	}
	if !result.Success() {
		return fmt.Errorf("install script exited with code %d", result.ExitCode)
	}
	return nil
}

// inspectInstall lists what the installer left behind. Output is logged only.
func (b *Bootstrapper) inspectInstall(ctx context.Context, sb ports.Sandbox, log zerolog.Logger) {
	targets := []string{
		b.config.InstallDir,
		path.Join(b.config.InstallDir, "bin"),
		b.config.ConfigFile,
	}
	for _, target := range targets {
		result, err := sb.RunCommand(ctx, models.Command{Cmd: "ls", Args: []string{"-la", target}, Sudo: true})
		switch {
		case err != nil:
			log.Warn().Err(err).Str("path", target).Msg("Could not inspect agent install")
		case !result.Success():
			log.Warn().Str("path", target).Str("output", result.Output()).Msg("Agent install path missing")
		default:
			log.Debug().Str("path", target).Str("output", result.Output()).Msg("Agent install path")
		}
	}
}
