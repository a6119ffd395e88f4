package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/theblitlabs/sandbox-provisioner/internal/core/config"
	"github.com/theblitlabs/sandbox-provisioner/internal/core/models"
	"github.com/theblitlabs/sandbox-provisioner/internal/core/ports"
	"github.com/theblitlabs/sandbox-provisioner/internal/execution/agent"
	"github.com/theblitlabs/sandbox-provisioner/internal/execution/app"
	"github.com/theblitlabs/sandbox-provisioner/internal/telemetry"
	"github.com/theblitlabs/sandbox-provisioner/pkg/logger"
)

const stopTimeout = 30 * time.Second

// ProvisionOptions is the configuration one provisioning run works from.
type ProvisionOptions struct {
	Sandbox config.SandboxConfig
	Agent   config.AgentConfig
	App     config.AppConfig
}

func OptionsFromConfig(cfg *config.Config) ProvisionOptions {
	return ProvisionOptions{
		Sandbox: cfg.Sandbox,
		Agent:   cfg.Agent,
		App:     cfg.App,
	}
}

// Validate checks the required settings in the order they are reported.
func (o ProvisionOptions) Validate() *models.ProvisionError {
	if o.Sandbox.SourceRepo == "" {
		return models.NewConfigurationError("FLASK_API_GITHUB_REPO")
	}
	if o.Agent.APIKey == "" {
		return models.NewConfigurationError("DD_API_KEY")
	}
	return nil
}

func (o ProvisionOptions) environmentSpec() models.EnvironmentSpec {
	return models.EnvironmentSpec{
		Source:    models.Source{URL: o.Sandbox.SourceRepo, Type: models.SourceTypeGit},
		Resources: models.Resources{VCPUs: o.Sandbox.VCPUs, Runtime: o.Sandbox.Runtime},
		Timeout:   o.Sandbox.Timeout,
		Ports:     []int{o.Sandbox.Port},
	}
}

func (o ProvisionOptions) agentConfig() agent.Config {
	return agent.Config{
		APIKey:           o.Agent.APIKey,
		Site:             o.Agent.Site,
		Env:              o.Agent.Env,
		APMEnabled:       o.Agent.APMEnabled,
		InstallScriptURL: o.Agent.InstallScriptURL,
		InstallDir:       o.Agent.InstallDir,
		ConfigFile:       o.Agent.ConfigFile,
		ServiceName:      o.Agent.ServiceName,
		LogFile:          o.Agent.LogFile,
		StartupWait:      o.Agent.StartupWait,
	}
}

func (o ProvisionOptions) appConfig() app.Config {
	return app.Config{
		Dir:              o.App.Dir,
		Requirements:     o.App.Requirements,
		Entrypoint:       o.App.Entrypoint,
		ServiceName:      o.App.ServiceName,
		Version:          o.App.Version,
		PropagationStyle: o.App.PropagationStyle,
		TraceAgentURL:    o.App.TraceAgentURL,
		TracingShim:      o.App.TracingShim,
		APIKey:           o.Agent.APIKey,
		Site:             o.Agent.Site,
		Env:              o.Agent.Env,
	}
}

// ProvisionService creates a sandbox, prepares it and starts the application.
// Only environment creation, dependency install and a rejected launch fail a
// run; the agent outcome is logged and otherwise ignored.
type ProvisionService struct {
	provider ports.SandboxProvider
	sleep    agent.SleepFunc
	log      zerolog.Logger
}

type ProvisionServiceOption func(*ProvisionService)

// WithSleepFunc replaces the wait used for the settle delay and agent startup.
func WithSleepFunc(sleep agent.SleepFunc) ProvisionServiceOption {
	return func(s *ProvisionService) {
		s.sleep = sleep
	}
}

func NewProvisionService(provider ports.SandboxProvider, opts ...ProvisionServiceOption) *ProvisionService {
	s := &ProvisionService{
		provider: provider,
		sleep:    sleepContext,
		log:      logger.WithComponent("provisioner"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Provision runs the workflow once. A non-nil error is always a
// *models.ProvisionError.
func (s *ProvisionService) Provision(ctx context.Context, opts ProvisionOptions) (*models.ProvisionResult, error) {
	start := time.Now()
	defer telemetry.TrackProvision()()

	ctx, span := telemetry.Tracer().Start(ctx, "provision")
	defer span.End()

	result, perr := s.provision(ctx, opts)

	outcome := "success"
	if perr != nil {
		outcome = string(perr.Kind)
		span.SetStatus(codes.Error, perr.Message)
		telemetry.RecordError(outcome, "provisioner")
	}
	telemetry.RecordProvision(outcome, time.Since(start))

	if perr != nil {
		return nil, perr
	}
	result.Duration = time.Since(start)
	span.SetAttributes(attribute.String("sandbox.id", result.SandboxID))

	s.log.Info().
		Str("sandbox_id", result.SandboxID).
		Str("url", result.URL).
		Str("agent_state", string(result.AgentState)).
		Dur("duration", result.Duration).
		Msg("Sandbox ready")
	return result, nil
}

func (s *ProvisionService) provision(ctx context.Context, opts ProvisionOptions) (*models.ProvisionResult, *models.ProvisionError) {
	if perr := opts.Validate(); perr != nil {
		s.log.Error().Str("error", perr.Message).Msg("Provisioning not configured")
		return nil, perr
	}

	var sb ports.Sandbox
	err := s.step(ctx, "create_environment", func(ctx context.Context) error {
		var err error
		sb, err = s.provider.Create(ctx, opts.environmentSpec())
		return err
	})
	if err != nil {
		s.log.Error().Err(err).Str("source", opts.Sandbox.SourceRepo).Msg("Failed to create sandbox")
		return nil, models.NewEnvironmentCreationError(err)
	}

	log := s.log.With().Str("sandbox_id", sb.Info().ID).Logger()
	log.Info().Msg("Sandbox created")

	agentState := models.AgentStateNotAttempted
	if opts.Agent.SkipInstall() {
		log.Info().Msg("Skipping telemetry agent installation")
	} else {
		// Advisory: the returned error only marks the span.
		_ = s.step(ctx, "agent_bootstrap", func(ctx context.Context) error {
			outcome := agent.NewBootstrapper(opts.agentConfig(), agent.WithSleep(s.sleep)).Bootstrap(ctx, sb)
			agentState = outcome.State
			telemetry.RecordAgentOutcome(outcome.Strategy, string(outcome.State))
			if outcome.State.IsRunning() {
				return nil
			}
			log.Warn().
				Str("agent_state", string(outcome.State)).
				Str("strategy", outcome.Strategy).
				Strs("notes", outcome.Notes).
				Msg("Telemetry agent degraded, continuing")
			return fmt.Errorf("agent %s", outcome.State)
		})
	}

	cfg := opts.appConfig()
	err = s.step(ctx, "install_dependencies", func(ctx context.Context) error {
		result, err := app.NewInstaller(cfg).Install(ctx, sb)
		if err != nil {
			return err
		}
		if !result.Success() {
			return fmt.Errorf("pip exited with code %d", result.ExitCode)
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to install Python dependencies")
		s.discard(ctx, sb, log)
		return nil, models.NewDependencyInstallError(err)
	}

	err = s.step(ctx, "launch", func(ctx context.Context) error {
		_, err := app.NewLauncher(cfg).Launch(ctx, sb, agentState)
		return err
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to launch application")
		return nil, models.NewLaunchError(err)
	}

	s.sleep(ctx, opts.App.SettleDelay)

	url, err := sb.Domain(opts.Sandbox.Port)
	if err != nil {
		log.Error().Err(err).Int("port", opts.Sandbox.Port).Msg("Failed to resolve sandbox address")
		return nil, models.NewLaunchError(err)
	}

	return &models.ProvisionResult{
		URL:        url,
		SandboxID:  sb.Info().ID,
		AgentState: agentState,
	}, nil
}

// step runs fn inside a span and records its duration.
func (s *ProvisionService) step(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := telemetry.Tracer().Start(ctx, "provision."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)

	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	telemetry.RecordStep(name, status, time.Since(start))
	return err
}

// discard stops the sandbox even when the request context is already done.
func (s *ProvisionService) discard(ctx context.Context, sb ports.Sandbox, log zerolog.Logger) {
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
	defer cancel()

	if err := sb.Stop(stopCtx); err != nil {
		log.Warn().Err(err).Msg("Failed to stop sandbox")
		return
	}
	log.Info().Msg("Sandbox stopped")
}

func sleepContext(ctx context.Context, d time.Duration) {
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

// AsProvisionError extracts the provisioning error from err.
func AsProvisionError(err error) (*models.ProvisionError, bool) {
	var perr *models.ProvisionError
	if errors.As(err, &perr) {
		return perr, true
	}
	return nil, false
}
