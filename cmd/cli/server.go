package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/theblitlabs/sandbox-provisioner/internal/api"
	"github.com/theblitlabs/sandbox-provisioner/internal/api/handlers"
	"github.com/theblitlabs/sandbox-provisioner/internal/monitoring/health"
	"github.com/theblitlabs/sandbox-provisioner/internal/monitoring/metrics"
	"github.com/theblitlabs/sandbox-provisioner/internal/server"
	"github.com/theblitlabs/sandbox-provisioner/internal/services"
	"github.com/theblitlabs/sandbox-provisioner/internal/telemetry"
	"github.com/theblitlabs/sandbox-provisioner/internal/utils/cliutil"
	"github.com/theblitlabs/sandbox-provisioner/internal/utils/errorutil"
	"github.com/theblitlabs/sandbox-provisioner/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func newServerCmd() *cobra.Command {
	return cliutil.CreateCommand(cliutil.CommandConfig{
		Use:   "server",
		Short: "Run the provisioning HTTP API",
		RunFunc: func(cmd *cobra.Command, args []string) error {
			return RunServer(cmd.Context())
		},
	}, logger.Get())
}

// RunServer serves the API until SIGINT or SIGTERM.
func RunServer(ctx context.Context) error {
	log := logger.WithComponent("server")
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.InitTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		return errorutil.WrapError(err, "failed to initialize telemetry")
	}
	defer func() {
		errorutil.HandleError(log, shutdownTelemetry(context.Background()), "Telemetry shutdown failed")
	}()

	provider, err := newDockerProvider(cfg)
	if err != nil {
		return err
	}
	defer provider.Close()

	checker := health.NewHealthChecker(cfg.Health.Interval)
	checker.Register("docker", health.BackendCheck(provider))
	checker.Register("system", health.SystemCheck(
		metrics.NewHostSampler(cfg.Health.SampleInterval),
		health.Thresholds{MemoryPercent: cfg.Health.MemoryWarn, CPUPercent: cfg.Health.CPUWarn},
	))
	checker.Start()
	defer checker.Stop()

	router := api.NewRouter(
		handlers.NewSandboxHandler(
			services.NewProvisionService(provider),
			services.NewRelayService(cfg.Relay.Timeout),
			currentOptions,
		),
		handlers.NewHealthHandler(checker),
		cfg.Server.Endpoint,
	)

	if err := server.VerifyPortAvailable(cfg.Server.Host, cfg.Server.Port); err != nil {
		return err
	}
	srv := server.NewServer(cfg.Server, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received, gracefully shutting down...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		errorutil.HandleContextError(log, shutdownCtx, err, "Server shutdown deadline exceeded", "Server shutdown error")
		return err
	}
	log.Info().Msg("Server stopped")
	return nil
}
