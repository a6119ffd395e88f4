package agent

import (
	"context"
	"fmt"

	"github.com/theblitlabs/sandbox-provisioner/internal/core/models"
	"github.com/theblitlabs/sandbox-provisioner/internal/core/ports"
	"github.com/theblitlabs/sandbox-provisioner/internal/utils/shellutil"
)

type systemdStrategy struct {
	config Config
	sleep  SleepFunc
}

func (s *systemdStrategy) Name() string { return "systemd" }

// Probe requires systemctl and a systemd that is actually running as init.
// Containers commonly ship the binary without the manager.
func (s *systemdStrategy) Probe(ctx context.Context, sb ports.Sandbox) bool {
	return succeeded(ctx, sb, false, "command -v systemctl >/dev/null 2>&1 && [ -d /run/systemd/system ]")
}

func (s *systemdStrategy) Attempt(ctx context.Context, sb ports.Sandbox) (models.AgentState, []string, error) {
	unit, err := shellutil.Quote(s.config.ServiceName)
	if err != nil {
		return models.AgentStateInstalledNotRunning, nil, err
	}

	result, err := shell(ctx, sb, true, "systemctl start "+unit)
	if err != nil || !result.Success() {
		return models.AgentStateInstalledNotRunning, nil, fmt.Errorf("systemctl start failed: %s", describe(result, err))
	}

	s.sleep(ctx, s.config.StartupWait)
	state, note := verify(ctx, sb, "systemctl is-active --quiet "+unit, s.config.InstallDir)
	return state, []string{note}, nil
}

type serviceStrategy struct {
	config Config
	sleep  SleepFunc
}

func (s *serviceStrategy) Name() string { return "service" }

// Probe requires the service command and an init script for the agent.
func (s *serviceStrategy) Probe(ctx context.Context, sb ports.Sandbox) bool {
	script, err := shellutil.Quote("/etc/init.d/" + s.config.ServiceName)
	if err != nil {
		return false
	}
	return succeeded(ctx, sb, false, "command -v service >/dev/null 2>&1 && [ -x "+script+" ]")
}

func (s *serviceStrategy) Attempt(ctx context.Context, sb ports.Sandbox) (models.AgentState, []string, error) {
	name, err := shellutil.Quote(s.config.ServiceName)
	if err != nil {
		return models.AgentStateInstalledNotRunning, nil, err
	}

	result, err := shell(ctx, sb, true, "service "+name+" start")
	if err != nil || !result.Success() {
		return models.AgentStateInstalledNotRunning, nil, fmt.Errorf("service start failed: %s", describe(result, err))
	}

	s.sleep(ctx, s.config.StartupWait)
	state, note := verify(ctx, sb, "service "+name+" status", s.config.InstallDir)
	return state, []string{note}, nil
}

// directStrategy runs the agent binary in the background. It always applies.
type directStrategy struct {
	config Config
	sleep  SleepFunc
}

func (s *directStrategy) Name() string { return "direct" }

func (s *directStrategy) Probe(context.Context, ports.Sandbox) bool { return true }

func (s *directStrategy) Attempt(ctx context.Context, sb ports.Sandbox) (models.AgentState, []string, error) {
	bin, err := shellutil.Quote(s.config.binary())
	if err != nil {
		return models.AgentStateInstalledNotRunning, nil, err
	}
	logFile, err := shellutil.Quote(s.config.LogFile)
	if err != nil {
		return models.AgentStateInstalledNotRunning, nil, err
	}

	script, err := shellutil.Script("nohup %s run >%s 2>&1", bin, logFile)
	if err != nil {
		return models.AgentStateInstalledNotRunning, nil, err
	}
	if _, err := sb.RunCommand(ctx, models.Command{
		Cmd:      "bash",
		Args:     []string{"-c", script},
		Sudo:     true,
		Detached: true,
	}); err != nil {
		return models.AgentStateInstalledNotRunning, nil, fmt.Errorf("agent launch rejected: %w", err)
	}

	s.sleep(ctx, s.config.StartupWait)
	state, note := verify(ctx, sb, bin+" status", s.config.binary())
	notes := []string{note}
	if !state.IsRunning() {
		notes = append(notes, "log tail: "+s.tail(ctx, sb, logFile))
	}
	return state, notes, nil
}

func (s *directStrategy) tail(ctx context.Context, sb ports.Sandbox, logFile string) string {
	result, err := shell(ctx, sb, true, "tail -n 20 "+logFile)
	if err != nil {
		return err.Error()
	}
	return result.Output()
}

func describe(result *models.CommandResult, err error) string {
	if err != nil {
		return err.Error()
	}
	return fmt.Sprintf("exit code %d: %s", result.ExitCode, result.Output())
}
