package agent

import (
	"context"
	"fmt"

	"github.com/theblitlabs/sandbox-provisioner/internal/core/models"
	"github.com/theblitlabs/sandbox-provisioner/internal/core/ports"
	"github.com/theblitlabs/sandbox-provisioner/internal/utils/shellutil"
)

// Strategy is one way of starting the agent. Probe decides whether the
// strategy applies to the sandbox. Attempt returns an error only when the
// start action itself failed, which hands over to the next strategy; a
// verified state, even a stopped one, ends the chain.
type Strategy interface {
	Name() string
	Probe(ctx context.Context, sb ports.Sandbox) bool
	Attempt(ctx context.Context, sb ports.Sandbox) (models.AgentState, []string, error)
}

func DefaultStrategies(cfg Config, sleep SleepFunc) []Strategy {
	if sleep == nil {
		sleep = contextSleep
	}
	return []Strategy{
		&systemdStrategy{config: cfg, sleep: sleep},
		&serviceStrategy{config: cfg, sleep: sleep},
		&directStrategy{config: cfg, sleep: sleep},
	}
}

// shell validates script and runs it under bash.
func shell(ctx context.Context, sb ports.Sandbox, sudo bool, script string) (*models.CommandResult, error) {
	if err := shellutil.Validate(script); err != nil {
		return nil, err
	}
	return sb.RunCommand(ctx, models.Command{Cmd: "bash", Args: []string{"-c", script}, Sudo: sudo})
}

func succeeded(ctx context.Context, sb ports.Sandbox, sudo bool, script string) bool {
	result, err := shell(ctx, sb, sudo, script)
	return err == nil && result.Success()
}

// processPresent greps the process table for pattern.
func processPresent(ctx context.Context, sb ports.Sandbox, pattern string) bool {
	quoted, err := shellutil.Quote(pattern)
	if err != nil {
		return false
	}
	return succeeded(ctx, sb, false, fmt.Sprintf("ps aux | grep -v grep | grep -F -- %s", quoted))
}

// verify maps the status check and a process table probe onto a state.
func verify(ctx context.Context, sb ports.Sandbox, statusScript, pattern string) (models.AgentState, string) {
	result, err := shell(ctx, sb, true, statusScript)
	if err == nil && result.Success() {
		return models.AgentStateRunning, "status check passed"
	}
	if processPresent(ctx, sb, pattern) {
		return models.AgentStateRunningDegraded, "status check failed but agent process found"
	}
	if err != nil {
		return models.AgentStateInstalledNotRunning, fmt.Sprintf("status check failed: %v", err)
	}
	return models.AgentStateInstalledNotRunning, "agent process not found: " + result.Output()
}
