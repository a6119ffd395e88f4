package ports

import (
	"context"

	"github.com/theblitlabs/sandbox-provisioner/internal/core/models"
)

// SandboxProvider creates isolated execution environments.
type SandboxProvider interface {
	Create(ctx context.Context, spec models.EnvironmentSpec) (Sandbox, error)
}

// Sandbox is the live handle to one environment. It is owned by a single
// provisioning run.
type Sandbox interface {
	Info() models.Environment
	// RunCommand executes cmd and waits for it unless cmd.Detached is set,
	// in which case it returns once the command was accepted.
	RunCommand(ctx context.Context, cmd models.Command) (*models.CommandResult, error)
	// Domain returns the externally routable base URL for an exposed port.
	Domain(port int) (string, error)
	Stop(ctx context.Context) error
}
