package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theblitlabs/sandbox-provisioner/internal/services"
	"github.com/theblitlabs/sandbox-provisioner/internal/utils/cliutil"
	"github.com/theblitlabs/sandbox-provisioner/pkg/logger"
)

func newProvisionCmd() *cobra.Command {
	return cliutil.CreateCommand(cliutil.CommandConfig{
		Use:     "provision",
		Short:   "Provision one sandbox and print its URL",
		Example: "  sandbox-provisioner provision --skip-agent",
		RunFunc: func(cmd *cobra.Command, args []string) error {
			skip, _ := cmd.Flags().GetBool("skip-agent")
			url, err := RunProvision(cmd.Context(), skip)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
		Flags: map[string]cliutil.Flag{
			"skip-agent": {
				Type:        cliutil.FlagTypeBool,
				Description: "Skip telemetry agent installation",
			},
		},
	}, logger.Get())
}

// RunProvision runs the workflow once against the configured backend. The run
// is not cancellable; an interrupt terminates the process and the sandbox
// expires at its timeout.
func RunProvision(ctx context.Context, skipAgent bool) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}

	provider, err := newDockerProvider(cfg)
	if err != nil {
		return "", err
	}
	defer provider.Close()

	opts := services.OptionsFromConfig(cfg)
	if skipAgent {
		opts.Agent.Skip = "true"
	}

	result, err := services.NewProvisionService(provider).Provision(context.WithoutCancel(ctx), opts)
	if err != nil {
		if perr, ok := services.AsProvisionError(err); ok {
			return "", errors.New(perr.Message)
		}
		return "", err
	}
	return result.URL, nil
}
