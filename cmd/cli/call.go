package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/theblitlabs/sandbox-provisioner/internal/services"
	"github.com/theblitlabs/sandbox-provisioner/internal/utils/cliutil"
	"github.com/theblitlabs/sandbox-provisioner/pkg/logger"
)

func newCallCmd() *cobra.Command {
	return cliutil.CreateCommand(cliutil.CommandConfig{
		Use:     "call",
		Short:   "Fetch /api/data from a provisioned sandbox",
		Example: "  sandbox-provisioner call --url http://localhost:49153",
		RunFunc: func(cmd *cobra.Command, args []string) error {
			url, _ := cmd.Flags().GetString("url")
			timeout, _ := cmd.Flags().GetDuration("timeout")

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			body, err := services.NewRelayService(timeout).Fetch(ctx, url)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(body))
			return nil
		},
		Flags: map[string]cliutil.Flag{
			"url": {
				Type:        cliutil.FlagTypeString,
				Description: "Sandbox URL returned by provision",
				Required:    true,
			},
			"timeout": {
				Type:            cliutil.FlagTypeDuration,
				Description:     "Request timeout",
				DefaultDuration: 30 * time.Second,
			},
		},
	}, logger.Get())
}
