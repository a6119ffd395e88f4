package cliutil

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCommand(t *testing.T) {
	var gotURL string
	var gotTimeout time.Duration

	cmd := CreateCommand(CommandConfig{
		Use:   "call",
		Short: "Call a sandbox",
		RunFunc: func(cmd *cobra.Command, args []string) error {
			gotURL, _ = cmd.Flags().GetString("url")
			gotTimeout, _ = cmd.Flags().GetDuration("timeout")
			return nil
		},
		Flags: map[string]Flag{
			"url":     {Type: FlagTypeString, Description: "Sandbox URL", Required: true},
			"timeout": {Type: FlagTypeDuration, DefaultDuration: 30 * time.Second},
			"json":    {Type: FlagTypeBool},
		},
	}, zerolog.Nop())

	cmd.SetArgs([]string{"--url", "http://sandbox.test"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "http://sandbox.test", gotURL)
	assert.Equal(t, 30*time.Second, gotTimeout)
}

func TestCreateCommand_RequiredFlag(t *testing.T) {
	cmd := CreateCommand(CommandConfig{
		Use:   "call",
		Flags: map[string]Flag{"url": {Type: FlagTypeString, Required: true}},
	}, zerolog.Nop())

	cmd.SetArgs([]string{})
	assert.Error(t, cmd.Execute())
}
