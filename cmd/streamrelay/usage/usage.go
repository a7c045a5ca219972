// Package usagecmder provides the usage command, which asks the relay for the
// remaining quota of the configured access token.
package usagecmder

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/streamrelay/streamrelay/cmd/streamrelay/wiring"
	"github.com/streamrelay/streamrelay/pkg/cliui"
	"github.com/streamrelay/streamrelay/pkg/config"
	"github.com/streamrelay/streamrelay/pkg/logger"
)

const usageLongDesc string = `Show the remaining quota of your access token.

The relay answers for the token given with --access-token or configured as
client.access_token.

Examples:
  streamrelay usage
  streamrelay usage -t my-token -r http://relay.internal:8080`

const usageShortDesc string = "Show the remaining quota of your access token"

var usageFlags = []string{
	config.FlagRelayTarget,
	config.FlagAccessToken,
}

type usageCommander struct {
	relayTarget string
	accessToken string
}

func NewUsageCmd() *cobra.Command {
	cmder := &usageCommander{}

	cmd := &cobra.Command{
		Use:   "usage",
		Short: usageShortDesc,
		Long:  usageLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := wiring.LoadViper(cmd, usageFlags)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			client, err := wiring.NewChatClient(v, logger.Nop())
			if err != nil {
				return err
			}

			remaining, err := client.RequestUsage(cmd.Context())
			if err != nil {
				return fmt.Errorf("requesting usage: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "  %s  %s\n",
				cliui.KeyStyle.Render("Remaining requests:"),
				cliui.ValueStyle.Render(strconv.FormatInt(remaining, 10)),
			)
			return nil
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagRelayTarget, &cmder.relayTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagAccessToken, &cmder.accessToken)

	return cmd
}
