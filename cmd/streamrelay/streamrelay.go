// Package streamrelaycmder is the root of the streamrelay command tree.
package streamrelaycmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/streamrelay/streamrelay/cmd/streamrelay/chat"
	configcmder "github.com/streamrelay/streamrelay/cmd/streamrelay/config"
	initcmder "github.com/streamrelay/streamrelay/cmd/streamrelay/init"
	quotacmder "github.com/streamrelay/streamrelay/cmd/streamrelay/quota"
	servecmder "github.com/streamrelay/streamrelay/cmd/streamrelay/serve"
	usagecmder "github.com/streamrelay/streamrelay/cmd/streamrelay/usage"
	versioncmder "github.com/streamrelay/streamrelay/cmd/version"
)

const streamrelayLongDesc string = `streamrelay relays streaming chat completions to clients that
hold an access token with remaining quota.

Run services using:
  streamrelay serve relay    Run the relay
  streamrelay serve quota    Run the quota service
  streamrelay serve          Run both together

Talk to a running relay using:
  streamrelay chat           Interactive chat
  streamrelay usage          Remaining quota of your access token
  streamrelay quota          Manage token quota on the quota service`

const streamrelayShortDesc string = "streamrelay - quota gated chat completion relay"

func NewStreamRelayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "streamrelay",
		Short:         streamrelayShortDesc,
		Long:          streamrelayLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .streamrelay/ config directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(usagecmder.NewUsageCmd())
	cmd.AddCommand(quotacmder.NewQuotaCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
