// Package configcmder provides the config command for managing persistent
// streamrelay configuration stored in the .streamrelay/ directory.
package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/streamrelay/streamrelay/pkg/cliui"
	"github.com/streamrelay/streamrelay/pkg/config"
)

const configLongDesc string = `Manage persistent streamrelay configuration.

Configuration is stored as config.toml in the .streamrelay/ directory and
provides default values for command flags. CLI flags and STREAMRELAY_*
environment variables take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  relay.listen, relay.upstream, relay.chat_path, relay.api_key,
  relay.timeout, relay.workers,
  quota.listen, quota.provider, quota.target, quota.url, quota.credential,
  client.relay_target, client.quota_target, client.access_token,
  client.model, client.timeout,
  events.provider, events.brokers, events.topic

Use subcommands to get, set, or list configuration values:
  streamrelay config set <key> <value>    Set a configuration value
  streamrelay config get <key>            Get a configuration value
  streamrelay config list                 List all configuration values

Examples:
  streamrelay config set relay.upstream http://localhost:11434
  streamrelay config set quota.provider redis
  streamrelay config get relay.upstream
  streamrelay config list`

const configShortDesc string = "Manage persistent streamrelay configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func checkKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}

func printTarget(w io.Writer, cfger *config.Configer) {
	if target := cfger.GetTarget(); target != "" {
		fmt.Fprintf(w, "\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
		return
	}
	fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
}

// displayValue masks secrets, keeping only a short suffix.
func displayValue(key, value string) string {
	if value == "" || !config.IsSecretConfigKey(key) {
		return value
	}
	if len(value) <= 4 {
		return "****"
	}
	return "****" + value[len(value)-4:]
}
