// Package quotacmder provides commands for inspecting and granting token quota
// on a running quota service.
package quotacmder

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/streamrelay/streamrelay/cmd/streamrelay/wiring"
	"github.com/streamrelay/streamrelay/pkg/cliui"
	"github.com/streamrelay/streamrelay/pkg/config"
	"github.com/streamrelay/streamrelay/pkg/quota"
	"github.com/streamrelay/streamrelay/pkg/quota/httpstore"
)

const quotaLongDesc string = `Manage token quota on a running quota service.

  streamrelay quota get <token>            Show the remaining quota of a token
  streamrelay quota set <token> <count>    Grant a token a number of requests
  streamrelay quota decr <token>           Charge a token one request

The quota service is addressed with --quota-target and authenticated with
--quota-credential when it requires one.`

const quotaShortDesc string = "Manage token quota"

var quotaFlags = []string{
	config.FlagQuotaTarget,
	config.FlagQuotaCredential,
}

type quotaCommander struct {
	target     string
	credential string

	viper *viper.Viper
	store *httpstore.Store
}

func NewQuotaCmd() *cobra.Command {
	cmder := &quotaCommander{}

	cmd := &cobra.Command{
		Use:   "quota",
		Short: quotaShortDesc,
		Long:  quotaLongDesc,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.viper, err = wiring.LoadViper(cmd, quotaFlags)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cmder.store, err = wiring.NewAdminStore(cmder.viper)
			return err
		},
	}

	def := config.Flags[config.FlagQuotaTarget]
	cmd.PersistentFlags().StringVarP(&cmder.target, def.Name, def.Shorthand, config.NewDefaultConfig().Client.QuotaTarget, def.Description)
	def = config.Flags[config.FlagQuotaCredential]
	cmd.PersistentFlags().StringVar(&cmder.credential, def.Name, "", def.Description)

	cmd.AddCommand(cmder.newGetCmd())
	cmd.AddCommand(cmder.newSetCmd())
	cmd.AddCommand(cmder.newDecrCmd())

	return cmd
}

func (c *quotaCommander) newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <token>",
		Short: "Show the remaining quota of a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := c.store.Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("getting quota: %w", err)
			}
			printRecord(cmd.OutOrStdout(), rec)
			return nil
		},
	}
}

func (c *quotaCommander) newSetCmd() *cobra.Command {
	var opts quota.SetOptions

	cmd := &cobra.Command{
		Use:   "set <token> <count>",
		Short: "Grant a token a number of requests",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid count %q: %w", args[1], err)
			}
			if opts.NX && opts.XX {
				return fmt.Errorf("--nx and --xx are mutually exclusive")
			}

			w := cmd.OutOrStdout()
			err = cliui.Step(w, "Setting quota for "+args[0], func() error {
				return c.store.Set(cmd.Context(), args[0], count, opts)
			})
			if err != nil {
				return fmt.Errorf("setting quota: %w", err)
			}

			fmt.Fprintf(w, "  %s Set %s = %s\n",
				cliui.SuccessMark,
				cliui.KeyStyle.Render(args[0]),
				cliui.ValueStyle.Render(strconv.FormatInt(count, 10)),
			)
			return nil
		},
	}

	cmd.Flags().Int64Var(&opts.EX, "ex", 0, "Expire the quota after this many seconds")
	cmd.Flags().Int64Var(&opts.PX, "px", 0, "Expire the quota after this many milliseconds")
	cmd.Flags().BoolVar(&opts.NX, "nx", false, "Only set a token that has no quota yet")
	cmd.Flags().BoolVar(&opts.XX, "xx", false, "Only set a token that already has quota")

	return cmd
}

func (c *quotaCommander) newDecrCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decr <token>",
		Short: "Charge a token one request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var rec quota.Record
			w := cmd.OutOrStdout()
			err := cliui.Step(w, "Charging "+args[0], func() error {
				var err error
				rec, err = c.store.Decrement(cmd.Context(), args[0])
				return err
			})
			if err != nil {
				return fmt.Errorf("charging quota: %w", err)
			}
			printRecord(w, rec)
			return nil
		},
	}
}

func printRecord(w io.Writer, rec quota.Record) {
	fmt.Fprintf(w, "  %s  %s\n",
		cliui.KeyStyle.Render(rec.Token),
		cliui.ValueStyle.Render(strconv.FormatInt(rec.Remaining, 10)),
	)
}
