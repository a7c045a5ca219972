// Package quotacmder provides the quota service command.
package quotacmder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/streamrelay/streamrelay/api"
	"github.com/streamrelay/streamrelay/cmd/streamrelay/wiring"
	"github.com/streamrelay/streamrelay/pkg/config"
)

type quotaCommander struct {
	listen      string
	store       string
	storeTarget string
	credential  string
	logFile     string

	debug     bool
	configDir string
	viper     *viper.Viper
	logger    *slog.Logger
}

const quotaLongDesc string = `Run the quota service.

The quota service keeps the remaining request count of every access token
and exposes GET, SET and DECR over HTTP. Backends: memory, redis, bolt,
sqlite, postgres.`

const quotaShortDesc string = "Run the quota service"

var quotaFlags = []string{
	config.FlagQuotaListenStandalone,
	config.FlagQuotaStore,
	config.FlagQuotaStoreTgt,
	config.FlagQuotaCredential,
}

func NewQuotaCmd() *cobra.Command {
	cmder := &quotaCommander{}

	cmd := &cobra.Command{
		Use:   "quota",
		Short: quotaShortDesc,
		Long:  quotaLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.viper, err = wiring.LoadViper(cmd, quotaFlags)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagQuotaListenStandalone, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagQuotaStore, &cmder.store)
	config.AddStringFlag(cmd, config.Flags, config.FlagQuotaStoreTgt, &cmder.storeTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagQuotaCredential, &cmder.credential)
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs to this file")

	return cmd
}

func (c *quotaCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		closeLog func() error
		err      error
	)
	c.logger, closeLog, err = wiring.NewLogger(c.debug, c.logFile)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	driver, err := wiring.NewDriver(ctx, c.viper, c.configDir, c.logger)
	if err != nil {
		return err
	}
	defer driver.Close()

	cfg := wiring.QuotaAPIConfig(c.viper)
	server := api.NewServer(cfg, driver, c.logger)

	c.logger.Info("starting quota service",
		"listen", cfg.ListenAddr,
		"provider", c.viper.GetString("quota.provider"),
	)

	return server.Run()
}
