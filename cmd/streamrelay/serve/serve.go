// Package servecmder provides the serve command with subcommands for running services.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/streamrelay/streamrelay/api"
	quotacmder "github.com/streamrelay/streamrelay/cmd/streamrelay/serve/quota"
	relaycmder "github.com/streamrelay/streamrelay/cmd/streamrelay/serve/relay"
	"github.com/streamrelay/streamrelay/cmd/streamrelay/wiring"
	"github.com/streamrelay/streamrelay/pkg/config"
	quotapkg "github.com/streamrelay/streamrelay/pkg/quota"
	"github.com/streamrelay/streamrelay/pkg/quota/kvstore"
	"github.com/streamrelay/streamrelay/proxy"
)

type ServeCommander struct {
	relayListen    string
	quotaListen    string
	upstream       string
	chatPath       string
	apiKey         string
	relayTimeout   string
	workers        uint
	quotaStore     string
	quotaTarget    string
	credential     string
	eventsProvider string
	eventsBrokers  string
	eventsTopic    string
	logFile        string

	debug     bool
	configDir string
	viper     *viper.Viper
	logger    *slog.Logger
}

const serveLongDesc string = `Run streamrelay services.

Use subcommands to run individual services or all services together:
  streamrelay serve          Run both the relay and the quota service together
  streamrelay serve relay    Run just the relay
  streamrelay serve quota    Run just the quota service

When run together both services share one quota backend.`

const serveShortDesc string = "Run streamrelay services"

var serveFlags = []string{
	config.FlagRelayListen,
	config.FlagQuotaListen,
	config.FlagUpstream,
	config.FlagChatPath,
	config.FlagAPIKey,
	config.FlagRelayTimeout,
	config.FlagWorkers,
	config.FlagQuotaStore,
	config.FlagQuotaStoreTgt,
	config.FlagQuotaCredential,
	config.FlagEventsProvider,
	config.FlagEventsBrokers,
	config.FlagEventsTopic,
}

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.viper, err = wiring.LoadViper(cmd, serveFlags)
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

	config.AddStringFlag(cmd, config.Flags, config.FlagRelayListen, &cmder.relayListen)
	config.AddStringFlag(cmd, config.Flags, config.FlagQuotaListen, &cmder.quotaListen)
	config.AddStringFlag(cmd, config.Flags, config.FlagUpstream, &cmder.upstream)
	config.AddStringFlag(cmd, config.Flags, config.FlagChatPath, &cmder.chatPath)
	config.AddStringFlag(cmd, config.Flags, config.FlagAPIKey, &cmder.apiKey)
	config.AddStringFlag(cmd, config.Flags, config.FlagRelayTimeout, &cmder.relayTimeout)
	config.AddUintFlag(cmd, config.Flags, config.FlagWorkers, &cmder.workers)
	config.AddStringFlag(cmd, config.Flags, config.FlagQuotaStore, &cmder.quotaStore)
	config.AddStringFlag(cmd, config.Flags, config.FlagQuotaStoreTgt, &cmder.quotaTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagQuotaCredential, &cmder.credential)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsProvider, &cmder.eventsProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsBrokers, &cmder.eventsBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsTopic, &cmder.eventsTopic)
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs to this file")

	cmd.AddCommand(relaycmder.NewRelayCmd())
	cmd.AddCommand(quotacmder.NewQuotaCmd())

	return cmd
}

func (c *ServeCommander) run(ctx context.Context) error {
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

	// Create shared quota backend
	driver, err := wiring.NewDriver(ctx, c.viper, c.configDir, c.logger)
	if err != nil {
		return err
	}
	defer driver.Close()

	publisher, err := wiring.NewPublisher(c.viper)
	if err != nil {
		return err
	}
	defer publisher.Close()

	// Create relay
	relayConfig := wiring.RelayConfig(c.viper)
	gateway := quotapkg.NewGateway(kvstore.New(driver), c.logger)
	p, err := proxy.New(relayConfig, gateway, publisher, c.logger)
	if err != nil {
		return fmt.Errorf("creating relay: %w", err)
	}
	defer p.Close()

	c.logger.Info("starting relay",
		"relay_addr", relayConfig.ListenAddr,
		"upstream", relayConfig.UpstreamURL,
		"workers", relayConfig.Workers,
	)

	// Create quota service
	apiConfig := wiring.QuotaAPIConfig(c.viper)
	apiServer := api.NewServer(apiConfig, driver, c.logger)
	defer func() { _ = apiServer.Shutdown() }()

	c.logger.Info("starting quota service",
		"quota_addr", apiConfig.ListenAddr,
		"provider", c.viper.GetString("quota.provider"),
	)

	// Channel to capture errors from goroutines
	errChan := make(chan error, 2)

	go func() {
		if err := p.Run(); err != nil {
			errChan <- fmt.Errorf("relay error: %w", err)
		}
	}()

	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("quota service error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return nil
	}
}
