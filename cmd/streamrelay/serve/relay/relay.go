// Package relaycmder provides the relay server command.
package relaycmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/streamrelay/streamrelay/cmd/streamrelay/wiring"
	"github.com/streamrelay/streamrelay/pkg/config"
	"github.com/streamrelay/streamrelay/pkg/quota"
	"github.com/streamrelay/streamrelay/proxy"
)

type relayCommander struct {
	listen         string
	upstream       string
	chatPath       string
	apiKey         string
	timeout        string
	workers        uint
	quotaStore     string
	quotaTarget    string
	quotaURL       string
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

const relayLongDesc string = `Run the relay.

The relay checks the access token of every chat request against the quota
service, forwards the request to the configured upstream with the server
held API key and streams the generated text back as plain text. A quota
unit is charged once the upstream has finished the completion.

Point the relay at a running quota service with --quota-url, or let it open
the quota backend itself with --quota-store.`

const relayShortDesc string = "Run the chat relay"

var relayFlags = []string{
	config.FlagRelayListenStandalone,
	config.FlagUpstream,
	config.FlagChatPath,
	config.FlagAPIKey,
	config.FlagRelayTimeout,
	config.FlagWorkers,
	config.FlagQuotaStore,
	config.FlagQuotaStoreTgt,
	config.FlagQuotaURL,
	config.FlagQuotaCredential,
	config.FlagEventsProvider,
	config.FlagEventsBrokers,
	config.FlagEventsTopic,
}

func NewRelayCmd() *cobra.Command {
	cmder := &relayCommander{}

	cmd := &cobra.Command{
		Use:   "relay",
		Short: relayShortDesc,
		Long:  relayLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.viper, err = wiring.LoadViper(cmd, relayFlags)
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

	config.AddStringFlag(cmd, config.Flags, config.FlagRelayListenStandalone, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagUpstream, &cmder.upstream)
	config.AddStringFlag(cmd, config.Flags, config.FlagChatPath, &cmder.chatPath)
	config.AddStringFlag(cmd, config.Flags, config.FlagAPIKey, &cmder.apiKey)
	config.AddStringFlag(cmd, config.Flags, config.FlagRelayTimeout, &cmder.timeout)
	config.AddUintFlag(cmd, config.Flags, config.FlagWorkers, &cmder.workers)
	config.AddStringFlag(cmd, config.Flags, config.FlagQuotaStore, &cmder.quotaStore)
	config.AddStringFlag(cmd, config.Flags, config.FlagQuotaStoreTgt, &cmder.quotaTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagQuotaURL, &cmder.quotaURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagQuotaCredential, &cmder.credential)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsProvider, &cmder.eventsProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsBrokers, &cmder.eventsBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsTopic, &cmder.eventsTopic)
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs to this file")

	return cmd
}

func (c *relayCommander) run(ctx context.Context) error {
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

	store, closeStore, err := wiring.OpenQuotaStore(ctx, c.viper, c.configDir, c.logger)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	publisher, err := wiring.NewPublisher(c.viper)
	if err != nil {
		return err
	}
	defer publisher.Close()

	cfg := wiring.RelayConfig(c.viper)
	p, err := proxy.New(cfg, quota.NewGateway(store, c.logger), publisher, c.logger)
	if err != nil {
		return fmt.Errorf("creating relay: %w", err)
	}
	defer p.Close()

	c.logger.Info("starting relay",
		"listen", cfg.ListenAddr,
		"upstream", cfg.UpstreamURL,
		"chat_path", cfg.ChatPath,
	)

	errChan := make(chan error, 1)
	go func() {
		errChan <- p.Run()
	}()

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
