// Package chatcmder provides the chat command for interactive chat through
// the relay.
package chatcmder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/streamrelay/streamrelay/cmd/streamrelay/wiring"
	"github.com/streamrelay/streamrelay/pkg/chatclient"
	"github.com/streamrelay/streamrelay/pkg/cliui"
	"github.com/streamrelay/streamrelay/pkg/config"
	"github.com/streamrelay/streamrelay/pkg/logger"
)

type chatCommander struct {
	relayTarget string
	accessToken string
	model       string
	timeout     string
	userOnly    bool
	markdown    bool
	debug       bool
}

const chatLongDesc string = `Start an interactive chat session through the relay.

Replies stream in as they are generated. Press Ctrl+C while a reply is
streaming to stop it; the text received so far is kept. Every completed
reply is charged to your access token.

Commands:
  /retry    Ask for a new reply to your last message
  /title    Suggest a title for the conversation
  /usage    Show the remaining quota of your access token
  /clear    Start a new conversation
  /exit     Quit (Ctrl+D works too)

Given a message as arguments, chat sends it once and prints the reply.

Examples:
  streamrelay chat
  streamrelay chat -m gpt-4o-mini -t my-token
  streamrelay chat "explain server sent events in one paragraph"`

const chatShortDesc string = "Interactive chat through the relay"

var chatFlags = []string{
	config.FlagRelayTarget,
	config.FlagAccessToken,
	config.FlagModel,
	config.FlagClientTimeout,
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			sess, err := cmder.newSession(cmd)
			if err != nil {
				return err
			}

			if len(args) > 0 {
				_, err := sess.ask(cmd.Context(), strings.Join(args, " "))
				return err
			}
			return cmder.repl(cmd.Context(), sess, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagRelayTarget, &cmder.relayTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagAccessToken, &cmder.accessToken)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &cmder.model)
	config.AddStringFlag(cmd, config.Flags, config.FlagClientTimeout, &cmder.timeout)
	cmd.Flags().BoolVar(&cmder.userOnly, "user-only", false, "Send only your own messages as context")
	cmd.Flags().BoolVar(&cmder.markdown, "markdown", false, "Render finished replies as markdown on a terminal")

	return cmd
}

func (c *chatCommander) newSession(cmd *cobra.Command) (*session, error) {
	v, err := wiring.LoadViper(cmd, chatFlags)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	c.model = v.GetString("client.model")

	log := logger.Nop()
	if c.debug {
		log = logger.New(logger.WithDebug(true), logger.WithPretty(true), logger.WithWriter(cmd.ErrOrStderr()))
	}

	client, err := wiring.NewChatClient(v, log)
	if err != nil {
		return nil, err
	}

	out := cmd.OutOrStdout()
	opts := chatclient.StreamOptions{FilterBot: c.userOnly}
	return newSession(client, out, opts, c.markdown && cliui.IsTerminal(out)), nil
}

func (c *chatCommander) repl(ctx context.Context, sess *session, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	defer signal.Stop(sigChan)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigChan:
				if sess.interrupt() {
					continue
				}
				// Nothing is streaming: Ctrl+C quits like it would without
				// the handler.
				fmt.Fprintln(out)
				os.Exit(130)
			}
		}
	}()

	fmt.Fprintf(out, "\n  %s %s\n", cliui.KeyStyle.Render("Model:"), cliui.ValueStyle.Render(c.model))
	fmt.Fprintf(out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, userPrompt)
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		quit, err := c.handleInput(ctx, sess, out, input)
		if err != nil {
			fmt.Fprintf(out, "  %s %s\n\n", cliui.FailMark, cliui.ErrorStyle.Render(err.Error()))
			continue
		}
		if quit {
			break
		}
		fmt.Fprintln(out)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(out)
	return nil
}

// handleInput runs one line of input. It reports true when the session
// should end.
func (c *chatCommander) handleInput(ctx context.Context, sess *session, out io.Writer, input string) (bool, error) {
	switch input {
	case "/exit":
		return true, nil

	case "/retry":
		_, err := sess.retry(ctx)
		return false, err

	case "/clear":
		sess.reset()
		fmt.Fprintf(out, "  %s New conversation\n", cliui.SuccessMark)
		return false, nil

	case "/title":
		title, err := sess.title(ctx)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(out, "  %s  %s\n", cliui.KeyStyle.Render("Title:"), cliui.ValueStyle.Render(strings.TrimSpace(title)))
		return false, nil

	case "/usage":
		remaining, err := sess.client.RequestUsage(ctx)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(out, "  %s  %s\n", cliui.KeyStyle.Render("Remaining requests:"),
			cliui.ValueStyle.Render(strconv.FormatInt(remaining, 10)))
		return false, nil
	}

	_, err := sess.ask(ctx, input)
	return false, err
}
