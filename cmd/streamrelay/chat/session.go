package chatcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/charmbracelet/lipgloss"

	"github.com/streamrelay/streamrelay/pkg/chatclient"
	"github.com/streamrelay/streamrelay/pkg/cliui"
	"github.com/streamrelay/streamrelay/pkg/controller"
	"github.com/streamrelay/streamrelay/pkg/llm"
)

const (
	// sessionID keys the single conversation of a chat command in the registry.
	sessionID = 0

	titlePrompt = "Summarize this conversation as a short title of at most six words. Reply with the title only."
)

var (
	userPrompt      = cliui.UserStyle.Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("assistant> ")
)

// session is one conversation with the relay. Each assistant reply is a
// stream registered under its message index so it can be cancelled.
type session struct {
	client   *chatclient.Client
	registry *controller.Registry
	out      io.Writer
	opts     chatclient.StreamOptions
	markdown bool

	messages []llm.ChatMessage
	inFlight atomic.Int64
}

func newSession(client *chatclient.Client, out io.Writer, opts chatclient.StreamOptions, markdown bool) *session {
	s := &session{
		client:   client,
		registry: controller.NewRegistry(),
		out:      out,
		opts:     opts,
		markdown: markdown,
	}
	s.inFlight.Store(-1)
	return s
}

// ask sends input as a user message and streams the reply. A failed
// exchange leaves the history unchanged.
func (s *session) ask(ctx context.Context, input string) (string, error) {
	s.messages = append(s.messages, llm.NewUserMessage(input))

	reply, err := s.stream(ctx)
	if err != nil {
		s.messages = s.messages[:len(s.messages)-1]
		return "", err
	}
	return reply, nil
}

// retry drops the last reply and streams a new one for the same question.
func (s *session) retry(ctx context.Context) (string, error) {
	n := len(s.messages)
	if n < 2 || s.messages[n-1].Role != llm.RoleAssistant {
		return "", errors.New("nothing to retry")
	}

	last := s.messages[n-1]
	s.messages = s.messages[:n-1]

	reply, err := s.stream(ctx)
	if err != nil {
		s.messages = append(s.messages, last)
		return "", err
	}
	return reply, nil
}

func (s *session) stream(ctx context.Context) (string, error) {
	msgIndex := len(s.messages)

	var (
		printed  int
		reply    string
		finished bool
		failure  error
	)

	fmt.Fprint(s.out, assistantPrompt)

	s.client.RequestChatStream(ctx, s.messages, s.opts, chatclient.Callbacks{
		OnController: func(h *controller.Handle) {
			s.registry.Register(sessionID, msgIndex, h)
			s.inFlight.Store(int64(msgIndex))
		},
		OnMessage: func(text string, final bool) {
			if !s.markdown && len(text) > printed {
				fmt.Fprint(s.out, text[printed:])
				printed = len(text)
			}
			if final {
				reply, finished = text, true
			}
		},
		OnError: func(err error, _ int) {
			failure = err
		},
	})

	s.inFlight.Store(-1)
	s.registry.Release(sessionID, msgIndex)

	if failure != nil {
		fmt.Fprintln(s.out)
		return "", failure
	}
	if !finished {
		return "", errors.New("chat stream ended without a reply")
	}

	if s.markdown {
		rendered, err := cliui.RenderMarkdown(reply)
		if err != nil {
			rendered = reply
		}
		fmt.Fprint(s.out, "\n", rendered)
	}
	fmt.Fprintln(s.out)

	s.messages = append(s.messages, llm.ChatMessage{Role: llm.RoleAssistant, Content: reply})
	return reply, nil
}

// interrupt cancels the in-flight reply. It reports false when no reply is
// streaming.
func (s *session) interrupt() bool {
	idx := int(s.inFlight.Load())
	if idx < 0 {
		return false
	}
	if _, ok := s.registry.Lookup(sessionID, idx); !ok {
		return false
	}
	s.registry.Cancel(sessionID, idx)
	return true
}

func (s *session) title(ctx context.Context) (string, error) {
	if len(s.messages) == 0 {
		return "", errors.New("the conversation is empty")
	}
	return s.client.RequestWithPrompt(ctx, s.messages, titlePrompt)
}

func (s *session) reset() {
	s.messages = nil
}
