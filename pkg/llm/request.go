package llm

import (
	"encoding/json"
	"maps"
)

// ModelConfig holds opaque request overrides such as model, temperature or
// max_tokens. Keys are sent verbatim at the top level of the request body.
type ModelConfig map[string]any

// ChatRequest is the chat completion request body. It is built fresh for
// every call and never mutated afterwards.
type ChatRequest struct {
	Messages    []RequestMessage
	Stream      bool
	ModelConfig ModelConfig
}

// RequestOptions control how NewChatRequest projects a conversation.
type RequestOptions struct {
	// FilterBot drops assistant authored messages, used when re-asking after
	// an edit.
	FilterBot bool

	// Stream requests an incremental event-stream response.
	Stream bool

	// ModelConfig is copied into the request.
	ModelConfig ModelConfig
}

// NewChatRequest builds a ChatRequest from a conversation history.
func NewChatRequest(messages []ChatMessage, opts RequestOptions) ChatRequest {
	sendMessages := make([]RequestMessage, 0, len(messages))
	for _, m := range messages {
		if opts.FilterBot && m.Role == RoleAssistant {
			continue
		}
		sendMessages = append(sendMessages, RequestMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	return ChatRequest{
		Messages:    sendMessages,
		Stream:      opts.Stream,
		ModelConfig: maps.Clone(opts.ModelConfig),
	}
}

// MarshalJSON spreads the model config at the top level of the body.
// "messages" and "stream" always win over model config keys.
func (r ChatRequest) MarshalJSON() ([]byte, error) {
	body := make(map[string]any, len(r.ModelConfig)+2)
	maps.Copy(body, r.ModelConfig)

	messages := r.Messages
	if messages == nil {
		messages = []RequestMessage{}
	}
	body["messages"] = messages
	body["stream"] = r.Stream

	return json.Marshal(body)
}

// UnmarshalJSON is the inverse of MarshalJSON: every key other than
// "messages" and "stream" lands in ModelConfig.
func (r *ChatRequest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = ChatRequest{}
	if m, ok := raw["messages"]; ok {
		if err := json.Unmarshal(m, &r.Messages); err != nil {
			return err
		}
		delete(raw, "messages")
	}
	if s, ok := raw["stream"]; ok {
		if err := json.Unmarshal(s, &r.Stream); err != nil {
			return err
		}
		delete(raw, "stream")
	}

	if len(raw) > 0 {
		r.ModelConfig = make(ModelConfig, len(raw))
		for k, v := range raw {
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				return err
			}
			r.ModelConfig[k] = val
		}
	}

	return nil
}
