// Package llm holds the chat data model shared by the relay and its clients.
package llm

import "time"

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is a single entry of a conversation history. Messages are
// treated as immutable once sent; an ordered slice of them forms the history.
type ChatMessage struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"date,omitzero"`
}

// NewUserMessage creates a user authored message stamped with the current time.
func NewUserMessage(content string) ChatMessage {
	return ChatMessage{
		Role:      RoleUser,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// RequestMessage is the role+content projection of a ChatMessage that is
// sent upstream.
type RequestMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
