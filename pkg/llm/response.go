package llm

import (
	goopenai "github.com/sashabaranov/go-openai"
)

// ChatResponse is a non-streaming chat completion response.
type ChatResponse = goopenai.ChatCompletionResponse

// StreamChunk is the JSON payload of a single upstream stream event.
type StreamChunk = goopenai.ChatCompletionStreamResponse

// ErrorResponse is the JSON body returned for relay-internal failures.
type ErrorResponse struct {
	Error string `json:"error"`
}

// FirstChoiceContent returns the first choice's message content, or an empty
// string when the response is nil or carries no choices.
func FirstChoiceContent(resp *ChatResponse) string {
	if resp == nil || len(resp.Choices) == 0 {
		return ""
	}
	return resp.Choices[0].Message.Content
}
