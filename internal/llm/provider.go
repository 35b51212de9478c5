// Package llm provides the chat-completion client used for intent
// classification, SQL generation, and conversational replies.
package llm

import "context"

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Provider completes a chat transcript. Implementations perform no
// internal retry; cancellation and deadlines come from the context.
type Provider interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	Model() string
}
