package ai

import "context"

// AI is the text generation backend. It knows nothing about channels or storage.
type AI interface {
	GetReply(ctx context.Context, msgs []Message) (string, error)
}

// Message is the backend-neutral dialogue line.
type Message struct {
	Role string // "user" | "assistant" | "system"
	Text string
}
