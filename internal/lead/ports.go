package lead

import "context"

// Sender delivers a text to a chat. The Telegram outbound satisfies it.
type Sender interface {
	SendToChat(ctx context.Context, chatID string, text string) error
}

// Repo persists forwarded leads.
type Repo interface {
	Save(ctx context.Context, l Lead) error
	Recent(ctx context.Context, limit int) ([]Lead, error)
}
