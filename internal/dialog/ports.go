package dialog

import (
	"context"
	"time"

	"github.com/imhogram/start-ai-telegram/internal/ai"
	"github.com/imhogram/start-ai-telegram/internal/domain"
	"github.com/imhogram/start-ai-telegram/internal/lead"
)

// Inbound is a channel message reduced to what the dialogue needs.
type Inbound struct {
	ConversationID string
	Text           string
	DisplayName    string
}

// Store is the per-conversation state. *store.Store implements it.
type Store interface {
	History(ctx context.Context, id string) ([]domain.HistoryEntry, error)
	AppendHistory(ctx context.Context, id string, entries ...domain.HistoryEntry) error

	Booking(ctx context.Context, id string) (domain.Booking, error)
	SetBooking(ctx context.Context, id string, b domain.Booking) error
	ClearBooking(ctx context.Context, id string) error

	Contact(ctx context.Context, id string) (domain.Contact, error)
	SetContact(ctx context.Context, id string, c domain.Contact) error
	ClearContact(ctx context.Context, id string) error

	Language(ctx context.Context, id string) (string, error)
	SetLanguage(ctx context.Context, id, lang string) error

	LastOffer(ctx context.Context, id string) (domain.LastOffer, error)
	SetLastOffer(ctx context.Context, id string, o domain.LastOffer) error
	ClearLastOffer(ctx context.Context, id string) error

	WasRecentlySubmitted(ctx context.Context, fingerprint string) (bool, error)
	MarkSubmitted(ctx context.Context, fingerprint string) error
	TryMarkOffered(ctx context.Context, id, topic string) (bool, error)

	ScheduleFollowup(ctx context.Context, id string, due time.Time) error
	CancelFollowup(ctx context.Context, id string) error
	DueFollowups(ctx context.Context, now time.Time, limit int64) ([]string, error)
	ClaimFollowup(ctx context.Context, id string) (bool, error)

	Reset(ctx context.Context, id string) error
}

// Sender pushes a reply to the channel.
type Sender interface {
	SendToChat(ctx context.Context, chatID string, text string) error
}

type Answerer interface {
	Answer(ctx context.Context, req ai.Request) (string, error)
}

type Notifier interface {
	Notify(ctx context.Context, l lead.Lead) error
	Ping(ctx context.Context, from string) error
}
