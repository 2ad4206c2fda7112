package telegram

import (
	"context"

	"github.com/imhogram/start-ai-telegram/internal/dialog"
)

// Processor handles one canonical inbound message. *dialog.Engine implements it.
type Processor interface {
	Process(ctx context.Context, in dialog.Inbound) error
}

// Update is the part of a Bot API update the assistant reads.
type Update struct {
	UpdateID      int64    `json:"update_id"`
	Message       *Message `json:"message"`
	EditedMessage *Message `json:"edited_message"`
}

type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
}

type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

type Chat struct {
	ID int64 `json:"id"`
}
