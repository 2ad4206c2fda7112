package whatsapp

import (
	"context"

	"github.com/imhogram/start-ai-telegram/internal/dialog"
)

// Processor handles one canonical inbound message. *dialog.Engine implements it.
type Processor interface {
	Process(ctx context.Context, in dialog.Inbound) error
}

// Payload is the Cloud API webhook envelope. Statuses and other change kinds
// decode into empty Messages and are skipped.
type Payload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

type Value struct {
	MessagingProduct string    `json:"messaging_product"`
	Contacts         []Contact `json:"contacts"`
	Messages         []Message `json:"messages"`
}

type Contact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type Message struct {
	ID   string `json:"id"`
	From string `json:"from"`
	Type string `json:"type"`
	Text *struct {
		Body string `json:"body"`
	} `json:"text"`
}
