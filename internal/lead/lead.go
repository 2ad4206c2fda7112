// Package lead formats, forwards and archives completed leads.
package lead

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/imhogram/start-ai-telegram/internal/extract"
	"github.com/imhogram/start-ai-telegram/internal/topics"
)

type Channel string

const (
	ChannelTelegram Channel = "telegram"
	ChannelWhatsApp Channel = "whatsapp"
)

type Lead struct {
	ID             uuid.UUID `db:"id"`
	Channel        Channel   `db:"channel"`
	ConversationID string    `db:"conversation_id"`
	Topics         []string  `db:"-"`
	Name           string    `db:"name"`
	Phone          string    `db:"phone"`
	City           string    `db:"city"`
	Sphere         string    `db:"sphere"`
	CreatedAt      time.Time `db:"created_at"`
}

func New(ch Channel, conversationID string, ts []string, name, phone, city, sphere string, now time.Time) Lead {
	if len(ts) == 0 {
		ts = []string{topics.General}
	}
	return Lead{
		ID:             uuid.New(),
		Channel:        ch,
		ConversationID: conversationID,
		Topics:         ts,
		Name:           extract.NormalizeName(name),
		Phone:          extract.NormalizePhone(phone),
		City:           strings.TrimSpace(city),
		Sphere:         strings.TrimSpace(sphere),
		CreatedAt:      now,
	}
}

// Fingerprint identifies "the same lead": same channel, same topic set and
// the same person. Topic order does not matter.
func (l Lead) Fingerprint() string {
	parts := []string{
		string(l.Channel),
		strings.Join(topics.Set(l.Topics), "|"),
		strings.ToLower(l.Name),
		l.Phone,
		strings.ToLower(l.City),
		strings.ToLower(l.Sphere),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}

// Format renders the operator notification.
func Format(l Lead) string {
	dash := func(s string) string {
		if strings.TrimSpace(s) == "" {
			return "-"
		}
		return s
	}

	var b strings.Builder
	switch l.Channel {
	case ChannelWhatsApp:
		b.WriteString("🆕 Лид из WhatsApp:\n")
	default:
		b.WriteString("🆕 Лид из Telegram:\n")
	}
	b.WriteString("Тема: " + topics.Label(l.Topics, "ru") + "\n")
	b.WriteString("Имя: " + dash(l.Name) + "\n")
	if l.Phone != "" || l.Channel == ChannelTelegram {
		b.WriteString("Телефон: " + dash(l.Phone) + "\n")
	}
	if l.City != "" || l.Channel == ChannelWhatsApp {
		b.WriteString("Город: " + dash(l.City) + "\n")
	}
	if l.Sphere != "" || l.Channel == ChannelWhatsApp {
		b.WriteString("Сфера: " + dash(l.Sphere) + "\n")
	}
	switch l.Channel {
	case ChannelWhatsApp:
		b.WriteString("Источник: wa_id " + l.ConversationID)
	default:
		b.WriteString("Источник: chat_id " + l.ConversationID)
	}
	return b.String()
}
