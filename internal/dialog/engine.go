// Package dialog decides what to say to every inbound message and keeps the
// per-conversation state moving: greeting, booking a consultation, handing the
// lead to an operator, or answering a question with the language model.
package dialog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/exp/slog"

	"github.com/imhogram/start-ai-telegram/internal/ai"
	"github.com/imhogram/start-ai-telegram/internal/domain"
	"github.com/imhogram/start-ai-telegram/internal/extract"
	"github.com/imhogram/start-ai-telegram/internal/lead"
	"github.com/imhogram/start-ai-telegram/internal/lib/logger/sl"
	"github.com/imhogram/start-ai-telegram/internal/metrics"
	"github.com/imhogram/start-ai-telegram/internal/topics"
)

// Profile is what differs between channels.
type Profile struct {
	Channel  lead.Channel
	Required []domain.Field
	// UseDisplayName lets the platform profile name fill the name slot.
	UseDisplayName bool
	// IDLabel prefixes the conversation id in /whoami.
	IDLabel string
}

var TelegramProfile = Profile{
	Channel:  lead.ChannelTelegram,
	Required: []domain.Field{domain.FieldName, domain.FieldPhone},
	IDLabel:  "chat_id",
}

var WhatsAppProfile = Profile{
	Channel:        lead.ChannelWhatsApp,
	Required:       []domain.Field{domain.FieldName, domain.FieldCity, domain.FieldSphere},
	UseDisplayName: true,
	IDLabel:        "wa_id",
}

type Timings struct {
	LastOfferFreshness time.Duration
	OfferGap           time.Duration
	FollowupDelay      time.Duration
	ReplyMaxRunes      int
}

type Deps struct {
	Store    Store
	Answerer Answerer
	Notifier Notifier
	Sender   Sender
	// Archive is optional.
	Archive lead.Repo
	Log     *slog.Logger
	Now     func() time.Time
}

type Engine struct {
	profile  Profile
	timings  Timings
	store    Store
	answerer Answerer
	notifier Notifier
	sender   Sender
	archive  lead.Repo
	log      *slog.Logger
	now      func() time.Time
	rules    []rule
}

func NewEngine(p Profile, t Timings, d Deps) *Engine {
	if d.Now == nil {
		d.Now = time.Now
	}
	if t.ReplyMaxRunes <= 0 {
		t.ReplyMaxRunes = 3500
	}
	e := &Engine{
		profile:  p,
		timings:  t,
		store:    d.Store,
		answerer: d.Answerer,
		notifier: d.Notifier,
		sender:   d.Sender,
		archive:  d.Archive,
		log:      d.Log.With(slog.String("component", "dialog"), slog.String("channel", string(p.Channel))),
		now:      d.Now,
	}
	e.rules = e.defaultRules()
	return e
}

// turn is everything one message is decided on.
type turn struct {
	in      Inbound
	text    string
	now     time.Time
	lang    string
	cmd     *command
	history []domain.HistoryEntry
	booking domain.Booking
	contact domain.Contact
	offer   domain.LastOffer
	fields  extract.Fields
}

func (t *turn) freshOffer(window time.Duration) bool {
	return t.offer.Fresh(t.now, window)
}

// reply is the outcome of a rule. Unrecorded replies stay out of history.
type reply struct {
	text   string
	record bool
}

// Respond runs one inbound message through the rules and returns the text
// to send back. State is updated as a side effect.
func (e *Engine) Respond(ctx context.Context, in Inbound) (string, error) {
	const op = "dialog.Engine.Respond"

	t, err := e.load(ctx, in)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	for _, r := range e.rules {
		if !r.match(t) {
			continue
		}
		out, err := r.act(ctx, t)
		if err != nil {
			return "", fmt.Errorf("%s: %s: %w", op, r.name, err)
		}
		if out == nil {
			continue
		}

		metrics.MessagesTotal.WithLabelValues(string(e.profile.Channel), r.name).Inc()
		e.log.Debug("message handled",
			slog.String("conversation_id", in.ConversationID),
			slog.String("route", r.name),
			slog.String("lang", t.lang),
		)
		if out.record {
			e.remember(ctx, t, out.text)
		}
		return out.text, nil
	}

	// The answer rule always matches; this is unreachable with the default rules.
	return textSorry.in(t.lang), nil
}

// Process answers the message and sends the reply to the conversation.
// Send failures are logged only.
func (e *Engine) Process(ctx context.Context, in Inbound) error {
	text, err := e.Respond(ctx, in)
	if err != nil {
		return err
	}
	if text == "" || e.sender == nil {
		return nil
	}
	if err := e.sender.SendToChat(ctx, in.ConversationID, ai.Clamp(text, e.timings.ReplyMaxRunes)); err != nil {
		e.log.Error("send reply failed",
			slog.String("conversation_id", in.ConversationID),
			sl.Err(err),
		)
	}
	return nil
}

func (e *Engine) load(ctx context.Context, in Inbound) (*turn, error) {
	id := in.ConversationID
	t := &turn{
		in:   in,
		text: strings.TrimSpace(in.Text),
		now:  e.now(),
	}
	t.cmd = parseCommand(t.text)

	stored, err := e.store.Language(ctx, id)
	if err != nil {
		return nil, err
	}
	t.lang = stored
	if t.cmd == nil {
		if guess := extract.ConfidentLanguage(t.text); guess != "" && guess != stored {
			t.lang = guess
			if err := e.store.SetLanguage(ctx, id, guess); err != nil {
				e.log.Warn("save language failed", slog.String("conversation_id", id), sl.Err(err))
			}
		}
	}
	if t.lang == "" {
		t.lang = extract.LangRU
	}

	if t.history, err = e.store.History(ctx, id); err != nil {
		return nil, err
	}
	if t.booking, err = e.store.Booking(ctx, id); err != nil {
		return nil, err
	}
	if t.contact, err = e.store.Contact(ctx, id); err != nil {
		return nil, err
	}
	if t.offer, err = e.store.LastOffer(ctx, id); err != nil {
		return nil, err
	}
	t.fields = extract.All(t.text)
	return t, nil
}

func (e *Engine) remember(ctx context.Context, t *turn, answer string) {
	err := e.store.AppendHistory(ctx, t.in.ConversationID,
		domain.HistoryEntry{Role: domain.RoleUser, Content: t.text},
		domain.HistoryEntry{Role: domain.RoleAssistant, Content: answer},
	)
	if err != nil {
		e.log.Warn("append history failed", slog.String("conversation_id", t.in.ConversationID), sl.Err(err))
	}
}

// historyTopics returns the topics of the most recent history entry that
// names any.
func historyTopics(h []domain.HistoryEntry) []string {
	for i := len(h) - 1; i >= 0; i-- {
		if ts := topics.Match(h[i].Content); len(ts) > 0 {
			return ts
		}
	}
	return nil
}

// lastAssistantTopics returns the topics of the assistant's previous reply.
func lastAssistantTopics(h []domain.HistoryEntry) []string {
	for i := len(h) - 1; i >= 0; i-- {
		if h[i].Role == domain.RoleAssistant {
			return topics.Match(h[i].Content)
		}
	}
	return nil
}
