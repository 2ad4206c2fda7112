package dialog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/exp/slog"

	"github.com/imhogram/start-ai-telegram/internal/domain"
	"github.com/imhogram/start-ai-telegram/internal/extract"
	"github.com/imhogram/start-ai-telegram/internal/lib/logger/sl"
	"github.com/imhogram/start-ai-telegram/internal/topics"
)

var errNoSender = errors.New("no sender configured")

// SweepFollowups sends the reminder to every conversation whose follow-up
// is due. A follow-up is claimed before sending, so concurrent sweeps never
// remind the same person twice. Returns the number of reminders sent.
func (e *Engine) SweepFollowups(ctx context.Context, now time.Time, limit int64) (int, error) {
	const op = "dialog.Engine.SweepFollowups"

	ids, err := e.store.DueFollowups(ctx, now, limit)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	sent := 0
	for _, id := range ids {
		ok, err := e.store.ClaimFollowup(ctx, id)
		if err != nil {
			e.log.Warn("claim followup failed", slog.String("conversation_id", id), sl.Err(err))
			continue
		}
		if !ok {
			continue
		}
		if err := e.followup(ctx, id, now); err != nil {
			e.log.Error("followup failed", slog.String("conversation_id", id), sl.Err(err))
			continue
		}
		sent++
	}
	return sent, nil
}

func (e *Engine) followup(ctx context.Context, id string, now time.Time) error {
	if e.sender == nil {
		return errNoSender
	}
	lang, err := e.store.Language(ctx, id)
	if err != nil {
		return err
	}
	if lang == "" {
		lang = extract.LangRU
	}
	history, err := e.store.History(ctx, id)
	if err != nil {
		return err
	}

	text := textFollowup.in(lang)
	if err := e.sender.SendToChat(ctx, id, text); err != nil {
		return err
	}

	// A "yes" to the reminder is consent to whatever was discussed.
	ts := historyTopics(history)
	if len(ts) == 0 {
		ts = []string{topics.General}
	}
	if err := e.store.SetLastOffer(ctx, id, domain.LastOffer{Topics: ts, At: now}); err != nil {
		e.log.Warn("save last offer failed", slog.String("conversation_id", id), sl.Err(err))
	}
	if err := e.store.AppendHistory(ctx, id, domain.HistoryEntry{Role: domain.RoleAssistant, Content: text}); err != nil {
		e.log.Warn("append history failed", slog.String("conversation_id", id), sl.Err(err))
	}
	return nil
}
