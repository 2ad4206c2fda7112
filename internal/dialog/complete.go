package dialog

import (
	"context"

	"golang.org/x/exp/slog"

	"github.com/imhogram/start-ai-telegram/internal/domain"
	"github.com/imhogram/start-ai-telegram/internal/lead"
	"github.com/imhogram/start-ai-telegram/internal/lib/logger/sl"
	"github.com/imhogram/start-ai-telegram/internal/metrics"
)

// complete hands a finished booking to the operator, unless the same lead
// went out within the duplicate window. Either way the person is told the
// request is on its way.
func (e *Engine) complete(ctx context.Context, t *turn) (*reply, error) {
	id := t.in.ConversationID
	b := t.booking
	channel := string(e.profile.Channel)
	log := e.log.With(slog.String("conversation_id", id))

	l := lead.New(e.profile.Channel, id, b.Topics, b.Name, b.Phone, b.City, b.Sphere, t.now)
	fp := l.Fingerprint()

	dup, err := e.store.WasRecentlySubmitted(ctx, fp)
	if err != nil {
		log.Warn("duplicate check failed, forwarding anyway", sl.Err(err))
		dup = false
	}
	if dup {
		metrics.LeadsTotal.WithLabelValues(channel, "duplicate").Inc()
		log.Info("duplicate lead suppressed", slog.String("fingerprint", fp))
		e.finalize(ctx, t, b)
		return &reply{text: textBooked.in(t.lang), record: true}, nil
	}

	if err := e.notifier.Notify(ctx, l); err != nil {
		metrics.LeadsTotal.WithLabelValues(channel, "failed").Inc()
		log.Error("notify operator failed", slog.String("lead_id", l.ID.String()), sl.Err(err))

		stage := domain.StageConfirming
		b = b.Apply(domain.Update{Stage: &stage})
		if err := e.store.SetBooking(ctx, id, b); err != nil {
			log.Error("keep booking for retry failed", sl.Err(err))
		}
		t.booking = b
		return &reply{text: textSorry.in(t.lang), record: true}, nil
	}

	if err := e.store.MarkSubmitted(ctx, fp); err != nil {
		log.Error("mark submitted failed", sl.Err(err))
	}
	if e.archive != nil {
		if err := e.archive.Save(ctx, l); err != nil {
			log.Error("archive lead failed", slog.String("lead_id", l.ID.String()), sl.Err(err))
		}
	}
	e.finalize(ctx, t, b)
	metrics.LeadsTotal.WithLabelValues(channel, "forwarded").Inc()
	return &reply{text: textBooked.in(t.lang), record: true}, nil
}

// finalize remembers the person and clears the booking. The operator has
// already been told, so failures here are only logged.
func (e *Engine) finalize(ctx context.Context, t *turn, b domain.Booking) {
	id := t.in.ConversationID
	log := e.log.With(slog.String("conversation_id", id))

	c := t.contact
	for _, kv := range []struct {
		dst *string
		v   string
	}{{&c.Name, b.Name}, {&c.Phone, b.Phone}, {&c.City, b.City}, {&c.Sphere, b.Sphere}} {
		if kv.v != "" {
			*kv.dst = kv.v
		}
	}
	if err := e.store.SetContact(ctx, id, c); err != nil {
		log.Error("save contact failed", sl.Err(err))
	}
	if err := e.store.ClearBooking(ctx, id); err != nil {
		log.Error("clear booking failed", sl.Err(err))
	}
	if err := e.store.ClearLastOffer(ctx, id); err != nil {
		log.Error("clear last offer failed", sl.Err(err))
	}
	e.cancelFollowup(ctx, id)

	t.contact = c
	t.booking = domain.Booking{}
}
