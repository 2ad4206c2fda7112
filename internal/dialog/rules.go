package dialog

import (
	"context"
	"errors"

	"golang.org/x/exp/slog"

	"github.com/imhogram/start-ai-telegram/internal/ai"
	"github.com/imhogram/start-ai-telegram/internal/domain"
	"github.com/imhogram/start-ai-telegram/internal/extract"
	"github.com/imhogram/start-ai-telegram/internal/lib/logger/sl"
	"github.com/imhogram/start-ai-telegram/internal/topics"
)

// rule is one transition. The first rule whose act returns a reply wins;
// a nil reply passes the message on to the next rule.
type rule struct {
	name  string
	match func(t *turn) bool
	act   func(ctx context.Context, t *turn) (*reply, error)
}

func (e *Engine) defaultRules() []rule {
	return []rule{
		{name: "command", match: func(t *turn) bool { return t.cmd != nil }, act: e.runCommand},
		{name: "cancel", match: e.wantsCancel, act: e.cancel},
		{name: "greeting", match: func(t *turn) bool { return len(t.history) == 0 }, act: e.greet},
		{name: "autofill", match: always, act: e.autofill},
		{name: "complete", match: func(t *turn) bool { return t.booking.Complete(e.profile.Required) }, act: e.complete},
		{name: "consent", match: e.consents, act: e.consent},
		{name: "collecting", match: func(t *turn) bool { return t.booking.Stage.Collecting() }, act: e.collect},
		{name: "answer", match: always, act: e.answer},
	}
}

func always(*turn) bool { return true }

func (e *Engine) wantsCancel(t *turn) bool {
	return isCancel(t.text) && (t.booking.Active() || t.freshOffer(e.timings.LastOfferFreshness))
}

func (e *Engine) cancel(ctx context.Context, t *turn) (*reply, error) {
	id := t.in.ConversationID
	if err := e.store.ClearBooking(ctx, id); err != nil {
		return nil, err
	}
	if err := e.store.ClearLastOffer(ctx, id); err != nil {
		return nil, err
	}
	e.cancelFollowup(ctx, id)
	return &reply{text: textCancelled.in(t.lang), record: true}, nil
}

func (e *Engine) greet(_ context.Context, t *turn) (*reply, error) {
	return &reply{text: textHi.in(t.lang), record: true}, nil
}

// autofill merges whatever the message volunteers into the booking without
// touching fields that are already known. Topics follow the conversation
// until collecting starts.
func (e *Engine) autofill(ctx context.Context, t *turn) (*reply, error) {
	f := t.fields
	next := t.booking.Apply(domain.Update{
		Name:   f.Name,
		Phone:  f.Phone,
		City:   f.City,
		Sphere: f.Sphere,
		Topics: f.Topics,
	})
	if !t.booking.Active() {
		next = next.Apply(domain.Update{Topics: f.Topics, Overwrite: true})
	}
	if equalBookings(next, t.booking) {
		return nil, nil
	}
	if err := e.store.SetBooking(ctx, t.in.ConversationID, next); err != nil {
		return nil, err
	}
	t.booking = next
	return nil, nil
}

func (e *Engine) consents(t *turn) bool {
	if isExplicitConsent(t.text) {
		return true
	}
	fresh := t.freshOffer(e.timings.LastOfferFreshness)
	if isAffirmative(t.text) && (fresh || len(lastAssistantTopics(t.history)) > 0) {
		return true
	}

	volunteered := 0
	for _, f := range e.profile.Required {
		if fieldOf(t.fields, f) != "" {
			volunteered++
		}
	}
	return volunteered >= 2 || (volunteered >= 1 && fresh)
}

// consent turns agreement into a booking: pick the topic, reuse what is
// already known about the person, then either finish or ask for the first
// missing field.
func (e *Engine) consent(ctx context.Context, t *turn) (*reply, error) {
	id := t.in.ConversationID

	b := t.booking.Apply(domain.Update{Topics: e.consentTopics(t), Overwrite: true})
	b = b.Apply(domain.Update{
		Name:   t.contact.Name,
		Phone:  t.contact.Phone,
		City:   t.contact.City,
		Sphere: t.contact.Sphere,
	})
	if e.profile.UseDisplayName && extract.IsNameLike(t.in.DisplayName) {
		b = b.Apply(domain.Update{Name: extract.NormalizeName(t.in.DisplayName)})
	}
	e.cancelFollowup(ctx, id)

	if b.Complete(e.profile.Required) {
		t.booking = b
		return e.complete(ctx, t)
	}
	return e.askNext(ctx, t, b)
}

func (e *Engine) consentTopics(t *turn) []string {
	if len(t.fields.Topics) > 0 {
		return t.fields.Topics
	}
	if t.freshOffer(e.timings.LastOfferFreshness) {
		return t.offer.Topics
	}
	if t.booking.Active() && len(t.booking.Topics) > 0 {
		return t.booking.Topics
	}
	if ts := historyTopics(t.history); len(ts) > 0 {
		return ts
	}
	if len(t.booking.Topics) > 0 {
		return t.booking.Topics
	}
	return []string{topics.General}
}

// askNext stores b at the stage of its first missing field and prompts for it.
func (e *Engine) askNext(ctx context.Context, t *turn, b domain.Booking) (*reply, error) {
	f, missing := b.Missing(e.profile.Required)
	if !missing {
		if len(b.Topics) == 0 {
			b.Topics = []string{topics.General}
		}
		t.booking = b
		return e.complete(ctx, t)
	}
	stage := domain.Stage(f)
	b = b.Apply(domain.Update{Stage: &stage})
	if err := e.store.SetBooking(ctx, t.in.ConversationID, b); err != nil {
		return nil, err
	}
	t.booking = b
	return &reply{text: fieldPrompts[f].in(t.lang), record: true}, nil
}

// collect validates a direct answer to the question that was just asked.
func (e *Engine) collect(ctx context.Context, t *turn) (*reply, error) {
	f := domain.Field(t.booking.Stage)
	if t.booking.Get(f) != "" {
		return e.askNext(ctx, t, t.booking)
	}

	u, ok := answerFor(f, t.text)
	if !ok {
		return &reply{text: fieldHints[f].in(t.lang), record: true}, nil
	}
	u.Overwrite = true
	return e.askNext(ctx, t, t.booking.Apply(u))
}

func answerFor(f domain.Field, text string) (domain.Update, bool) {
	switch f {
	case domain.FieldName:
		if extract.IsNameLike(text) {
			return domain.Update{Name: extract.NormalizeName(text)}, true
		}
	case domain.FieldPhone:
		if extract.IsPhoneLike(text) {
			return domain.Update{Phone: extract.Phone(text)}, true
		}
	case domain.FieldCity:
		if extract.IsCityLike(text) {
			city := extract.City(text)
			if city == "" {
				city = ai.Clamp(extract.NormalizeName(text), maxCityRunes)
			}
			return domain.Update{City: city}, true
		}
	case domain.FieldSphere:
		if extract.IsSphereLike(text) {
			return domain.Update{Sphere: extract.ClampSphere(text)}, true
		}
	}
	return domain.Update{}, false
}

const maxCityRunes = 100

// answer asks the model and, when the exchange is about a service and no
// pitch was made recently, appends a consultation offer.
func (e *Engine) answer(ctx context.Context, t *turn) (*reply, error) {
	text, err := e.answerer.Answer(ctx, ai.Request{
		Lang:     t.lang,
		History:  t.history,
		UserText: t.text,
	})
	switch {
	case errors.Is(err, ai.ErrEmptyAnswer):
		text = textEmptyAnswer.in(t.lang)
	case err != nil:
		e.log.Error("answer failed", slog.String("conversation_id", t.in.ConversationID), sl.Err(err))
		return &reply{text: textSorry.in(t.lang), record: true}, nil
	}

	if line := e.offer(ctx, t, text); line != "" {
		text += line
	}
	return &reply{text: text, record: true}, nil
}

// maxReplyTopics keeps a reply that lists the whole catalogue from turning
// into an offer for everything.
const maxReplyTopics = 2

func (e *Engine) offer(ctx context.Context, t *turn, answer string) string {
	id := t.in.ConversationID
	if t.booking.Active() {
		return ""
	}
	candidates := t.fields.Topics
	if len(candidates) == 0 {
		if ts := topics.Match(answer); len(ts) <= maxReplyTopics {
			candidates = ts
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	if !t.booking.OfferCooldownAt.IsZero() && t.now.Sub(t.booking.OfferCooldownAt) < e.timings.OfferGap {
		return ""
	}

	var claimed []string
	for _, topic := range candidates {
		ok, err := e.store.TryMarkOffered(ctx, id, topic)
		if err != nil {
			e.log.Warn("mark offered failed", slog.String("conversation_id", id), sl.Err(err))
			continue
		}
		if ok {
			claimed = append(claimed, topic)
		}
	}
	if len(claimed) == 0 {
		return ""
	}

	if err := e.store.SetLastOffer(ctx, id, domain.LastOffer{Topics: claimed, At: t.now}); err != nil {
		e.log.Warn("save last offer failed", slog.String("conversation_id", id), sl.Err(err))
	}
	b := t.booking.Apply(domain.Update{Topics: claimed, Overwrite: true, Cooldown: t.now})
	if err := e.store.SetBooking(ctx, id, b); err != nil {
		e.log.Warn("save offer cooldown failed", slog.String("conversation_id", id), sl.Err(err))
	}
	t.booking = b
	if e.timings.FollowupDelay > 0 {
		if err := e.store.ScheduleFollowup(ctx, id, t.now.Add(e.timings.FollowupDelay)); err != nil {
			e.log.Warn("schedule followup failed", slog.String("conversation_id", id), sl.Err(err))
		}
	}
	return offerLine(claimed, e.profile.Required, t.lang)
}

func (e *Engine) cancelFollowup(ctx context.Context, id string) {
	if err := e.store.CancelFollowup(ctx, id); err != nil {
		e.log.Warn("cancel followup failed", slog.String("conversation_id", id), sl.Err(err))
	}
}

func fieldOf(f extract.Fields, field domain.Field) string {
	switch field {
	case domain.FieldName:
		return f.Name
	case domain.FieldPhone:
		return f.Phone
	case domain.FieldCity:
		return f.City
	case domain.FieldSphere:
		return f.Sphere
	}
	return ""
}

func equalBookings(a, b domain.Booking) bool {
	if a.Stage != b.Stage || a.Name != b.Name || a.Phone != b.Phone ||
		a.City != b.City || a.Sphere != b.Sphere || !a.OfferCooldownAt.Equal(b.OfferCooldownAt) {
		return false
	}
	if len(a.Topics) != len(b.Topics) {
		return false
	}
	for i := range a.Topics {
		if a.Topics[i] != b.Topics[i] {
			return false
		}
	}
	return true
}
