package ai

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/exp/slog"

	"github.com/imhogram/start-ai-telegram/internal/domain"
	"github.com/imhogram/start-ai-telegram/internal/knowledge"
	"github.com/imhogram/start-ai-telegram/internal/metrics"
)

// ErrEmptyAnswer is returned when the model produced nothing usable.
var ErrEmptyAnswer = errors.New("empty answer")

// Answerer turns a question plus context into a reply the channel can send.
type Answerer struct {
	ai        AI
	kb        *knowledge.Knowledge
	maxRunes  int
	forbidden *regexp.Regexp
	log       *slog.Logger
}

func NewAnswerer(log *slog.Logger, client AI, kb *knowledge.Knowledge, maxRunes int) *Answerer {
	a := &Answerer{
		ai:       client,
		kb:       kb,
		maxRunes: maxRunes,
		log:      log.With(slog.String("component", "answerer")),
	}
	if len(kb.ForbiddenPhrases) > 0 {
		alts := make([]string, len(kb.ForbiddenPhrases))
		for i, p := range kb.ForbiddenPhrases {
			alts[i] = regexp.QuoteMeta(p)
		}
		a.forbidden = regexp.MustCompile(`(?i)\p{L}*(?:` + strings.Join(alts, "|") + `)\p{L}*`)
	}
	return a
}

type Request struct {
	Lang     string
	History  []domain.HistoryEntry
	UserText string
}

// Answer asks the model and post-processes its text. Errors mean the caller
// should fall back to a canned reply.
func (a *Answerer) Answer(ctx context.Context, req Request) (string, error) {
	const op = "ai.Answerer.Answer"

	msgs := make([]Message, 0, len(req.History)+2)
	msgs = append(msgs, Message{Role: "system", Text: a.kb.SystemPrompt(req.Lang)})
	for _, h := range req.History {
		msgs = append(msgs, Message{Role: string(h.Role), Text: h.Content})
	}
	msgs = append(msgs, Message{Role: "user", Text: req.UserText})

	start := time.Now()
	raw, err := a.ai.GetReply(ctx, msgs)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.AnswerSeconds.WithLabelValues(status).Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	reply := Clamp(a.strip(raw), a.maxRunes)
	if utf8.RuneCountInString(reply) < 3 {
		return "", fmt.Errorf("%s: %w", op, ErrEmptyAnswer)
	}
	return reply, nil
}

var (
	spaceBeforePunct = regexp.MustCompile(`[ \t]+([,.!?;:])`)
	manySpaces       = regexp.MustCompile(`[ \t]{2,}`)
)

// strip removes whole words that are on the forbidden list. Longer words
// that merely contain a forbidden phrase are left alone.
func (a *Answerer) strip(s string) string {
	if a.forbidden == nil {
		return strings.TrimSpace(s)
	}
	s = a.forbidden.ReplaceAllStringFunc(s, func(w string) string {
		lw := strings.ToLower(w)
		for _, p := range a.kb.ForbiddenPhrases {
			if lw == strings.ToLower(p) {
				return ""
			}
		}
		return w
	})
	s = spaceBeforePunct.ReplaceAllString(s, "$1")
	s = manySpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Clamp cuts s to at most max runes. max <= 0 disables it.
func Clamp(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
