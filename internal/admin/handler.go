// Package admin serves the operator endpoints: the follow-up sweep a cron
// job triggers and a read-only view of archived leads.
package admin

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/exp/slog"

	"github.com/imhogram/start-ai-telegram/internal/httpx"
	"github.com/imhogram/start-ai-telegram/internal/lead"
	"github.com/imhogram/start-ai-telegram/internal/lib/logger/sl"
)

const (
	secretHeader = "X-Admin-Secret"
	defaultLimit = 50
	maxLimit     = 500
)

// Sweeper is one channel's follow-up queue. *dialog.Engine implements it.
type Sweeper interface {
	SweepFollowups(ctx context.Context, now time.Time, limit int64) (int, error)
}

type Handler struct {
	sweepers map[string]Sweeper
	leads    lead.Repo
	secret   string
	now      func() time.Time
	log      *slog.Logger
}

// NewHandler returns the admin handler. leads may be nil when no archive is
// configured.
func NewHandler(log *slog.Logger, secret string, sweepers map[string]Sweeper, leads lead.Repo) *Handler {
	return &Handler{
		sweepers: sweepers,
		leads:    leads,
		secret:   secret,
		now:      time.Now,
		log:      log.With(slog.String("component", "admin")),
	}
}

// RegisterRoutes mounts nothing when no secret is configured.
func RegisterRoutes(r chi.Router, h *Handler) {
	if h.secret == "" {
		return
	}
	r.Route("/internal", func(r chi.Router) {
		r.Use(h.requireSecret)
		r.Post("/followups/sweep", h.Sweep)
		r.Get("/leads", h.Leads)
	})
}

func (h *Handler) requireSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(secretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			httpx.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Sweep sends every due follow-up on every channel.
func (h *Handler) Sweep(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r)
	now := h.now()

	sent := make(map[string]int, len(h.sweepers))
	for channel, s := range h.sweepers {
		n, err := s.SweepFollowups(r.Context(), now, int64(limit))
		if err != nil {
			h.log.Error("followup sweep failed", slog.String("channel", channel), sl.Err(err))
			httpx.Error(w, http.StatusInternalServerError, "sweep failed")
			return
		}
		sent[channel] = n
	}
	h.log.Info("followups swept", slog.Any("sent", sent))
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "sent": sent})
}

type leadView struct {
	ID             string    `json:"id"`
	Channel        string    `json:"channel"`
	ConversationID string    `json:"conversation_id"`
	Topics         []string  `json:"topics"`
	Name           string    `json:"name"`
	Phone          string    `json:"phone,omitempty"`
	City           string    `json:"city,omitempty"`
	Sphere         string    `json:"sphere,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func (h *Handler) Leads(w http.ResponseWriter, r *http.Request) {
	if h.leads == nil {
		httpx.Error(w, http.StatusNotFound, "lead archive is not configured")
		return
	}
	ls, err := h.leads.Recent(r.Context(), queryLimit(r))
	if err != nil {
		h.log.Error("list leads failed", sl.Err(err))
		httpx.Error(w, http.StatusInternalServerError, "list failed")
		return
	}

	out := make([]leadView, 0, len(ls))
	for _, l := range ls {
		out = append(out, leadView{
			ID:             l.ID.String(),
			Channel:        string(l.Channel),
			ConversationID: l.ConversationID,
			Topics:         l.Topics,
			Name:           l.Name,
			Phone:          l.Phone,
			City:           l.City,
			Sphere:         l.Sphere,
			CreatedAt:      l.CreatedAt,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "leads": out})
}

func queryLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return defaultLimit
	}
	if n > maxLimit {
		return maxLimit
	}
	return n
}
