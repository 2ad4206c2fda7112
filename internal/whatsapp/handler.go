package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"golang.org/x/exp/slog"

	"github.com/imhogram/start-ai-telegram/internal/dialog"
	"github.com/imhogram/start-ai-telegram/internal/httpx"
	"github.com/imhogram/start-ai-telegram/internal/lib/logger/sl"
)

const (
	signatureHeader = "X-Hub-Signature-256"
	maxBodyBytes    = 1 << 20
)

var ErrInvalidSignature = errors.New("invalid signature")

type Handler struct {
	proc        Processor
	verifyToken string
	appSecret   string
	log         *slog.Logger
}

// NewHandler returns the webhook handler. With an empty appSecret payload
// signatures are not checked.
func NewHandler(log *slog.Logger, proc Processor, verifyToken, appSecret string) *Handler {
	return &Handler{
		proc:        proc,
		verifyToken: verifyToken,
		appSecret:   appSecret,
		log:         log.With(slog.String("component", "whatsapp.webhook")),
	}
}

// Verify answers Meta's subscription handshake.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") == "subscribe" && h.verifyToken != "" && q.Get("hub.verify_token") == h.verifyToken {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, q.Get("hub.challenge"))
		return
	}
	http.Error(w, "forbidden", http.StatusForbidden)
}

// HandleWebhook processes the first text message of every change. Meta
// batches events; statuses and media are acknowledged and dropped.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "bad request")
		return
	}
	if err := h.checkSignature(raw, r.Header.Get(signatureHeader)); err != nil {
		h.log.Warn("rejected payload", sl.Err(err))
		httpx.Error(w, http.StatusUnauthorized, err.Error())
		return
	}

	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.log.Warn("malformed payload", sl.Err(err))
		httpx.OK(w)
		return
	}

	// A redelivery repeats the whole batch, so only ask for one when no
	// message got through.
	msgs := inbound(p)
	failed := 0
	for _, in := range msgs {
		if err := h.proc.Process(r.Context(), in); err != nil {
			h.log.Error("process message failed", slog.String("wa_id", in.ConversationID), sl.Err(err))
			failed++
		}
	}
	if failed > 0 && failed == len(msgs) {
		httpx.Error(w, http.StatusInternalServerError, "processing error")
		return
	}
	httpx.OK(w)
}

func (h *Handler) checkSignature(body []byte, header string) error {
	if h.appSecret == "" {
		return nil
	}
	if !verifyMetaSignature(h.appSecret, body, header) {
		return ErrInvalidSignature
	}
	return nil
}

func verifyMetaSignature(secret string, body []byte, header string) bool {
	got, ok := strings.CutPrefix(header, "sha256=")
	if !ok || got == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(strings.ToLower(got)), []byte(want))
}

// inbound flattens a payload into canonical messages, one per change.
func inbound(p Payload) []dialog.Inbound {
	var out []dialog.Inbound
	for _, e := range p.Entry {
		for _, c := range e.Changes {
			if len(c.Value.Messages) == 0 {
				continue
			}
			m := c.Value.Messages[0]
			if m.Type != "text" || m.Text == nil || strings.TrimSpace(m.Text.Body) == "" || m.From == "" {
				continue
			}
			out = append(out, dialog.Inbound{
				ConversationID: m.From,
				Text:           m.Text.Body,
				DisplayName:    profileName(c.Value.Contacts, m.From),
			})
		}
	}
	return out
}

func profileName(contacts []Contact, waID string) string {
	for _, c := range contacts {
		if c.WaID == waID {
			return strings.TrimSpace(c.Profile.Name)
		}
	}
	if len(contacts) == 1 {
		return strings.TrimSpace(contacts[0].Profile.Name)
	}
	return ""
}
