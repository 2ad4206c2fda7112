package telegram

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/exp/slog"

	"github.com/imhogram/start-ai-telegram/internal/dialog"
	"github.com/imhogram/start-ai-telegram/internal/httpx"
	"github.com/imhogram/start-ai-telegram/internal/lib/logger/sl"
)

const (
	secretHeader = "X-Telegram-Bot-Api-Secret-Token"
	maxBodyBytes = 1 << 20
)

type Handler struct {
	proc   Processor
	secret string
	log    *slog.Logger
}

// NewHandler returns the webhook handler. An empty secret disables the
// header check.
func NewHandler(log *slog.Logger, proc Processor, secret string) *Handler {
	return &Handler{
		proc:   proc,
		secret: secret,
		log:    log.With(slog.String("component", "telegram.webhook")),
	}
}

// HandleWebhook takes a Bot API update. Anything that is not a text message
// is acknowledged and dropped so Telegram does not redeliver it.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		httpx.Error(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.secret != "" {
		got := r.Header.Get(secretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			h.log.Warn("rejected update with bad secret token")
			httpx.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}
	}

	var u Update
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&u); err != nil {
		h.log.Warn("malformed update", sl.Err(err))
		httpx.OK(w)
		return
	}

	msg := u.Message
	if msg == nil {
		msg = u.EditedMessage
	}
	if msg == nil || strings.TrimSpace(msg.Text) == "" {
		httpx.OK(w)
		return
	}

	in := dialog.Inbound{
		ConversationID: strconv.FormatInt(msg.Chat.ID, 10),
		Text:           msg.Text,
		DisplayName:    displayName(msg.From),
	}
	if err := h.proc.Process(r.Context(), in); err != nil {
		h.log.Error("process update failed",
			slog.Int64("update_id", u.UpdateID),
			slog.String("chat_id", in.ConversationID),
			sl.Err(err),
		)
		httpx.Error(w, http.StatusInternalServerError, "processing error")
		return
	}

	httpx.OK(w)
}

func displayName(u *User) string {
	if u == nil {
		return ""
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
