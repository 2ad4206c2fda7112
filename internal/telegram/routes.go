package telegram

import "github.com/go-chi/chi/v5"

func RegisterRoutes(r chi.Router, h *Handler) {
	r.HandleFunc("/telegram/webhook", h.HandleWebhook)
}
