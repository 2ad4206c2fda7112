package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/exp/slog"
)

// codeNotAllowed is Graph API error #131030, "recipient phone number not in
// allowed list".
const codeNotAllowed = 131030

type WhatsAppOutbound struct {
	baseURL       string
	token         string
	phoneNumberID string
	client        *http.Client
	log           *slog.Logger
}

func NewWhatsAppOutbound(log *slog.Logger, baseURL, token, phoneNumberID string) *WhatsAppOutbound {
	return &WhatsAppOutbound{
		baseURL:       strings.TrimRight(baseURL, "/"),
		token:         token,
		phoneNumberID: phoneNumberID,
		client:        &http.Client{Timeout: 10 * time.Second},
		log:           log.With(slog.String("component", "whatsapp.outbound")),
	}
}

type graphError struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// SendToChat sends a text message to a wa_id. Kazakhstan numbers are
// sometimes registered on the allow-list in the legacy 78... form, so a
// #131030 rejection of 7XXXXXXXXXX is retried once as 78XXXXXXXXXX.
func (c *WhatsAppOutbound) SendToChat(ctx context.Context, waID string, text string) error {
	const op = "whatsapp.WhatsAppOutbound.SendToChat"

	code, err := c.send(ctx, waID, text)
	if err == nil {
		return nil
	}
	if code == codeNotAllowed {
		if alt := legacyKZ(waID); alt != waID {
			c.log.Warn("recipient not allowed, retrying legacy number form",
				slog.String("wa_id", waID),
				slog.String("retry_to", alt),
			)
			_, retryErr := c.send(ctx, alt, text)
			if retryErr == nil {
				return nil
			}
			err = retryErr
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func legacyKZ(waID string) string {
	if len(waID) < 2 || waID[0] != '7' || strings.HasPrefix(waID, "78") {
		return waID
	}
	for _, r := range waID {
		if r < '0' || r > '9' {
			return waID
		}
	}
	return "78" + waID[1:]
}

// send returns the Graph error code alongside the error, 0 when unknown.
func (c *WhatsAppOutbound) send(ctx context.Context, to, text string) (int, error) {
	b, err := json.Marshal(map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]any{"body": text, "preview_url": false},
	})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/"+c.phoneNumberID+"/messages", bytes.NewReader(b))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 300 {
		return 0, nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var ge graphError
	_ = json.Unmarshal(raw, &ge)
	return ge.Error.Code, fmt.Errorf("graph api error: %s body=%s", resp.Status, string(raw))
}
