package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// TelegramOutbound sends messages through the Bot API. Sends are paced by a
// token bucket to stay under the bot's global limit.
type TelegramOutbound struct {
	baseURL string
	token   string
	client  *http.Client
	limiter *rate.Limiter
}

func NewTelegramOutbound(baseURL, token string, perSecond float64) *TelegramOutbound {
	if perSecond <= 0 {
		perSecond = 25
	}
	return &TelegramOutbound{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(perSecond), 5),
	}
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	ErrorCode   int    `json:"error_code"`
}

func (c *TelegramOutbound) SendToChat(ctx context.Context, chatID string, text string) error {
	return c.call(ctx, "sendMessage", map[string]any{
		"chat_id":                  chatID,
		"text":                     text,
		"disable_web_page_preview": true,
	})
}

// SetWebhook points the bot at url, asking Telegram to echo secret in the
// secret-token header of every update.
func (c *TelegramOutbound) SetWebhook(ctx context.Context, url, secret string) error {
	body := map[string]any{
		"url":             url,
		"allowed_updates": []string{"message", "edited_message"},
	}
	if secret != "" {
		body["secret_token"] = secret
	}
	return c.call(ctx, "setWebhook", body)
}

func (c *TelegramOutbound) call(ctx context.Context, method string, body any) error {
	const op = "telegram.TelegramOutbound.call"

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/bot"+c.token+"/"+method, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %s: %w", op, method, redact(err, c.token))
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var out apiResponse
	_ = json.Unmarshal(raw, &out)
	if resp.StatusCode >= 300 || !out.OK {
		return fmt.Errorf("%s: %s: telegram api error: %s body=%s", op, method, resp.Status, string(raw))
	}
	return nil
}

// redact keeps the bot token out of logged transport errors, which quote
// the request URL.
func redact(err error, token string) error {
	if token == "" {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), token, "<token>"))
}
