package whatsapp

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"golang.org/x/exp/slog"

	"github.com/imhogram/start-ai-telegram/internal/dialog"
)

type fakeProcessor struct {
	got     []dialog.Inbound
	err     error
	failFor map[string]bool
}

func (f *fakeProcessor) Process(_ context.Context, in dialog.Inbound) error {
	f.got = append(f.got, in)
	if f.failFor[in.ConversationID] {
		return errors.New("redis down")
	}
	return f.err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRouter(proc Processor, secret string) http.Handler {
	r := chi.NewRouter()
	RegisterRoutes(r, NewHandler(discard(), proc, "verify-me", secret))
	return r
}

func sign(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

const textPayload = `{"object":"whatsapp_business_account","entry":[{"id":"1","changes":[{"field":"messages","value":{
  "messaging_product":"whatsapp",
  "contacts":[{"wa_id":"77012345678","profile":{"name":"Aigerim"}}],
  "messages":[{"id":"wamid.1","from":"77012345678","type":"text","text":{"body":"Нужен логотип"}}]}}]}]}`

func post(h http.Handler, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/whatsapp/webhook", strings.NewReader(body))
	if signature != "" {
		req.Header.Set(signatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestVerifyHandshake(t *testing.T) {
	h := newRouter(&fakeProcessor{}, "")

	req := httptest.NewRequest(http.MethodGet, "/whatsapp/webhook?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "12345" {
		t.Fatalf("status = %d body = %q", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/whatsapp/webhook?hub.mode=subscribe&hub.verify_token=nope&hub.challenge=1", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestWebhookProcessesSignedText(t *testing.T) {
	proc := &fakeProcessor{}
	rec := post(newRouter(proc, "app-secret"), textPayload, sign("app-secret", textPayload))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if len(proc.got) != 1 {
		t.Fatalf("processed %d", len(proc.got))
	}
	in := proc.got[0]
	if in.ConversationID != "77012345678" || in.Text != "Нужен логотип" || in.DisplayName != "Aigerim" {
		t.Fatalf("inbound = %+v", in)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	proc := &fakeProcessor{}
	h := newRouter(proc, "app-secret")

	for _, sig := range []string{"", "sha256=deadbeef", sign("other", textPayload)} {
		if rec := post(h, textPayload, sig); rec.Code != http.StatusUnauthorized {
			t.Fatalf("sig %q: status = %d", sig, rec.Code)
		}
	}
	if len(proc.got) != 0 {
		t.Fatal("unsigned payload was processed")
	}
}

func TestWebhookSkipsStatusesAndMedia(t *testing.T) {
	proc := &fakeProcessor{}
	h := newRouter(proc, "")

	for _, body := range []string{
		`{"entry":[{"changes":[{"value":{"statuses":[{"id":"wamid.1","status":"delivered"}]}}]}]}`,
		`{"entry":[{"changes":[{"value":{"messages":[{"from":"7701","type":"image","image":{}}]}}]}]}`,
		`{}`,
		`garbage`,
	} {
		if rec := post(h, body, ""); rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", body, rec.Code)
		}
	}
	if len(proc.got) != 0 {
		t.Fatalf("processed %d", len(proc.got))
	}
}

func TestWebhookProcessingErrorIs500(t *testing.T) {
	proc := &fakeProcessor{err: errors.New("redis down")}
	if rec := post(newRouter(proc, ""), textPayload, ""); rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}

const batchPayload = `{"entry":[{"changes":[
  {"value":{"messages":[{"from":"77011111111","type":"text","text":{"body":"Нужен сайт"}}]}},
  {"value":{"messages":[{"from":"77022222222","type":"text","text":{"body":"Нужна CRM"}}]}}]}]}`

func TestWebhookPartialBatchFailureIsAcknowledged(t *testing.T) {
	proc := &fakeProcessor{failFor: map[string]bool{"77022222222": true}}
	if rec := post(newRouter(proc, ""), batchPayload, ""); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(proc.got) != 2 {
		t.Fatalf("processed %d, want 2", len(proc.got))
	}

	proc = &fakeProcessor{err: errors.New("redis down")}
	if rec := post(newRouter(proc, ""), batchPayload, ""); rec.Code != http.StatusInternalServerError {
		t.Fatalf("all failed: status = %d", rec.Code)
	}
}

func TestWebhookMethodNotAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/whatsapp/webhook", nil)
	rec := httptest.NewRecorder()
	newRouter(&fakeProcessor{}, "").ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestOutboundSendsText(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotAuth = r.URL.Path, r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = io.WriteString(w, `{"messages":[{"id":"wamid.2"}]}`)
	}))
	defer srv.Close()

	out := NewWhatsAppOutbound(discard(), srv.URL, "tok", "1055")
	if err := out.SendToChat(context.Background(), "77012345678", "Сәлем"); err != nil {
		t.Fatal(err)
	}
	if gotPath != "/1055/messages" || gotAuth != "Bearer tok" {
		t.Fatalf("path = %s auth = %s", gotPath, gotAuth)
	}
	if gotBody["to"] != "77012345678" || gotBody["type"] != "text" {
		t.Fatalf("body = %v", gotBody)
	}
}

func TestOutboundRetriesLegacyKazakhNumber(t *testing.T) {
	var tos []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		to, _ := body["to"].(string)
		tos = append(tos, to)
		if to == "77012345678" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":{"message":"Recipient phone number not in allowed list","code":131030}}`)
			return
		}
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	out := NewWhatsAppOutbound(discard(), srv.URL, "tok", "1055")
	if err := out.SendToChat(context.Background(), "77012345678", "hi"); err != nil {
		t.Fatal(err)
	}
	if len(tos) != 2 || tos[1] != "787012345678" {
		t.Fatalf("sent to %v", tos)
	}
}

func TestOutboundOtherErrorsAreNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"bad token","code":190}}`)
	}))
	defer srv.Close()

	err := NewWhatsAppOutbound(discard(), srv.URL, "tok", "1055").SendToChat(context.Background(), "77012345678", "hi")
	if err == nil || calls != 1 {
		t.Fatalf("err = %v calls = %d", err, calls)
	}
}

func TestLegacyKZ(t *testing.T) {
	cases := map[string]string{
		"77012345678":  "787012345678",
		"787012345678": "787012345678",
		"4915112345":   "4915112345",
		"7":            "7",
	}
	for in, want := range cases {
		if got := legacyKZ(in); got != want {
			t.Errorf("legacyKZ(%q) = %q, want %q", in, got, want)
		}
	}
}
