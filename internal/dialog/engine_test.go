package dialog

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"golang.org/x/exp/slog"

	"github.com/imhogram/start-ai-telegram/internal/ai"
	"github.com/imhogram/start-ai-telegram/internal/domain"
	"github.com/imhogram/start-ai-telegram/internal/lead"
	"github.com/imhogram/start-ai-telegram/internal/metrics"
	"github.com/imhogram/start-ai-telegram/internal/store"
	"github.com/imhogram/start-ai-telegram/internal/topics"
)

var _ Store = (*store.Store)(nil)

type fakeAnswerer struct {
	reply string
	err   error
	calls int
}

func (f *fakeAnswerer) Answer(_ context.Context, _ ai.Request) (string, error) {
	f.calls++
	return f.reply, f.err
}

type fakeNotifier struct {
	mu    sync.Mutex
	leads []lead.Lead
	err   error
	pings int
}

func (f *fakeNotifier) Notify(_ context.Context, l lead.Lead) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.leads = append(f.leads, l)
	return nil
}

func (f *fakeNotifier) Ping(_ context.Context, _ string) error {
	f.pings++
	return f.err
}

type sentMsg struct{ chatID, text string }

type fakeSender struct {
	mu  sync.Mutex
	out []sentMsg
}

func (f *fakeSender) SendToChat(_ context.Context, chatID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, sentMsg{chatID, text})
	return nil
}

type harness struct {
	engine   *Engine
	store    *store.Store
	answerer *fakeAnswerer
	notifier *fakeNotifier
	sender   *fakeSender
	now      time.Time
}

func newHarness(t *testing.T, p Profile) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	h := &harness{
		store: store.New(rdb, "test", 8, store.TTLs{
			History:    720 * time.Hour,
			Booking:    24 * time.Hour,
			Contact:    720 * time.Hour,
			Language:   720 * time.Hour,
			LastOffer:  30 * time.Minute,
			Duplicate:  2 * time.Hour,
			OfferTopic: 24 * time.Hour,
		}),
		answerer: &fakeAnswerer{reply: "Мы делаем сайты под ключ."},
		notifier: &fakeNotifier{},
		sender:   &fakeSender{},
		now:      time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	h.engine = NewEngine(p, Timings{
		LastOfferFreshness: 10 * time.Minute,
		OfferGap:           10 * time.Minute,
		FollowupDelay:      3 * time.Hour,
		ReplyMaxRunes:      3500,
	}, Deps{
		Store:    h.store,
		Answerer: h.answerer,
		Notifier: h.notifier,
		Sender:   h.sender,
		Log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:      func() time.Time { return h.now },
	})
	return h
}

// seed gives the conversation a history so the greeting rule stays out of
// the way.
func (h *harness) seed(t *testing.T, id string) {
	t.Helper()
	err := h.store.AppendHistory(context.Background(), id,
		domain.HistoryEntry{Role: domain.RoleUser, Content: "привет"},
		domain.HistoryEntry{Role: domain.RoleAssistant, Content: textHi.in("ru")},
	)
	if err != nil {
		t.Fatal(err)
	}
}

func (h *harness) say(t *testing.T, id, text string) string {
	t.Helper()
	out, err := h.engine.Respond(context.Background(), Inbound{ConversationID: id, Text: text})
	if err != nil {
		t.Fatalf("Respond(%q): %v", text, err)
	}
	return out
}

func TestFirstMessageGetsFixedGreeting(t *testing.T) {
	h := newHarness(t, TelegramProfile)

	got := h.say(t, "1", "Hello")
	if got != textHi.in("ru") {
		t.Fatalf("reply = %q", got)
	}
	if h.answerer.calls != 0 {
		t.Fatal("greeting must not call the model")
	}
	for _, w := range []string{"сегодня", "today", "бүгін"} {
		if strings.Contains(strings.ToLower(got), w) {
			t.Fatalf("greeting contains %q", w)
		}
	}
	hist, _ := h.store.History(context.Background(), "1")
	if len(hist) != 2 {
		t.Fatalf("history len = %d, want 2", len(hist))
	}
}

func TestVolunteeredLeadIsForwardedAtOnce(t *testing.T) {
	h := newHarness(t, TelegramProfile)
	h.seed(t, "2")

	got := h.say(t, "2", "I need a website, my name is Aigerim, phone +7 701 234 5678")
	if got != textBooked.in("en") {
		t.Fatalf("reply = %q", got)
	}
	if len(h.notifier.leads) != 1 {
		t.Fatalf("notified %d times, want 1", len(h.notifier.leads))
	}
	l := h.notifier.leads[0]
	if l.Name != "Aigerim" || l.Phone != "+77012345678" {
		t.Fatalf("lead = %+v", l)
	}
	if len(l.Topics) != 1 || l.Topics[0] != topics.Website {
		t.Fatalf("topics = %v", l.Topics)
	}

	b, _ := h.store.Booking(context.Background(), "2")
	if b.Active() || len(b.Topics) != 0 || b.Name != "" {
		t.Fatalf("booking not cleared: %+v", b)
	}
	c, _ := h.store.Contact(context.Background(), "2")
	if c.Name != "Aigerim" || c.Phone != "+77012345678" {
		t.Fatalf("contact = %+v", c)
	}
}

func TestShortYesAfterServiceTalkAsksNameFirst(t *testing.T) {
	h := newHarness(t, TelegramProfile)
	ctx := context.Background()
	err := h.store.AppendHistory(ctx, "3",
		domain.HistoryEntry{Role: domain.RoleUser, Content: "что вы делаете?"},
		domain.HistoryEntry{Role: domain.RoleAssistant, Content: "Мы внедряем CRM и автоматизацию продаж."},
	)
	if err != nil {
		t.Fatal(err)
	}

	got := h.say(t, "3", "ok")
	if got != fieldPrompts[domain.FieldName].in("ru") {
		t.Fatalf("reply = %q", got)
	}
	b, _ := h.store.Booking(ctx, "3")
	if b.Stage != domain.StageName {
		t.Fatalf("stage = %q", b.Stage)
	}
	if len(b.Topics) != 1 || b.Topics[0] != topics.CRM {
		t.Fatalf("topics = %v", b.Topics)
	}

	if got := h.say(t, "3", "Айгерим"); got != fieldPrompts[domain.FieldPhone].in("ru") {
		t.Fatalf("after name: %q", got)
	}
	if got := h.say(t, "3", "+7 701 234 56 78"); got != textBooked.in("ru") {
		t.Fatalf("after phone: %q", got)
	}
	if len(h.notifier.leads) != 1 || h.notifier.leads[0].Name != "Айгерим" {
		t.Fatalf("leads = %+v", h.notifier.leads)
	}
}

func TestResetClearsConversation(t *testing.T) {
	h := newHarness(t, TelegramProfile)
	ctx := context.Background()
	h.seed(t, "4")
	if err := h.store.SetBooking(ctx, "4", domain.Booking{Stage: domain.StagePhone, Name: "Aigerim"}); err != nil {
		t.Fatal(err)
	}
	if err := h.store.SetContact(ctx, "4", domain.Contact{Name: "Aigerim"}); err != nil {
		t.Fatal(err)
	}

	if got := h.say(t, "4", "/reset"); got != textResetDone.in("ru") {
		t.Fatalf("reply = %q", got)
	}

	hist, _ := h.store.History(ctx, "4")
	b, _ := h.store.Booking(ctx, "4")
	c, _ := h.store.Contact(ctx, "4")
	if len(hist) != 0 || b.Active() || b.Name != "" || !c.Empty() {
		t.Fatalf("state survived reset: %v %+v %+v", hist, b, c)
	}
}

func TestDuplicateLeadNotifiesOnce(t *testing.T) {
	h := newHarness(t, TelegramProfile)
	h.seed(t, "5")
	dups := metrics.LeadsTotal.WithLabelValues("telegram", "duplicate")
	before := testutil.ToFloat64(dups)

	msg := "I need a website, my name is Aigerim, phone +7 701 234 5678"
	for i := 0; i < 2; i++ {
		if got := h.say(t, "5", msg); got != textBooked.in("en") {
			t.Fatalf("attempt %d reply = %q", i, got)
		}
	}
	if len(h.notifier.leads) != 1 {
		t.Fatalf("notified %d times, want 1", len(h.notifier.leads))
	}
	if got := testutil.ToFloat64(dups) - before; got != 1 {
		t.Fatalf("duplicate counter moved by %v", got)
	}
}

func TestLanguageSurvivesLowConfidenceMessages(t *testing.T) {
	h := newHarness(t, TelegramProfile)
	ctx := context.Background()

	if got := h.say(t, "6", "/lang en"); !strings.Contains(got, "en") {
		t.Fatalf("reply = %q", got)
	}
	if got := h.say(t, "6", "ok"); got != textHi.in("en") {
		t.Fatalf("reply = %q", got)
	}
	if lang, _ := h.store.Language(ctx, "6"); lang != "en" {
		t.Fatalf("lang = %q", lang)
	}

	h.say(t, "6", "Сәлеметсіз бе, қалай көмектесе аласыз")
	if lang, _ := h.store.Language(ctx, "6"); lang != "kz" {
		t.Fatalf("lang after kazakh = %q", lang)
	}
}

func TestLangCommandRejectsUnknownCode(t *testing.T) {
	h := newHarness(t, TelegramProfile)

	if got := h.say(t, "7", "/lang fr"); got != textLangHelp.in("ru") {
		t.Fatalf("reply = %q", got)
	}
	if lang, _ := h.store.Language(context.Background(), "7"); lang != "" {
		t.Fatalf("lang = %q", lang)
	}
}

func TestCancelDuringCollecting(t *testing.T) {
	h := newHarness(t, TelegramProfile)
	ctx := context.Background()
	h.seed(t, "8")
	if err := h.store.SetBooking(ctx, "8", domain.Booking{Stage: domain.StageName, Topics: []string{topics.SMM}}); err != nil {
		t.Fatal(err)
	}

	if got := h.say(t, "8", "не надо, спасибо"); got != textCancelled.in("ru") {
		t.Fatalf("reply = %q", got)
	}
	b, _ := h.store.Booking(ctx, "8")
	if b.Active() || len(b.Topics) != 0 {
		t.Fatalf("booking = %+v", b)
	}
}

func TestCancelWordsWithoutBookingGoToModel(t *testing.T) {
	h := newHarness(t, TelegramProfile)
	h.seed(t, "9")

	h.say(t, "9", "напишу потом")
	if h.answerer.calls != 1 {
		t.Fatalf("answerer calls = %d", h.answerer.calls)
	}
}

func TestInvalidAnswerIsReprompted(t *testing.T) {
	h := newHarness(t, TelegramProfile)
	ctx := context.Background()
	h.seed(t, "10")
	start := domain.Booking{Stage: domain.StagePhone, Topics: []string{topics.Website}, Name: "Aigerim"}
	if err := h.store.SetBooking(ctx, "10", start); err != nil {
		t.Fatal(err)
	}

	if got := h.say(t, "10", "не знаю"); got != fieldHints[domain.FieldPhone].in("ru") {
		t.Fatalf("reply = %q", got)
	}
	b, _ := h.store.Booking(ctx, "10")
	if b.Stage != domain.StagePhone || b.Name != "Aigerim" {
		t.Fatalf("booking = %+v", b)
	}
}

func TestQuestionIsNotTakenForName(t *testing.T) {
	h := newHarness(t, TelegramProfile)
	ctx := context.Background()
	h.seed(t, "19")

	if got := h.say(t, "19", "Хочу консультацию по сайту"); got != fieldPrompts[domain.FieldName].in("ru") {
		t.Fatalf("reply = %q", got)
	}
	for _, text := range []string{"а зачем", "где вы", "айгерим"} {
		if got := h.say(t, "19", text); got != fieldHints[domain.FieldName].in("ru") {
			t.Fatalf("%q: reply = %q", text, got)
		}
	}
	b, _ := h.store.Booking(ctx, "19")
	if b.Stage != domain.StageName || b.Name != "" {
		t.Fatalf("booking = %+v", b)
	}
}

func TestKnownContactIsNotAskedAgain(t *testing.T) {
	h := newHarness(t, TelegramProfile)
	ctx := context.Background()
	h.seed(t, "11")
	if err := h.store.SetContact(ctx, "11", domain.Contact{Name: "Aigerim", Phone: "+77012345678"}); err != nil {
		t.Fatal(err)
	}

	if got := h.say(t, "11", "Давайте, нужна реклама"); got != textBooked.in("ru") {
		t.Fatalf("reply = %q", got)
	}
	if len(h.notifier.leads) != 1 || h.notifier.leads[0].Topics[0] != topics.Advertising {
		t.Fatalf("leads = %+v", h.notifier.leads)
	}
}

func TestNotifierFailureKeepsBookingForRetry(t *testing.T) {
	h := newHarness(t, TelegramProfile)
	ctx := context.Background()
	h.seed(t, "12")
	h.notifier.err = errors.New("telegram down")

	if got := h.say(t, "12", "Нужен сайт. Айгерим +7 701 234 56 78"); got != textSorry.in("ru") {
		t.Fatalf("reply = %q", got)
	}
	b, _ := h.store.Booking(ctx, "12")
	if b.Stage != domain.StageConfirming || b.Phone == "" {
		t.Fatalf("booking = %+v", b)
	}

	h.notifier.err = nil
	if got := h.say(t, "12", "ну что там"); got != textBooked.in("ru") {
		t.Fatalf("retry reply = %q", got)
	}
	if len(h.notifier.leads) != 1 {
		t.Fatalf("leads = %d", len(h.notifier.leads))
	}
}

func TestOfferIsAppendedOncePerTopic(t *testing.T) {
	h := newHarness(t, TelegramProfile)
	ctx := context.Background()
	h.seed(t, "13")

	got := h.say(t, "13", "Сколько стоит сайт?")
	want := h.answerer.reply + offerLine([]string{topics.Website}, TelegramProfile.Required, "ru")
	if got != want {
		t.Fatalf("reply = %q", got)
	}
	o, _ := h.store.LastOffer(ctx, "13")
	if len(o.Topics) != 1 || o.Topics[0] != topics.Website {
		t.Fatalf("last offer = %+v", o)
	}

	h.now = h.now.Add(time.Hour)
	if got := h.say(t, "13", "А лендинг сколько стоит?"); got != h.answerer.reply {
		t.Fatalf("second reply = %q", got)
	}
}

func TestYesAfterOfferStartsBooking(t *testing.T) {
	h := newHarness(t, TelegramProfile)
	ctx := context.Background()
	h.seed(t, "14")

	h.say(t, "14", "Сколько стоит сайт?")
	h.now = h.now.Add(2 * time.Minute)
	if got := h.say(t, "14", "да"); got != fieldPrompts[domain.FieldName].in("ru") {
		t.Fatalf("reply = %q", got)
	}

	ids, err := h.store.DueFollowups(ctx, h.now.Add(24*time.Hour), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Fatalf("followup not cancelled: %v", ids)
	}
}

func TestLeadCarriesLatestOfferedTopic(t *testing.T) {
	h := newHarness(t, TelegramProfile)
	ctx := context.Background()
	h.seed(t, "20")

	h.say(t, "20", "сколько стоит сайт?")
	h.now = h.now.Add(30 * time.Minute)
	want := h.answerer.reply + offerLine([]string{topics.CRM}, TelegramProfile.Required, "ru")
	if got := h.say(t, "20", "а CRM внедряете?"); got != want {
		t.Fatalf("reply = %q", got)
	}
	b, _ := h.store.Booking(ctx, "20")
	if len(b.Topics) != 1 || b.Topics[0] != topics.CRM {
		t.Fatalf("booking topics = %v", b.Topics)
	}

	h.now = h.now.Add(time.Minute)
	if got := h.say(t, "20", "Айгерим +7 701 234 5678"); got != textBooked.in("ru") {
		t.Fatalf("reply = %q", got)
	}
	if len(h.notifier.leads) != 1 {
		t.Fatalf("leads = %d", len(h.notifier.leads))
	}
	if ts := h.notifier.leads[0].Topics; len(ts) != 1 || ts[0] != topics.CRM {
		t.Fatalf("lead topics = %v, want [%s]", ts, topics.CRM)
	}
}

func TestConsentPrefersRecentHistoryOverIdleBooking(t *testing.T) {
	h := newHarness(t, TelegramProfile)
	ctx := context.Background()

	if err := h.store.SetBooking(ctx, "21", domain.Booking{Topics: []string{topics.Website}}); err != nil {
		t.Fatal(err)
	}
	err := h.store.AppendHistory(ctx, "21",
		domain.HistoryEntry{Role: domain.RoleUser, Content: "что вы делаете?"},
		domain.HistoryEntry{Role: domain.RoleAssistant, Content: "Мы внедряем CRM и автоматизацию продаж."},
	)
	if err != nil {
		t.Fatal(err)
	}

	if got := h.say(t, "21", "да"); got != fieldPrompts[domain.FieldName].in("ru") {
		t.Fatalf("reply = %q", got)
	}
	b, _ := h.store.Booking(ctx, "21")
	if len(b.Topics) != 1 || b.Topics[0] != topics.CRM {
		t.Fatalf("topics = %v", b.Topics)
	}
}

func TestAnswerFailureFallsBackToApology(t *testing.T) {
	h := newHarness(t, TelegramProfile)
	h.seed(t, "15")

	h.answerer.err = errors.New("timeout")
	if got := h.say(t, "15", "Какой у вас адрес"); got != textSorry.in("ru") {
		t.Fatalf("reply = %q", got)
	}

	h.answerer.err = ai.ErrEmptyAnswer
	if got := h.say(t, "15", "Какой у вас адрес"); got != textEmptyAnswer.in("ru") {
		t.Fatalf("reply = %q", got)
	}
}

func TestWhatsAppUsesProfileNameAndAsksCityAndSphere(t *testing.T) {
	h := newHarness(t, WhatsAppProfile)
	ctx := context.Background()
	h.seed(t, "77010000000")

	in := Inbound{ConversationID: "77010000000", Text: "Хочу консультацию по SMM", DisplayName: "Aigerim Sadykova"}
	got, err := h.engine.Respond(ctx, in)
	if err != nil {
		t.Fatal(err)
	}
	if got != fieldPrompts[domain.FieldCity].in("ru") {
		t.Fatalf("reply = %q", got)
	}

	if got := h.say(t, "77010000000", "Алматы"); got != fieldPrompts[domain.FieldSphere].in("ru") {
		t.Fatalf("after city: %q", got)
	}
	if got := h.say(t, "77010000000", "розничная торговля"); got != textBooked.in("ru") {
		t.Fatalf("after sphere: %q", got)
	}

	l := h.notifier.leads[0]
	if l.Channel != lead.ChannelWhatsApp || l.Name != "Aigerim Sadykova" || l.City != "Алматы" || l.Sphere != "розничная торговля" {
		t.Fatalf("lead = %+v", l)
	}
}

func TestProcessSendsReply(t *testing.T) {
	h := newHarness(t, TelegramProfile)

	if err := h.engine.Process(context.Background(), Inbound{ConversationID: "16", Text: "привет"}); err != nil {
		t.Fatal(err)
	}
	if len(h.sender.out) != 1 || h.sender.out[0].chatID != "16" || h.sender.out[0].text != textHi.in("ru") {
		t.Fatalf("sent = %+v", h.sender.out)
	}
}

func TestWhoamiAndPing(t *testing.T) {
	h := newHarness(t, TelegramProfile)

	if got := h.say(t, "17", "/whoami"); got != "chat_id: 17" {
		t.Fatalf("whoami = %q", got)
	}
	if got := h.say(t, "17", "/ping"); got != textPingOK.in("ru") {
		t.Fatalf("ping = %q", got)
	}
	h.notifier.err = errors.New("no admin")
	if got := h.say(t, "17", "/ping@start_bot"); got != textPingFail.in("ru") {
		t.Fatalf("ping = %q", got)
	}
}

func TestSweepFollowupsRemindsOnce(t *testing.T) {
	h := newHarness(t, TelegramProfile)
	ctx := context.Background()
	h.seed(t, "18")

	h.say(t, "18", "Сколько стоит сайт?")
	before := len(h.sender.out)

	n, err := h.engine.SweepFollowups(ctx, h.now.Add(3*time.Hour+time.Minute), 10)
	if err != nil || n != 1 {
		t.Fatalf("sweep = %d, %v", n, err)
	}
	if len(h.sender.out) != before+1 || h.sender.out[before].text != textFollowup.in("ru") {
		t.Fatalf("sent = %+v", h.sender.out)
	}
	if n, _ := h.engine.SweepFollowups(ctx, h.now.Add(4*time.Hour), 10); n != 0 {
		t.Fatalf("second sweep sent %d", n)
	}
}
