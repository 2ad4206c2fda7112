// Package store keeps per-conversation state in Redis. Every key is
// namespaced by channel so Telegram and WhatsApp ids never collide.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/imhogram/start-ai-telegram/internal/domain"
)

// TTLs of the soft state. Zero means no expiry.
type TTLs struct {
	History    time.Duration
	Booking    time.Duration
	Contact    time.Duration
	Language   time.Duration
	LastOffer  time.Duration
	Duplicate  time.Duration
	OfferTopic time.Duration
}

type Store struct {
	rdb        *redis.Client
	ns         string
	historyLen int
	ttl        TTLs
}

// New returns a store writing under "<ns>:" keys.
func New(rdb *redis.Client, ns string, historyLen int, ttl TTLs) *Store {
	if historyLen <= 0 {
		historyLen = 8
	}
	return &Store{rdb: rdb, ns: ns, historyLen: historyLen, ttl: ttl}
}

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	const op = "store.Connect"

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rdb, nil
}

func (s *Store) key(kind, id string) string {
	return s.ns + ":" + kind + ":" + id
}

// ---- history

func (s *Store) History(ctx context.Context, id string) ([]domain.HistoryEntry, error) {
	const op = "store.History"

	raw, err := s.rdb.LRange(ctx, s.key("hist", id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out := make([]domain.HistoryEntry, 0, len(raw))
	for _, r := range raw {
		var e domain.HistoryEntry
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// AppendHistory pushes entries and trims the list to the newest historyLen.
func (s *Store) AppendHistory(ctx context.Context, id string, entries ...domain.HistoryEntry) error {
	const op = "store.AppendHistory"

	if len(entries) == 0 {
		return nil
	}
	vals := make([]any, 0, len(entries))
	for _, e := range entries {
		b, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		vals = append(vals, b)
	}

	k := s.key("hist", id)
	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, k, vals...)
	pipe.LTrim(ctx, k, int64(-s.historyLen), -1)
	if s.ttl.History > 0 {
		pipe.Expire(ctx, k, s.ttl.History)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ---- booking

func (s *Store) Booking(ctx context.Context, id string) (domain.Booking, error) {
	var b domain.Booking
	err := s.getJSON(ctx, "store.Booking", s.key("book", id), &b)
	return b, err
}

func (s *Store) SetBooking(ctx context.Context, id string, b domain.Booking) error {
	return s.setJSON(ctx, "store.SetBooking", s.key("book", id), b, s.ttl.Booking)
}

func (s *Store) ClearBooking(ctx context.Context, id string) error {
	return s.del(ctx, "store.ClearBooking", s.key("book", id))
}

// ---- contact

func (s *Store) Contact(ctx context.Context, id string) (domain.Contact, error) {
	var c domain.Contact
	err := s.getJSON(ctx, "store.Contact", s.key("contact", id), &c)
	return c, err
}

func (s *Store) SetContact(ctx context.Context, id string, c domain.Contact) error {
	return s.setJSON(ctx, "store.SetContact", s.key("contact", id), c, s.ttl.Contact)
}

func (s *Store) ClearContact(ctx context.Context, id string) error {
	return s.del(ctx, "store.ClearContact", s.key("contact", id))
}

// ---- language

// Language returns the stored language code, or "" when none is stored.
func (s *Store) Language(ctx context.Context, id string) (string, error) {
	const op = "store.Language"

	v, err := s.rdb.Get(ctx, s.key("lang", id)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return v, nil
}

func (s *Store) SetLanguage(ctx context.Context, id, lang string) error {
	const op = "store.SetLanguage"

	if err := s.rdb.Set(ctx, s.key("lang", id), lang, s.ttl.Language).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ---- last offer

func (s *Store) LastOffer(ctx context.Context, id string) (domain.LastOffer, error) {
	var o domain.LastOffer
	err := s.getJSON(ctx, "store.LastOffer", s.key("last_offer", id), &o)
	return o, err
}

func (s *Store) SetLastOffer(ctx context.Context, id string, o domain.LastOffer) error {
	return s.setJSON(ctx, "store.SetLastOffer", s.key("last_offer", id), o, s.ttl.LastOffer)
}

func (s *Store) ClearLastOffer(ctx context.Context, id string) error {
	return s.del(ctx, "store.ClearLastOffer", s.key("last_offer", id))
}

// ---- duplicate suppression

// WasRecentlySubmitted reports whether a lead with this fingerprint was
// forwarded inside the duplicate window.
func (s *Store) WasRecentlySubmitted(ctx context.Context, fingerprint string) (bool, error) {
	const op = "store.WasRecentlySubmitted"

	n, err := s.rdb.Exists(ctx, s.key("lead", fingerprint)).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

func (s *Store) MarkSubmitted(ctx context.Context, fingerprint string) error {
	const op = "store.MarkSubmitted"

	if err := s.rdb.Set(ctx, s.key("lead", fingerprint), 1, s.ttl.Duplicate).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// TryMarkOffered claims the daily pitch for one topic in one conversation.
// It returns false when the topic was already pitched inside the cooldown.
func (s *Store) TryMarkOffered(ctx context.Context, id, topic string) (bool, error) {
	const op = "store.TryMarkOffered"

	ok, err := s.rdb.SetNX(ctx, s.key("offered", id+":"+topic), 1, s.ttl.OfferTopic).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return ok, nil
}

// ---- follow-ups

func (s *Store) followupKey() string {
	return s.ns + ":followups"
}

// ScheduleFollowup (re)schedules the nudge for a conversation.
func (s *Store) ScheduleFollowup(ctx context.Context, id string, due time.Time) error {
	const op = "store.ScheduleFollowup"

	z := redis.Z{Score: float64(due.Unix()), Member: id}
	if err := s.rdb.ZAdd(ctx, s.followupKey(), z).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Store) CancelFollowup(ctx context.Context, id string) error {
	const op = "store.CancelFollowup"

	if err := s.rdb.ZRem(ctx, s.followupKey(), id).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DueFollowups lists conversations whose nudge is due at now.
func (s *Store) DueFollowups(ctx context.Context, now time.Time, limit int64) ([]string, error) {
	const op = "store.DueFollowups"

	ids, err := s.rdb.ZRangeByScore(ctx, s.followupKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.Unix(), 10),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ids, nil
}

// ClaimFollowup removes a due entry. Only the caller that actually removed
// it gets true, so concurrent sweeps send each nudge once.
func (s *Store) ClaimFollowup(ctx context.Context, id string) (bool, error) {
	const op = "store.ClaimFollowup"

	n, err := s.rdb.ZRem(ctx, s.followupKey(), id).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}

// Reset forgets the conversation except its language.
func (s *Store) Reset(ctx context.Context, id string) error {
	const op = "store.Reset"

	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, s.key("hist", id), s.key("book", id), s.key("contact", id), s.key("last_offer", id))
	pipe.ZRem(ctx, s.followupKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ---- helpers

func (s *Store) getJSON(ctx context.Context, op, key string, dst any) error {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		// a record we cannot read is treated as absent
		return nil
	}
	return nil
}

func (s *Store) setJSON(ctx context.Context, op, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.rdb.Set(ctx, key, b, ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Store) del(ctx context.Context, op string, keys ...string) error {
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
