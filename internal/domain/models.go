// Package domain holds the records kept per conversation.
package domain

import (
	"time"

	"github.com/imhogram/start-ai-telegram/internal/topics"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// HistoryEntry is one line of the rolling conversation history.
type HistoryEntry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Field is an identity slot a channel may require.
type Field string

const (
	FieldName   Field = "name"
	FieldPhone  Field = "phone"
	FieldCity   Field = "city"
	FieldSphere Field = "sphere"
)

// Stage of a booking. The zero value means no booking is in progress.
type Stage string

const (
	StageIdle       Stage = ""
	StageName       Stage = Stage(FieldName)
	StagePhone      Stage = Stage(FieldPhone)
	StageCity       Stage = Stage(FieldCity)
	StageSphere     Stage = Stage(FieldSphere)
	StageConfirming Stage = "confirming"
)

// Collecting reports whether the stage waits for an identity field.
func (s Stage) Collecting() bool {
	switch s {
	case StageName, StagePhone, StageCity, StageSphere:
		return true
	}
	return false
}

// Booking is the lead being assembled.
type Booking struct {
	Stage           Stage     `json:"stage,omitempty"`
	Topics          []string  `json:"topics,omitempty"`
	Name            string    `json:"name,omitempty"`
	Phone           string    `json:"phone,omitempty"`
	City            string    `json:"city,omitempty"`
	Sphere          string    `json:"sphere,omitempty"`
	OfferCooldownAt time.Time `json:"offer_cooldown_at,omitempty"`
}

// Get returns the value of an identity slot.
func (b Booking) Get(f Field) string {
	switch f {
	case FieldName:
		return b.Name
	case FieldPhone:
		return b.Phone
	case FieldCity:
		return b.City
	case FieldSphere:
		return b.Sphere
	}
	return ""
}

// Missing returns the first required field that is still empty.
func (b Booking) Missing(required []Field) (Field, bool) {
	for _, f := range required {
		if b.Get(f) == "" {
			return f, true
		}
	}
	return "", false
}

// Complete holds iff a topic and every required identity field are known.
func (b Booking) Complete(required []Field) bool {
	_, missing := b.Missing(required)
	return len(b.Topics) > 0 && !missing
}

// Active reports whether a booking conversation is underway.
func (b Booking) Active() bool {
	return b.Stage != StageIdle
}

// Update is a change proposed to a booking. Empty values mean "unknown".
type Update struct {
	Name, Phone, City, Sphere string
	Topics                    []string

	// Overwrite replaces known fields instead of only filling the gaps.
	// Used for a direct answer to the question that was just asked.
	Overwrite bool

	// Stage, when set, moves the booking to that stage.
	Stage *Stage
	// Cooldown, when non-zero, records when an offer was last made.
	Cooldown time.Time
}

// Apply is the only way a booking changes. Without Overwrite it never
// replaces a populated field, so repeating the same merge is harmless.
// Topics come only from the closed taxonomy and, without Overwrite, only
// fill an empty list.
func (b Booking) Apply(u Update) Booking {
	set := func(dst *string, v string) {
		if v == "" {
			return
		}
		if *dst == "" || u.Overwrite {
			*dst = v
		}
	}
	set(&b.Name, u.Name)
	set(&b.Phone, u.Phone)
	set(&b.City, u.City)
	set(&b.Sphere, u.Sphere)

	if len(u.Topics) > 0 && (len(b.Topics) == 0 || u.Overwrite) {
		var ts []string
		for _, t := range u.Topics {
			if topics.IsCanonical(t) {
				ts = append(ts, t)
			}
		}
		if len(ts) > 0 {
			b.Topics = ts
		}
	}
	if u.Stage != nil {
		b.Stage = *u.Stage
	}
	if !u.Cooldown.IsZero() {
		b.OfferCooldownAt = u.Cooldown
	}
	return b
}

// Contact is what is remembered about a person between bookings.
type Contact struct {
	Name   string `json:"name,omitempty"`
	Phone  string `json:"phone,omitempty"`
	City   string `json:"city,omitempty"`
	Sphere string `json:"sphere,omitempty"`
}

// Empty reports whether nothing is known.
func (c Contact) Empty() bool {
	return c == Contact{}
}

// LastOffer marks the most recent consultation pitch.
type LastOffer struct {
	Topics []string  `json:"topics"`
	At     time.Time `json:"at"`
}

// Fresh reports whether the offer is younger than window at now.
func (o LastOffer) Fresh(now time.Time, window time.Duration) bool {
	return len(o.Topics) > 0 && !o.At.IsZero() && now.Sub(o.At) <= window
}
