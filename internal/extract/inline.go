package extract

import (
	"regexp"
	"strings"

	"github.com/imhogram/start-ai-telegram/internal/topics"
)

// Fields is everything the extractors managed to pull out of one message.
type Fields struct {
	Name   string
	Phone  string
	City   string
	Sphere string
	Topics []string
}

var inlineSplit = regexp.MustCompile(`[,\n;/]+`)

// InlineLead parses the "Name, City, Business field[, phone]" shorthand
// people send when they already know what is going to be asked.
func InlineLead(text string) (Fields, bool) {
	var parts []string
	var f Fields
	for _, p := range inlineSplit.Split(text, -1) {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if countDigits(p) >= minPhoneDigits {
			if f.Phone == "" {
				f.Phone = Phone(p)
			}
			continue
		}
		parts = append(parts, p)
	}
	if len(parts) < 3 {
		return Fields{}, false
	}

	name, place, sphere := parts[0], parts[1], parts[2]
	if !IsNameLike(name) || !IsCityLike(place) || !IsSphereLike(sphere) {
		return Fields{}, false
	}
	f.Name = NormalizeName(name)
	if c := City(place); c != "" {
		f.City = c
	} else {
		f.City = NormalizeName(place)
	}
	f.Sphere = ClampSphere(sphere)
	return f, true
}

// All runs every extractor. Inline shorthand wins for the fields it covers.
func All(text string) Fields {
	f := Fields{
		Name:   Name(text),
		Phone:  Phone(text),
		City:   City(text),
		Sphere: Sphere(text),
		Topics: Topics(text),
	}
	if in, ok := InlineLead(text); ok {
		f.Name, f.City, f.Sphere = in.Name, in.City, in.Sphere
		if in.Phone != "" {
			f.Phone = in.Phone
		}
	}
	return f
}

// Topics maps the text onto the service taxonomy.
func Topics(text string) []string {
	return topics.Match(text)
}
