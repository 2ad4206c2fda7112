package extract

import (
	"regexp"
	"strings"
	"unicode"
)

const minPhoneDigits = 6

var phoneCandidate = regexp.MustCompile(`\+?\d[\d\s\-().]*\d`)

// Phone returns the phone-shaped run with the most digits, normalized to an
// optional leading "+" followed by digits. Empty when nothing has at least
// six digits.
func Phone(text string) string {
	best, bestDigits := "", 0
	for _, c := range phoneCandidate.FindAllString(text, -1) {
		n := countDigits(c)
		if n < minPhoneDigits || n <= bestDigits {
			continue
		}
		best, bestDigits = c, n
	}
	if best == "" {
		return ""
	}
	return NormalizePhone(best)
}

// phoneIndex reports where the match chosen by Phone starts, or -1.
func phoneIndex(text string) int {
	idx, bestDigits := -1, 0
	for _, loc := range phoneCandidate.FindAllStringIndex(text, -1) {
		n := countDigits(text[loc[0]:loc[1]])
		if n < minPhoneDigits || n <= bestDigits {
			continue
		}
		idx, bestDigits = loc[0], n
	}
	return idx
}

// NormalizePhone keeps digits and a leading plus.
func NormalizePhone(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == '+' && i == 0:
			b.WriteRune(r)
		case unicode.IsDigit(r):
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsPhoneLike accepts any answer carrying at least six digits, whatever the
// formatting.
func IsPhoneLike(s string) bool {
	return Phone(s) != ""
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

func hasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}
