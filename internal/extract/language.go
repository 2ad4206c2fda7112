package extract

import (
	"regexp"
	"strings"
	"unicode"
)

// Languages the assistant talks in.
const (
	LangRU = "ru"
	LangKZ = "kz"
	LangEN = "en"
)

// IsLanguage reports whether code is one of the supported language codes.
func IsLanguage(code string) bool {
	return code == LangRU || code == LangKZ || code == LangEN
}

var (
	kzLetters = regexp.MustCompile(`[әғқңөұүһі]`)
	kzHints   = regexp.MustCompile(`(?:^|[^\p{L}])(?:саламат|салем|сәлем|рахмет|жаксы|жақсы|бар ма|сендер|сиздер|ия|иә|жок|жоқ|калай|қалай)(?:[^\p{L}]|$)`)

	askRU = regexp.MustCompile(`русск|орысша|russian`)
	askKZ = regexp.MustCompile(`казахск|қазақша|қазақ тіл|kazakh`)
	askEN = regexp.MustCompile(`english|англ|ағылшын`)
)

// universal tokens are written in Latin by everyone and say nothing about
// the language of the message.
var universal = toSet(`ok okay crm smm seo ai it b2b b2c kpi pr hr ceo ip too llp ads instagram whatsapp telegram google`)

// A switch from script alone needs a real sentence, not a bare "ok".
const (
	minScriptWords   = 2
	minScriptLetters = 8
)

// ConfidentLanguage returns a language only when the message carries an
// unambiguous signal: an explicit language name, Kazakh-specific letters or
// words, or a sentence written entirely in one script. Empty otherwise.
func ConfidentLanguage(text string) string {
	u := strings.ToLower(text)
	switch {
	case askKZ.MatchString(u):
		return LangKZ
	case askRU.MatchString(u):
		return LangRU
	case askEN.MatchString(u):
		return LangEN
	case kzLetters.MatchString(u) || kzHints.MatchString(u):
		return LangKZ
	}

	cyr, lat := scriptWords(u)
	switch {
	case cyr.words > 0 && lat.words == 0 && substantial(cyr):
		return LangRU
	case lat.words > 0 && cyr.words == 0 && substantial(lat):
		return LangEN
	case cyr.words > 0 && lat.words > 0 && substantial(cyr):
		return LangRU
	}
	return ""
}

// Language is the best-effort guess used when nothing better is known.
func Language(text string) string {
	if l := ConfidentLanguage(text); l != "" {
		return l
	}
	cyr, lat := scriptWords(strings.ToLower(text))
	if lat.words > 0 && cyr.words == 0 {
		return LangEN
	}
	return LangRU
}

type scriptCount struct {
	words   int
	letters int
}

func substantial(c scriptCount) bool {
	return c.words >= minScriptWords && c.letters >= minScriptLetters
}

func scriptWords(u string) (cyr, lat scriptCount) {
	words := strings.FieldsFunc(u, func(r rune) bool { return !unicode.IsLetter(r) })
	for _, w := range words {
		if universal[w] {
			continue
		}
		var c, l int
		for _, r := range w {
			switch {
			case unicode.Is(unicode.Cyrillic, r):
				c++
			case unicode.Is(unicode.Latin, r):
				l++
			}
		}
		if c >= l && c > 0 {
			cyr.words++
			cyr.letters += c
		} else if l > 0 {
			lat.words++
			lat.letters += l
		}
	}
	return cyr, lat
}
