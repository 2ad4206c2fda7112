package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/imhogram/start-ai-telegram/internal/topics"
)

type city struct {
	name  string
	stems []string
}

// Cities of Kazakhstan the assistant is most often asked from. Stems are
// matched as prefixes of lower-cased words so inflected forms ("из Алматы",
// "в Караганде") still resolve; a leading "=" asks for the whole word.
var cities = []city{
	{"Астана", []string{"астан", "нур-султан", "astana", "nur-sultan"}},
	{"Алматы", []string{"алматы", "алма-ат", "almaty", "alma-ata"}},
	{"Шымкент", []string{"шымкент", "shymkent"}},
	{"Караганда", []string{"караганд", "қарағанд", "karaganda"}},
	{"Актобе", []string{"актобе", "ақтөбе", "aktobe"}},
	{"Тараз", []string{"тараз", "taraz"}},
	{"Павлодар", []string{"павлодар", "pavlodar"}},
	{"Усть-Каменогорск", []string{"усть-каменогорск", "оскемен", "өскемен", "oskemen"}},
	{"Семей", []string{"=семей", "семипалатинск", "semey"}},
	{"Атырау", []string{"атырау", "atyrau"}},
	{"Костанай", []string{"костанай", "қостанай", "kostanay"}},
	{"Кызылорда", []string{"кызылорд", "қызылорд", "kyzylorda"}},
	{"Уральск", []string{"уральск", "=орал", "=oral", "uralsk"}},
	{"Петропавловск", []string{"петропавловск", "petropavlovsk"}},
	{"Актау", []string{"актау", "ақтау", "aktau"}},
	{"Темиртау", []string{"темиртау", "temirtau"}},
	{"Туркестан", []string{"туркестан", "түркістан", "turkestan"}},
	{"Кокшетау", []string{"кокшетау", "көкшетау", "kokshetau"}},
	{"Талдыкорган", []string{"талдыкорган", "талдықорған", "taldykorgan"}},
	{"Экибастуз", []string{"экибастуз", "ekibastuz"}},
}

var cityMarker = regexp.MustCompile(`(?:^|[^\p{L}])(?i:город|г\.|city(?: of)?)\s*(\p{Lu}[\p{L}-]+)`)

// City returns the canonical name of a known city mentioned in text, or a
// capitalized word introduced by an explicit "город"/"city" marker.
func City(text string) string {
	for _, w := range tokenSplit.Split(strings.ToLower(text), -1) {
		if w == "" {
			continue
		}
		for _, c := range cities {
			for _, s := range c.stems {
				if exact, ok := strings.CutPrefix(s, "="); ok {
					if w == exact {
						return c.name
					}
					continue
				}
				if strings.HasPrefix(w, s) {
					return c.name
				}
			}
		}
	}
	if m := cityMarker.FindStringSubmatch(text); m != nil && !isStopword(m[1]) {
		return NormalizeName(m[1])
	}
	return ""
}

// IsCityLike validates a direct answer to the city prompt.
func IsCityLike(s string) bool {
	s = strings.TrimSpace(s)
	if City(s) != "" {
		return true
	}
	if s == "" || utf8.RuneCountInString(s) > 100 || hasDigit(s) || strings.ContainsAny(s, "!?") {
		return false
	}
	words := strings.Fields(s)
	if len(words) > 3 || len(topics.Match(s)) > 0 {
		return false
	}
	for _, w := range words {
		if isStopword(w) {
			return false
		}
	}
	return strings.IndexFunc(s, unicode.IsLetter) >= 0
}

var sphereMarker = regexp.MustCompile(
	`(?:^|[^\p{L}])(?i:сфера деятельности|сфера|ниша|занимаюсь|занимаемся|my business is|our business is|industry|we are in|we do)\s*[:\-–]?\s*([^.,;!?\n]{2,80})`,
)

const maxSphereRunes = 200

// Sphere extracts a business field introduced by a marker such as
// "сфера: ..." or "my business is ...".
func Sphere(text string) string {
	m := sphereMarker.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return ClampSphere(m[1])
}

// IsSphereLike accepts any answer with at least one letter.
func IsSphereLike(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && strings.IndexFunc(s, unicode.IsLetter) >= 0 && !isStopword(s)
}

// ClampSphere trims and bounds a business field description.
func ClampSphere(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= maxSphereRunes {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:maxSphereRunes]))
}
