package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// stopwords are tokens that look like a capitalized word but never are a name.
var stopwords = toSet(`
привет здравствуйте здравствуй добрый доброе день вечер утро салем сәлем саламат
hello hi hey good morning evening
да нет ок окей ага угу хорошо ладно конечно спасибо рахмет иә ия жоқ жок
ok okay yes no sure thanks thank please пожалуйста
сегодня завтра вчера today tomorrow yesterday
телефон номер тел phone number tel whatsapp ватсап телеграм telegram
crm срм црм цена стоимость прайс price cost сайт website логотип logo реклама smm смм
бизнес business компания company консультация consultation менеджер manager оператор operator
нужен нужна нужно надо хочу хотим want need мне меня мой моя my name is am this
имя город сфера city sphere field тест test алло алло го давайте
где зачем почему как что кто когда куда откуда сколько какой какая какое какие чей
а и но или вы мы ты они вам нам
what why how where when who which whose for and but you we they
`)

var introMarker = regexp.MustCompile(
	`(?:^|[^\p{L}])(?i:my name is|i am|i'm|this is|call me|меня зовут|мое имя|моё имя|менің атым|менің есімім|атым)\s+` +
		`(\p{Lu}[\p{L}'’-]*(?:\s+\p{Lu}[\p{L}'’-]*)?)`,
)

var tokenSplit = regexp.MustCompile(`[\s,;:.()"«»]+`)

// Name finds a self-introduced name, then falls back to the capitalized
// words right before a phone number. Empty when neither is convincing.
func Name(text string) string {
	if n := NameFromIntro(text); n != "" {
		return n
	}
	return nameBeforePhone(text)
}

// NameFromIntro only looks at explicit self-introductions.
func NameFromIntro(text string) string {
	m := introMarker.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	var kept []string
	for _, tok := range strings.Fields(m[1]) {
		if !nameToken(tok) {
			break
		}
		kept = append(kept, tok)
	}
	if len(kept) == 0 {
		return ""
	}
	return NormalizeName(strings.Join(kept, " "))
}

func nameBeforePhone(text string) string {
	idx := phoneIndex(text)
	if idx <= 0 {
		return ""
	}
	head := strings.TrimSpace(text[:idx])
	if strings.ContainsAny(head, "!?") {
		return ""
	}
	toks := tokenSplit.Split(head, -1)

	var picked []string
	for i := len(toks) - 1; i >= 0 && len(picked) < 2; i-- {
		tok := toks[i]
		if tok == "" {
			continue
		}
		if len(picked) == 0 && isStopword(tok) {
			continue
		}
		if !startsUpper(tok) || !nameToken(tok) {
			break
		}
		picked = append([]string{tok}, picked...)
	}
	if len(picked) == 0 {
		return ""
	}
	return NormalizeName(strings.Join(picked, " "))
}

// IsNameLike validates a direct answer to the name prompt: one to three
// capitalized words made of letters, no digits, no "!" or "?", nothing from
// the stopword list and not a city.
func IsNameLike(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || utf8.RuneCountInString(s) > 40 {
		return false
	}
	if strings.ContainsAny(s, "!?") || hasDigit(s) {
		return false
	}
	toks := strings.Fields(s)
	if len(toks) == 0 || len(toks) > 3 {
		return false
	}
	for _, t := range toks {
		if !startsUpper(t) || !nameToken(t) {
			return false
		}
	}
	return true
}

func nameToken(t string) bool {
	if t == "" || isStopword(t) || City(t) != "" {
		return false
	}
	letters := 0
	for _, r := range t {
		switch {
		case unicode.IsLetter(r):
			letters++
		case r == '-' || r == '\'' || r == '’':
		default:
			return false
		}
	}
	return letters > 0
}

// NormalizeName title-cases every word, hyphenated parts included.
func NormalizeName(s string) string {
	words := strings.Fields(strings.TrimSpace(s))
	for i, w := range words {
		parts := strings.Split(w, "-")
		for j, p := range parts {
			parts[j] = titleWord(p)
		}
		words[i] = strings.Join(parts, "-")
	}
	return strings.Join(words, " ")
}

func titleWord(w string) string {
	if w == "" {
		return w
	}
	r, size := utf8.DecodeRuneInString(w)
	return string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
}

func startsUpper(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsUpper(r)
}

func isStopword(t string) bool {
	return stopwords[strings.ToLower(strings.Trim(t, "-'’"))]
}

func toSet(words string) map[string]bool {
	out := map[string]bool{}
	for _, w := range strings.Fields(words) {
		out[w] = true
	}
	return out
}
