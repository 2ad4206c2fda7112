// Package topics holds the closed service taxonomy of START and the ordered
// rule table that maps free-form text onto it.
package topics

import (
	"regexp"
	"sort"
	"strings"
)

// Canonical topics. The set is closed: nothing outside All is ever stored
// in a booking.
const (
	Scaling           = "Scaling & growth"
	MarketingAnalysis = "Marketing analysis"
	FinancialAnalysis = "Financial analysis"
	FinancialPlan     = "Financial plan"
	BusinessPlan      = "Business plan"
	Presentation      = "Project presentation"
	Investment        = "Investment attraction"
	Strategy          = "Development strategy"
	Concept           = "Company work concept"
	BusinessProcesses = "Business processes"
	Logo              = "Logo & corporate identity"
	Brandbook         = "Brandbook"
	Website           = "Website development"
	Advertising       = "Internet advertising"
	SMM               = "SMM"
	Sales             = "Sales department"
	CRM               = "CRM, automation, AI"
	Franchise         = "Franchising"
	Marketing         = "Marketing & promotion"

	// General is used when someone asks for a consultation without naming a service.
	General = "Consultation"
)

// Rule maps a case-insensitive pattern onto one canonical topic.
type Rule struct {
	Pattern *regexp.Regexp
	Topic   string
}

// nb is a non-letter boundary; RE2's \b only understands ASCII.
const nb = `(?:^|[^\p{L}])`
const ne = `(?:[^\p{L}]|$)`

func rule(topic, pattern string) Rule {
	return Rule{Pattern: regexp.MustCompile(`(?i)` + pattern), Topic: topic}
}

// Rules is evaluated in order and every rule is tried, so one message can
// produce several topics. A rule only ever emits its own topic.
var Rules = []Rule{
	rule(Scaling, `масштаб|позиционир|\bgrowth\b|\bscal(e|ing)\b`),
	rule(MarketingAnalysis, `маркетинг\S*\s*анализ|анализ\s*рынка|целев\S*\s*аудитор|конкурент|ценообраз|market\s*research|competitor`),
	rule(FinancialAnalysis, `финанс\S*\s*анализ|финанализ|unit\s*economics|финанс\S*\s*аудит|управленческ.*отч[её]т|financial\s*analysis`),
	rule(FinancialPlan, `финанс\S*\s*план|финплан|фин.?модел|финанс\S*\s*модел|прогноз|движени\S*\s*денег|точк\S*\s*безубыт|financial\s*(plan|model)|cash\s*flow`),
	rule(BusinessPlan, `бизнес.?план|\bswot\b|business\s*plan`),
	rule(Presentation, `презентац|`+nb+`през(а|у|ку|ка|ы)?`+ne+`|pitch\s*deck|presentation`),
	rule(Investment, `инвестиц|инвестор|investment|investor`),
	rule(Strategy, `стратеги\S*\s*развити|development\s*strategy|\bvision\b`),
	rule(Concept, `концепц|имиджев|\bconcept\b`),
	rule(BusinessProcesses, `бизнес.?процесс|регламент|оптимизац|business\s*process`),
	rule(Logo, `логотип|`+nb+`лого`+ne+`|\blogo|брендинг|фирменн\S*\s*стил|branding|corporate\s*identity`),
	rule(Brandbook, `бр[еэ]нд.?бук|brand.?book|гайдлайн|guideline`),
	rule(Website, `сайт|лендинг|лэндинг|\bweb\s*site|\bwebsite|\bsite\b|\blanding`),
	rule(Advertising, `реклам|таргет|google.?ads|контекстн|`+nb+`кмс`+ne+`|\bgdn\b|\bppc\b|2gis|2гис|\bolx\b|advertis|\bads\b`),
	rule(SMM, `смм|\bsmm\b|инстаграм|instagram|\bstories\b|\breels\b|контент.?маркетинг|content\s*marketing`),
	rule(Sales, `отдел\S*\s*продаж|скрипт|холодн\S*\s*звон|\bkpi\b|коммерческ\S*\s*предложени|колл.?центр|call.?cent(er|re)|sales\s*(department|team)`),
	rule(CRM, `\bcrm\b|црм|срм|битрикс|bitrix|amo.?crm|сквозн\S*\s*аналитик|chat.?bot|чат.?бот|`+nb+`ии.?бот|\bai.?bot|автоматизац|automation|искусственн\S*\s*интеллект`),
	rule(Franchise, `франшиз|франчайзинг|franchis`),
	rule(Marketing, `маркетолог|\bgtm\b|go.?to.?market|стратеги\S*\s*продвижени|marketing\s*strategy`),
}

// All is the closed set of canonical topics in taxonomy order.
var All = func() []string {
	out := make([]string, 0, len(Rules)+1)
	seen := map[string]bool{}
	for _, r := range Rules {
		if !seen[r.Topic] {
			seen[r.Topic] = true
			out = append(out, r.Topic)
		}
	}
	return append(out, General)
}()

// IsCanonical reports whether t belongs to the closed taxonomy.
func IsCanonical(t string) bool {
	for _, c := range All {
		if c == t {
			return true
		}
	}
	return false
}

// Match runs every rule against the lower-cased text and returns the distinct
// matching topics in taxonomy order.
func Match(text string) []string {
	u := strings.ToLower(text)
	if strings.TrimSpace(u) == "" {
		return nil
	}
	var out []string
	seen := map[string]bool{}
	for _, r := range Rules {
		if seen[r.Topic] {
			continue
		}
		if r.Pattern.MatchString(u) {
			seen[r.Topic] = true
			out = append(out, r.Topic)
		}
	}
	return out
}

// Join renders a topic list for display.
func Join(ts []string) string {
	return strings.Join(ts, ", ")
}

// Set returns the sorted distinct topics, the unit of lead deduplication.
func Set(ts []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

var ruLabels = map[string]string{
	Scaling:           "Масштабирование и стратегия роста",
	MarketingAnalysis: "Маркетинговый анализ",
	FinancialAnalysis: "Финансовый анализ",
	FinancialPlan:     "Финансовый план",
	BusinessPlan:      "Бизнес-план",
	Presentation:      "Презентация проекта",
	Investment:        "Привлечение инвестиций",
	Strategy:          "Стратегия развития",
	Concept:           "Концепция работы компании",
	BusinessProcesses: "Бизнес-процессы",
	Logo:              "Логотип и фирменный стиль",
	Brandbook:         "Брендбук",
	Website:           "Разработка сайта",
	Advertising:       "Реклама в интернете",
	SMM:               "SMM ведение",
	Sales:             "Отдел продаж",
	CRM:               "CRM, автоматизация, ИИ",
	Franchise:         "Франчайзинг",
	Marketing:         "Маркетинг и продвижение",
	General:           "Консультация",
}

// Label returns the display name of a topic list for the given language.
// Russian labels are used for both ru and kz, the service catalogue exists
// only in Russian.
func Label(ts []string, lang string) string {
	if lang == "en" {
		return Join(ts)
	}
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		if l, ok := ruLabels[t]; ok {
			out = append(out, l)
			continue
		}
		out = append(out, t)
	}
	return strings.Join(out, ", ")
}
