package dialog

import (
	"strings"

	"github.com/imhogram/start-ai-telegram/internal/domain"
	"github.com/imhogram/start-ai-telegram/internal/extract"
	"github.com/imhogram/start-ai-telegram/internal/topics"
)

type localized map[string]string

func (l localized) in(lang string) string {
	if s, ok := l[lang]; ok {
		return s
	}
	return l[extract.LangRU]
}

var (
	textHi = localized{
		"ru": "Здравствуйте! Я ИИ-ассистент компании START. Чем могу помочь?",
		"kz": "Сәлеметсіз бе! Мен START компаниясының ЖИ-көмекшісімін. Қалай көмектесе аламын?",
		"en": "Hello! I’m START company’s AI assistant. How can I help?",
	}
	textBooked = localized{
		"ru": "Передаю информацию менеджеру. Мы свяжемся с вами. Спасибо!",
		"kz": "Ақпаратты менеджерге беремін. Біз сізбен хабарласамыз. Рахмет!",
		"en": "I’m passing this to a manager. We’ll contact you. Thank you!",
	}
	textResetDone = localized{
		"ru": "История и заявка очищены. Начнём заново.",
		"kz": "Тарих пен өтінім тазартылды. Қайта бастайық.",
		"en": "History and booking cleared. Let’s start over.",
	}
	textCancelled = localized{
		"ru": "Хорошо, не буду оформлять заявку. Если понадобится, просто напишите.",
		"kz": "Жарайды, өтінім ресімдемеймін. Қажет болса, жаза салыңыз.",
		"en": "Okay, I won’t file a request. Just write if you need anything.",
	}
	textEmptyAnswer = localized{
		"ru": "Готово. Чем ещё помочь?",
		"kz": "Дайын. Тағы не көмектесейін?",
		"en": "All set. How else can I help?",
	}
	textSorry = localized{
		"ru": "Извините, сейчас не получилось ответить. Попробуйте, пожалуйста, ещё раз чуть позже.",
		"kz": "Кешіріңіз, қазір жауап бере алмадым. Сәл кейінірек қайталап көріңіз.",
		"en": "Sorry, I couldn’t answer right now. Please try again a bit later.",
	}
	textLangSet = localized{
		"ru": "Язык интерфейса установлен: %s.",
		"kz": "Интерфейс тілі орнатылды: %s.",
		"en": "Interface language set: %s.",
	}
	textLangHelp = localized{
		"ru": "Поддерживаемые языки: ru, kz, en. Пример: /lang ru",
		"kz": "Қолдау көрсетілетін тілдер: ru, kz, en. Мысал: /lang kz",
		"en": "Supported languages: ru, kz, en. Example: /lang en",
	}
	textPingOK = localized{
		"ru": "pong: канал оператора доступен.",
		"kz": "pong: оператор арнасы қолжетімді.",
		"en": "pong: operator channel is reachable.",
	}
	textPingFail = localized{
		"ru": "Канал оператора недоступен.",
		"kz": "Оператор арнасы қолжетімсіз.",
		"en": "Operator channel is unreachable.",
	}
	textFollowup = localized{
		"ru": "Напоминаю: если консультация ещё актуальна, ответьте «да», и я передам заявку менеджеру.",
		"kz": "Еске саламын: консультация әлі керек болса, «иә» деп жазыңыз, өтінімді менеджерге беремін.",
		"en": "Just a reminder: if the consultation is still relevant, reply “yes” and I’ll pass your request to a manager.",
	}
)

var fieldPrompts = map[domain.Field]localized{
	domain.FieldName: {
		"ru": "Спасибо! Как к вам обращаться (имя)?",
		"kz": "Рақмет! Есіміңіз қалай?",
		"en": "Thanks! What’s your name?",
	},
	domain.FieldPhone: {
		"ru": "Оставьте, пожалуйста, номер телефона для связи.",
		"kz": "Байланыс үшін телефон нөміріңізді қалдырыңыз.",
		"en": "Please leave a phone number we can reach you at.",
	},
	domain.FieldCity: {
		"ru": "И подскажите город обращения?",
		"kz": "Қай қаладан жазып отырсыз?",
		"en": "And which city are you in?",
	},
	domain.FieldSphere: {
		"ru": "И ещё: в какой сфере работаете (чем занимаетесь)?",
		"kz": "Тағы: қай салада жұмыс істейсіз (немен айналысасыз)?",
		"en": "One more: what’s your business field?",
	},
}

var fieldHints = map[domain.Field]localized{
	domain.FieldName: {
		"ru": "Пожалуйста, укажите только имя (например: Алина).",
		"kz": "Есіміңізді әріптермен ғана жазыңыз (мыс.: Алина).",
		"en": "Please send just your name (letters only).",
	},
	domain.FieldPhone: {
		"ru": "Не вижу номера. Напишите телефон цифрами, например: +7 701 234 56 78.",
		"kz": "Нөмір көрінбейді. Телефонды цифрмен жазыңыз, мыс.: +7 701 234 56 78.",
		"en": "I can’t see a number. Please type the phone in digits, e.g. +7 701 234 56 78.",
	},
	domain.FieldCity: {
		"ru": "Напишите, пожалуйста, только город (например: Астана).",
		"kz": "Тек қаланы жазыңыз (мыс.: Астана).",
		"en": "Please send just the city (e.g. Astana).",
	},
	domain.FieldSphere: {
		"ru": "Опишите, пожалуйста, сферу деятельности парой слов (например: розничная торговля).",
		"kz": "Қызмет саласын бірнеше сөзбен жазыңыз (мыс.: бөлшек сауда).",
		"en": "Please describe your business field in a few words (e.g. retail).",
	},
}

var fieldNames = map[domain.Field]localized{
	domain.FieldName:   {"ru": "Имя", "kz": "Атыңызды", "en": "Name"},
	domain.FieldPhone:  {"ru": "Телефон", "kz": "Телефоныңызды", "en": "Phone"},
	domain.FieldCity:   {"ru": "Город", "kz": "Қалаңызды", "en": "City"},
	domain.FieldSphere: {"ru": "Сферу деятельности", "kz": "Сфераңызды", "en": "Business field"},
}

func joinFields(required []domain.Field, lang string) string {
	names := make([]string, len(required))
	for i, f := range required {
		names[i] = fieldNames[f].in(lang)
	}
	and := map[string]string{"ru": " и ", "kz": " және ", "en": " and "}[lang]
	if and == "" {
		and = " и "
	}
	if len(names) < 2 {
		return strings.Join(names, "")
	}
	return strings.Join(names[:len(names)-1], ", ") + and + names[len(names)-1]
}

// offerLine is the consultation pitch appended to a model answer.
func offerLine(ts []string, required []domain.Field, lang string) string {
	label := topics.Label(ts, lang)
	fields := joinFields(required, lang)
	plural := len(ts) > 1

	switch lang {
	case extract.LangKZ:
		if plural {
			return "\n\nҚаласаңыз, келесі тақырыптар бойынша консультация дайындаймын: " + label + ". Ол үшін " + fields + " жазыңыз."
		}
		return "\n\nҚаласаңыз, " + label + " бойынша консультация дайындаймын. Ол үшін " + fields + " жазыңыз."
	case extract.LangEN:
		if plural {
			return "\n\nIf you want, I’ll arrange a consultation on these topics: " + label + ". Please send your " + fields + "."
		}
		return "\n\nIf you want, I’ll arrange a consultation on: " + label + ". Please send your " + fields + "."
	default:
		if plural {
			return "\n\nЕсли хотите, подготовлю консультацию по темам: " + label + ". Для этого пришлите " + fields + "."
		}
		return "\n\nЕсли хотите, подготовлю консультацию по теме: " + label + ". Для этого пришлите " + fields + "."
	}
}
