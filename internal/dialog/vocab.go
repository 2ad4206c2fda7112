package dialog

import (
	"regexp"
	"strings"
)

const nb = `(?:^|[^\p{L}])`
const ne = `(?:[^\p{L}]|$)`

var (
	cancelRe = regexp.MustCompile(`(?i)` + nb + `(?:не нужно|не надо|не нужна|не нужен|позже|потом|стоп|отмена|отменить|отмените|нет,? спасибо|керек емес|кейін|cancel|stop|later|not needed|no thanks|no,? thank you)` + ne)

	consentRe = regexp.MustCompile(`(?i)` + nb + `(?:давайте|давай|запишите|записать|запишите меня|оформим|оформить|оформите|поехали|хочу консультац\p{L}*|нужна консультац\p{L}*|интересует консультац\p{L}*|да,? давайте|да,? хочу|book me|sign me up|let'?s do it|let'?s go|i want a consultation|i'?d like a consultation|yes,? please|жазыңыз|келісемін)` + ne)

	// Asking for a human is treated as consent.
	operatorRe = regexp.MustCompile(`(?i)` + nb + `(?:оператор\p{L}*|менеджер\p{L}*|живой человек|живого человека|специалист\p{L}*|позовите|переключите|talk to (?:a )?human|real person|manager|operator)` + ne)

	affirmativeRe = regexp.MustCompile(`(?i)^(?:ну )?(?:да|ага|угу|ок|окей|ok|okay|ок[эе]й|yes|yep|yeah|sure|хорошо|ладно|конечно|можно|иә|ия|жарайды|go|го)[\s!.)]*$`)
)

// maxCancelWords keeps long questions that happen to contain "потом" or
// "later" from cancelling a booking.
const maxCancelWords = 6

func isCancel(text string) bool {
	return len(strings.Fields(text)) <= maxCancelWords && cancelRe.MatchString(text)
}

func isExplicitConsent(text string) bool {
	return consentRe.MatchString(text) || operatorRe.MatchString(text)
}

func isAffirmative(text string) bool {
	return affirmativeRe.MatchString(strings.TrimSpace(text))
}
