package dialog

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/exp/slog"

	"github.com/imhogram/start-ai-telegram/internal/extract"
	"github.com/imhogram/start-ai-telegram/internal/lib/logger/sl"
)

type command struct {
	name string
	arg  string
}

var commandRe = regexp.MustCompile(`^/(\w+)(?:@\w+)?(?:\s+(.*))?$`)

var knownCommands = map[string]bool{
	"start": true, "reset": true, "lang": true, "whoami": true, "ping": true,
}

// parseCommand returns nil for anything that is not a known command, so
// "/foo" is treated like ordinary text.
func parseCommand(text string) *command {
	m := commandRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	name := strings.ToLower(m[1])
	if !knownCommands[name] {
		return nil
	}
	return &command{name: name, arg: strings.TrimSpace(m[2])}
}

func (e *Engine) runCommand(ctx context.Context, t *turn) (*reply, error) {
	id := t.in.ConversationID

	switch t.cmd.name {
	case "start":
		return &reply{text: textHi.in(t.lang), record: true}, nil

	case "reset":
		if err := e.store.Reset(ctx, id); err != nil {
			return nil, err
		}
		return &reply{text: textResetDone.in(t.lang)}, nil

	case "lang":
		code := strings.ToLower(t.cmd.arg)
		if !extract.IsLanguage(code) {
			lang := t.lang
			if guess := extract.ConfidentLanguage(t.cmd.arg); guess != "" {
				lang = guess
			}
			return &reply{text: textLangHelp.in(lang)}, nil
		}
		if err := e.store.SetLanguage(ctx, id, code); err != nil {
			return nil, err
		}
		return &reply{text: fmt.Sprintf(textLangSet.in(code), code)}, nil

	case "whoami":
		return &reply{text: e.profile.IDLabel + ": " + id}, nil

	case "ping":
		if err := e.notifier.Ping(ctx, string(e.profile.Channel)+" "+id); err != nil {
			e.log.Warn("operator ping failed", slog.String("conversation_id", id), sl.Err(err))
			return &reply{text: textPingFail.in(t.lang)}, nil
		}
		return &reply{text: textPingOK.in(t.lang)}, nil
	}
	return nil, nil
}
