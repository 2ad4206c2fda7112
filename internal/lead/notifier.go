package lead

import (
	"context"
	"fmt"

	"golang.org/x/exp/slog"
)

// Notifier hands a lead to the operator chat.
type Notifier struct {
	sender  Sender
	adminID string
	log     *slog.Logger
}

// NewNotifier returns a notifier. With no sender or admin chat configured
// leads are only written to the log.
func NewNotifier(log *slog.Logger, sender Sender, adminChatID string) *Notifier {
	return &Notifier{
		sender:  sender,
		adminID: adminChatID,
		log:     log.With(slog.String("component", "notifier")),
	}
}

func (n *Notifier) Notify(ctx context.Context, l Lead) error {
	const op = "lead.Notifier.Notify"

	text := Format(l)
	if n.sender == nil || n.adminID == "" {
		n.log.Warn("no operator chat configured, lead logged only",
			slog.String("lead_id", l.ID.String()),
			slog.String("lead", text),
		)
		return nil
	}
	if err := n.sender.SendToChat(ctx, n.adminID, text); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n.log.Info("lead forwarded",
		slog.String("lead_id", l.ID.String()),
		slog.String("channel", string(l.Channel)),
		slog.String("conversation_id", l.ConversationID),
	)
	return nil
}

// Ping checks the operator chat is reachable.
func (n *Notifier) Ping(ctx context.Context, from string) error {
	const op = "lead.Notifier.Ping"

	if n.sender == nil || n.adminID == "" {
		return fmt.Errorf("%s: operator chat is not configured", op)
	}
	if err := n.sender.SendToChat(ctx, n.adminID, "ping from "+from); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
