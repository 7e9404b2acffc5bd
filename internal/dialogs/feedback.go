package dialogs

import (
	"context"
	"fmt"

	"github.com/dwizi/jira-bridge/internal/dialog"
)

// feedbackDialog collects a free-text note and mails it to the team.
type feedbackDialog struct {
	deps *Deps
}

func (d *feedbackDialog) Name() string { return DialogFeedback }

func (d *feedbackDialog) Begin(ctx context.Context, turn *dialog.Turn, _ any) (dialog.Outcome, error) {
	if err := turn.Responder.SendText(ctx, "I'm listening. What would you like to tell the team?"); err != nil {
		return dialog.Outcome{}, err
	}
	return dialog.Wait(DialogFeedback, "message", nil)
}

func (d *feedbackDialog) Resume(ctx context.Context, turn *dialog.Turn, _ dialog.State) (dialog.Outcome, error) {
	if d.deps.Mail.Enabled() && d.deps.FeedbackTo != "" {
		subject := fmt.Sprintf("Bot feedback from %s", turn.UserName)
		body := fmt.Sprintf("From: %s (%s)\nConversation: %s\n\n%s\n", turn.UserName, turn.UserID, turn.ConversationID, turn.Text)
		if err := d.deps.Mail.Send(ctx, d.deps.FeedbackTo, subject, body); err != nil {
			d.deps.Logger.Error("feedback mail failed", "user_id", turn.UserID, "error", err)
			if err := turn.Responder.SendText(ctx, "I couldn't deliver that right now, sorry. Please try again later."); err != nil {
				return dialog.Outcome{}, err
			}
			return dialog.Done(), nil
		}
	} else {
		d.deps.Logger.Info("feedback received without mail delivery",
			"user_id", turn.UserID, "feedback", turn.Text)
	}

	if err := turn.Responder.SendText(ctx, "Thanks! Your feedback is on its way to the team."); err != nil {
		return dialog.Outcome{}, err
	}
	return dialog.Done(), nil
}
