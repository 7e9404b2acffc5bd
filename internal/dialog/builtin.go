package dialog

import (
	"context"
	"strings"
)

const (
	cancelNotice    = "Okay, I cancelled that. What would you like to do next?"
	ambiguousNotice = "That could mean more than one thing. Please be more specific."
)

// cancelDialog answers the built-in cancel route. The dispatcher clears the
// conversation state before this runs, so the dialog only acknowledges.
type cancelDialog struct{}

func (cancelDialog) Name() string { return DialogCancel }

func (cancelDialog) Begin(ctx context.Context, turn *Turn, _ any) (Outcome, error) {
	if err := turn.Responder.SendText(ctx, cancelNotice); err != nil {
		return Outcome{}, err
	}
	return Done(), nil
}

func (d cancelDialog) Resume(ctx context.Context, turn *Turn, _ State) (Outcome, error) {
	return d.Begin(ctx, turn, nil)
}

// ambiguousDialog answers when two regex routes of equal order both matched.
// Options carries the conflicting routes.
type ambiguousDialog struct{}

func (ambiguousDialog) Name() string { return DialogAmbiguous }

func (ambiguousDialog) Begin(ctx context.Context, turn *Turn, options any) (Outcome, error) {
	message := ambiguousNotice
	if conflicting, ok := options.([]Route); ok && len(conflicting) > 0 {
		names := make([]string, 0, len(conflicting))
		for _, route := range conflicting {
			names = append(names, route.Dialog)
		}
		message += " I matched: " + strings.Join(names, ", ") + "."
	}
	if err := turn.Responder.SendText(ctx, message); err != nil {
		return Outcome{}, err
	}
	return Done(), nil
}

func (d ambiguousDialog) Resume(ctx context.Context, turn *Turn, _ State) (Outcome, error) {
	return d.Begin(ctx, turn, nil)
}
