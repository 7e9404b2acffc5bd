package dialogs

import (
	"context"
	"fmt"

	"github.com/dwizi/jira-bridge/internal/dialog"
)

// watchDialog adds or removes the caller as a watcher on an issue. The two
// routes share one implementation; unwatch flips the direction.
type watchDialog struct {
	deps    *Deps
	unwatch bool
}

func (d *watchDialog) Name() string {
	if d.unwatch {
		return DialogUnwatch
	}
	return DialogWatch
}

func (d *watchDialog) Begin(ctx context.Context, turn *dialog.Turn, _ any) (dialog.Outcome, error) {
	key := extractIssueKey(turn.Text)
	if key == "" {
		if err := turn.Responder.SendText(ctx, "Which issue? Send me its key, like `DEMO-123`."); err != nil {
			return dialog.Outcome{}, err
		}
		return dialog.Wait(d.Name(), stepIssueKey, nil)
	}
	return d.apply(ctx, turn, key)
}

func (d *watchDialog) Resume(ctx context.Context, turn *dialog.Turn, _ dialog.State) (dialog.Outcome, error) {
	key := extractIssueKey(turn.Text)
	if key == "" {
		if err := turn.Responder.SendText(ctx, "I still need an issue key, like `DEMO-123`. Or type **cancel**."); err != nil {
			return dialog.Outcome{}, err
		}
		return dialog.Wait(d.Name(), stepIssueKey, nil)
	}
	return d.apply(ctx, turn, key)
}

func (d *watchDialog) apply(ctx context.Context, turn *dialog.Turn, key string) (dialog.Outcome, error) {
	conn, outcome, ok, err := d.deps.connection(ctx, turn)
	if err != nil {
		return dialog.Outcome{}, err
	}
	if !ok {
		return outcome, nil
	}

	var confirmation string
	if d.unwatch {
		err = d.deps.Jira.Unwatch(ctx, conn, key)
		confirmation = fmt.Sprintf("You are no longer watching [%s](%s).", key, browseURL(conn, key))
	} else {
		err = d.deps.Jira.Watch(ctx, conn, key)
		confirmation = fmt.Sprintf("You are now watching [%s](%s).", key, browseURL(conn, key))
	}
	if err != nil {
		if outcome, ok := outcomeFromError(err); ok {
			return outcome, nil
		}
		return dialog.Outcome{}, err
	}

	if err := turn.Responder.SendText(ctx, confirmation); err != nil {
		return dialog.Outcome{}, err
	}
	return dialog.Done(), nil
}
