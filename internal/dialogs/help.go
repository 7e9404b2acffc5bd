package dialogs

import (
	"context"

	"github.com/dwizi/jira-bridge/internal/dialog"
)

const helpText = `Here's what I can do:

- **connect** - link your Jira account (personal chat only)
- **disconnect** - remove your Jira connection
- **show issue DEMO-123** - look up an issue, or just paste its link
- **comment on DEMO-123** - add a comment to an issue
- **create issue** - create a new issue step by step
- **search login bug** - search issues by text
- **watch DEMO-123** / **unwatch DEMO-123** - manage your watched issues
- **feedback** - tell the team what you think
- **cancel** - abandon whatever we're in the middle of`

type helpDialog struct{}

func (helpDialog) Name() string { return DialogHelp }

func (helpDialog) Begin(ctx context.Context, turn *dialog.Turn, _ any) (dialog.Outcome, error) {
	if err := turn.Responder.SendText(ctx, helpText); err != nil {
		return dialog.Outcome{}, err
	}
	return dialog.Done(), nil
}

func (helpDialog) Resume(ctx context.Context, turn *dialog.Turn, _ dialog.State) (dialog.Outcome, error) {
	return helpDialog{}.Begin(ctx, turn, nil)
}
