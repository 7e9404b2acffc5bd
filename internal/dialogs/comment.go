package dialogs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dwizi/jira-bridge/internal/dialog"
)

const (
	stepCommentKey  = "key"
	stepCommentBody = "body"
)

type commentState struct {
	Key string `json:"key"`
}

// commentDialog adds a comment to an issue: first the key, then the text.
type commentDialog struct {
	deps *Deps
}

func (d *commentDialog) Name() string { return DialogComment }

func (d *commentDialog) Begin(ctx context.Context, turn *dialog.Turn, _ any) (dialog.Outcome, error) {
	key := extractIssueKey(turn.Text)
	if key == "" {
		if err := turn.Responder.SendText(ctx, "Which issue should I comment on? Send me its key."); err != nil {
			return dialog.Outcome{}, err
		}
		return dialog.Wait(DialogComment, stepCommentKey, commentState{})
	}
	return d.askBody(ctx, turn, key)
}

func (d *commentDialog) Resume(ctx context.Context, turn *dialog.Turn, state dialog.State) (dialog.Outcome, error) {
	var carried commentState
	if len(state.Payload) > 0 {
		if err := json.Unmarshal(state.Payload, &carried); err != nil {
			return dialog.Outcome{}, fmt.Errorf("decode comment state: %w", err)
		}
	}

	switch state.Step {
	case stepCommentKey:
		key := extractIssueKey(turn.Text)
		if key == "" {
			if err := turn.Responder.SendText(ctx, "I still need an issue key, like `DEMO-123`. Or type **cancel**."); err != nil {
				return dialog.Outcome{}, err
			}
			return dialog.Wait(DialogComment, stepCommentKey, carried)
		}
		return d.askBody(ctx, turn, key)
	case stepCommentBody:
		return d.post(ctx, turn, carried.Key, turn.Text)
	default:
		return dialog.Outcome{}, fmt.Errorf("unknown comment step %q", state.Step)
	}
}

func (d *commentDialog) askBody(ctx context.Context, turn *dialog.Turn, key string) (dialog.Outcome, error) {
	if err := turn.Responder.SendText(ctx, fmt.Sprintf("What should the comment on %s say?", key)); err != nil {
		return dialog.Outcome{}, err
	}
	return dialog.Wait(DialogComment, stepCommentBody, commentState{Key: key})
}

func (d *commentDialog) post(ctx context.Context, turn *dialog.Turn, key, body string) (dialog.Outcome, error) {
	conn, outcome, ok, err := d.deps.connection(ctx, turn)
	if err != nil {
		return dialog.Outcome{}, err
	}
	if !ok {
		return outcome, nil
	}

	if err := d.deps.Jira.AddComment(ctx, conn, key, body); err != nil {
		if outcome, ok := outcomeFromError(err); ok {
			return outcome, nil
		}
		return dialog.Outcome{}, err
	}

	d.deps.Cache.Delete(issueCacheKey(conn.BaseURL, key))
	if err := turn.Responder.SendText(ctx, fmt.Sprintf("Comment added to [%s](%s).", key, browseURL(conn, key))); err != nil {
		return dialog.Outcome{}, err
	}
	return dialog.Done(), nil
}
