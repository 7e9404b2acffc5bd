package dialogs

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/dwizi/jira-bridge/internal/dialog"
	"github.com/dwizi/jira-bridge/internal/jira"
	"github.com/dwizi/jira-bridge/internal/notify"
)

const (
	stepCreateProject     = "project"
	stepCreateSummary     = "summary"
	stepCreateDescription = "description"
)

var projectKeyPattern = regexp.MustCompile(`(?i)^[a-z][a-z0-9]*$`)

type createState struct {
	ProjectKey string `json:"projectKey"`
	Summary    string `json:"summary,omitempty"`
}

// createDialog collects project, summary, and an optional description, then
// files the issue.
type createDialog struct {
	deps *Deps
}

func (d *createDialog) Name() string { return DialogCreate }

func (d *createDialog) Begin(ctx context.Context, turn *dialog.Turn, _ any) (dialog.Outcome, error) {
	if err := turn.Responder.SendText(ctx, "Let's create an issue. Which project? Send the project key, like `DEMO`."); err != nil {
		return dialog.Outcome{}, err
	}
	return dialog.Wait(DialogCreate, stepCreateProject, createState{})
}

func (d *createDialog) Resume(ctx context.Context, turn *dialog.Turn, state dialog.State) (dialog.Outcome, error) {
	var carried createState
	if len(state.Payload) > 0 {
		if err := json.Unmarshal(state.Payload, &carried); err != nil {
			return dialog.Outcome{}, fmt.Errorf("decode create state: %w", err)
		}
	}

	switch state.Step {
	case stepCreateProject:
		project := strings.ToUpper(strings.TrimSpace(turn.Text))
		if !projectKeyPattern.MatchString(project) {
			if err := turn.Responder.SendText(ctx, "Project keys look like `DEMO` or `OPS`. Try again, or type **cancel**."); err != nil {
				return dialog.Outcome{}, err
			}
			return dialog.Wait(DialogCreate, stepCreateProject, carried)
		}
		carried.ProjectKey = project
		if err := turn.Responder.SendText(ctx, "What's the issue summary?"); err != nil {
			return dialog.Outcome{}, err
		}
		return dialog.Wait(DialogCreate, stepCreateSummary, carried)

	case stepCreateSummary:
		summary := strings.TrimSpace(turn.Text)
		if summary == "" {
			if err := turn.Responder.SendText(ctx, "The summary can't be empty. What should it say?"); err != nil {
				return dialog.Outcome{}, err
			}
			return dialog.Wait(DialogCreate, stepCreateSummary, carried)
		}
		carried.Summary = summary
		if err := turn.Responder.SendText(ctx, "Add a description, or type **skip**."); err != nil {
			return dialog.Outcome{}, err
		}
		return dialog.Wait(DialogCreate, stepCreateDescription, carried)

	case stepCreateDescription:
		description := strings.TrimSpace(turn.Text)
		if strings.EqualFold(description, "skip") {
			description = ""
		}
		return d.file(ctx, turn, carried, description)

	default:
		return dialog.Outcome{}, fmt.Errorf("unknown create step %q", state.Step)
	}
}

func (d *createDialog) file(ctx context.Context, turn *dialog.Turn, carried createState, description string) (dialog.Outcome, error) {
	conn, outcome, ok, err := d.deps.connection(ctx, turn)
	if err != nil {
		return dialog.Outcome{}, err
	}
	if !ok {
		return outcome, nil
	}

	issue, err := d.deps.Jira.CreateIssue(ctx, conn, jira.CreateIssueInput{
		ProjectKey:  carried.ProjectKey,
		Summary:     carried.Summary,
		Description: description,
	})
	if err != nil {
		if outcome, ok := outcomeFromError(err); ok {
			return outcome, nil
		}
		return dialog.Outcome{}, err
	}

	if d.deps.Graph != nil && d.deps.Graph.Enabled() {
		notification := notify.Notification{
			UserID:  turn.UserID,
			Topic:   browseURL(conn, issue.Key),
			Message: fmt.Sprintf("%s was created: %s", issue.Key, issue.Fields.Summary),
			IssueID: issue.Key,
		}
		if err := d.deps.Graph.Notify(ctx, notification); err != nil {
			d.deps.Logger.Warn("issue creation notification failed", "issue", issue.Key, "error", err)
		}
	}

	if card, renderErr := d.deps.Cards.Issue(issueCardData(conn, issue)); renderErr == nil {
		if err := turn.Responder.SendCard(ctx, card); err == nil {
			return dialog.Done(), nil
		}
	}
	if err := turn.Responder.SendText(ctx, fmt.Sprintf("Created [%s](%s): %s", issue.Key, browseURL(conn, issue.Key), issue.Fields.Summary)); err != nil {
		return dialog.Outcome{}, err
	}
	return dialog.Done(), nil
}
