// Package dialogs holds the bot's conversational flows: connecting a Jira
// account, looking up and creating issues, commenting, watching, and the
// small service dialogs around them.
package dialogs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"github.com/dwizi/jira-bridge/internal/bridge"
	"github.com/dwizi/jira-bridge/internal/cards"
	"github.com/dwizi/jira-bridge/internal/dialog"
	"github.com/dwizi/jira-bridge/internal/jira"
	"github.com/dwizi/jira-bridge/internal/notify"
	"github.com/dwizi/jira-bridge/internal/store"
)

// ConnectionStore persists the per-user Jira connections.
type ConnectionStore interface {
	SaveConnection(ctx context.Context, input store.SaveConnectionInput) error
	LookupConnection(ctx context.Context, userID string) (store.Connection, error)
	DeleteConnection(ctx context.Context, userID string) error
}

// JiraAPI is the slice of the Jira client the dialogs call.
type JiraAPI interface {
	Myself(ctx context.Context, conn store.Connection) (jira.User, error)
	Issue(ctx context.Context, conn store.Connection, key string) (jira.Issue, error)
	Search(ctx context.Context, conn store.Connection, jql string, limit int) (jira.SearchResult, error)
	AddComment(ctx context.Context, conn store.Connection, key, body string) error
	CreateIssue(ctx context.Context, conn store.Connection, input jira.CreateIssueInput) (jira.Issue, error)
	Watch(ctx context.Context, conn store.Connection, key string) error
	Unwatch(ctx context.Context, conn store.Connection, key string) error
}

// IssueCache avoids refetching recently shown issues.
type IssueCache interface {
	Set(key string, value any) error
	Get(key string, out any) (bool, error)
	Delete(key string)
}

// CardRenderer renders the issue summary card.
type CardRenderer interface {
	Issue(data cards.IssueCardData) (json.RawMessage, error)
}

// Mailer sends the connect confirmation and feedback mail.
type Mailer interface {
	Enabled() bool
	Send(ctx context.Context, to, subject, body string) error
}

// Notifier posts Graph activity-feed notifications.
type Notifier interface {
	Enabled() bool
	Notify(ctx context.Context, notification notify.Notification) error
}

// Deps is the shared dependency set handed to every dialog constructor.
type Deps struct {
	Connections ConnectionStore
	Jira        JiraAPI
	Cache       IssueCache
	Cards       CardRenderer
	Mail        Mailer
	Graph       Notifier
	Logger      *slog.Logger

	// FeedbackTo receives feedback mail; empty disables the feedback dialog's
	// delivery and it falls back to a thank-you note.
	FeedbackTo string
}

var issueKeyPattern = regexp.MustCompile(`(?i)\b([a-z][a-z0-9]*-\d+)\b`)

// extractIssueKey pulls the first Jira issue key out of free text, uppercased.
func extractIssueKey(text string) string {
	match := issueKeyPattern.FindString(text)
	return strings.ToUpper(match)
}

// connection loads the caller's Jira connection. A missing row maps to the
// auth outcome with ok=false; other lookup failures surface as errors.
func (d *Deps) connection(ctx context.Context, turn *dialog.Turn) (store.Connection, dialog.Outcome, bool, error) {
	conn, err := d.Connections.LookupConnection(ctx, turn.UserID)
	if errors.Is(err, store.ErrConnectionNotFound) {
		return store.Connection{}, dialog.NeedsAuth(), false, nil
	}
	if err != nil {
		return store.Connection{}, dialog.Outcome{}, false, err
	}
	return conn, dialog.Outcome{}, true, nil
}

// outcomeFromError maps Jira and bridge failures onto dialog outcomes. The
// second result is false for errors the caller should surface as its own
// failure.
func outcomeFromError(err error) (dialog.Outcome, bool) {
	switch {
	case errors.Is(err, jira.ErrUnauthorized):
		return dialog.NeedsAuth(), true
	case errors.Is(err, jira.ErrForbidden):
		return dialog.Forbidden(forbiddenMessage(err)), true
	}
	var peerErr *bridge.PeerError
	var timeoutErr *bridge.TimeoutError
	if errors.As(err, &peerErr) || errors.As(err, &timeoutErr) {
		return dialog.Forbidden("I couldn't reach your Jira Server add-on. Please check that it is installed and connected, then try again."), true
	}
	return dialog.Outcome{}, false
}

func forbiddenMessage(err error) string {
	message := strings.TrimPrefix(err.Error(), jira.ErrForbidden.Error())
	return strings.TrimSpace(strings.TrimPrefix(message, ":"))
}
