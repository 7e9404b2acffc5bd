package dialogs

import (
	"context"
	"fmt"
	"strings"

	"github.com/dwizi/jira-bridge/internal/cards"
	"github.com/dwizi/jira-bridge/internal/dialog"
	"github.com/dwizi/jira-bridge/internal/jira"
	"github.com/dwizi/jira-bridge/internal/store"
)

const stepIssueKey = "key"

// issueDialog shows one issue as an adaptive card. It also backs the
// dispatcher's shortcut for pasted issue links and card-sourced messages.
type issueDialog struct {
	deps *Deps
}

func (d *issueDialog) Name() string { return DialogIssue }

func (d *issueDialog) Begin(ctx context.Context, turn *dialog.Turn, _ any) (dialog.Outcome, error) {
	key := extractIssueKey(turn.Text)
	if key == "" {
		if err := turn.Responder.SendText(ctx, "Which issue? Send me its key, like `DEMO-123`."); err != nil {
			return dialog.Outcome{}, err
		}
		return dialog.Wait(DialogIssue, stepIssueKey, nil)
	}
	return d.show(ctx, turn, key)
}

func (d *issueDialog) Resume(ctx context.Context, turn *dialog.Turn, state dialog.State) (dialog.Outcome, error) {
	key := extractIssueKey(turn.Text)
	if key == "" {
		if err := turn.Responder.SendText(ctx, "I still need an issue key, like `DEMO-123`. Or type **cancel**."); err != nil {
			return dialog.Outcome{}, err
		}
		return dialog.Wait(DialogIssue, stepIssueKey, nil)
	}
	return d.show(ctx, turn, key)
}

func (d *issueDialog) show(ctx context.Context, turn *dialog.Turn, key string) (dialog.Outcome, error) {
	conn, outcome, ok, err := d.deps.connection(ctx, turn)
	if err != nil {
		return dialog.Outcome{}, err
	}
	if !ok {
		return outcome, nil
	}

	issue, err := d.fetch(ctx, conn, key)
	if err != nil {
		if outcome, ok := outcomeFromError(err); ok {
			return outcome, nil
		}
		return dialog.Outcome{}, err
	}

	card, renderErr := d.deps.Cards.Issue(issueCardData(conn, issue))
	if renderErr == nil {
		if err := turn.Responder.SendCard(ctx, card); err == nil {
			return dialog.Done(), nil
		}
		d.deps.Logger.Warn("issue card send failed, falling back to text", "issue", issue.Key, "error", err)
	} else {
		d.deps.Logger.Warn("issue card render failed, falling back to text", "issue", issue.Key, "error", renderErr)
	}

	if err := turn.Responder.SendText(ctx, issueSummaryText(conn, issue)); err != nil {
		return dialog.Outcome{}, err
	}
	return dialog.Done(), nil
}

// fetch reads the issue through the TTL cache so repeated lookups within a
// conversation do not hammer Jira.
func (d *issueDialog) fetch(ctx context.Context, conn store.Connection, key string) (jira.Issue, error) {
	cacheKey := issueCacheKey(conn.BaseURL, key)
	var cached jira.Issue
	if hit, err := d.deps.Cache.Get(cacheKey, &cached); err == nil && hit {
		return cached, nil
	}

	issue, err := d.deps.Jira.Issue(ctx, conn, key)
	if err != nil {
		return jira.Issue{}, err
	}
	if err := d.deps.Cache.Set(cacheKey, issue); err != nil {
		d.deps.Logger.Warn("issue cache write failed", "issue", issue.Key, "error", err)
	}
	return issue, nil
}

func issueCacheKey(baseURL, key string) string {
	return "issue:" + baseURL + ":" + strings.ToUpper(key)
}

func issueCardData(conn store.Connection, issue jira.Issue) cards.IssueCardData {
	assignee := "Unassigned"
	if issue.Fields.Assignee != nil {
		assignee = issue.Fields.Assignee.DisplayName
	}
	return cards.IssueCardData{
		Key:      issue.Key,
		Summary:  issue.Fields.Summary,
		Status:   issue.Fields.Status.Name,
		Type:     issue.Fields.IssueType.Name,
		Priority: issue.Fields.Priority.Name,
		Assignee: assignee,
		URL:      browseURL(conn, issue.Key),
	}
}

func issueSummaryText(conn store.Connection, issue jira.Issue) string {
	return fmt.Sprintf("**%s**: %s\nStatus: %s\n%s",
		issue.Key, issue.Fields.Summary, issue.Fields.Status.Name, browseURL(conn, issue.Key))
}

func browseURL(conn store.Connection, key string) string {
	return strings.TrimRight(conn.BaseURL, "/") + "/browse/" + key
}

// searchDialog runs a free-text JQL search and lists the top hits.
type searchDialog struct {
	deps *Deps
}

func (d *searchDialog) Name() string { return DialogSearch }

func (d *searchDialog) Begin(ctx context.Context, turn *dialog.Turn, _ any) (dialog.Outcome, error) {
	query := searchQuery(turn.Text)
	if query == "" {
		if err := turn.Responder.SendText(ctx, "What should I search for?"); err != nil {
			return dialog.Outcome{}, err
		}
		return dialog.Wait(DialogSearch, "query", nil)
	}
	return d.run(ctx, turn, query)
}

func (d *searchDialog) Resume(ctx context.Context, turn *dialog.Turn, _ dialog.State) (dialog.Outcome, error) {
	query := strings.TrimSpace(turn.Text)
	if query == "" {
		if err := turn.Responder.SendText(ctx, "I need something to search for. Or type **cancel**."); err != nil {
			return dialog.Outcome{}, err
		}
		return dialog.Wait(DialogSearch, "query", nil)
	}
	return d.run(ctx, turn, query)
}

func (d *searchDialog) run(ctx context.Context, turn *dialog.Turn, query string) (dialog.Outcome, error) {
	conn, outcome, ok, err := d.deps.connection(ctx, turn)
	if err != nil {
		return dialog.Outcome{}, err
	}
	if !ok {
		return outcome, nil
	}

	jql := fmt.Sprintf("text ~ %q ORDER BY updated DESC", query)
	result, err := d.deps.Jira.Search(ctx, conn, jql, 5)
	if err != nil {
		if outcome, ok := outcomeFromError(err); ok {
			return outcome, nil
		}
		return dialog.Outcome{}, err
	}

	if len(result.Issues) == 0 {
		if err := turn.Responder.SendText(ctx, fmt.Sprintf("No issues matched %q.", query)); err != nil {
			return dialog.Outcome{}, err
		}
		return dialog.Done(), nil
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("Top results for %q (%d total):", query, result.Total))
	for _, issue := range result.Issues {
		lines = append(lines, fmt.Sprintf("- [%s](%s) %s (%s)",
			issue.Key, browseURL(conn, issue.Key), issue.Fields.Summary, issue.Fields.Status.Name))
	}
	if err := turn.Responder.SendText(ctx, strings.Join(lines, "\n")); err != nil {
		return dialog.Outcome{}, err
	}
	return dialog.Done(), nil
}

// searchQuery strips the leading command word so "search login bug" searches
// for "login bug".
func searchQuery(text string) string {
	trimmed := strings.TrimSpace(text)
	lowered := strings.ToLower(trimmed)
	for _, prefix := range []string{"search for", "search", "find"} {
		if strings.HasPrefix(lowered, prefix) {
			return strings.TrimSpace(trimmed[len(prefix):])
		}
	}
	return trimmed
}
