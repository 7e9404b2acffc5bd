package dialogs

import (
	"regexp"

	"github.com/dwizi/jira-bridge/internal/dialog"
)

// Dialog names. These are the route table keys and the names persisted in
// suspended conversation state, so renaming one invalidates in-flight flows.
const (
	DialogHelp       = "Help"
	DialogConnect    = "Connect"
	DialogDisconnect = "Disconnect"
	DialogIssue      = "ShowIssue"
	DialogSearch     = "Search"
	DialogComment    = "Comment"
	DialogCreate     = "CreateIssue"
	DialogWatch      = "Watch"
	DialogUnwatch    = "Unwatch"
	DialogFeedback   = "Feedback"
)

var (
	// watchPattern deliberately has no leading boundary so it also matches
	// inside "unwatch DEMO-1"; the unwatch route's lower Order wins there.
	watchPattern   = regexp.MustCompile(`(?i)watch\s+[a-z][a-z0-9]*-\d+`)
	unwatchPattern = regexp.MustCompile(`(?i)\bun-?watch\b`)
)

// Registry binds every dialog name to its constructor over the shared deps.
func Registry(deps *Deps) dialog.Registry {
	return dialog.Registry{
		DialogHelp:       func() dialog.Dialog { return helpDialog{} },
		DialogConnect:    func() dialog.Dialog { return &connectDialog{deps: deps} },
		DialogDisconnect: func() dialog.Dialog { return &disconnectDialog{deps: deps} },
		DialogIssue:      func() dialog.Dialog { return &issueDialog{deps: deps} },
		DialogSearch:     func() dialog.Dialog { return &searchDialog{deps: deps} },
		DialogComment:    func() dialog.Dialog { return &commentDialog{deps: deps} },
		DialogCreate:     func() dialog.Dialog { return &createDialog{deps: deps} },
		DialogWatch:      func() dialog.Dialog { return &watchDialog{deps: deps} },
		DialogUnwatch:    func() dialog.Dialog { return &watchDialog{deps: deps, unwatch: true} },
		DialogFeedback:   func() dialog.Dialog { return &feedbackDialog{deps: deps} },
	}
}

// Routes is the deployment's route table, in priority order.
func Routes() []dialog.Route {
	return []dialog.Route{
		{
			Dialog:   DialogHelp,
			Commands: []string{"help", "what can you do", "hi", "hello"},
		},
		{
			Dialog:       DialogConnect,
			Commands:     []string{"connect", "connect to jira", "log in", "login", "sign in"},
			PersonalOnly: true,
		},
		{
			Dialog:       DialogDisconnect,
			Commands:     []string{"disconnect", "log out", "logout", "sign out"},
			PersonalOnly: true,
			RequiresAuth: true,
		},
		{
			Dialog:       DialogIssue,
			Commands:     []string{"show issue", "show", "issue", "open issue", "get issue"},
			RequiresAuth: true,
		},
		{
			Dialog:       DialogSearch,
			Commands:     []string{"search", "find", "search issues"},
			RequiresAuth: true,
		},
		{
			Dialog:       DialogComment,
			Commands:     []string{"comment", "comment on", "add comment"},
			RequiresAuth: true,
		},
		{
			Dialog:       DialogCreate,
			Commands:     []string{"create", "create issue", "new issue", "file a bug"},
			RequiresAuth: true,
		},
		{
			Dialog:       DialogUnwatch,
			Pattern:      unwatchPattern,
			Order:        0,
			RequiresAuth: true,
		},
		{
			Dialog:       DialogWatch,
			Pattern:      watchPattern,
			Order:        1,
			RequiresAuth: true,
		},
		{
			Dialog:   DialogFeedback,
			Commands: []string{"feedback", "send feedback", "report a problem"},
		},
	}
}
