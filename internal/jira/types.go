package jira

// Minimal slices of the Jira REST surface; only what the dialogs read.

type User struct {
	AccountID   string `json:"accountId,omitempty"`
	Name        string `json:"name,omitempty"`
	DisplayName string `json:"displayName"`
	Email       string `json:"emailAddress,omitempty"`
}

type Named struct {
	Name string `json:"name"`
}

type IssueFields struct {
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	Status      Named  `json:"status"`
	IssueType   Named  `json:"issuetype"`
	Priority    Named  `json:"priority"`
	Assignee    *User  `json:"assignee,omitempty"`
	Reporter    *User  `json:"reporter,omitempty"`
}

type Issue struct {
	Key    string      `json:"key"`
	Fields IssueFields `json:"fields"`
}

type SearchResult struct {
	Total  int     `json:"total"`
	Issues []Issue `json:"issues"`
}

type CreateIssueInput struct {
	ProjectKey  string
	Summary     string
	Description string
	IssueType   string
}

type createIssueRequest struct {
	Fields createIssueFields `json:"fields"`
}

type createIssueFields struct {
	Project     projectRef `json:"project"`
	Summary     string     `json:"summary"`
	Description string     `json:"description,omitempty"`
	IssueType   Named      `json:"issuetype"`
}

type projectRef struct {
	Key string `json:"key"`
}

type createdIssue struct {
	Key string `json:"key"`
}

type errorBody struct {
	ErrorMessages []string          `json:"errorMessages"`
	Errors        map[string]string `json:"errors"`
}
