package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dwizi/jira-bridge/internal/store"
)

var (
	// ErrUnauthorized means the stored credentials were rejected; the user
	// must reconnect.
	ErrUnauthorized = errors.New("jira: unauthorized")
	// ErrForbidden means the user lacks permission for a specific action.
	ErrForbidden = errors.New("jira: forbidden")
)

// BridgeSender tunnels a serialized request to a remote add-on and returns
// its serialized response.
type BridgeSender interface {
	SendRequestAndWaitForResponse(ctx context.Context, peerID, payload string) (string, error)
}

// bridgeRequest is the HTTP-shaped payload relayed to a server add-on.
type bridgeRequest struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Body   string `json:"body,omitempty"`
}

type bridgeResponse struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body,omitempty"`
}

// Client talks to Jira Cloud directly and to Jira Server through the bridge,
// depending on the connection. Deliberately covers only the operations the
// dialogs use.
type Client struct {
	httpClient *http.Client
	bridge     BridgeSender
	logger     *slog.Logger
}

func NewClient(timeout time.Duration, bridge BridgeSender, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		bridge:     bridge,
		logger:     logger,
	}
}

// Myself validates a connection by fetching the authenticated user.
func (c *Client) Myself(ctx context.Context, conn store.Connection) (User, error) {
	var user User
	if err := c.do(ctx, conn, http.MethodGet, "/rest/api/2/myself", nil, &user); err != nil {
		return User{}, err
	}
	return user, nil
}

func (c *Client) Issue(ctx context.Context, conn store.Connection, key string) (Issue, error) {
	var issue Issue
	path := "/rest/api/2/issue/" + url.PathEscape(strings.TrimSpace(key))
	if err := c.do(ctx, conn, http.MethodGet, path, nil, &issue); err != nil {
		return Issue{}, err
	}
	return issue, nil
}

func (c *Client) Search(ctx context.Context, conn store.Connection, jql string, limit int) (SearchResult, error) {
	if limit < 1 {
		limit = 10
	}
	var result SearchResult
	path := fmt.Sprintf("/rest/api/2/search?maxResults=%d&jql=%s", limit, url.QueryEscape(jql))
	if err := c.do(ctx, conn, http.MethodGet, path, nil, &result); err != nil {
		return SearchResult{}, err
	}
	return result, nil
}

func (c *Client) AddComment(ctx context.Context, conn store.Connection, key, body string) error {
	path := "/rest/api/2/issue/" + url.PathEscape(strings.TrimSpace(key)) + "/comment"
	payload := map[string]string{"body": body}
	return c.do(ctx, conn, http.MethodPost, path, payload, nil)
}

func (c *Client) CreateIssue(ctx context.Context, conn store.Connection, input CreateIssueInput) (Issue, error) {
	issueType := strings.TrimSpace(input.IssueType)
	if issueType == "" {
		issueType = "Task"
	}
	request := createIssueRequest{
		Fields: createIssueFields{
			Project:     projectRef{Key: strings.TrimSpace(input.ProjectKey)},
			Summary:     strings.TrimSpace(input.Summary),
			Description: strings.TrimSpace(input.Description),
			IssueType:   Named{Name: issueType},
		},
	}
	var created createdIssue
	if err := c.do(ctx, conn, http.MethodPost, "/rest/api/2/issue", request, &created); err != nil {
		return Issue{}, err
	}
	return c.Issue(ctx, conn, created.Key)
}

func (c *Client) Watch(ctx context.Context, conn store.Connection, key string) error {
	path := "/rest/api/2/issue/" + url.PathEscape(strings.TrimSpace(key)) + "/watchers"
	return c.do(ctx, conn, http.MethodPost, path, nil, nil)
}

func (c *Client) Unwatch(ctx context.Context, conn store.Connection, key string) error {
	identifier := strings.TrimSpace(conn.JiraAccount)
	path := "/rest/api/2/issue/" + url.PathEscape(strings.TrimSpace(key)) + "/watchers?accountId=" + url.QueryEscape(identifier)
	if conn.Kind == store.ConnectionKindServer {
		path = "/rest/api/2/issue/" + url.PathEscape(strings.TrimSpace(key)) + "/watchers?username=" + url.QueryEscape(identifier)
	}
	return c.do(ctx, conn, http.MethodDelete, path, nil, nil)
}

func (c *Client) do(ctx context.Context, conn store.Connection, method, path string, body, out any) error {
	if conn.Kind == store.ConnectionKindServer && conn.PeerID != "" {
		return c.doBridged(ctx, conn, method, path, body, out)
	}
	return c.doDirect(ctx, conn, method, path, body, out)
}

func (c *Client) doDirect(ctx context.Context, conn store.Connection, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode jira request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(conn.BaseURL, "/")+path, reader)
	if err != nil {
		return fmt.Errorf("build jira request: %w", err)
	}
	request.SetBasicAuth(conn.Username, conn.Token)
	request.Header.Set("Accept", "application/json")
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("jira request failed: %w", err)
	}
	defer response.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(response.Body, 1<<20))
	return decodeResponse(response.StatusCode, raw, out)
}

func (c *Client) doBridged(ctx context.Context, conn store.Connection, method, path string, body, out any) error {
	request := bridgeRequest{Method: method, Path: path}
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode bridged request: %w", err)
		}
		request.Body = string(encoded)
	}
	payload, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("encode bridge payload: %w", err)
	}

	answer, err := c.bridge.SendRequestAndWaitForResponse(ctx, conn.PeerID, string(payload))
	if err != nil {
		return err
	}

	var response bridgeResponse
	if err := json.Unmarshal([]byte(answer), &response); err != nil {
		return fmt.Errorf("decode bridge response: %w", err)
	}
	return decodeResponse(response.StatusCode, []byte(response.Body), out)
}

func decodeResponse(statusCode int, raw []byte, out any) error {
	switch {
	case statusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case statusCode == http.StatusForbidden:
		message := errorMessage(raw)
		if message == "" {
			message = "You do not have permission to do that in Jira."
		}
		return fmt.Errorf("%w: %s", ErrForbidden, message)
	case statusCode >= 400:
		message := errorMessage(raw)
		if message == "" {
			message = http.StatusText(statusCode)
		}
		return fmt.Errorf("jira returned %d: %s", statusCode, message)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode jira response: %w", err)
	}
	return nil
}

func errorMessage(raw []byte) string {
	var parsed errorBody
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return ""
	}
	if len(parsed.ErrorMessages) > 0 {
		return strings.Join(parsed.ErrorMessages, " ")
	}
	for _, message := range parsed.Errors {
		return message
	}
	return ""
}
