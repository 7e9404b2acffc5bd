package jira

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dwizi/jira-bridge/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func cloudConnection(baseURL string) store.Connection {
	return store.Connection{
		UserID:   "user-1",
		BaseURL:  baseURL,
		Kind:     store.ConnectionKindCloud,
		Username: "dana@example.com",
		Token:    "api-token",
	}
}

func TestIssueFetchCloud(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/2/issue/DEMO-1" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if username, password, _ := r.BasicAuth(); username != "dana@example.com" || password != "api-token" {
			t.Fatal("expected basic auth from connection")
		}
		_ = json.NewEncoder(w).Encode(Issue{Key: "DEMO-1", Fields: IssueFields{Summary: "Fix login"}})
	}))
	defer server.Close()

	client := NewClient(time.Second, nil, testLogger())
	issue, err := client.Issue(context.Background(), cloudConnection(server.URL), "DEMO-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if issue.Key != "DEMO-1" || issue.Fields.Summary != "Fix login" {
		t.Fatalf("unexpected issue: %+v", issue)
	}
}

func TestStatusMapping(t *testing.T) {
	status := http.StatusUnauthorized
	var body string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	client := NewClient(time.Second, nil, testLogger())
	conn := cloudConnection(server.URL)

	_, err := client.Myself(context.Background(), conn)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	status = http.StatusForbidden
	body = `{"errorMessages":["You cannot comment on DEMO-1."]}`
	err = client.AddComment(context.Background(), conn, "DEMO-1", "hi")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if got := err.Error(); got != "jira: forbidden: You cannot comment on DEMO-1." {
		t.Fatalf("expected verbatim jira message, got %q", got)
	}

	status = http.StatusNotFound
	body = `{"errorMessages":["Issue does not exist"]}`
	_, err = client.Issue(context.Background(), conn, "NOPE-1")
	if err == nil || errors.Is(err, ErrForbidden) || errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected plain error, got %v", err)
	}
}

type fakeBridge struct {
	lastPeer    string
	lastPayload string
	answer      string
	err         error
}

func (f *fakeBridge) SendRequestAndWaitForResponse(ctx context.Context, peerID, payload string) (string, error) {
	f.lastPeer = peerID
	f.lastPayload = payload
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func TestServerConnectionGoesThroughBridge(t *testing.T) {
	issueJSON, _ := json.Marshal(Issue{Key: "OPS-9", Fields: IssueFields{Summary: "Rotate certs"}})
	answer, _ := json.Marshal(bridgeResponse{StatusCode: 200, Body: string(issueJSON)})
	tunnel := &fakeBridge{answer: string(answer)}

	client := NewClient(time.Second, tunnel, testLogger())
	conn := store.Connection{
		UserID:  "user-1",
		BaseURL: "https://jira.internal.example.com",
		Kind:    store.ConnectionKindServer,
		PeerID:  "addon-1",
	}

	issue, err := client.Issue(context.Background(), conn, "OPS-9")
	if err != nil {
		t.Fatalf("issue via bridge: %v", err)
	}
	if issue.Fields.Summary != "Rotate certs" {
		t.Fatalf("unexpected issue: %+v", issue)
	}
	if tunnel.lastPeer != "addon-1" {
		t.Fatalf("expected peer addon-1, got %s", tunnel.lastPeer)
	}

	var relayed bridgeRequest
	if err := json.Unmarshal([]byte(tunnel.lastPayload), &relayed); err != nil {
		t.Fatalf("decode relayed payload: %v", err)
	}
	if relayed.Method != http.MethodGet || relayed.Path != "/rest/api/2/issue/OPS-9" {
		t.Fatalf("unexpected relayed request: %+v", relayed)
	}
}

func TestBridgeErrorsPropagate(t *testing.T) {
	tunnel := &fakeBridge{err: errors.New("add-on for peer \"addon-1\" is not responding")}
	client := NewClient(time.Second, tunnel, testLogger())
	conn := store.Connection{Kind: store.ConnectionKindServer, PeerID: "addon-1", BaseURL: "https://jira.internal"}

	if _, err := client.Issue(context.Background(), conn, "OPS-9"); err == nil {
		t.Fatal("expected bridge error to propagate")
	}
}
