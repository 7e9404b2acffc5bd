package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGraphNotifierPostsPayload(t *testing.T) {
	var capturedAuth string
	var captured Notification
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&captured)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	notifier := NewGraphNotifier(server.URL, func(ctx context.Context) (string, error) {
		return "graph-token", nil
	}, time.Second)

	err := notifier.Notify(context.Background(), Notification{
		UserID:  "user-1",
		Topic:   "issue-assigned",
		Message: "DEMO-1 was assigned to you",
		IssueID: "DEMO-1",
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if capturedAuth != "Bearer graph-token" {
		t.Fatalf("unexpected auth header: %s", capturedAuth)
	}
	if captured.Topic != "issue-assigned" || captured.IssueID != "DEMO-1" {
		t.Fatalf("unexpected payload: %+v", captured)
	}
}

func TestGraphNotifierRejectsFailureStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer server.Close()

	notifier := NewGraphNotifier(server.URL, nil, time.Second)
	if err := notifier.Notify(context.Background(), Notification{UserID: "u"}); err == nil {
		t.Fatal("expected error on 400")
	}
}

func TestGraphNotifierDisabledWithoutEndpoint(t *testing.T) {
	notifier := NewGraphNotifier("", nil, time.Second)
	if notifier.Enabled() {
		t.Fatal("expected disabled notifier")
	}
	if err := notifier.Notify(context.Background(), Notification{}); err == nil {
		t.Fatal("expected error when unconfigured")
	}
}
