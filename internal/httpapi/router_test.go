package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dwizi/jira-bridge/internal/config"
	"github.com/dwizi/jira-bridge/internal/dialog"
	"github.com/dwizi/jira-bridge/internal/store"
	"github.com/dwizi/jira-bridge/internal/teams"
)

type fakeDispatcher struct {
	turns []*dialog.Turn
	err   error
}

func (f *fakeDispatcher) OnTurn(_ context.Context, turn *dialog.Turn) error {
	f.turns = append(f.turns, turn)
	return f.err
}

type fakeReplyClient struct {
	sent []teams.Activity
}

func (f *fakeReplyClient) SendActivity(_ context.Context, activity teams.Activity) error {
	f.sent = append(f.sent, activity)
	return nil
}

func newTestRouter(t *testing.T) (http.Handler, *fakeDispatcher, *fakeReplyClient) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.AutoMigrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	dispatcher := &fakeDispatcher{}
	replies := &fakeReplyClient{}
	handler := NewRouter(Dependencies{
		Config:         config.Config{Environment: "test"},
		Store:          st,
		Dispatcher:     dispatcher,
		ConnectedPeers: func() []string { return []string{"addon-1"} },
		Teams:          replies,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return handler, dispatcher, replies
}

func TestHealthAndReady(t *testing.T) {
	handler, _, _ := newTestRouter(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, path, nil))
		if recorder.Code != http.StatusOK {
			t.Fatalf("%s returned %d", path, recorder.Code)
		}
	}
}

func TestMessagesDispatchesTurn(t *testing.T) {
	handler, dispatcher, _ := newTestRouter(t)

	body := `{
		"type": "message",
		"id": "act-1",
		"serviceUrl": "https://smba.example.com/emea",
		"from": {"id": "user-1", "name": "Dana"},
		"recipient": {"id": "bot-1"},
		"conversation": {"id": "conv-1", "isGroup": true},
		"text": "<at>Jira Bridge</at> show issue DEMO-1"
	}`
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader(body)))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body)
	}
	if len(dispatcher.turns) != 1 {
		t.Fatalf("expected one turn, got %d", len(dispatcher.turns))
	}
	turn := dispatcher.turns[0]
	if turn.Text != "show issue DEMO-1" {
		t.Fatalf("expected mention stripped, got %q", turn.Text)
	}
	if !turn.IsGroup || turn.UserID != "user-1" || turn.ConversationID != "conv-1" {
		t.Fatalf("unexpected turn %+v", turn)
	}
}

func TestMessagesIgnoresNonMessageActivities(t *testing.T) {
	handler, dispatcher, _ := newTestRouter(t)

	body := `{"type": "conversationUpdate", "conversation": {"id": "conv-1"}, "from": {"id": "user-1"}}`
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader(body)))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if len(dispatcher.turns) != 0 {
		t.Fatalf("expected no turns, got %d", len(dispatcher.turns))
	}
}

func TestMessagesResponderRepliesToSender(t *testing.T) {
	handler, dispatcher, replies := newTestRouter(t)

	body := `{
		"type": "message",
		"id": "act-1",
		"serviceUrl": "https://smba.example.com/emea",
		"from": {"id": "user-1"},
		"recipient": {"id": "bot-1"},
		"conversation": {"id": "conv-1"},
		"text": "help"
	}`
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader(body)))
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}

	if err := dispatcher.turns[0].Responder.SendText(context.Background(), "hello"); err != nil {
		t.Fatalf("send text: %v", err)
	}
	if len(replies.sent) != 1 {
		t.Fatalf("expected one reply, got %d", len(replies.sent))
	}
	reply := replies.sent[0]
	if reply.Recipient.ID != "user-1" || reply.From.ID != "bot-1" || reply.ReplyToID != "act-1" {
		t.Fatalf("unexpected reply addressing %+v", reply)
	}
}

func TestPeerRegistrationAndListing(t *testing.T) {
	handler, _, _ := newTestRouter(t)

	register := `{"key": "addon-1", "secret": "s3cret", "display_name": "Ops Jira"}`
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/peers", strings.NewReader(register)))
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body)
	}

	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/peers", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var payload struct {
		Peers []peerView `json:"peers"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Peers) != 1 {
		t.Fatalf("expected one peer, got %d", len(payload.Peers))
	}
	if payload.Peers[0].Key != "addon-1" || !payload.Peers[0].Connected {
		t.Fatalf("unexpected peer %+v", payload.Peers[0])
	}
}

func TestPeerRegistrationRequiresKeyAndSecret(t *testing.T) {
	handler, _, _ := newTestRouter(t)

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/peers", strings.NewReader(`{"key": "addon-1"}`)))
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}
