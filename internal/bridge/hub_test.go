package bridge

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type fakePeerAuth struct{ secret string }

func (f fakePeerAuth) VerifyPeer(ctx context.Context, key, secret string) error {
	if key == "" || secret != f.secret {
		return errors.New("bad credentials")
	}
	return nil
}

func dialHub(t *testing.T, server *httptest.Server, key, secret string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	header := http.Header{}
	header.Set("X-Addon-Key", key)
	header.Set("X-Addon-Secret", secret)
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial hub: %v", err)
	}
	return conn
}

func waitFor(t *testing.T, condition func() bool, message string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(message)
}

func TestHubRejectsBadSecret(t *testing.T) {
	hub := NewHub(fakePeerAuth{secret: "s3cret"}, time.Second, 0, testLogger())
	server := httptest.NewServer(http.HandlerFunc(hub.HandleUpgrade))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	header := http.Header{}
	header.Set("X-Addon-Key", "addon-1")
	header.Set("X-Addon-Secret", "wrong")
	_, response, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if response == nil || response.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", response)
	}
}

func TestHubRoutesResponsesToCallback(t *testing.T) {
	hub := NewHub(fakePeerAuth{secret: "s3cret"}, time.Second, 0, testLogger())
	received := make(chan Envelope, 1)
	hub.SetCallback(func(correlationID, payload string) {
		received <- Envelope{CorrelationID: correlationID, Payload: payload}
	})
	server := httptest.NewServer(http.HandlerFunc(hub.HandleUpgrade))
	defer server.Close()

	conn := dialHub(t, server, "addon-1", "s3cret")
	defer conn.Close()

	waitFor(t, func() bool {
		_, ok := hub.ResolveConnection("addon-1")
		return ok
	}, "peer never registered")

	connectionID, _ := hub.ResolveConnection("addon-1")
	if err := hub.Send(context.Background(), connectionID, "corr-1", `{"method":"GET"}`); err != nil {
		t.Fatalf("send: %v", err)
	}

	var request Envelope
	if err := conn.ReadJSON(&request); err != nil {
		t.Fatalf("read request frame: %v", err)
	}
	if request.Type != envelopeRequest || request.CorrelationID != "corr-1" {
		t.Fatalf("unexpected request frame: %+v", request)
	}

	if err := conn.WriteJSON(Envelope{Type: envelopeResponse, CorrelationID: "corr-1", Payload: `{"statusCode":200}`}); err != nil {
		t.Fatalf("write response frame: %v", err)
	}

	select {
	case envelope := <-received:
		if envelope.CorrelationID != "corr-1" || envelope.Payload != `{"statusCode":200}` {
			t.Fatalf("unexpected callback: %+v", envelope)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("callback never fired")
	}
}

func TestHubDeregistersOnDisconnect(t *testing.T) {
	hub := NewHub(fakePeerAuth{secret: "s3cret"}, time.Second, 0, testLogger())
	server := httptest.NewServer(http.HandlerFunc(hub.HandleUpgrade))
	defer server.Close()

	conn := dialHub(t, server, "addon-1", "s3cret")
	waitFor(t, func() bool {
		_, ok := hub.ResolveConnection("addon-1")
		return ok
	}, "peer never registered")

	conn.Close()
	waitFor(t, func() bool {
		_, ok := hub.ResolveConnection("addon-1")
		return !ok
	}, "peer never deregistered")
}

func TestHubNewestConnectionWins(t *testing.T) {
	hub := NewHub(fakePeerAuth{secret: "s3cret"}, time.Second, 0, testLogger())
	server := httptest.NewServer(http.HandlerFunc(hub.HandleUpgrade))
	defer server.Close()

	first := dialHub(t, server, "addon-1", "s3cret")
	defer first.Close()
	waitFor(t, func() bool {
		_, ok := hub.ResolveConnection("addon-1")
		return ok
	}, "first session never registered")
	firstID, _ := hub.ResolveConnection("addon-1")

	second := dialHub(t, server, "addon-1", "s3cret")
	defer second.Close()
	waitFor(t, func() bool {
		currentID, ok := hub.ResolveConnection("addon-1")
		return ok && currentID != firstID
	}, "second session never displaced the first")
}
