package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type fakeWaiters struct{ n int }

func (f fakeWaiters) Len() int { return f.n }

type fakePeers struct{ ids []string }

func (f fakePeers) ConnectedPeers() []string { return f.ids }

func TestHandlerExposesCollectors(t *testing.T) {
	m := New(fakeWaiters{n: 3}, fakePeers{ids: []string{"addon-1", "addon-2"}})
	m.TurnsTotal.WithLabelValues("ok").Inc()
	m.BridgeRequests.WithLabelValues("timeout").Inc()
	m.BridgeRoundTrip.Observe(0.42)

	recorder := httptest.NewRecorder()
	m.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	body := recorder.Body.String()
	for _, want := range []string{
		`jirabridge_turns_total{result="ok"} 1`,
		`jirabridge_bridge_requests_total{result="timeout"} 1`,
		"jirabridge_bridge_waiters 3",
		"jirabridge_bridge_peers 2",
		"jirabridge_bridge_round_trip_seconds_count 1",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in exposition, got:\n%s", want, body)
		}
	}
}
