package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type fakeDirectory struct {
	mu         sync.Mutex
	known      map[string]string
	sent       []Envelope
	sendErr    error
	onSend     func(correlationID, payload string)
	sentByCorr map[string]string
}

func newFakeDirectory(peers ...string) *fakeDirectory {
	directory := &fakeDirectory{
		known:      map[string]string{},
		sentByCorr: map[string]string{},
	}
	for _, peer := range peers {
		directory.known[peer] = "conn-" + peer
	}
	return directory
}

func (f *fakeDirectory) ResolveConnection(peerID string) (string, bool) {
	connectionID, ok := f.known[peerID]
	return connectionID, ok
}

func (f *fakeDirectory) Send(ctx context.Context, connectionID, correlationID, payload string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.mu.Lock()
	f.sent = append(f.sent, Envelope{Type: envelopeRequest, CorrelationID: correlationID, Payload: payload})
	f.sentByCorr[correlationID] = payload
	f.mu.Unlock()
	if f.onSend != nil {
		f.onSend(correlationID, payload)
	}
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSendRequestResolvesOnCallback(t *testing.T) {
	directory := newFakeDirectory("peer-1")
	table := NewTable()
	b := New(directory, table, 5*time.Second, testLogger())
	directory.onSend = func(correlationID, payload string) {
		go b.Callback(correlationID, "reply:"+payload)
	}

	response, err := b.SendRequestAndWaitForResponse(context.Background(), "peer-1", "GET /issue/DEMO-1")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if response != "reply:GET /issue/DEMO-1" {
		t.Fatalf("unexpected response: %s", response)
	}
	if table.Len() != 0 {
		t.Fatalf("expected empty correlation table, got %d entries", table.Len())
	}
}

func TestUnknownPeerFailsImmediately(t *testing.T) {
	table := NewTable()
	b := New(newFakeDirectory(), table, 5*time.Second, testLogger())

	started := time.Now()
	_, err := b.SendRequestAndWaitForResponse(context.Background(), "nobody", "payload")
	var peerErr *PeerError
	if !errors.As(err, &peerErr) {
		t.Fatalf("expected PeerError, got %v", err)
	}
	if elapsed := time.Since(started); elapsed > time.Second {
		t.Fatalf("unknown peer must fail without waiting, took %s", elapsed)
	}
	if table.Len() != 0 {
		t.Fatal("no correlation entry may be created for an unknown peer")
	}
}

func TestTimeoutLeavesNoResidualEntry(t *testing.T) {
	directory := newFakeDirectory("peer-1")
	table := NewTable()
	b := New(directory, table, 50*time.Millisecond, testLogger())

	_, err := b.SendRequestAndWaitForResponse(context.Background(), "peer-1", "payload")
	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	if timeoutErr.PeerID != "peer-1" {
		t.Fatalf("unexpected peer in timeout error: %s", timeoutErr.PeerID)
	}
	if table.Len() != 0 {
		t.Fatalf("expected no residual entries, got %d", table.Len())
	}
}

func TestLateCallbackAfterTimeoutIsIgnored(t *testing.T) {
	directory := newFakeDirectory("peer-1")
	table := NewTable()
	b := New(directory, table, 20*time.Millisecond, testLogger())

	_, err := b.SendRequestAndWaitForResponse(context.Background(), "peer-1", "payload")
	if err == nil {
		t.Fatal("expected timeout")
	}
	if len(directory.sent) != 1 {
		t.Fatalf("expected one dispatched request, got %d", len(directory.sent))
	}
	// Must not panic or resurrect the entry.
	b.Callback(directory.sent[0].CorrelationID, "too late")
	b.Callback("never-issued", "bogus")
	if table.Len() != 0 {
		t.Fatalf("expected empty table, got %d", table.Len())
	}
}

func TestSendFailureRemovesEntry(t *testing.T) {
	directory := newFakeDirectory("peer-1")
	directory.sendErr = errors.New("socket gone")
	table := NewTable()
	b := New(directory, table, time.Second, testLogger())

	if _, err := b.SendRequestAndWaitForResponse(context.Background(), "peer-1", "payload"); err == nil {
		t.Fatal("expected send failure")
	}
	if table.Len() != 0 {
		t.Fatalf("expected entry removed after send failure, got %d", table.Len())
	}
}

func TestContextCancellationHonored(t *testing.T) {
	directory := newFakeDirectory("peer-1")
	table := NewTable()
	b := New(directory, table, time.Minute, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := b.SendRequestAndWaitForResponse(ctx, "peer-1", "payload")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if table.Len() != 0 {
		t.Fatalf("expected entry removed on cancellation, got %d", table.Len())
	}
}

func TestConcurrentRequestsEachGetOwnResponse(t *testing.T) {
	directory := newFakeDirectory("peer-1")
	table := NewTable()
	b := New(directory, table, 5*time.Second, testLogger())
	directory.onSend = func(correlationID, payload string) {
		// Answer out of order and concurrently.
		go func() {
			time.Sleep(time.Duration(len(payload)%7) * time.Millisecond)
			b.Callback(correlationID, "echo:"+payload)
		}()
	}

	const workers = 64
	var group sync.WaitGroup
	failures := make(chan error, workers)
	for index := 0; index < workers; index++ {
		group.Add(1)
		go func(index int) {
			defer group.Done()
			payload := fmt.Sprintf("request-%d", index)
			response, err := b.SendRequestAndWaitForResponse(context.Background(), "peer-1", payload)
			if err != nil {
				failures <- err
				return
			}
			if response != "echo:"+payload {
				failures <- fmt.Errorf("waiter %d received %q", index, response)
			}
		}(index)
	}
	group.Wait()
	close(failures)
	for err := range failures {
		t.Fatal(err)
	}
	if table.Len() != 0 {
		t.Fatalf("expected empty table after all waiters resolved, got %d", table.Len())
	}
}
