// Package bridge relays HTTP-shaped Jira requests to remotely connected
// server add-ons and correlates their asynchronous replies.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Directory resolves a stable peer id to a live connection and delivers
// payloads to it.
type Directory interface {
	ResolveConnection(peerID string) (connectionID string, ok bool)
	Send(ctx context.Context, connectionID, correlationID, payload string) error
}

// PeerError reports a peer id with no live connection: a configuration
// problem, never retried here.
type PeerError struct{ PeerID string }

func (e *PeerError) Error() string {
	return fmt.Sprintf("no add-on connection for peer %q; check that the Jira Server add-on is installed and running", e.PeerID)
}

// TimeoutError reports that a connected peer did not answer in time.
type TimeoutError struct {
	PeerID        string
	CorrelationID string
	After         time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("add-on for peer %q is not responding (no reply within %s)", e.PeerID, e.After)
}

type pendingEntry struct {
	response  chan string
	createdAt time.Time
}

// Table is the shared correlation map. Insert and take are atomic, so a
// timeout removing an entry and a callback resolving it cannot both succeed.
type Table struct {
	mu      sync.Mutex
	entries map[string]*pendingEntry
}

func NewTable() *Table {
	return &Table{entries: make(map[string]*pendingEntry)}
}

func (t *Table) insert(correlationID string) *pendingEntry {
	entry := &pendingEntry{
		response:  make(chan string, 1),
		createdAt: time.Now().UTC(),
	}
	t.mu.Lock()
	t.entries[correlationID] = entry
	t.mu.Unlock()
	return entry
}

func (t *Table) take(correlationID string) (*pendingEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[correlationID]
	if ok {
		delete(t.entries, correlationID)
	}
	return entry, ok
}

// Len reports the number of in-flight requests.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Bridge sends requests to addressed peers and waits for correlated replies.
type Bridge struct {
	directory Directory
	table     *Table
	timeout   time.Duration
	logger    *slog.Logger
}

func New(directory Directory, table *Table, timeout time.Duration, logger *slog.Logger) *Bridge {
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	return &Bridge{
		directory: directory,
		table:     table,
		timeout:   timeout,
		logger:    logger,
	}
}

// SendRequestAndWaitForResponse dispatches the payload to the peer's live
// connection and blocks until the peer's callback, the timeout, or context
// cancellation, whichever comes first.
func (b *Bridge) SendRequestAndWaitForResponse(ctx context.Context, peerID, payload string) (string, error) {
	connectionID, ok := b.directory.ResolveConnection(peerID)
	if !ok {
		return "", &PeerError{PeerID: peerID}
	}

	correlationID := uuid.NewString()
	entry := b.table.insert(correlationID)

	if err := b.directory.Send(ctx, connectionID, correlationID, payload); err != nil {
		b.table.take(correlationID)
		return "", fmt.Errorf("send request to peer %q: %w", peerID, err)
	}

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case response := <-entry.response:
		return response, nil
	case <-timer.C:
		b.table.take(correlationID)
		err := &TimeoutError{PeerID: peerID, CorrelationID: correlationID, After: b.timeout}
		b.logger.Error("bridge request timed out",
			"peer_id", peerID,
			"correlation_id", correlationID,
			"timeout", b.timeout.String())
		return "", err
	case <-ctx.Done():
		b.table.take(correlationID)
		return "", ctx.Err()
	}
}

// Callback resolves the pending request for a correlation id. Unknown or
// already-resolved ids are logged and ignored.
func (b *Bridge) Callback(correlationID, payload string) {
	entry, ok := b.table.take(correlationID)
	if !ok {
		b.logger.Warn("callback for untracked correlation id", "correlation_id", correlationID)
		return
	}
	entry.response <- payload
}
