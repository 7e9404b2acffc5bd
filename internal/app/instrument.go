package app

import (
	"context"
	"errors"
	"time"

	"github.com/dwizi/jira-bridge/internal/bridge"
	"github.com/dwizi/jira-bridge/internal/dialog"
	"github.com/dwizi/jira-bridge/internal/metrics"
)

// measuredDispatcher counts turns by result around the real dispatcher.
type measuredDispatcher struct {
	next    *dialog.Dispatcher
	metrics *metrics.Metrics
}

func (d *measuredDispatcher) OnTurn(ctx context.Context, turn *dialog.Turn) error {
	err := d.next.OnTurn(ctx, turn)
	result := "ok"
	if err != nil {
		result = "error"
	}
	d.metrics.TurnsTotal.WithLabelValues(result).Inc()
	return err
}

// measuredBridge tracks tunneled request results and round-trip latency.
type measuredBridge struct {
	next    *bridge.Bridge
	metrics *metrics.Metrics
}

func (b *measuredBridge) SendRequestAndWaitForResponse(ctx context.Context, peerID, payload string) (string, error) {
	started := time.Now()
	response, err := b.next.SendRequestAndWaitForResponse(ctx, peerID, payload)
	b.metrics.BridgeRoundTrip.Observe(time.Since(started).Seconds())
	b.metrics.BridgeRequests.WithLabelValues(bridgeResult(err)).Inc()
	return response, err
}

func bridgeResult(err error) string {
	var peerErr *bridge.PeerError
	var timeoutErr *bridge.TimeoutError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &peerErr):
		return "no_peer"
	case errors.As(err, &timeoutErr):
		return "timeout"
	default:
		return "error"
	}
}
