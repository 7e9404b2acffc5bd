// Package httpapi wires the bot's HTTP surface: the Bot Framework messages
// endpoint, the add-on bridge socket, peer administration, and the health
// and metrics probes.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dwizi/jira-bridge/internal/config"
	"github.com/dwizi/jira-bridge/internal/dialog"
	"github.com/dwizi/jira-bridge/internal/store"
)

// TurnHandler handles one inbound conversation turn.
type TurnHandler interface {
	OnTurn(ctx context.Context, turn *dialog.Turn) error
}

type Dependencies struct {
	Config     config.Config
	Store      *store.Store
	Dispatcher TurnHandler
	// BridgeSocket serves the add-on websocket upgrade.
	BridgeSocket http.HandlerFunc
	// Metrics serves the Prometheus exposition endpoint.
	Metrics http.Handler
	// ConnectedPeers reports the add-on peers with a live socket.
	ConnectedPeers func() []string
	Teams          ReplyClient
	Logger         *slog.Logger
}

type router struct {
	deps Dependencies
}

func NewRouter(deps Dependencies) http.Handler {
	rt := &router{deps: deps}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.handleHealth)
	mux.HandleFunc("/readyz", rt.handleReady)
	mux.HandleFunc("/api/v1/info", rt.handleInfo)
	mux.HandleFunc("/api/messages", rt.handleMessages)
	mux.HandleFunc("/api/v1/peers", rt.handlePeers)
	if deps.BridgeSocket != nil {
		mux.HandleFunc("/bridge/socket", deps.BridgeSocket)
	}
	if deps.Metrics != nil {
		mux.Handle("/metrics", deps.Metrics)
	}
	return mux
}

func (r *router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *router) handleReady(w http.ResponseWriter, req *http.Request) {
	if err := r.deps.Store.Ping(req.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not-ready", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (r *router) handleInfo(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        "jira-bridge",
		"environment": r.deps.Config.Environment,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
