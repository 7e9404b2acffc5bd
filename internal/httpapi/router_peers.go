package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

type registerPeerRequest struct {
	Key         string `json:"key"`
	Secret      string `json:"secret"`
	DisplayName string `json:"display_name"`
}

type peerView struct {
	Key         string `json:"key"`
	DisplayName string `json:"display_name,omitempty"`
	CreatedAt   string `json:"created_at"`
	Connected   bool   `json:"connected"`
}

// handlePeers registers Jira Server add-ons (POST) and lists them with their
// connection status (GET).
func (r *router) handlePeers(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodPost:
		r.handlePeerRegister(w, req)
	case http.MethodGet:
		r.handlePeerList(w, req)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (r *router) handlePeerRegister(w http.ResponseWriter, req *http.Request) {
	var payload registerPeerRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if strings.TrimSpace(payload.Key) == "" || strings.TrimSpace(payload.Secret) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "key and secret are required"})
		return
	}

	if err := r.deps.Store.RegisterPeer(req.Context(), payload.Key, payload.Secret, payload.DisplayName); err != nil {
		r.deps.Logger.Error("peer registration failed", "peer_key", payload.Key, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "registration failed"})
		return
	}
	r.deps.Logger.Info("peer registered", "peer_key", payload.Key)
	writeJSON(w, http.StatusCreated, map[string]string{"status": "registered"})
}

func (r *router) handlePeerList(w http.ResponseWriter, req *http.Request) {
	peers, err := r.deps.Store.ListPeers(req.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list failed"})
		return
	}

	connected := make(map[string]bool)
	if r.deps.ConnectedPeers != nil {
		for _, id := range r.deps.ConnectedPeers() {
			connected[id] = true
		}
	}

	views := make([]peerView, 0, len(peers))
	for _, peer := range peers {
		views = append(views, peerView{
			Key:         peer.Key,
			DisplayName: peer.DisplayName,
			CreatedAt:   peer.CreatedAt.UTC().Format(time.RFC3339),
			Connected:   connected[peer.Key],
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"peers": views})
}
