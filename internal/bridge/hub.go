package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	envelopeRequest  = "request"
	envelopeResponse = "response"
)

// Envelope is the wire frame exchanged with a connected add-on. Payload is
// opaque to the bridge.
type Envelope struct {
	Type          string `json:"type"`
	CorrelationID string `json:"correlationId"`
	Payload       string `json:"payload"`
}

// PeerAuth verifies an add-on key and shared secret before the socket is
// accepted.
type PeerAuth interface {
	VerifyPeer(ctx context.Context, key, secret string) error
}

type peerSession struct {
	peerID       string
	connectionID string
	conn         *websocket.Conn
	writeMu      sync.Mutex
}

func (s *peerSession) writeJSON(value any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(value)
}

// Hub owns the websocket sessions of connected Jira Server add-ons and acts
// as the bridge's connection directory. One live session per peer id; a new
// connection for the same peer displaces the old one.
type Hub struct {
	auth         PeerAuth
	callback     func(correlationID, payload string)
	logger       *slog.Logger
	pingInterval time.Duration
	maxPayload   int64
	upgrader     websocket.Upgrader

	mu    sync.Mutex
	peers map[string]*peerSession
	conns map[string]*peerSession
}

func NewHub(auth PeerAuth, pingInterval time.Duration, maxPayload int64, logger *slog.Logger) *Hub {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	if maxPayload <= 0 {
		maxPayload = 1 << 20
	}
	return &Hub{
		auth:         auth,
		logger:       logger,
		pingInterval: pingInterval,
		maxPayload:   maxPayload,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		peers: make(map[string]*peerSession),
		conns: make(map[string]*peerSession),
	}
}

// SetCallback wires the response path. Must be set before the first upgrade.
func (h *Hub) SetCallback(callback func(correlationID, payload string)) {
	h.callback = callback
}

// ResolveConnection implements Directory.
func (h *Hub) ResolveConnection(peerID string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	session, ok := h.peers[strings.TrimSpace(peerID)]
	if !ok {
		return "", false
	}
	return session.connectionID, true
}

// Send implements Directory.
func (h *Hub) Send(ctx context.Context, connectionID, correlationID, payload string) error {
	h.mu.Lock()
	session, ok := h.conns[connectionID]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("connection %q is gone", connectionID)
	}
	return session.writeJSON(Envelope{
		Type:          envelopeRequest,
		CorrelationID: correlationID,
		Payload:       payload,
	})
}

// ConnectedPeers lists the peer ids with a live session.
func (h *Hub) ConnectedPeers() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]string, 0, len(h.peers))
	for id := range h.peers {
		ids = append(ids, id)
	}
	return ids
}

// HandleUpgrade authenticates and upgrades an add-on socket, then serves its
// read loop until the connection drops or the request context ends.
func (h *Hub) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.Header.Get("X-Addon-Key"))
	secret := strings.TrimSpace(r.Header.Get("X-Addon-Secret"))
	if key == "" {
		key = strings.TrimSpace(r.URL.Query().Get("key"))
		secret = strings.TrimSpace(r.URL.Query().Get("secret"))
	}
	if err := h.auth.VerifyPeer(r.Context(), key, secret); err != nil {
		h.logger.Warn("add-on socket rejected", "peer_id", key, "error", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "peer_id", key, "error", err)
		return
	}

	session := &peerSession{
		peerID:       key,
		connectionID: uuid.NewString(),
		conn:         conn,
	}
	h.register(session)
	h.logger.Info("add-on connected", "peer_id", key, "connection_id", session.connectionID)

	pingCtx, cancelPing := context.WithCancel(r.Context())
	go h.pingLoop(pingCtx, session)

	h.readLoop(session)

	cancelPing()
	h.deregister(session)
	conn.Close()
	h.logger.Info("add-on disconnected", "peer_id", key, "connection_id", session.connectionID)
}

func (h *Hub) register(session *peerSession) {
	h.mu.Lock()
	previous, ok := h.peers[session.peerID]
	h.peers[session.peerID] = session
	h.conns[session.connectionID] = session
	h.mu.Unlock()
	if ok {
		// Newest connection wins; closing the old socket ends its read loop.
		previous.conn.Close()
	}
}

func (h *Hub) deregister(session *peerSession) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if current, ok := h.peers[session.peerID]; ok && current.connectionID == session.connectionID {
		delete(h.peers, session.peerID)
	}
	delete(h.conns, session.connectionID)
}

func (h *Hub) readLoop(session *peerSession) {
	session.conn.SetReadLimit(h.maxPayload)
	deadline := 2 * h.pingInterval
	_ = session.conn.SetReadDeadline(time.Now().Add(deadline))
	session.conn.SetPongHandler(func(string) error {
		return session.conn.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		_, raw, err := session.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("add-on socket read failed", "peer_id", session.peerID, "error", err)
			}
			return
		}
		_ = session.conn.SetReadDeadline(time.Now().Add(deadline))

		var envelope Envelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			h.logger.Warn("malformed add-on frame", "peer_id", session.peerID, "error", err)
			continue
		}
		switch envelope.Type {
		case envelopeResponse:
			if h.callback != nil {
				h.callback(envelope.CorrelationID, envelope.Payload)
			}
		default:
			h.logger.Warn("unexpected add-on frame type", "peer_id", session.peerID, "type", envelope.Type)
		}
	}
}

func (h *Hub) pingLoop(ctx context.Context, session *peerSession) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			session.writeMu.Lock()
			err := session.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			session.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
