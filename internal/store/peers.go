package store

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrPeerNotFound = errors.New("peer not found")

// Peer is a registered Jira Server add-on allowed to open a bridge socket.
type Peer struct {
	Key         string
	DisplayName string
	CreatedAt   time.Time
}

func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func (s *Store) RegisterPeer(ctx context.Context, key, secret, displayName string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("peer key is required")
	}
	if strings.TrimSpace(secret) == "" {
		return fmt.Errorf("peer secret is required")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO peers (key, secret_hash, display_name, created_at_unix)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			secret_hash = excluded.secret_hash,
			display_name = excluded.display_name`,
		key,
		hashSecret(secret),
		nullIfEmpty(strings.TrimSpace(displayName)),
		time.Now().UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("register peer: %w", err)
	}
	return nil
}

// VerifyPeer implements bridge.PeerAuth.
func (s *Store) VerifyPeer(ctx context.Context, key, secret string) error {
	row := s.db.QueryRowContext(ctx, `SELECT secret_hash FROM peers WHERE key = ?`, strings.TrimSpace(key))
	var storedHash string
	err := row.Scan(&storedHash)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrPeerNotFound
	}
	if err != nil {
		return fmt.Errorf("verify peer: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(storedHash), []byte(hashSecret(secret))) != 1 {
		return fmt.Errorf("peer secret mismatch for %q", strings.TrimSpace(key))
	}
	return nil
}

func (s *Store) ListPeers(ctx context.Context) ([]Peer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, display_name, created_at_unix FROM peers ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list peers: %w", err)
	}
	defer rows.Close()

	var peers []Peer
	for rows.Next() {
		var peer Peer
		var displayName sql.NullString
		var createdAtUnix int64
		if err := rows.Scan(&peer.Key, &displayName, &createdAtUnix); err != nil {
			return nil, fmt.Errorf("scan peer: %w", err)
		}
		peer.DisplayName = displayName.String
		peer.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
		peers = append(peers, peer)
	}
	return peers, rows.Err()
}
