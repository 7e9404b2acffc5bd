package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Connection kinds.
const (
	ConnectionKindCloud  = "cloud"
	ConnectionKindServer = "server"
)

var ErrConnectionNotFound = errors.New("jira connection not found")

// Connection binds a Teams user to a Jira site and the credentials or
// add-on peer used to reach it.
type Connection struct {
	UserID      string
	DisplayName string
	BaseURL     string
	Kind        string
	Username    string
	Token       string
	PeerID      string
	JiraAccount string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type SaveConnectionInput struct {
	UserID      string
	DisplayName string
	BaseURL     string
	Kind        string
	Username    string
	Token       string
	PeerID      string
	JiraAccount string
}

func (s *Store) SaveConnection(ctx context.Context, input SaveConnectionInput) error {
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return fmt.Errorf("connection user id is required")
	}
	nowUnix := time.Now().UTC().Unix()
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO connections (
			user_id, display_name, base_url, kind, username, token, peer_id, jira_account,
			created_at_unix, updated_at_unix
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			display_name = excluded.display_name,
			base_url = excluded.base_url,
			kind = excluded.kind,
			username = excluded.username,
			token = excluded.token,
			peer_id = excluded.peer_id,
			jira_account = excluded.jira_account,
			updated_at_unix = excluded.updated_at_unix`,
		userID,
		nullIfEmpty(strings.TrimSpace(input.DisplayName)),
		strings.TrimSpace(input.BaseURL),
		strings.TrimSpace(input.Kind),
		nullIfEmpty(strings.TrimSpace(input.Username)),
		nullIfEmpty(strings.TrimSpace(input.Token)),
		nullIfEmpty(strings.TrimSpace(input.PeerID)),
		nullIfEmpty(strings.TrimSpace(input.JiraAccount)),
		nowUnix,
		nowUnix,
	)
	if err != nil {
		return fmt.Errorf("save connection: %w", err)
	}
	return nil
}

func (s *Store) LookupConnection(ctx context.Context, userID string) (Connection, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT user_id, display_name, base_url, kind, username, token, peer_id, jira_account,
			created_at_unix, updated_at_unix
		FROM connections WHERE user_id = ?`,
		strings.TrimSpace(userID),
	)

	var connection Connection
	var displayName, username, token, peerID, jiraAccount sql.NullString
	var createdAtUnix, updatedAtUnix int64
	err := row.Scan(
		&connection.UserID,
		&displayName,
		&connection.BaseURL,
		&connection.Kind,
		&username,
		&token,
		&peerID,
		&jiraAccount,
		&createdAtUnix,
		&updatedAtUnix,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Connection{}, ErrConnectionNotFound
	}
	if err != nil {
		return Connection{}, fmt.Errorf("lookup connection: %w", err)
	}
	connection.DisplayName = displayName.String
	connection.Username = username.String
	connection.Token = token.String
	connection.PeerID = peerID.String
	connection.JiraAccount = jiraAccount.String
	connection.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
	connection.UpdatedAt = time.Unix(updatedAtUnix, 0).UTC()
	return connection, nil
}

func (s *Store) DeleteConnection(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM connections WHERE user_id = ?`, strings.TrimSpace(userID)); err != nil {
		return fmt.Errorf("delete connection: %w", err)
	}
	return nil
}

// Connected reports whether the user has a stored Jira connection.
func (s *Store) Connected(ctx context.Context, userID string) (bool, error) {
	_, err := s.LookupConnection(ctx, userID)
	if errors.Is(err, ErrConnectionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
