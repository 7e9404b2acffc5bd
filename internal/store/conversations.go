package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dwizi/jira-bridge/internal/dialog"
)

// LookupDialogState implements dialog.StateStore.
func (s *Store) LookupDialogState(ctx context.Context, conversationID string) (dialog.State, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT dialog, step, payload_json FROM conversation_state WHERE conversation_id = ?`,
		strings.TrimSpace(conversationID),
	)

	var state dialog.State
	var step, payload sql.NullString
	err := row.Scan(&state.Dialog, &step, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return dialog.State{}, false, nil
	}
	if err != nil {
		return dialog.State{}, false, fmt.Errorf("lookup dialog state: %w", err)
	}
	state.Step = step.String
	if payload.Valid && payload.String != "" {
		state.Payload = json.RawMessage(payload.String)
	}
	return state, true, nil
}

// SaveDialogState implements dialog.StateStore.
func (s *Store) SaveDialogState(ctx context.Context, conversationID string, state dialog.State) error {
	payload := ""
	if len(state.Payload) > 0 {
		payload = string(state.Payload)
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO conversation_state (conversation_id, dialog, step, payload_json, updated_at_unix)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			dialog = excluded.dialog,
			step = excluded.step,
			payload_json = excluded.payload_json,
			updated_at_unix = excluded.updated_at_unix`,
		strings.TrimSpace(conversationID),
		state.Dialog,
		nullIfEmpty(state.Step),
		nullIfEmpty(payload),
		time.Now().UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("save dialog state: %w", err)
	}
	return nil
}

// ClearDialogState implements dialog.StateStore.
func (s *Store) ClearDialogState(ctx context.Context, conversationID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversation_state WHERE conversation_id = ?`, strings.TrimSpace(conversationID)); err != nil {
		return fmt.Errorf("clear dialog state: %w", err)
	}
	return nil
}

// PurgeStaleDialogState removes suspended dialogs that have not advanced
// since the cutoff. Abandoned multi-step flows otherwise pin their
// conversations forever.
func (s *Store) PurgeStaleDialogState(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(
		ctx,
		`DELETE FROM conversation_state WHERE updated_at_unix < ?`,
		olderThan.UTC().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("purge stale dialog state: %w", err)
	}
	purged, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return purged, nil
}
