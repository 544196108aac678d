package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	apperrors "exam-portal/errors"
	"exam-portal/models"

	"github.com/google/uuid"
)

// DLQRepository stores events that could not be published or processed.
type DLQRepository struct {
	db *sql.DB
}

func NewDLQRepository(db *sql.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// StoreDLQMessage stores a failed message and returns its id.
func (r *DLQRepository) StoreDLQMessage(ctx context.Context, topic, key string, value []byte, errorMsg string) (string, error) {
	id := uuid.NewString()

	// JSONB rejects non-JSON payloads; keep those as a JSON string.
	payload := value
	if !json.Valid(payload) {
		payload, _ = json.Marshal(string(value))
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO dlq_messages (message_id, topic, key, value, error_message, created_at)
		 VALUES ($1, $2, $3, $4::jsonb, $5, NOW())`,
		id, topic, key, string(payload), errorMsg)
	if err != nil {
		return "", apperrors.E(apperrors.Persistence, "error storing dlq message", err)
	}
	return id, nil
}

// GetDLQMessages returns unresolved messages, newest first.
func (r *DLQRepository) GetDLQMessages(ctx context.Context, limit int) ([]models.DLQMessage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT message_id, topic, COALESCE(key, ''), COALESCE(value::text, ''), COALESCE(error_message, ''), created_at
		 FROM dlq_messages WHERE resolved_at IS NULL ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, apperrors.E(apperrors.Persistence, "error listing dlq messages", err)
	}
	defer rows.Close()

	var out []models.DLQMessage
	for rows.Next() {
		var m models.DLQMessage
		if err := rows.Scan(&m.MessageID, &m.Topic, &m.Key, &m.Value, &m.ErrorMessage, &m.CreatedAt); err != nil {
			return nil, apperrors.E(apperrors.Persistence, "error scanning dlq message", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetDLQMessage loads one message by id.
func (r *DLQRepository) GetDLQMessage(ctx context.Context, messageID string) (*models.DLQMessage, error) {
	if _, err := uuid.Parse(messageID); err != nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("dlq message %s not found", messageID))
	}
	var (
		m          models.DLQMessage
		resolvedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT message_id, topic, COALESCE(key, ''), COALESCE(value::text, ''), COALESCE(error_message, ''), created_at, resolved_at
		 FROM dlq_messages WHERE message_id = $1`, messageID).
		Scan(&m.MessageID, &m.Topic, &m.Key, &m.Value, &m.ErrorMessage, &m.CreatedAt, &resolvedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("dlq message %s not found", messageID))
	}
	if err != nil {
		return nil, apperrors.E(apperrors.Persistence, "error loading dlq message", err)
	}
	if resolvedAt.Valid {
		m.ResolvedAt = &resolvedAt.Time
	}
	return &m, nil
}

// ResolveDLQMessage marks a message handled.
func (r *DLQRepository) ResolveDLQMessage(ctx context.Context, messageID, notes string) error {
	if _, err := uuid.Parse(messageID); err != nil {
		return apperrors.NewNotFoundError(fmt.Sprintf("dlq message %s not found", messageID))
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE dlq_messages SET resolved_at = NOW(), notes = $2 WHERE message_id = $1 AND resolved_at IS NULL`,
		messageID, notes)
	if err != nil {
		return apperrors.E(apperrors.Persistence, "error resolving dlq message", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.E(apperrors.Persistence, "error checking dlq update", err)
	}
	if rows == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("dlq message %s not found or already resolved", messageID))
	}
	return nil
}
