package audit

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Repository writes delivery logs to postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a delivery log repository.
func NewRepository(db *sql.DB) *Repository {
	if db == nil {
		return nil
	}
	return &Repository{db: db}
}

// Record writes a delivery entry.
func (r *Repository) Record(ctx context.Context, entry Entry) error {
	if r == nil || r.db == nil {
		return errors.New("audit repo: nil db")
	}
	if entry.ID == "" {
		entry.ID = NewID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO delivery_log (
	id, notification_id, kind, recipient_id, child_id, channel, status,
	error, dedup_key, created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)`, entry.ID, entry.NotificationID, entry.Kind, entry.RecipientID, entry.ChildID, entry.Channel, entry.Status,
		entry.Error, entry.DedupKey, entry.CreatedAt.UTC())
	return err
}
