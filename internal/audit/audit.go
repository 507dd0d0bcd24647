package audit

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Delivery statuses recorded per attempt.
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Entry records one notification delivery attempt. For device channel
// rows RecipientID holds the device id.
type Entry struct {
	ID             string
	NotificationID string
	Kind           string
	RecipientID    string
	ChildID        string
	Channel        string
	Status         string
	Error          string
	DedupKey       string
	CreatedAt      time.Time
}

// Logger writes delivery entries.
type Logger interface {
	Record(ctx context.Context, entry Entry) error
}

// NewID generates a random delivery id.
func NewID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return "delivery-" + hex.EncodeToString(buf)
}
