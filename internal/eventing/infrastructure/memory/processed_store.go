package memory

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ProcessedStore is an in-memory idempotency record. It guards consumers
// against double publication within one process lifetime.
type ProcessedStore struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

// NewProcessedStore constructs an empty store.
func NewProcessedStore() *ProcessedStore {
	return &ProcessedStore{seen: make(map[string]time.Time)}
}

// HasProcessed checks if event was already processed by the consumer.
func (s *ProcessedStore) HasProcessed(ctx context.Context, eventID, consumerName string) (bool, error) {
	_ = ctx
	if eventID == "" || consumerName == "" {
		return false, errors.New("processed store: invalid arguments")
	}
	s.mu.Lock()
	_, ok := s.seen[consumerName+"|"+eventID]
	s.mu.Unlock()
	return ok, nil
}

// MarkProcessed records an event as processed by the consumer.
func (s *ProcessedStore) MarkProcessed(ctx context.Context, eventID, consumerName string) error {
	_ = ctx
	if eventID == "" || consumerName == "" {
		return errors.New("processed store: invalid arguments")
	}
	s.mu.Lock()
	s.seen[consumerName+"|"+eventID] = time.Now().UTC()
	s.mu.Unlock()
	return nil
}
