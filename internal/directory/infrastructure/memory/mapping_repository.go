package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	directory "child-monitoring/internal/directory/domain"
)

// MappingRepository is an in-memory recipient mapping store.
type MappingRepository struct {
	mu      sync.RWMutex
	byChild map[string]map[string]directory.RecipientMapping
}

// NewMappingRepository constructs an empty repository.
func NewMappingRepository() *MappingRepository {
	return &MappingRepository{byChild: make(map[string]map[string]directory.RecipientMapping)}
}

// ListByChild returns every mapping for a child ordered by recipient.
func (r *MappingRepository) ListByChild(ctx context.Context, childID string) ([]directory.RecipientMapping, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	byRecipient := r.byChild[childID]
	result := make([]directory.RecipientMapping, 0, len(byRecipient))
	for _, mapping := range byRecipient {
		result = append(result, mapping)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].RecipientID < result[j].RecipientID })
	return result, nil
}

// List returns every mapping ordered by child then recipient.
func (r *MappingRepository) List(ctx context.Context) ([]directory.RecipientMapping, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []directory.RecipientMapping
	for _, byRecipient := range r.byChild {
		for _, mapping := range byRecipient {
			result = append(result, mapping)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].ChildID != result[j].ChildID {
			return result[i].ChildID < result[j].ChildID
		}
		return result[i].RecipientID < result[j].RecipientID
	})
	return result, nil
}

// Save upserts a mapping.
func (r *MappingRepository) Save(ctx context.Context, mapping *directory.RecipientMapping) error {
	_ = ctx
	if mapping == nil {
		return errors.New("mapping repo: nil mapping")
	}
	if err := mapping.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	byRecipient, ok := r.byChild[mapping.ChildID]
	if !ok {
		byRecipient = make(map[string]directory.RecipientMapping)
		r.byChild[mapping.ChildID] = byRecipient
	}
	stored := *mapping
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	byRecipient[stored.RecipientID] = stored
	return nil
}
