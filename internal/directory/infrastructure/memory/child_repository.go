package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	directory "child-monitoring/internal/directory/domain"
)

// ChildRepository is an in-memory child store for tests and local runs.
type ChildRepository struct {
	mu       sync.RWMutex
	children map[string]directory.Child
	byDevice map[string]string
}

// NewChildRepository constructs an empty repository.
func NewChildRepository() *ChildRepository {
	return &ChildRepository{
		children: make(map[string]directory.Child),
		byDevice: make(map[string]string),
	}
}

// Get loads a child by id, nil when absent.
func (r *ChildRepository) Get(ctx context.Context, id string) (*directory.Child, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	child, ok := r.children[id]
	if !ok {
		return nil, nil
	}
	return &child, nil
}

// GetByDevice loads the child bound to a device, nil when absent.
func (r *ChildRepository) GetByDevice(ctx context.Context, deviceID string) (*directory.Child, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byDevice[deviceID]
	if !ok {
		return nil, nil
	}
	child := r.children[id]
	return &child, nil
}

// List returns all children ordered by name.
func (r *ChildRepository) List(ctx context.Context) ([]directory.Child, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]directory.Child, 0, len(r.children))
	for _, child := range r.children {
		result = append(result, child)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// Save upserts a child and refreshes its device binding.
func (r *ChildRepository) Save(ctx context.Context, child *directory.Child) error {
	_ = ctx
	if child == nil {
		return errors.New("child repo: nil child")
	}
	if err := child.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.children[child.ID]; ok && prev.DeviceID != "" {
		delete(r.byDevice, prev.DeviceID)
	}
	stored := *child
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	r.children[stored.ID] = stored
	if stored.DeviceID != "" {
		r.byDevice[stored.DeviceID] = stored.ID
	}
	return nil
}
