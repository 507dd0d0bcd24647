package directory

import "context"

// ChildRepository manages child persistence.
type ChildRepository interface {
	Get(ctx context.Context, id string) (*Child, error)
	GetByDevice(ctx context.Context, deviceID string) (*Child, error)
	List(ctx context.Context) ([]Child, error)
	Save(ctx context.Context, child *Child) error
}

// MappingRepository manages recipient mapping persistence.
type MappingRepository interface {
	ListByChild(ctx context.Context, childID string) ([]RecipientMapping, error)
	List(ctx context.Context) ([]RecipientMapping, error)
	Save(ctx context.Context, mapping *RecipientMapping) error
}
