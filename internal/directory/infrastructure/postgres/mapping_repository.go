package postgres

import (
	"context"
	"errors"
	"fmt"

	directory "child-monitoring/internal/directory/domain"
)

const defaultMappingsTable = "recipient_mappings"

// MappingRepository is a Postgres implementation for recipient mappings.
type MappingRepository struct {
	db    DBTX
	table string
}

// NewMappingRepository constructs a repository.
func NewMappingRepository(db DBTX, opts ...MappingOption) *MappingRepository {
	repo := &MappingRepository{db: db, table: defaultMappingsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// MappingOption configures the repository.
type MappingOption func(*MappingRepository)

// WithMappingsTable overrides the default table name.
func WithMappingsTable(table string) MappingOption {
	return func(repo *MappingRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// ListByChild loads every mapping for a child ordered by recipient.
func (r *MappingRepository) ListByChild(ctx context.Context, childID string) ([]directory.RecipientMapping, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("mapping repo: nil db")
	}
	if childID == "" {
		return nil, errors.New("mapping repo: empty child id")
	}

	query := fmt.Sprintf(`
SELECT recipient_id, child_id, role, active, created_at
FROM %s
WHERE child_id = $1
ORDER BY recipient_id ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, childID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMappings(rows)
}

// List loads every mapping ordered by child then recipient.
func (r *MappingRepository) List(ctx context.Context) ([]directory.RecipientMapping, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("mapping repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT recipient_id, child_id, role, active, created_at
FROM %s
ORDER BY child_id ASC, recipient_id ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMappings(rows)
}

// Save upserts a mapping.
func (r *MappingRepository) Save(ctx context.Context, mapping *directory.RecipientMapping) error {
	if r == nil || r.db == nil {
		return errors.New("mapping repo: nil db")
	}
	if mapping == nil {
		return errors.New("mapping repo: nil mapping")
	}
	if err := mapping.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	recipient_id,
	child_id,
	role,
	active
) VALUES (
	$1, $2, $3, $4
)
ON CONFLICT (recipient_id, child_id)
DO UPDATE SET
	role = EXCLUDED.role,
	active = EXCLUDED.active`, r.table)

	_, err := r.db.ExecContext(ctx, query, mapping.RecipientID, mapping.ChildID, string(mapping.Role), mapping.Active)
	return err
}

func scanMappings(rows rowScanner) ([]directory.RecipientMapping, error) {
	var result []directory.RecipientMapping
	for rows.Next() {
		var mapping directory.RecipientMapping
		var role string
		if err := rows.Scan(&mapping.RecipientID, &mapping.ChildID, &role, &mapping.Active, &mapping.CreatedAt); err != nil {
			return nil, err
		}
		mapping.Role = directory.Role(role)
		mapping.CreatedAt = mapping.CreatedAt.UTC()
		result = append(result, mapping)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}
