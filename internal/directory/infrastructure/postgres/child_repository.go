package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	directory "child-monitoring/internal/directory/domain"
)

const defaultChildrenTable = "children"

// ChildRepository is a Postgres implementation for children.
type ChildRepository struct {
	db    DBTX
	table string
}

// NewChildRepository constructs a repository.
func NewChildRepository(db DBTX, opts ...ChildOption) *ChildRepository {
	repo := &ChildRepository{db: db, table: defaultChildrenTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// ChildOption configures the repository.
type ChildOption func(*ChildRepository)

// WithChildrenTable overrides the default table name.
func WithChildrenTable(table string) ChildOption {
	return func(repo *ChildRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Get loads a child by id.
func (r *ChildRepository) Get(ctx context.Context, id string) (*directory.Child, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("child repo: nil db")
	}
	if id == "" {
		return nil, errors.New("child repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT id, name, device_id, created_at
FROM %s
WHERE id = $1
LIMIT 1`, r.table)

	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByDevice loads the child bound to a wearable device.
func (r *ChildRepository) GetByDevice(ctx context.Context, deviceID string) (*directory.Child, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("child repo: nil db")
	}
	if deviceID == "" {
		return nil, errors.New("child repo: empty device id")
	}

	query := fmt.Sprintf(`
SELECT id, name, device_id, created_at
FROM %s
WHERE device_id = $1
LIMIT 1`, r.table)

	return r.scanOne(r.db.QueryRowContext(ctx, query, deviceID))
}

// List loads all children ordered by name.
func (r *ChildRepository) List(ctx context.Context) ([]directory.Child, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("child repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT id, name, device_id, created_at
FROM %s
ORDER BY name ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []directory.Child
	for rows.Next() {
		var child directory.Child
		var deviceID sql.NullString
		if err := rows.Scan(&child.ID, &child.Name, &deviceID, &child.CreatedAt); err != nil {
			return nil, err
		}
		if deviceID.Valid {
			child.DeviceID = deviceID.String
		}
		child.CreatedAt = child.CreatedAt.UTC()
		result = append(result, child)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Save upserts a child.
func (r *ChildRepository) Save(ctx context.Context, child *directory.Child) error {
	if r == nil || r.db == nil {
		return errors.New("child repo: nil db")
	}
	if child == nil {
		return errors.New("child repo: nil child")
	}
	if err := child.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	name,
	device_id
) VALUES (
	$1, $2, $3
)
ON CONFLICT (id)
DO UPDATE SET
	name = EXCLUDED.name,
	device_id = EXCLUDED.device_id`, r.table)

	var deviceID any
	if child.DeviceID != "" {
		deviceID = child.DeviceID
	}
	_, err := r.db.ExecContext(ctx, query, child.ID, child.Name, deviceID)
	return err
}

func (r *ChildRepository) scanOne(row *sql.Row) (*directory.Child, error) {
	var child directory.Child
	var deviceID sql.NullString
	if err := row.Scan(&child.ID, &child.Name, &deviceID, &child.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if deviceID.Valid {
		child.DeviceID = deviceID.String
	}
	child.CreatedAt = child.CreatedAt.UTC()
	return &child, nil
}
