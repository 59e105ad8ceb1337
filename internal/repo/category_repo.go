package repo

import (
	"context"
	"database/sql"

	"github.com/xxxsen/recall/internal/model"
	appErr "github.com/xxxsen/recall/internal/pkg/errors"
)

type CategoryRepo struct {
	db *sql.DB
}

func NewCategoryRepo(db *sql.DB) *CategoryRepo {
	return &CategoryRepo{db: db}
}

func (r *CategoryRepo) GetByName(ctx context.Context, name string) (*model.MemoryCategory, error) {
	const query = `SELECT name, description, priority, retention_days FROM memory_categories WHERE name = $1`
	row := r.db.QueryRowContext(ctx, query, name)
	var cat model.MemoryCategory
	var retention sql.NullInt64
	if err := row.Scan(&cat.Name, &cat.Description, &cat.Priority, &retention); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	if retention.Valid {
		cat.RetentionDays = &retention.Int64
	}
	return &cat, nil
}

func (r *CategoryRepo) List(ctx context.Context) ([]model.MemoryCategory, error) {
	const query = `SELECT name, description, priority, retention_days FROM memory_categories ORDER BY priority DESC, name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cats := make([]model.MemoryCategory, 0)
	for rows.Next() {
		var cat model.MemoryCategory
		var retention sql.NullInt64
		if err := rows.Scan(&cat.Name, &cat.Description, &cat.Priority, &retention); err != nil {
			return nil, err
		}
		if retention.Valid {
			cat.RetentionDays = &retention.Int64
		}
		cats = append(cats, cat)
	}
	return cats, rows.Err()
}

func (r *CategoryRepo) Upsert(ctx context.Context, cat *model.MemoryCategory) error {
	const query = `
		INSERT INTO memory_categories (name, description, priority, retention_days)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET
			description = EXCLUDED.description,
			priority = EXCLUDED.priority,
			retention_days = EXCLUDED.retention_days
	`
	var retention sql.NullInt64
	if cat.RetentionDays != nil {
		retention = sql.NullInt64{Int64: *cat.RetentionDays, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, query, cat.Name, cat.Description, cat.Priority, retention)
	return err
}
