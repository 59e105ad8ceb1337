package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/recall/internal/model"
	"github.com/xxxsen/recall/internal/pkg/dbutil"
	appErr "github.com/xxxsen/recall/internal/pkg/errors"
)

type RelationshipRepo struct {
	db *sql.DB
}

func NewRelationshipRepo(db *sql.DB) *RelationshipRepo {
	return &RelationshipRepo{db: db}
}

func (r *RelationshipRepo) Create(ctx context.Context, rel *model.Relationship) error {
	if rel.SourceID == rel.TargetID {
		return appErr.ErrSelfRelationship
	}
	meta, err := marshalMeta(rel.Metadata)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO entity_relationships
			(id, source_id, target_id, rel_type, confidence, context, document_id, valid_from, valid_until, metadata, ctime, mtime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = r.db.ExecContext(ctx, query,
		rel.ID, rel.SourceID, rel.TargetID, rel.RelType, rel.Confidence, rel.Context,
		nullString(rel.DocumentID), nullInt(rel.ValidFrom), nullInt(rel.ValidUntil),
		meta, rel.Ctime, rel.Mtime)
	if err != nil && dbutil.IsCheckViolation(err) {
		return appErr.ErrSelfRelationship
	}
	return err
}

// UpdateEvidence mutates the fields new evidence is allowed to touch:
// confidence and the validity window.
func (r *RelationshipRepo) UpdateEvidence(ctx context.Context, id string, confidence float64, validFrom, validUntil *int64, mtime int64) error {
	const query = `
		UPDATE entity_relationships
		SET confidence = $1, valid_from = $2, valid_until = $3, mtime = $4
		WHERE id = $5
	`
	result, err := r.db.ExecContext(ctx, query, confidence, nullInt(validFrom), nullInt(validUntil), mtime, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

// ListBySources returns all outgoing relationships of the given source
// entities, highest confidence first. One call per breadth level keeps the
// traversal a bounded number of round trips.
func (r *RelationshipRepo) ListBySources(ctx context.Context, sourceIDs []string) ([]model.Relationship, error) {
	if len(sourceIDs) == 0 {
		return []model.Relationship{}, nil
	}
	query, args, err := sqlx.In(`
		SELECT id, source_id, target_id, rel_type, confidence, context, document_id, valid_from, valid_until, metadata, ctime, mtime
		FROM entity_relationships
		WHERE source_id IN (?)
		ORDER BY confidence DESC
	`, sourceIDs)
	if err != nil {
		return nil, err
	}
	query = sqlx.Rebind(sqlx.DOLLAR, query)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	rels := make([]model.Relationship, 0)
	for rows.Next() {
		rel, err := scanRelationship(rows.Scan)
		if err != nil {
			return nil, err
		}
		rels = append(rels, *rel)
	}
	return rels, rows.Err()
}

func (r *RelationshipRepo) GetByID(ctx context.Context, id string) (*model.Relationship, error) {
	const query = `
		SELECT id, source_id, target_id, rel_type, confidence, context, document_id, valid_from, valid_until, metadata, ctime, mtime
		FROM entity_relationships
		WHERE id = $1
	`
	row := r.db.QueryRowContext(ctx, query, id)
	rel, err := scanRelationship(row.Scan)
	if err == sql.ErrNoRows {
		return nil, appErr.ErrNotFound
	}
	return rel, err
}

func scanRelationship(scan func(dest ...interface{}) error) (*model.Relationship, error) {
	var rel model.Relationship
	var meta []byte
	var docID sql.NullString
	var validFrom, validUntil sql.NullInt64
	if err := scan(&rel.ID, &rel.SourceID, &rel.TargetID, &rel.RelType, &rel.Confidence,
		&rel.Context, &docID, &validFrom, &validUntil, &meta, &rel.Ctime, &rel.Mtime); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(meta, &rel.Metadata); err != nil {
		return nil, err
	}
	rel.DocumentID = docID.String
	if validFrom.Valid {
		rel.ValidFrom = &validFrom.Int64
	}
	if validUntil.Valid {
		rel.ValidUntil = &validUntil.Int64
	}
	return &rel, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
