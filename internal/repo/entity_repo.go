package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/recall/internal/model"
	"github.com/xxxsen/recall/internal/pkg/dbutil"
	appErr "github.com/xxxsen/recall/internal/pkg/errors"
)

const entityColumns = `id, name, entity_type, description, aliases, confidence, metadata, embedding, ctime, mtime`

type EntityRepo struct {
	db *sql.DB
}

func NewEntityRepo(db *sql.DB) *EntityRepo {
	return &EntityRepo{db: db}
}

func (r *EntityRepo) Create(ctx context.Context, entity *model.Entity) error {
	meta, err := marshalMeta(entity.Metadata)
	if err != nil {
		return err
	}
	var emb interface{}
	if entity.Embedding != nil {
		emb = pgvector.NewVector(entity.Embedding)
	}
	aliases := entity.Aliases
	if aliases == nil {
		aliases = []string{}
	}
	const query = `
		INSERT INTO entities (id, name, entity_type, description, aliases, confidence, metadata, embedding, ctime, mtime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.db.ExecContext(ctx, query,
		entity.ID, entity.Name, entity.Type, entity.Description, pq.Array(aliases),
		entity.Confidence, meta, emb, entity.Ctime, entity.Mtime)
	return err
}

func (r *EntityRepo) GetByID(ctx context.Context, id string) (*model.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)
	entity, err := scanEntity(row.Scan)
	if err == sql.ErrNoRows {
		return nil, appErr.ErrNotFound
	}
	return entity, err
}

// Delete removes the entity; relationships, mentions and facts referencing
// it go with it through FK cascade.
func (r *EntityRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM entities WHERE id = $1`, id)
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

func (r *EntityRepo) UpdateEmbedding(ctx context.Context, id string, embedding []float32, mtime int64) error {
	const query = `UPDATE entities SET embedding = $1, mtime = $2 WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, pgvector.NewVector(embedding), mtime, id)
	return err
}

// SearchByName performs trigram fuzzy lookup: every entity whose string
// similarity to name exceeds the threshold, best match first.
func (r *EntityRepo) SearchByName(ctx context.Context, name string, threshold float64, limit int) ([]model.EntityMatch, error) {
	query := `
		SELECT ` + entityColumns + `, similarity(name, $1) AS score
		FROM entities
		WHERE similarity(name, $1) > $2
		ORDER BY score DESC
		LIMIT $3
	`
	return r.queryMatches(ctx, query, name, threshold, limit)
}

// SearchByEmbedding returns entities whose cosine similarity to the query
// vector exceeds the threshold. Ordering by raw distance ascending is the
// same ordering as similarity descending, stated once for determinism.
func (r *EntityRepo) SearchByEmbedding(ctx context.Context, vec []float32, threshold float64, limit int) ([]model.EntityMatch, error) {
	query := `
		SELECT ` + entityColumns + `, 1 - (embedding <=> $1) AS score
		FROM entities
		WHERE embedding IS NOT NULL AND 1 - (embedding <=> $1) > $2
		ORDER BY embedding <=> $1 ASC
		LIMIT $3
	`
	return r.queryMatches(ctx, query, pgvector.NewVector(vec), threshold, limit)
}

func (r *EntityRepo) List(ctx context.Context, entityType string, limit, offset uint) ([]model.Entity, error) {
	where := map[string]interface{}{
		"_orderby": "mtime desc",
	}
	if entityType != "" {
		where["entity_type"] = entityType
	}
	if limit > 0 {
		where["_limit"] = []uint{offset, limit}
	}
	sqlStr, args, err := builder.BuildSelect("entities", where, []string{entityColumns})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entities := make([]model.Entity, 0)
	for rows.Next() {
		entity, err := scanEntity(rows.Scan)
		if err != nil {
			return nil, err
		}
		entities = append(entities, *entity)
	}
	return entities, rows.Err()
}

// NamesByIDs resolves entity display names for traversal rows.
func (r *EntityRepo) NamesByIDs(ctx context.Context, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}
	query, args, err := sqlx.In(`SELECT id, name FROM entities WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	query = sqlx.Rebind(sqlx.DOLLAR, query)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	names := make(map[string]string)
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		names[id] = name
	}
	return names, rows.Err()
}

func (r *EntityRepo) queryMatches(ctx context.Context, query string, args ...interface{}) ([]model.EntityMatch, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	matches := make([]model.EntityMatch, 0)
	for rows.Next() {
		var match model.EntityMatch
		var meta []byte
		var emb sql.Null[pgvector.Vector]
		var aliases pq.StringArray
		if err := rows.Scan(&match.ID, &match.Name, &match.Type, &match.Description,
			&aliases, &match.Confidence, &meta, &emb, &match.Ctime, &match.Mtime, &match.Score); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(meta, &match.Metadata); err != nil {
			return nil, err
		}
		match.Aliases = aliases
		if emb.Valid {
			match.Embedding = emb.V.Slice()
		}
		matches = append(matches, match)
	}
	return matches, rows.Err()
}

func scanEntity(scan func(dest ...interface{}) error) (*model.Entity, error) {
	var entity model.Entity
	var meta []byte
	var emb sql.Null[pgvector.Vector]
	var aliases pq.StringArray
	if err := scan(&entity.ID, &entity.Name, &entity.Type, &entity.Description,
		&aliases, &entity.Confidence, &meta, &emb, &entity.Ctime, &entity.Mtime); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(meta, &entity.Metadata); err != nil {
		return nil, err
	}
	entity.Aliases = aliases
	if emb.Valid {
		entity.Embedding = emb.V.Slice()
	}
	return &entity, nil
}
