package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/recall/internal/model"
	"github.com/xxxsen/recall/internal/pkg/dbutil"
	appErr "github.com/xxxsen/recall/internal/pkg/errors"
)

// ScoredChunk is one row from a single retrieval branch. Score carries the
// raw branch signal: 1 - cosine_distance for the vector branch, ts_rank for
// the lexical branch. Normalization and fusion happen in the service layer.
type ScoredChunk struct {
	ID       string
	SourceID string
	Content  string
	Summary  string
	Metadata map[string]interface{}
	Score    float64
}

type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

func (r *ChunkRepo) Create(ctx context.Context, chunk *model.Chunk) error {
	meta, err := marshalMeta(chunk.Metadata)
	if err != nil {
		return err
	}
	var emb interface{}
	if chunk.Embedding != nil {
		emb = pgvector.NewVector(chunk.Embedding)
	}
	const query = `
		INSERT INTO chunks (id, source_id, ordinal, content, summary, metadata, embedding, ctime, mtime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			source_id = EXCLUDED.source_id,
			ordinal = EXCLUDED.ordinal,
			content = EXCLUDED.content,
			summary = EXCLUDED.summary,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding,
			mtime = EXCLUDED.mtime
	`
	_, err = r.db.ExecContext(ctx, query,
		chunk.ID, chunk.SourceID, chunk.Ordinal, chunk.Content, chunk.Summary,
		meta, emb, chunk.Ctime, chunk.Mtime)
	return err
}

func (r *ChunkRepo) GetByID(ctx context.Context, id string) (*model.Chunk, error) {
	const query = `
		SELECT id, source_id, ordinal, content, summary, metadata, embedding, ctime, mtime
		FROM chunks WHERE id = $1
	`
	row := r.db.QueryRowContext(ctx, query, id)
	var chunk model.Chunk
	var meta []byte
	var emb sql.Null[pgvector.Vector]
	if err := row.Scan(&chunk.ID, &chunk.SourceID, &chunk.Ordinal, &chunk.Content,
		&chunk.Summary, &meta, &emb, &chunk.Ctime, &chunk.Mtime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(meta, &chunk.Metadata); err != nil {
		return nil, err
	}
	if emb.Valid {
		chunk.Embedding = emb.V.Slice()
	}
	return &chunk, nil
}

func (r *ChunkRepo) UpdateEmbedding(ctx context.Context, id string, embedding []float32, mtime int64) error {
	const query = `UPDATE chunks SET embedding = $1, mtime = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, pgvector.NewVector(embedding), mtime, id)
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

// SearchVector returns the top-N chunks by cosine similarity to the query
// vector. Rows without an embedding are excluded, not errors.
func (r *ChunkRepo) SearchVector(ctx context.Context, vec []float32, limit int, metaFilter map[string]interface{}, sourceID string) ([]ScoredChunk, error) {
	query := `
		SELECT id, source_id, content, summary, metadata, 1 - (embedding <=> ?) AS similarity
		FROM chunks
		WHERE embedding IS NOT NULL
	`
	args := []interface{}{pgvector.NewVector(vec)}
	query, args, err := appendChunkFilters(query, args, metaFilter, sourceID)
	if err != nil {
		return nil, err
	}
	query += ` ORDER BY embedding <=> ? LIMIT ?`
	args = append(args, pgvector.NewVector(vec), limit)
	query, args = dbutil.Finalize(query, args)
	return r.queryScored(ctx, query, args)
}

// SearchLexical returns the top-N chunks whose lexical index matches the
// query. The tsquery match is a predicate, not a ranked superset: rows that
// do not match at all are never returned regardless of rank.
func (r *ChunkRepo) SearchLexical(ctx context.Context, queryText string, limit int, metaFilter map[string]interface{}, sourceID string) ([]ScoredChunk, error) {
	query := `
		SELECT id, source_id, content, summary, metadata, ts_rank(content_tsv, plainto_tsquery('english', ?)) AS rank
		FROM chunks
		WHERE content_tsv @@ plainto_tsquery('english', ?)
	`
	args := []interface{}{queryText, queryText}
	query, args, err := appendChunkFilters(query, args, metaFilter, sourceID)
	if err != nil {
		return nil, err
	}
	query += ` ORDER BY rank DESC LIMIT ?`
	args = append(args, limit)
	query, args = dbutil.Finalize(query, args)
	return r.queryScored(ctx, query, args)
}

func (r *ChunkRepo) ListMissingEmbedding(ctx context.Context, limit int) ([]model.Chunk, error) {
	const query = `
		SELECT id, source_id, ordinal, content, summary, ctime, mtime
		FROM chunks
		WHERE embedding IS NULL
		ORDER BY mtime ASC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	chunks := make([]model.Chunk, 0)
	for rows.Next() {
		var chunk model.Chunk
		if err := rows.Scan(&chunk.ID, &chunk.SourceID, &chunk.Ordinal,
			&chunk.Content, &chunk.Summary, &chunk.Ctime, &chunk.Mtime); err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

func (r *ChunkRepo) ListSources(ctx context.Context) ([]model.SourceInfo, error) {
	const query = `
		SELECT source_id, COUNT(1), COUNT(embedding), MAX(mtime)
		FROM chunks
		GROUP BY source_id
		ORDER BY source_id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	sources := make([]model.SourceInfo, 0)
	for rows.Next() {
		var info model.SourceInfo
		if err := rows.Scan(&info.SourceID, &info.ChunkCount, &info.Embedded, &info.LastUpdate); err != nil {
			return nil, err
		}
		sources = append(sources, info)
	}
	return sources, rows.Err()
}

func (r *ChunkRepo) queryScored(ctx context.Context, query string, args []interface{}) ([]ScoredChunk, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := make([]ScoredChunk, 0)
	for rows.Next() {
		var item ScoredChunk
		var meta []byte
		if err := rows.Scan(&item.ID, &item.SourceID, &item.Content, &item.Summary, &meta, &item.Score); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(meta, &item.Metadata); err != nil {
			return nil, err
		}
		results = append(results, item)
	}
	return results, rows.Err()
}

// appendChunkFilters adds the metadata containment and source restriction
// predicates shared by both retrieval branches.
func appendChunkFilters(query string, args []interface{}, metaFilter map[string]interface{}, sourceID string) (string, []interface{}, error) {
	if len(metaFilter) > 0 {
		blob, err := json.Marshal(metaFilter)
		if err != nil {
			return "", nil, err
		}
		query += ` AND metadata @> ?`
		args = append(args, blob)
	}
	if sourceID != "" {
		query += ` AND source_id = ?`
		args = append(args, sourceID)
	}
	return query, args, nil
}

func marshalMeta(meta map[string]interface{}) ([]byte, error) {
	if meta == nil {
		meta = map[string]interface{}{}
	}
	return json.Marshal(meta)
}
