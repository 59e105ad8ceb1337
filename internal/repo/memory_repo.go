package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/recall/internal/model"
	appErr "github.com/xxxsen/recall/internal/pkg/errors"
)

type MemoryRepo struct {
	db *sql.DB
}

func NewMemoryRepo(db *sql.DB) *MemoryRepo {
	return &MemoryRepo{db: db}
}

func (r *MemoryRepo) Create(ctx context.Context, m *model.Memory) error {
	mctx, err := marshalMeta(m.Context)
	if err != nil {
		return err
	}
	var emb interface{}
	if m.Embedding != nil {
		emb = pgvector.NewVector(m.Embedding)
	}
	const query = `
		INSERT INTO memories
			(id, user_id, category, content, context, confidence, importance, access_count, last_accessed, expires_at, embedding, ctime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = r.db.ExecContext(ctx, query,
		m.ID, m.UserID, m.Category, m.Content, mctx, m.Confidence, m.Importance,
		m.AccessCount, nullInt(m.LastAccess), nullInt(m.ExpiresAt), emb, m.Ctime)
	return err
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (*model.Memory, error) {
	const query = `
		SELECT id, user_id, category, content, context, confidence, importance, access_count, last_accessed, expires_at, embedding, ctime
		FROM memories
		WHERE id = $1
	`
	row := r.db.QueryRowContext(ctx, query, id)
	var m model.Memory
	var mctx []byte
	var lastAccess, expiresAt sql.NullInt64
	var emb sql.Null[pgvector.Vector]
	if err := row.Scan(&m.ID, &m.UserID, &m.Category, &m.Content, &mctx, &m.Confidence,
		&m.Importance, &m.AccessCount, &lastAccess, &expiresAt, &emb, &m.Ctime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(mctx, &m.Context); err != nil {
		return nil, err
	}
	if lastAccess.Valid {
		m.LastAccess = &lastAccess.Int64
	}
	if expiresAt.Valid {
		m.ExpiresAt = &expiresAt.Int64
	}
	if emb.Valid {
		m.Embedding = emb.V.Slice()
	}
	return &m, nil
}

// memoryHitColumns joins the category row so priority is read at query time,
// not denormalized into the memory.
const memoryHitColumns = `
	m.id, m.user_id, m.category, m.content, m.context, m.confidence, m.importance,
	m.access_count, m.last_accessed, m.expires_at, m.ctime, c.priority`

// RecallVector ranks by cosine similarity inside category priority. Rows
// without an embedding or below the similarity floor do not qualify.
func (r *MemoryRepo) RecallVector(ctx context.Context, userID string, vec []float32, simFloor, minImportance float64, now int64, limit int) ([]model.MemoryHit, error) {
	query := `
		SELECT ` + memoryHitColumns + `, 1 - (m.embedding <=> $2) AS relevance
		FROM memories m
		JOIN memory_categories c ON c.name = m.category
		WHERE m.user_id = $1
			AND (m.expires_at IS NULL OR m.expires_at > $5)
			AND m.importance >= $4
			AND m.embedding IS NOT NULL
			AND 1 - (m.embedding <=> $2) >= $3
		ORDER BY c.priority DESC, relevance DESC, m.importance DESC, m.access_count DESC
		LIMIT $6
	`
	return r.queryHits(ctx, query, userID, pgvector.NewVector(vec), simFloor, minImportance, now, limit)
}

// RecallText qualifies a row either by verbatim case-insensitive containment
// (relevance 1.0) or by trigram similarity above the threshold (relevance is
// that similarity).
func (r *MemoryRepo) RecallText(ctx context.Context, userID, text string, trigramThreshold, minImportance float64, now int64, limit int) ([]model.MemoryHit, error) {
	query := `
		SELECT ` + memoryHitColumns + `,
			CASE WHEN m.content ILIKE '%' || $2 || '%' THEN 1.0 ELSE similarity(m.content, $2) END AS relevance
		FROM memories m
		JOIN memory_categories c ON c.name = m.category
		WHERE m.user_id = $1
			AND (m.expires_at IS NULL OR m.expires_at > $5)
			AND m.importance >= $4
			AND (m.content ILIKE '%' || $2 || '%' OR similarity(m.content, $2) > $3)
		ORDER BY c.priority DESC, relevance DESC, m.importance DESC, m.access_count DESC
		LIMIT $6
	`
	return r.queryHits(ctx, query, userID, text, trigramThreshold, minImportance, now, limit)
}

// RecallDefault returns the highest-priority, highest-importance, newest
// memories. Relevance reported equals importance.
func (r *MemoryRepo) RecallDefault(ctx context.Context, userID string, minImportance float64, now int64, limit int) ([]model.MemoryHit, error) {
	query := `
		SELECT ` + memoryHitColumns + `, m.importance AS relevance
		FROM memories m
		JOIN memory_categories c ON c.name = m.category
		WHERE m.user_id = $1
			AND (m.expires_at IS NULL OR m.expires_at > $3)
			AND m.importance >= $2
		ORDER BY c.priority DESC, m.importance DESC, m.ctime DESC
		LIMIT $4
	`
	return r.queryHits(ctx, query, userID, minImportance, now, limit)
}

// TouchAll bumps access bookkeeping for every live memory of the user that
// meets the importance floor, not just the returned page. The importance
// rescore depends on this broad signal.
func (r *MemoryRepo) TouchAll(ctx context.Context, userID string, minImportance float64, now int64) error {
	const query = `
		UPDATE memories
		SET access_count = access_count + 1, last_accessed = $3
		WHERE user_id = $1
			AND (expires_at IS NULL OR expires_at > $3)
			AND importance >= $2
	`
	_, err := r.db.ExecContext(ctx, query, userID, minImportance, now)
	return err
}

// Rescore applies the reinforcement and decay passes in place. Boost:
// accessed more than 5 times within the last 30 days gains 0.01 per access,
// capped at 1.0. Decay: idle 90 days with fewer than 3 accesses loses 0.1,
// floored at 0.1.
func (r *MemoryRepo) Rescore(ctx context.Context, boostSince, decayBefore int64) (boosted int64, decayed int64, err error) {
	const boostQuery = `
		UPDATE memories
		SET importance = LEAST(importance + 0.01 * access_count, 1.0)
		WHERE access_count > 5 AND last_accessed IS NOT NULL AND last_accessed >= $1
	`
	result, err := r.db.ExecContext(ctx, boostQuery, boostSince)
	if err != nil {
		return 0, 0, err
	}
	boosted, err = result.RowsAffected()
	if err != nil {
		return 0, 0, err
	}
	const decayQuery = `
		UPDATE memories
		SET importance = GREATEST(importance - 0.1, 0.1)
		WHERE access_count < 3 AND (last_accessed IS NULL OR last_accessed < $1)
	`
	result, err = r.db.ExecContext(ctx, decayQuery, decayBefore)
	if err != nil {
		return boosted, 0, err
	}
	decayed, err = result.RowsAffected()
	if err != nil {
		return boosted, 0, err
	}
	return boosted, decayed, nil
}

// SweepExpired deletes rows whose expiry is set and in the past. Safe to run
// repeatedly.
func (r *MemoryRepo) SweepExpired(ctx context.Context, now int64) (int64, error) {
	const query = `DELETE FROM memories WHERE expires_at IS NOT NULL AND expires_at <= $1`
	result, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *MemoryRepo) queryHits(ctx context.Context, query string, args ...interface{}) ([]model.MemoryHit, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	hits := make([]model.MemoryHit, 0)
	for rows.Next() {
		var hit model.MemoryHit
		var mctx []byte
		var lastAccess, expiresAt sql.NullInt64
		if err := rows.Scan(&hit.ID, &hit.UserID, &hit.Category, &hit.Content, &mctx,
			&hit.Confidence, &hit.Importance, &hit.AccessCount, &lastAccess, &expiresAt,
			&hit.Ctime, &hit.CategoryPriority, &hit.Relevance); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(mctx, &hit.Context); err != nil {
			return nil, err
		}
		if lastAccess.Valid {
			hit.LastAccess = &lastAccess.Int64
		}
		if expiresAt.Valid {
			hit.ExpiresAt = &expiresAt.Int64
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}
