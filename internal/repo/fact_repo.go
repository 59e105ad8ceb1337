package repo

import (
	"context"
	"database/sql"

	"github.com/xxxsen/recall/internal/model"
)

type FactRepo struct {
	db *sql.DB
}

func NewFactRepo(db *sql.DB) *FactRepo {
	return &FactRepo{db: db}
}

// Create appends a fact. Facts are never edited; newer facts supersede
// older ones by ordering, not mutation.
func (r *FactRepo) Create(ctx context.Context, fact *model.EntityFact) error {
	const query = `
		INSERT INTO entity_facts
			(id, entity_id, fact_type, fact_text, confidence, document_id, fact_date, valid_from, valid_until, ctime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		fact.ID, fact.EntityID, fact.FactType, fact.FactText, fact.Confidence,
		nullString(fact.DocumentID), nullInt(fact.FactDate), nullInt(fact.ValidFrom),
		nullInt(fact.ValidUntil), fact.Ctime)
	return err
}

// Timeline returns the entity's facts intersecting the optional [start, end]
// window. Facts without a fact timestamp are always included and sort last.
func (r *FactRepo) Timeline(ctx context.Context, entityID string, start, end *int64) ([]model.EntityFact, error) {
	const query = `
		SELECT id, entity_id, fact_type, fact_text, confidence, document_id, fact_date, valid_from, valid_until, ctime
		FROM entity_facts
		WHERE entity_id = $1
			AND ($2::bigint IS NULL OR fact_date IS NULL OR fact_date >= $2)
			AND ($3::bigint IS NULL OR fact_date IS NULL OR fact_date <= $3)
		ORDER BY fact_date DESC NULLS LAST, confidence DESC
	`
	rows, err := r.db.QueryContext(ctx, query, entityID, nullInt(start), nullInt(end))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	facts := make([]model.EntityFact, 0)
	for rows.Next() {
		var fact model.EntityFact
		var docID sql.NullString
		var factDate, validFrom, validUntil sql.NullInt64
		if err := rows.Scan(&fact.ID, &fact.EntityID, &fact.FactType, &fact.FactText,
			&fact.Confidence, &docID, &factDate, &validFrom, &validUntil, &fact.Ctime); err != nil {
			return nil, err
		}
		fact.DocumentID = docID.String
		if factDate.Valid {
			fact.FactDate = &factDate.Int64
		}
		if validFrom.Valid {
			fact.ValidFrom = &validFrom.Int64
		}
		if validUntil.Valid {
			fact.ValidUntil = &validUntil.Int64
		}
		facts = append(facts, fact)
	}
	return facts, rows.Err()
}
