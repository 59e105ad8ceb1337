package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/recall/internal/model"
	"github.com/xxxsen/recall/internal/pkg/dbutil"
)

type MentionRepo struct {
	db *sql.DB
}

func NewMentionRepo(db *sql.DB) *MentionRepo {
	return &MentionRepo{db: db}
}

func (r *MentionRepo) Create(ctx context.Context, mention *model.EntityMention) error {
	data := map[string]interface{}{
		"id":           mention.ID,
		"entity_id":    mention.EntityID,
		"document_id":  mention.DocumentID,
		"mention_text": mention.MentionText,
		"context":      mention.Context,
		"span_start":   mention.SpanStart,
		"span_end":     mention.SpanEnd,
		"confidence":   mention.Confidence,
		"ctime":        mention.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("entity_mentions", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *MentionRepo) ListByEntity(ctx context.Context, entityID string, limit uint) ([]model.EntityMention, error) {
	where := map[string]interface{}{
		"entity_id": entityID,
		"_orderby":  "ctime desc",
	}
	if limit > 0 {
		where["_limit"] = []uint{0, limit}
	}
	sqlStr, args, err := builder.BuildSelect("entity_mentions", where,
		[]string{"id", "entity_id", "document_id", "mention_text", "context", "span_start", "span_end", "confidence", "ctime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	mentions := make([]model.EntityMention, 0)
	for rows.Next() {
		var m model.EntityMention
		if err := rows.Scan(&m.ID, &m.EntityID, &m.DocumentID, &m.MentionText,
			&m.Context, &m.SpanStart, &m.SpanEnd, &m.Confidence, &m.Ctime); err != nil {
			return nil, err
		}
		mentions = append(mentions, m)
	}
	return mentions, rows.Err()
}
