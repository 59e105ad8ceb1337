package service

import (
	"context"
	"sort"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/recall/internal/config"
	"github.com/xxxsen/recall/internal/model"
	appErr "github.com/xxxsen/recall/internal/pkg/errors"
	"github.com/xxxsen/recall/internal/repo"
)

// chunkSearcher is the slice of ChunkRepo the fusion path needs. Narrow on
// purpose so tests can drive fusion with canned branch results.
type chunkSearcher interface {
	SearchVector(ctx context.Context, vec []float32, limit int, metaFilter map[string]interface{}, sourceID string) ([]repo.ScoredChunk, error)
	SearchLexical(ctx context.Context, queryText string, limit int, metaFilter map[string]interface{}, sourceID string) ([]repo.ScoredChunk, error)
}

type SearchService struct {
	chunks chunkSearcher
	cfg    config.RetrievalConfig
}

func NewSearchService(chunks chunkSearcher, cfg config.RetrievalConfig) *SearchService {
	return &SearchService{chunks: chunks, cfg: cfg}
}

type SearchRequest struct {
	Query    string
	Vector   []float32
	Limit    int
	Metadata map[string]interface{}
	SourceID string
}

// HybridSearch runs the vector and lexical branches, each top-N, then merges
// them by chunk identity with a weighted sum. A chunk found by only one
// branch still surfaces; its match type records which signal produced it.
func (s *SearchService) HybridSearch(ctx context.Context, req *SearchRequest) ([]model.SearchResult, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	if req.Vector != nil && len(req.Vector) != s.cfg.VectorDim {
		return nil, appErr.ErrBadVectorDim
	}
	logger := logutil.GetLogger(ctx).With(zap.String("query", req.Query), zap.Int("limit", limit))

	var vecRows, lexRows []repo.ScoredChunk
	var err error
	if req.Vector != nil {
		vecRows, err = s.chunks.SearchVector(ctx, req.Vector, limit, req.Metadata, req.SourceID)
		if err != nil {
			logger.Error("vector branch failed", zap.Error(err))
			return nil, err
		}
	}
	if req.Query != "" {
		lexRows, err = s.chunks.SearchLexical(ctx, req.Query, limit, req.Metadata, req.SourceID)
		if err != nil {
			logger.Error("lexical branch failed", zap.Error(err))
			return nil, err
		}
	}
	results := fuse(vecRows, lexRows, s.cfg.VectorWeight, s.cfg.LexicalWeight, limit)
	logger.Debug("hybrid search done",
		zap.Int("vector_rows", len(vecRows)),
		zap.Int("lexical_rows", len(lexRows)),
		zap.Int("fused", len(results)))
	return results, nil
}

// fuse performs the full outer merge of the two branch result sets. Vector
// similarity is clamped to be non-negative; lexical rank is unbounded above
// so it is capped at 1.0 to keep either signal from dominating.
func fuse(vecRows, lexRows []repo.ScoredChunk, vectorWeight, lexicalWeight float64, limit int) []model.SearchResult {
	merged := make(map[string]*model.SearchResult, len(vecRows)+len(lexRows))
	order := make([]string, 0, len(vecRows)+len(lexRows))
	for _, row := range vecRows {
		sim := row.Score
		if sim < 0 {
			sim = 0
		}
		merged[row.ID] = &model.SearchResult{
			ID:        row.ID,
			SourceID:  row.SourceID,
			Content:   row.Content,
			Summary:   row.Summary,
			Metadata:  row.Metadata,
			Score:     vectorWeight * sim,
			MatchType: model.MatchTypeVector,
		}
		order = append(order, row.ID)
	}
	for _, row := range lexRows {
		rank := row.Score
		if rank > 1 {
			rank = 1
		}
		if rank < 0 {
			rank = 0
		}
		if item, ok := merged[row.ID]; ok {
			item.Score += lexicalWeight * rank
			item.MatchType = model.MatchTypeHybrid
			continue
		}
		merged[row.ID] = &model.SearchResult{
			ID:        row.ID,
			SourceID:  row.SourceID,
			Content:   row.Content,
			Summary:   row.Summary,
			Metadata:  row.Metadata,
			Score:     lexicalWeight * rank,
			MatchType: model.MatchTypeKeyword,
		}
		order = append(order, row.ID)
	}
	results := make([]model.SearchResult, 0, len(order))
	for _, id := range order {
		results = append(results, *merged[id])
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}
