package service

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/recall/internal/config"
	"github.com/xxxsen/recall/internal/model"
	appErr "github.com/xxxsen/recall/internal/pkg/errors"
)

type entityFinder interface {
	GetByID(ctx context.Context, id string) (*model.Entity, error)
	SearchByName(ctx context.Context, name string, threshold float64, limit int) ([]model.EntityMatch, error)
	SearchByEmbedding(ctx context.Context, vec []float32, threshold float64, limit int) ([]model.EntityMatch, error)
	NamesByIDs(ctx context.Context, ids []string) (map[string]string, error)
}

type relationshipLister interface {
	ListBySources(ctx context.Context, sourceIDs []string) ([]model.Relationship, error)
}

type factLister interface {
	Timeline(ctx context.Context, entityID string, start, end *int64) ([]model.EntityFact, error)
}

type GraphService struct {
	entities entityFinder
	rels     relationshipLister
	facts    factLister
	cfg      config.RetrievalConfig
}

func NewGraphService(entities entityFinder, rels relationshipLister, facts factLister, cfg config.RetrievalConfig) *GraphService {
	return &GraphService{entities: entities, rels: rels, facts: facts, cfg: cfg}
}

// ResolveByName is fuzzy trigram lookup, best match first. Zero threshold
// falls back to the configured default.
func (s *GraphService) ResolveByName(ctx context.Context, name string, threshold float64, limit int) ([]model.EntityMatch, error) {
	if threshold <= 0 {
		threshold = s.cfg.TrigramThreshold
	}
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	return s.entities.SearchByName(ctx, name, threshold, limit)
}

func (s *GraphService) ResolveByEmbedding(ctx context.Context, vec []float32, threshold float64, limit int) ([]model.EntityMatch, error) {
	if len(vec) != s.cfg.VectorDim {
		return nil, appErr.ErrBadVectorDim
	}
	if threshold <= 0 {
		threshold = s.cfg.EntitySimThreshold
	}
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	return s.entities.SearchByEmbedding(ctx, vec, threshold, limit)
}

// Traverse expands outgoing relationships breadth-first from the root.
// Depth k+1 expands every target reached at depth k. There is no visited
// set: a cycle back to an earlier node is re-expanded at the next depth,
// and the fixed depth bound is what guarantees termination. Rows come back
// ordered by depth ascending, then confidence descending.
func (s *GraphService) Traverse(ctx context.Context, rootID string, maxDepth, maxResults int) ([]model.TraversalRow, error) {
	if maxDepth <= 0 {
		maxDepth = s.cfg.TraversalDepth
	}
	if maxResults <= 0 {
		maxResults = s.cfg.DefaultLimit
	}
	if _, err := s.entities.GetByID(ctx, rootID); err != nil {
		return nil, err
	}

	rows := make([]model.TraversalRow, 0)
	ids := map[string]struct{}{rootID: {}}
	frontier := []string{rootID}
	for depth := 1; depth <= maxDepth && len(frontier) > 0 && len(rows) < maxResults; depth++ {
		rels, err := s.rels.ListBySources(ctx, frontier)
		if err != nil {
			return nil, err
		}
		next := make([]string, 0, len(rels))
		for _, rel := range rels {
			rows = append(rows, model.TraversalRow{
				SourceID:   rel.SourceID,
				TargetID:   rel.TargetID,
				RelType:    rel.RelType,
				Confidence: rel.Confidence,
				Context:    rel.Context,
				Depth:      depth,
			})
			ids[rel.SourceID] = struct{}{}
			ids[rel.TargetID] = struct{}{}
			next = append(next, rel.TargetID)
		}
		frontier = next
	}
	if len(rows) > maxResults {
		rows = rows[:maxResults]
	}

	idList := make([]string, 0, len(ids))
	for id := range ids {
		idList = append(idList, id)
	}
	names, err := s.entities.NamesByIDs(ctx, idList)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].SourceName = names[rows[i].SourceID]
		rows[i].TargetName = names[rows[i].TargetID]
	}
	logutil.GetLogger(ctx).Debug("traversal done",
		zap.String("root", rootID), zap.Int("depth", maxDepth), zap.Int("rows", len(rows)))
	return rows, nil
}

// Timeline returns the entity's facts, newest observation first; facts with
// no observation timestamp sort last. Missing entity is a NotFound, an
// entity with no facts is an empty list.
func (s *GraphService) Timeline(ctx context.Context, entityID string, start, end *int64) ([]model.EntityFact, error) {
	if _, err := s.entities.GetByID(ctx, entityID); err != nil {
		return nil, err
	}
	return s.facts.Timeline(ctx, entityID, start, end)
}
