package service

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/recall/internal/config"
	"github.com/xxxsen/recall/internal/model"
	appErr "github.com/xxxsen/recall/internal/pkg/errors"
	"github.com/xxxsen/recall/internal/pkg/timeutil"
)

const (
	defaultMemoryConfidence = 1.0
	defaultMemoryImportance = 0.5

	rescoreBoostWindowDays = 30
	rescoreDecayIdleDays   = 90
)

type categoryGetter interface {
	GetByName(ctx context.Context, name string) (*model.MemoryCategory, error)
	List(ctx context.Context) ([]model.MemoryCategory, error)
}

type memoryStore interface {
	Create(ctx context.Context, m *model.Memory) error
	RecallVector(ctx context.Context, userID string, vec []float32, simFloor, minImportance float64, now int64, limit int) ([]model.MemoryHit, error)
	RecallText(ctx context.Context, userID, text string, trigramThreshold, minImportance float64, now int64, limit int) ([]model.MemoryHit, error)
	RecallDefault(ctx context.Context, userID string, minImportance float64, now int64, limit int) ([]model.MemoryHit, error)
	TouchAll(ctx context.Context, userID string, minImportance float64, now int64) error
	Rescore(ctx context.Context, boostSince, decayBefore int64) (int64, int64, error)
	SweepExpired(ctx context.Context, now int64) (int64, error)
}

type MemoryService struct {
	memories   memoryStore
	categories categoryGetter
	catCache   *expirable.LRU[string, *model.MemoryCategory]
	cfg        config.RetrievalConfig
}

func NewMemoryService(memories memoryStore, categories categoryGetter, cfg config.RetrievalConfig) *MemoryService {
	return &MemoryService{
		memories:   memories,
		categories: categories,
		catCache:   expirable.NewLRU[string, *model.MemoryCategory](128, nil, 5*time.Minute),
		cfg:        cfg,
	}
}

type StoreMemoryRequest struct {
	UserID        string
	Category      string
	Content       string
	Context       map[string]interface{}
	Confidence    *float64
	Importance    *float64
	Embedding     []float32
	RetentionDays *int64
}

// Store creates one memory. The category must be registered; expiry is
// now + (request override, else category default), or never when both are
// unset.
func (s *MemoryService) Store(ctx context.Context, req *StoreMemoryRequest) (string, error) {
	cat, err := s.lookupCategory(ctx, req.Category)
	if err != nil {
		return "", err
	}
	if req.Embedding != nil && len(req.Embedding) != s.cfg.VectorDim {
		return "", appErr.ErrBadVectorDim
	}
	now := timeutil.NowUnix()
	m := &model.Memory{
		ID:         newID(),
		UserID:     req.UserID,
		Category:   cat.Name,
		Content:    req.Content,
		Context:    req.Context,
		Confidence: defaultMemoryConfidence,
		Importance: defaultMemoryImportance,
		Embedding:  req.Embedding,
		Ctime:      now,
	}
	if req.Confidence != nil {
		m.Confidence = *req.Confidence
	}
	if req.Importance != nil {
		m.Importance = *req.Importance
	}
	retention := req.RetentionDays
	if retention == nil {
		retention = cat.RetentionDays
	}
	if retention != nil {
		expires := timeutil.DaysAfter(int(*retention))
		m.ExpiresAt = &expires
	}
	if err := s.memories.Create(ctx, m); err != nil {
		return "", err
	}
	return m.ID, nil
}

type RecallRequest struct {
	UserID        string
	Query         string
	Vector        []float32
	Limit         int
	MinImportance float64
}

// Recall picks one of three disjoint modes by what the request carries: a
// vector ranks by cosine similarity, bare text by containment/trigram
// relevance, neither by importance alone. Every call also touches access
// bookkeeping for all qualifying memories of the user, not just the page
// returned, because the importance rescore feeds on that broad signal.
func (s *MemoryService) Recall(ctx context.Context, req *RecallRequest) ([]model.MemoryHit, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	minImportance := req.MinImportance
	if minImportance <= 0 {
		minImportance = s.cfg.MinImportance
	}
	if req.Vector != nil && len(req.Vector) != s.cfg.VectorDim {
		return nil, appErr.ErrBadVectorDim
	}
	now := timeutil.NowUnix()

	var hits []model.MemoryHit
	var err error
	switch {
	case req.Vector != nil:
		hits, err = s.memories.RecallVector(ctx, req.UserID, req.Vector, s.cfg.MemorySimFloor, minImportance, now, limit)
	case req.Query != "":
		hits, err = s.memories.RecallText(ctx, req.UserID, req.Query, s.cfg.TrigramThreshold, minImportance, now, limit)
	default:
		hits, err = s.memories.RecallDefault(ctx, req.UserID, minImportance, now, limit)
	}
	if err != nil {
		return nil, err
	}
	if err := s.memories.TouchAll(ctx, req.UserID, minImportance, now); err != nil {
		logutil.GetLogger(ctx).Error("touch memories failed", zap.String("user_id", req.UserID), zap.Error(err))
	}
	return hits, nil
}

func (s *MemoryService) ListCategories(ctx context.Context) ([]model.MemoryCategory, error) {
	return s.categories.List(ctx)
}

// Sweep deletes expired memories and reports how many went. Running it
// twice in a row with nothing newly expired deletes zero the second time.
func (s *MemoryService) Sweep(ctx context.Context) (int64, error) {
	deleted, err := s.memories.SweepExpired(ctx, timeutil.NowUnix())
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		logutil.GetLogger(ctx).Info("swept expired memories", zap.Int64("deleted", deleted))
	}
	return deleted, nil
}

// RescoreImportance applies the reinforcement/decay policy: heavy recent use
// makes a memory stickier, long idleness fades it. The store clamps both
// directions so repeated runs stay inside [0.1, 1.0].
func (s *MemoryService) RescoreImportance(ctx context.Context) error {
	boostSince := timeutil.DaysAgo(rescoreBoostWindowDays)
	decayBefore := timeutil.DaysAgo(rescoreDecayIdleDays)
	boosted, decayed, err := s.memories.Rescore(ctx, boostSince, decayBefore)
	if err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("memory importance rescored",
		zap.Int64("boosted", boosted), zap.Int64("decayed", decayed))
	return nil
}

func (s *MemoryService) lookupCategory(ctx context.Context, name string) (*model.MemoryCategory, error) {
	if cached, ok := s.catCache.Get(name); ok {
		return cached, nil
	}
	cat, err := s.categories.GetByName(ctx, name)
	if err != nil {
		if appErr.IsNotFound(err) {
			return nil, appErr.ErrCategoryNotFound
		}
		return nil, err
	}
	s.catCache.Add(name, cat)
	return cat, nil
}
