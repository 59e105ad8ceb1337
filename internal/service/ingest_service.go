package service

import (
	"context"
	"errors"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/recall/internal/ai"
	"github.com/xxxsen/recall/internal/config"
	"github.com/xxxsen/recall/internal/model"
	appErr "github.com/xxxsen/recall/internal/pkg/errors"
	"github.com/xxxsen/recall/internal/pkg/timeutil"
	"github.com/xxxsen/recall/internal/repo"
)

const (
	embedTaskDocument = "RETRIEVAL_DOCUMENT"
)

// IngestService owns the write paths for chunks, entities, relationships,
// mentions and facts. Embeddings are optional at write time; the backfill
// job fills in whatever ingestion left behind.
type IngestService struct {
	chunks   *repo.ChunkRepo
	entities *repo.EntityRepo
	rels     *repo.RelationshipRepo
	mentions *repo.MentionRepo
	facts    *repo.FactRepo
	embedder ai.IEmbedder
	cfg      config.RetrievalConfig
}

func NewIngestService(chunks *repo.ChunkRepo, entities *repo.EntityRepo, rels *repo.RelationshipRepo,
	mentions *repo.MentionRepo, facts *repo.FactRepo, embedder ai.IEmbedder, cfg config.RetrievalConfig) *IngestService {
	return &IngestService{
		chunks:   chunks,
		entities: entities,
		rels:     rels,
		mentions: mentions,
		facts:    facts,
		embedder: embedder,
		cfg:      cfg,
	}
}

type CreateChunkRequest struct {
	ID        string
	SourceID  string
	Ordinal   int64
	Content   string
	Summary   string
	Metadata  map[string]interface{}
	Embedding []float32
}

// CreateChunk upserts by id so re-ingesting a source is idempotent. Passing
// an id keeps the caller in charge of identity; omitting it mints one.
func (s *IngestService) CreateChunk(ctx context.Context, req *CreateChunkRequest) (string, error) {
	if req.Embedding != nil && len(req.Embedding) != s.cfg.VectorDim {
		return "", appErr.ErrBadVectorDim
	}
	id := req.ID
	if id == "" {
		id = newID()
	}
	now := timeutil.NowUnix()
	chunk := &model.Chunk{
		ID:        id,
		SourceID:  req.SourceID,
		Ordinal:   req.Ordinal,
		Content:   req.Content,
		Summary:   req.Summary,
		Metadata:  req.Metadata,
		Embedding: req.Embedding,
		Ctime:     now,
		Mtime:     now,
	}
	if err := s.chunks.Create(ctx, chunk); err != nil {
		return "", err
	}
	return id, nil
}

type CreateEntityRequest struct {
	Name        string
	Type        string
	Description string
	Aliases     []string
	Confidence  float64
	Metadata    map[string]interface{}
	Embedding   []float32
}

// CreateEntity stores the entity and, when no embedding was supplied, tries
// to compute one from the name and description. An unavailable provider is
// not an error; the entity just stays out of the embedding index.
func (s *IngestService) CreateEntity(ctx context.Context, req *CreateEntityRequest) (string, error) {
	if req.Embedding != nil && len(req.Embedding) != s.cfg.VectorDim {
		return "", appErr.ErrBadVectorDim
	}
	entityType := req.Type
	if entityType == "" {
		entityType = model.EntityTypeUnclassified
	}
	embedding := req.Embedding
	if embedding == nil && s.embedder != nil {
		vec, err := s.embedder.Embed(ctx, req.Name+" "+req.Description, embedTaskDocument)
		if err != nil {
			if !errors.Is(err, ai.ErrUnavailable) {
				logutil.GetLogger(ctx).Warn("embed entity failed", zap.String("name", req.Name), zap.Error(err))
			}
		} else if len(vec) == s.cfg.VectorDim {
			embedding = vec
		}
	}
	now := timeutil.NowUnix()
	entity := &model.Entity{
		ID:          newID(),
		Name:        req.Name,
		Type:        entityType,
		Description: req.Description,
		Aliases:     req.Aliases,
		Confidence:  req.Confidence,
		Metadata:    req.Metadata,
		Embedding:   embedding,
		Ctime:       now,
		Mtime:       now,
	}
	if err := s.entities.Create(ctx, entity); err != nil {
		return "", err
	}
	return entity.ID, nil
}

type CreateRelationshipRequest struct {
	SourceID   string
	TargetID   string
	RelType    string
	Confidence float64
	Context    string
	DocumentID string
	ValidFrom  *int64
	ValidUntil *int64
	Metadata   map[string]interface{}
}

func (s *IngestService) CreateRelationship(ctx context.Context, req *CreateRelationshipRequest) (string, error) {
	now := timeutil.NowUnix()
	rel := &model.Relationship{
		ID:         newID(),
		SourceID:   req.SourceID,
		TargetID:   req.TargetID,
		RelType:    req.RelType,
		Confidence: req.Confidence,
		Context:    req.Context,
		DocumentID: req.DocumentID,
		ValidFrom:  req.ValidFrom,
		ValidUntil: req.ValidUntil,
		Metadata:   req.Metadata,
		Ctime:      now,
		Mtime:      now,
	}
	if err := s.rels.Create(ctx, rel); err != nil {
		return "", err
	}
	return rel.ID, nil
}

// UpdateRelationshipEvidence refreshes confidence and the validity window as
// new evidence arrives; everything else about a relationship is immutable.
func (s *IngestService) UpdateRelationshipEvidence(ctx context.Context, id string, confidence float64, validFrom, validUntil *int64) error {
	return s.rels.UpdateEvidence(ctx, id, confidence, validFrom, validUntil, timeutil.NowUnix())
}

type CreateMentionRequest struct {
	EntityID    string
	DocumentID  string
	MentionText string
	Context     string
	SpanStart   int64
	SpanEnd     int64
	Confidence  float64
}

func (s *IngestService) CreateMention(ctx context.Context, req *CreateMentionRequest) (string, error) {
	mention := &model.EntityMention{
		ID:          newID(),
		EntityID:    req.EntityID,
		DocumentID:  req.DocumentID,
		MentionText: req.MentionText,
		Context:     req.Context,
		SpanStart:   req.SpanStart,
		SpanEnd:     req.SpanEnd,
		Confidence:  req.Confidence,
		Ctime:       timeutil.NowUnix(),
	}
	if err := s.mentions.Create(ctx, mention); err != nil {
		return "", err
	}
	return mention.ID, nil
}

type CreateFactRequest struct {
	EntityID   string
	FactType   string
	FactText   string
	Confidence float64
	DocumentID string
	FactDate   *int64
	ValidFrom  *int64
	ValidUntil *int64
}

func (s *IngestService) CreateFact(ctx context.Context, req *CreateFactRequest) (string, error) {
	fact := &model.EntityFact{
		ID:         newID(),
		EntityID:   req.EntityID,
		FactType:   req.FactType,
		FactText:   req.FactText,
		Confidence: req.Confidence,
		DocumentID: req.DocumentID,
		FactDate:   req.FactDate,
		ValidFrom:  req.ValidFrom,
		ValidUntil: req.ValidUntil,
		Ctime:      timeutil.NowUnix(),
	}
	if err := s.facts.Create(ctx, fact); err != nil {
		return "", err
	}
	return fact.ID, nil
}

func (s *IngestService) ListSources(ctx context.Context) ([]model.SourceInfo, error) {
	return s.chunks.ListSources(ctx)
}

func (s *IngestService) ListEntities(ctx context.Context, entityType string, limit, offset uint) ([]model.Entity, error) {
	return s.entities.List(ctx, entityType, limit, offset)
}

func (s *IngestService) DeleteEntity(ctx context.Context, id string) error {
	return s.entities.Delete(ctx, id)
}

// BackfillEmbeddings embeds up to batch chunks that are still missing a
// vector. Returns how many were filled. A chunk whose embed call fails is
// skipped and retried on the next run.
func (s *IngestService) BackfillEmbeddings(ctx context.Context, batch int) (int, error) {
	if s.embedder == nil {
		return 0, nil
	}
	chunks, err := s.chunks.ListMissingEmbedding(ctx, batch)
	if err != nil {
		return 0, err
	}
	filled := 0
	logger := logutil.GetLogger(ctx)
	for _, chunk := range chunks {
		vec, err := s.embedder.Embed(ctx, chunk.Content, embedTaskDocument)
		if err != nil {
			if errors.Is(err, ai.ErrUnavailable) {
				return filled, nil
			}
			logger.Warn("embed chunk failed", zap.String("chunk_id", chunk.ID), zap.Error(err))
			continue
		}
		if len(vec) != s.cfg.VectorDim {
			logger.Warn("embedding dim mismatch", zap.String("chunk_id", chunk.ID), zap.Int("got", len(vec)))
			continue
		}
		if err := s.chunks.UpdateEmbedding(ctx, chunk.ID, vec, timeutil.NowUnix()); err != nil {
			logger.Warn("store chunk embedding failed", zap.String("chunk_id", chunk.ID), zap.Error(err))
			continue
		}
		filled++
	}
	if filled > 0 {
		logger.Info("embedding backfill done", zap.Int("filled", filled))
	}
	return filled, nil
}
