package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/recall/internal/pkg/errcode"
	"github.com/xxxsen/recall/internal/pkg/response"
	"github.com/xxxsen/recall/internal/service"
)

type IngestHandler struct {
	ingest *service.IngestService
}

func NewIngestHandler(ingest *service.IngestService) *IngestHandler {
	return &IngestHandler{ingest: ingest}
}

type createChunkRequest struct {
	ID        string                 `json:"id"`
	SourceID  string                 `json:"source_id"`
	Ordinal   int64                  `json:"ordinal"`
	Content   string                 `json:"content"`
	Summary   string                 `json:"summary"`
	Metadata  map[string]interface{} `json:"metadata"`
	Embedding []float32              `json:"embedding"`
}

func (h *IngestHandler) CreateChunk(c *gin.Context) {
	var req createChunkRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.SourceID == "" || req.Content == "" {
		response.Error(c, errcode.ErrInvalid, "source_id and content required")
		return
	}
	id, err := h.ingest.CreateChunk(c.Request.Context(), &service.CreateChunkRequest{
		ID:        req.ID,
		SourceID:  req.SourceID,
		Ordinal:   req.Ordinal,
		Content:   req.Content,
		Summary:   req.Summary,
		Metadata:  req.Metadata,
		Embedding: req.Embedding,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"id": id})
}

type createEntityRequest struct {
	Name        string                 `json:"name"`
	Type        string                 `json:"type"`
	Description string                 `json:"description"`
	Aliases     []string               `json:"aliases"`
	Confidence  float64                `json:"confidence"`
	Metadata    map[string]interface{} `json:"metadata"`
	Embedding   []float32              `json:"embedding"`
}

func (h *IngestHandler) CreateEntity(c *gin.Context) {
	var req createEntityRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Name == "" {
		response.Error(c, errcode.ErrInvalid, "name required")
		return
	}
	id, err := h.ingest.CreateEntity(c.Request.Context(), &service.CreateEntityRequest{
		Name:        req.Name,
		Type:        req.Type,
		Description: req.Description,
		Aliases:     req.Aliases,
		Confidence:  req.Confidence,
		Metadata:    req.Metadata,
		Embedding:   req.Embedding,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"id": id})
}

func (h *IngestHandler) ListEntities(c *gin.Context) {
	limit, _ := strconv.ParseUint(c.DefaultQuery("limit", "50"), 10, 32)
	offset, _ := strconv.ParseUint(c.DefaultQuery("offset", "0"), 10, 32)
	entities, err := h.ingest.ListEntities(c.Request.Context(), c.Query("type"), uint(limit), uint(offset))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"entities": entities})
}

func (h *IngestHandler) DeleteEntity(c *gin.Context) {
	if err := h.ingest.DeleteEntity(c.Request.Context(), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

type createRelationshipRequest struct {
	SourceID   string                 `json:"source_id"`
	TargetID   string                 `json:"target_id"`
	RelType    string                 `json:"rel_type"`
	Confidence float64                `json:"confidence"`
	Context    string                 `json:"context"`
	DocumentID string                 `json:"document_id"`
	ValidFrom  *int64                 `json:"valid_from"`
	ValidUntil *int64                 `json:"valid_until"`
	Metadata   map[string]interface{} `json:"metadata"`
}

func (h *IngestHandler) CreateRelationship(c *gin.Context) {
	var req createRelationshipRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.SourceID == "" || req.TargetID == "" || req.RelType == "" {
		response.Error(c, errcode.ErrInvalid, "source_id, target_id and rel_type required")
		return
	}
	id, err := h.ingest.CreateRelationship(c.Request.Context(), &service.CreateRelationshipRequest{
		SourceID:   req.SourceID,
		TargetID:   req.TargetID,
		RelType:    req.RelType,
		Confidence: req.Confidence,
		Context:    req.Context,
		DocumentID: req.DocumentID,
		ValidFrom:  req.ValidFrom,
		ValidUntil: req.ValidUntil,
		Metadata:   req.Metadata,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"id": id})
}

type updateRelationshipRequest struct {
	Confidence float64 `json:"confidence"`
	ValidFrom  *int64  `json:"valid_from"`
	ValidUntil *int64  `json:"valid_until"`
}

func (h *IngestHandler) UpdateRelationship(c *gin.Context) {
	var req updateRelationshipRequest
	if !bindJSON(c, &req) {
		return
	}
	err := h.ingest.UpdateRelationshipEvidence(c.Request.Context(), c.Param("id"),
		req.Confidence, req.ValidFrom, req.ValidUntil)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

type createMentionRequest struct {
	EntityID    string  `json:"entity_id"`
	DocumentID  string  `json:"document_id"`
	MentionText string  `json:"mention_text"`
	Context     string  `json:"context"`
	SpanStart   int64   `json:"span_start"`
	SpanEnd     int64   `json:"span_end"`
	Confidence  float64 `json:"confidence"`
}

func (h *IngestHandler) CreateMention(c *gin.Context) {
	var req createMentionRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.EntityID == "" || req.MentionText == "" {
		response.Error(c, errcode.ErrInvalid, "entity_id and mention_text required")
		return
	}
	id, err := h.ingest.CreateMention(c.Request.Context(), &service.CreateMentionRequest{
		EntityID:    req.EntityID,
		DocumentID:  req.DocumentID,
		MentionText: req.MentionText,
		Context:     req.Context,
		SpanStart:   req.SpanStart,
		SpanEnd:     req.SpanEnd,
		Confidence:  req.Confidence,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"id": id})
}

type createFactRequest struct {
	EntityID   string  `json:"entity_id"`
	FactType   string  `json:"fact_type"`
	FactText   string  `json:"fact_text"`
	Confidence float64 `json:"confidence"`
	DocumentID string  `json:"document_id"`
	FactDate   *int64  `json:"fact_date"`
	ValidFrom  *int64  `json:"valid_from"`
	ValidUntil *int64  `json:"valid_until"`
}

func (h *IngestHandler) CreateFact(c *gin.Context) {
	var req createFactRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.EntityID == "" || req.FactText == "" {
		response.Error(c, errcode.ErrInvalid, "entity_id and fact_text required")
		return
	}
	id, err := h.ingest.CreateFact(c.Request.Context(), &service.CreateFactRequest{
		EntityID:   req.EntityID,
		FactType:   req.FactType,
		FactText:   req.FactText,
		Confidence: req.Confidence,
		DocumentID: req.DocumentID,
		FactDate:   req.FactDate,
		ValidFrom:  req.ValidFrom,
		ValidUntil: req.ValidUntil,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"id": id})
}

func (h *IngestHandler) ListSources(c *gin.Context) {
	sources, err := h.ingest.ListSources(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"sources": sources})
}
