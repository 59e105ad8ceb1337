package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/recall/internal/pkg/errcode"
	"github.com/xxxsen/recall/internal/pkg/response"
	"github.com/xxxsen/recall/internal/service"
)

type MemoryHandler struct {
	memories *service.MemoryService
}

func NewMemoryHandler(memories *service.MemoryService) *MemoryHandler {
	return &MemoryHandler{memories: memories}
}

type storeMemoryRequest struct {
	UserID        string                 `json:"user_id"`
	Category      string                 `json:"category"`
	Content       string                 `json:"content"`
	Context       map[string]interface{} `json:"context"`
	Confidence    *float64               `json:"confidence"`
	Importance    *float64               `json:"importance"`
	Embedding     []float32              `json:"embedding"`
	RetentionDays *int64                 `json:"retention_days"`
}

func (h *MemoryHandler) Store(c *gin.Context) {
	var req storeMemoryRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.UserID == "" || req.Category == "" || req.Content == "" {
		response.Error(c, errcode.ErrInvalid, "user_id, category and content required")
		return
	}
	id, err := h.memories.Store(c.Request.Context(), &service.StoreMemoryRequest{
		UserID:        req.UserID,
		Category:      req.Category,
		Content:       req.Content,
		Context:       req.Context,
		Confidence:    req.Confidence,
		Importance:    req.Importance,
		Embedding:     req.Embedding,
		RetentionDays: req.RetentionDays,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"id": id})
}

type recallRequest struct {
	UserID        string    `json:"user_id"`
	Query         string    `json:"query"`
	Vector        []float32 `json:"vector"`
	Limit         int       `json:"limit"`
	MinImportance float64   `json:"min_importance"`
}

func (h *MemoryHandler) Recall(c *gin.Context) {
	var req recallRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.UserID == "" {
		response.Error(c, errcode.ErrInvalid, "user_id required")
		return
	}
	hits, err := h.memories.Recall(c.Request.Context(), &service.RecallRequest{
		UserID:        req.UserID,
		Query:         req.Query,
		Vector:        req.Vector,
		Limit:         req.Limit,
		MinImportance: req.MinImportance,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"memories": hits})
}

func (h *MemoryHandler) ListCategories(c *gin.Context) {
	cats, err := h.memories.ListCategories(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"categories": cats})
}

func (h *MemoryHandler) Sweep(c *gin.Context) {
	deleted, err := h.memories.Sweep(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": deleted})
}

func (h *MemoryHandler) Rescore(c *gin.Context) {
	if err := h.memories.RescoreImportance(c.Request.Context()); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}
