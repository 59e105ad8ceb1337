package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/recall/internal/pkg/errcode"
	"github.com/xxxsen/recall/internal/pkg/response"
	"github.com/xxxsen/recall/internal/service"
)

type SearchHandler struct {
	search *service.SearchService
}

func NewSearchHandler(search *service.SearchService) *SearchHandler {
	return &SearchHandler{search: search}
}

type searchRequest struct {
	Query    string                 `json:"query"`
	Vector   []float32              `json:"vector"`
	Limit    int                    `json:"limit"`
	Metadata map[string]interface{} `json:"metadata"`
	SourceID string                 `json:"source_id"`
}

func (h *SearchHandler) Search(c *gin.Context) {
	var req searchRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Query == "" && req.Vector == nil {
		response.Error(c, errcode.ErrInvalid, "query or vector required")
		return
	}
	results, err := h.search.HybridSearch(c.Request.Context(), &service.SearchRequest{
		Query:    req.Query,
		Vector:   req.Vector,
		Limit:    req.Limit,
		Metadata: req.Metadata,
		SourceID: req.SourceID,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"results": results})
}
