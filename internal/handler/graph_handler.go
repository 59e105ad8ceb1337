package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/recall/internal/pkg/errcode"
	"github.com/xxxsen/recall/internal/pkg/response"
	"github.com/xxxsen/recall/internal/service"
)

type GraphHandler struct {
	graph *service.GraphService
}

func NewGraphHandler(graph *service.GraphService) *GraphHandler {
	return &GraphHandler{graph: graph}
}

type resolveRequest struct {
	Name      string    `json:"name"`
	Vector    []float32 `json:"vector"`
	Threshold float64   `json:"threshold"`
	Limit     int       `json:"limit"`
}

// Resolve dispatches on what the request carries: a vector goes to the
// embedding index, a bare name to trigram matching.
func (h *GraphHandler) Resolve(c *gin.Context) {
	var req resolveRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Name == "" && req.Vector == nil {
		response.Error(c, errcode.ErrInvalid, "name or vector required")
		return
	}
	ctx := c.Request.Context()
	if req.Vector != nil {
		matches, err := h.graph.ResolveByEmbedding(ctx, req.Vector, req.Threshold, req.Limit)
		if err != nil {
			handleError(c, err)
			return
		}
		response.Success(c, gin.H{"matches": matches})
		return
	}
	matches, err := h.graph.ResolveByName(ctx, req.Name, req.Threshold, req.Limit)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"matches": matches})
}

func (h *GraphHandler) Traverse(c *gin.Context) {
	depth, _ := strconv.Atoi(c.DefaultQuery("depth", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	rows, err := h.graph.Traverse(c.Request.Context(), c.Param("id"), depth, limit)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"relationships": rows})
}

func (h *GraphHandler) Timeline(c *gin.Context) {
	start := parseOptionalUnix(c.Query("start"))
	end := parseOptionalUnix(c.Query("end"))
	facts, err := h.graph.Timeline(c.Request.Context(), c.Param("id"), start, end)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"facts": facts})
}

func parseOptionalUnix(s string) *int64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}
