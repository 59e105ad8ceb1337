package handler

import (
	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	Search   *SearchHandler
	Graph    *GraphHandler
	Memories *MemoryHandler
	Ingest   *IngestHandler
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/search", deps.Search.Search)

	api.POST("/entities", deps.Ingest.CreateEntity)
	api.GET("/entities", deps.Ingest.ListEntities)
	api.DELETE("/entities/:id", deps.Ingest.DeleteEntity)
	api.POST("/entities/resolve", deps.Graph.Resolve)
	api.GET("/entities/:id/graph", deps.Graph.Traverse)
	api.GET("/entities/:id/timeline", deps.Graph.Timeline)

	api.POST("/relationships", deps.Ingest.CreateRelationship)
	api.POST("/relationships/:id/evidence", deps.Ingest.UpdateRelationship)
	api.POST("/mentions", deps.Ingest.CreateMention)
	api.POST("/facts", deps.Ingest.CreateFact)

	api.POST("/chunks", deps.Ingest.CreateChunk)
	api.GET("/sources", deps.Ingest.ListSources)

	api.POST("/memories", deps.Memories.Store)
	api.POST("/memories/recall", deps.Memories.Recall)
	api.GET("/memories/categories", deps.Memories.ListCategories)

	api.POST("/admin/memories/sweep", deps.Memories.Sweep)
	api.POST("/admin/memories/rescore", deps.Memories.Rescore)
}
