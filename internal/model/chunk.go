package model

// Chunk is one retrievable text unit. Embedding stays nil until backfilled;
// the lexical index column is derived from content+summary by the store.
type Chunk struct {
	ID        string                 `json:"id"`
	SourceID  string                 `json:"source_id"`
	Ordinal   int64                  `json:"ordinal"`
	Content   string                 `json:"content"`
	Summary   string                 `json:"summary"`
	Metadata  map[string]interface{} `json:"metadata"`
	Embedding []float32              `json:"embedding,omitempty"`
	Ctime     int64                  `json:"ctime"`
	Mtime     int64                  `json:"mtime"`
}

const (
	MatchTypeVector  = "vector"
	MatchTypeKeyword = "keyword"
	MatchTypeHybrid  = "hybrid"
)

// SearchResult is one fused retrieval row with its provenance tag.
type SearchResult struct {
	ID        string                 `json:"id"`
	SourceID  string                 `json:"source_id"`
	Content   string                 `json:"content"`
	Summary   string                 `json:"summary,omitempty"`
	Metadata  map[string]interface{} `json:"metadata"`
	Score     float64                `json:"score"`
	MatchType string                 `json:"match_type"`
}

// SourceInfo summarizes one ingested source for listings.
type SourceInfo struct {
	SourceID   string `json:"source_id"`
	ChunkCount int64  `json:"chunk_count"`
	Embedded   int64  `json:"embedded"`
	LastUpdate int64  `json:"last_update"`
}
