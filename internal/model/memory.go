package model

type MemoryCategory struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	Priority      int64  `json:"priority"`
	RetentionDays *int64 `json:"retention_days,omitempty"`
}

type Memory struct {
	ID          string                 `json:"id"`
	UserID      string                 `json:"user_id"`
	Category    string                 `json:"category"`
	Content     string                 `json:"content"`
	Context     map[string]interface{} `json:"context"`
	Confidence  float64                `json:"confidence"`
	Importance  float64                `json:"importance"`
	AccessCount int64                  `json:"access_count"`
	LastAccess  *int64                 `json:"last_accessed,omitempty"`
	ExpiresAt   *int64                 `json:"expires_at,omitempty"`
	Embedding   []float32              `json:"embedding,omitempty"`
	Ctime       int64                  `json:"ctime"`
}

// MemoryHit is a recalled memory together with its per-mode relevance and
// the priority of its category at query time.
type MemoryHit struct {
	Memory
	CategoryPriority int64   `json:"category_priority"`
	Relevance        float64 `json:"relevance"`
}
