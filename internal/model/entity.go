package model

// Entity types form an open enumeration; anything outside the known set is
// stored as-is and treated as unclassified by callers that care.
const (
	EntityTypePerson       = "person"
	EntityTypeOrganization = "organization"
	EntityTypeLocation     = "location"
	EntityTypeTechnology   = "technology"
	EntityTypeConcept      = "concept"
	EntityTypeEvent        = "event"
	EntityTypeProduct      = "product"
	EntityTypeDocument     = "document"
	EntityTypeUnclassified = "unclassified"
)

type Entity struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Type        string                 `json:"type"`
	Description string                 `json:"description"`
	Aliases     []string               `json:"aliases"`
	Confidence  float64                `json:"confidence"`
	Metadata    map[string]interface{} `json:"metadata"`
	Embedding   []float32              `json:"embedding,omitempty"`
	Ctime       int64                  `json:"ctime"`
	Mtime       int64                  `json:"mtime"`
}

// EntityMatch is a resolver hit with its similarity score.
type EntityMatch struct {
	Entity
	Score float64 `json:"score"`
}

type Relationship struct {
	ID         string                 `json:"id"`
	SourceID   string                 `json:"source_id"`
	TargetID   string                 `json:"target_id"`
	RelType    string                 `json:"rel_type"`
	Confidence float64                `json:"confidence"`
	Context    string                 `json:"context"`
	DocumentID string                 `json:"document_id,omitempty"`
	ValidFrom  *int64                 `json:"valid_from,omitempty"`
	ValidUntil *int64                 `json:"valid_until,omitempty"`
	Metadata   map[string]interface{} `json:"metadata"`
	Ctime      int64                  `json:"ctime"`
	Mtime      int64                  `json:"mtime"`
}

// TraversalRow is one edge reached during breadth expansion, annotated with
// the depth at which it was found and the resolved endpoint names.
type TraversalRow struct {
	SourceID   string  `json:"source_id"`
	SourceName string  `json:"source_name"`
	TargetID   string  `json:"target_id"`
	TargetName string  `json:"target_name"`
	RelType    string  `json:"rel_type"`
	Confidence float64 `json:"confidence"`
	Context    string  `json:"context"`
	Depth      int     `json:"depth"`
}

// EntityMention is a pure append-only evidence record.
type EntityMention struct {
	ID          string  `json:"id"`
	EntityID    string  `json:"entity_id"`
	DocumentID  string  `json:"document_id"`
	MentionText string  `json:"mention_text"`
	Context     string  `json:"context"`
	SpanStart   int64   `json:"span_start"`
	SpanEnd     int64   `json:"span_end"`
	Confidence  float64 `json:"confidence"`
	Ctime       int64   `json:"ctime"`
}

// EntityFact records "this was true from ValidFrom to ValidUntil",
// independent of FactDate, which is when the fact was observed.
type EntityFact struct {
	ID         string  `json:"id"`
	EntityID   string  `json:"entity_id"`
	FactType   string  `json:"fact_type"`
	FactText   string  `json:"fact_text"`
	Confidence float64 `json:"confidence"`
	DocumentID string  `json:"document_id,omitempty"`
	FactDate   *int64  `json:"fact_date,omitempty"`
	ValidFrom  *int64  `json:"valid_from,omitempty"`
	ValidUntil *int64  `json:"valid_until,omitempty"`
	Ctime      int64   `json:"ctime"`
}
