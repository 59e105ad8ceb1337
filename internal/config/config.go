package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port       int              `json:"port"`
	Database   DatabaseConfig   `json:"database"`
	LogConfig  logger.LogConfig `json:"log_config"`
	AI         AIConfig         `json:"ai"`
	Retrieval  RetrievalConfig  `json:"retrieval"`
	Jobs       JobsConfig       `json:"jobs"`
	CORSAllow  []string         `json:"cors_allow"`
	RateWindow int              `json:"rate_window_ms"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type AIConfig struct {
	Provider   string      `json:"provider"`
	EmbedModel string      `json:"embed_model"`
	Data       interface{} `json:"data"`
}

// RetrievalConfig carries every ranking tunable as data. Two historical
// weight choices (0.5/0.5 and 0.7/0.3) exist for the same fusion logic, so
// none of these may be inlined as constants at call sites.
type RetrievalConfig struct {
	VectorDim          int     `json:"vector_dim"`
	VectorWeight       float64 `json:"vector_weight"`
	LexicalWeight      float64 `json:"lexical_weight"`
	EntitySimThreshold float64 `json:"entity_sim_threshold"`
	TrigramThreshold   float64 `json:"trigram_threshold"`
	MemorySimFloor     float64 `json:"memory_sim_floor"`
	MinImportance      float64 `json:"min_importance"`
	TraversalDepth     int     `json:"traversal_depth"`
	DefaultLimit       int     `json:"default_limit"`
}

type JobsConfig struct {
	MemorySweepSpec       string `json:"memory_sweep_spec"`
	MemoryRescoreSpec     string `json:"memory_rescore_spec"`
	EmbeddingBackfillSpec string `json:"embedding_backfill_spec"`
	BackfillBatch         int    `json:"backfill_batch"`
}

func DefaultRetrieval() RetrievalConfig {
	return RetrievalConfig{
		VectorDim:          1536,
		VectorWeight:       0.5,
		LexicalWeight:      0.5,
		EntitySimThreshold: 0.7,
		TrigramThreshold:   0.3,
		MemorySimFloor:     0.5,
		MinImportance:      0.3,
		TraversalDepth:     2,
		DefaultLimit:       10,
	}
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	cfg := &Config{Retrieval: DefaultRetrieval()}
	if err := json.NewDecoder(file).Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.fill(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) fill() error {
	if c.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if c.Database.DSN == "" && c.Database.Host == "" {
		return fmt.Errorf("database.dsn or database.host is required")
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	r := &c.Retrieval
	def := DefaultRetrieval()
	if r.VectorDim <= 0 {
		r.VectorDim = def.VectorDim
	}
	if r.VectorWeight <= 0 && r.LexicalWeight <= 0 {
		r.VectorWeight = def.VectorWeight
		r.LexicalWeight = def.LexicalWeight
	}
	if r.EntitySimThreshold <= 0 {
		r.EntitySimThreshold = def.EntitySimThreshold
	}
	if r.TrigramThreshold <= 0 {
		r.TrigramThreshold = def.TrigramThreshold
	}
	if r.MemorySimFloor <= 0 {
		r.MemorySimFloor = def.MemorySimFloor
	}
	if r.MinImportance <= 0 {
		r.MinImportance = def.MinImportance
	}
	if r.TraversalDepth <= 0 {
		r.TraversalDepth = def.TraversalDepth
	}
	if r.DefaultLimit <= 0 {
		r.DefaultLimit = def.DefaultLimit
	}
	if c.Jobs.MemorySweepSpec == "" {
		c.Jobs.MemorySweepSpec = "17 * * * *"
	}
	if c.Jobs.MemoryRescoreSpec == "" {
		c.Jobs.MemoryRescoreSpec = "43 3 * * *"
	}
	if c.Jobs.EmbeddingBackfillSpec == "" {
		c.Jobs.EmbeddingBackfillSpec = "*/10 * * * *"
	}
	if c.Jobs.BackfillBatch <= 0 {
		c.Jobs.BackfillBatch = 32
	}
	return nil
}
