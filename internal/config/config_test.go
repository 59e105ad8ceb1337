package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFillsDefaults(t *testing.T) {
	path := writeConfig(t, `{"port": 8080, "database": {"host": "localhost", "user": "recall", "db_name": "recall"}}`)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 5432, cfg.Database.Port)
	require.Equal(t, "disable", cfg.Database.SSLMode)
	require.Equal(t, "info", cfg.LogConfig.Level)

	def := DefaultRetrieval()
	require.Equal(t, def, cfg.Retrieval)
	require.Equal(t, "17 * * * *", cfg.Jobs.MemorySweepSpec)
	require.Equal(t, 32, cfg.Jobs.BackfillBatch)
}

func TestLoadKeepsExplicitWeights(t *testing.T) {
	path := writeConfig(t, `{
		"port": 8080,
		"database": {"dsn": "postgres://recall@localhost/recall"},
		"retrieval": {"vector_weight": 0.7, "lexical_weight": 0.3, "traversal_depth": 3}
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.InDelta(t, 0.7, cfg.Retrieval.VectorWeight, 1e-9)
	require.InDelta(t, 0.3, cfg.Retrieval.LexicalWeight, 1e-9)
	require.Equal(t, 3, cfg.Retrieval.TraversalDepth)
	// untouched knobs still get defaults
	require.Equal(t, 1536, cfg.Retrieval.VectorDim)
	require.InDelta(t, 0.3, cfg.Retrieval.TrigramThreshold, 1e-9)
}

func TestLoadRejectsMissingPort(t *testing.T) {
	path := writeConfig(t, `{"database": {"host": "localhost"}}`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsMissingDatabase(t *testing.T) {
	path := writeConfig(t, `{"port": 8080}`)
	_, err := Load(path)
	require.Error(t, err)
}
