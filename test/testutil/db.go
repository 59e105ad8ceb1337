package testutil

import (
	"database/sql"
	"os"
	"testing"

	"github.com/xxxsen/recall/internal/config"
	"github.com/xxxsen/recall/internal/db"
)

func OpenTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping postgres test")
	}
	conn, err := db.Open(config.DatabaseConfig{
		Host:     host,
		Port:     5432,
		User:     "recall",
		Password: "recall_pass",
		DBName:   "recall_test",
		SSLMode:  "disable",
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return conn, func() {
		_ = conn.Close()
	}
}

// TestVector builds a deterministic unit-ish vector of the migration's
// fixed width. Varying the lead component gives controllable similarity.
func TestVector(lead float32) []float32 {
	vec := make([]float32, 1536)
	vec[0] = lead
	vec[1] = 1 - lead
	return vec
}
