package dbutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFinalizeRewritesLimitAndPlaceholders(t *testing.T) {
	query := "SELECT id FROM entities WHERE entity_type = ? ORDER BY mtime DESC LIMIT ?,?"
	args := []interface{}{"person", uint(10), uint(5)}

	got, gotArgs := Finalize(query, args)
	require.Equal(t, "SELECT id FROM entities WHERE entity_type = $1 ORDER BY mtime DESC LIMIT $2 OFFSET $3", got)
	// gendry emits offset,limit; postgres wants limit,offset
	require.Equal(t, []interface{}{"person", uint(5), uint(10)}, gotArgs)
}

func TestFinalizePlainLimitUntouched(t *testing.T) {
	query := "SELECT id FROM chunks WHERE source_id = ? LIMIT ?"
	args := []interface{}{"src", 10}

	got, gotArgs := Finalize(query, args)
	require.Equal(t, "SELECT id FROM chunks WHERE source_id = $1 LIMIT $2", got)
	require.Equal(t, []interface{}{"src", 10}, gotArgs)
}
