package repo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/recall/internal/model"
	appErr "github.com/xxxsen/recall/internal/pkg/errors"
	"github.com/xxxsen/recall/internal/pkg/timeutil"
	"github.com/xxxsen/recall/internal/repo"
	"github.com/xxxsen/recall/test/testutil"
)

func newTestMemory(id, userID, content string, importance float64) *model.Memory {
	return &model.Memory{
		ID: id, UserID: userID, Category: "project_context",
		Content: content, Confidence: 1, Importance: importance,
		Ctime: timeutil.NowUnix(),
	}
}

func TestCategoryRepoSeededDefaults(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	cats := repo.NewCategoryRepo(db)
	cat, err := cats.GetByName(context.Background(), "user_preferences")
	require.NoError(t, err)
	require.EqualValues(t, 10, cat.Priority)
	require.NotNil(t, cat.RetentionDays)
	require.EqualValues(t, 365, *cat.RetentionDays)

	_, err = cats.GetByName(context.Background(), "no_such_category")
	require.ErrorIs(t, err, appErr.ErrNotFound)

	list, err := cats.List(context.Background())
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(list), 5)
}

func TestMemoryRepoRecallTextAndTouch(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	defer db.Exec(`DELETE FROM memories WHERE user_id = 'touch-user'`)

	memories := repo.NewMemoryRepo(db)
	require.NoError(t, memories.Create(context.Background(), newTestMemory("touch-1", "touch-user", "prefers dark mode in the editor", 0.8)))
	require.NoError(t, memories.Create(context.Background(), newTestMemory("touch-2", "touch-user", "works on billing service", 0.8)))
	// below the importance floor, must not be touched or recalled
	require.NoError(t, memories.Create(context.Background(), newTestMemory("touch-3", "touch-user", "dark chocolate is fine", 0.1)))

	now := timeutil.NowUnix()
	hits, err := memories.RecallText(context.Background(), "touch-user", "dark mode", 0.3, 0.3, now, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "touch-1", hits[0].ID)
	// verbatim containment gets relevance 1.0
	require.InDelta(t, 1.0, hits[0].Relevance, 0.001)

	require.NoError(t, memories.TouchAll(context.Background(), "touch-user", 0.3, now))

	m1, err := memories.GetByID(context.Background(), "touch-1")
	require.NoError(t, err)
	require.EqualValues(t, 1, m1.AccessCount)
	// touched even though it was not in the returned page
	m2, err := memories.GetByID(context.Background(), "touch-2")
	require.NoError(t, err)
	require.EqualValues(t, 1, m2.AccessCount)
	m3, err := memories.GetByID(context.Background(), "touch-3")
	require.NoError(t, err)
	require.EqualValues(t, 0, m3.AccessCount)
}

func TestMemoryRepoRecallVectorFloor(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	defer db.Exec(`DELETE FROM memories WHERE user_id = 'vec-user'`)

	memories := repo.NewMemoryRepo(db)
	near := newTestMemory("memvec-1", "vec-user", "close memory", 0.8)
	near.Embedding = testutil.TestVector(1)
	far := newTestMemory("memvec-2", "vec-user", "far memory", 0.8)
	far.Embedding = testutil.TestVector(0)
	plain := newTestMemory("memvec-3", "vec-user", "no embedding", 0.8)
	require.NoError(t, memories.Create(context.Background(), near))
	require.NoError(t, memories.Create(context.Background(), far))
	require.NoError(t, memories.Create(context.Background(), plain))

	hits, err := memories.RecallVector(context.Background(), "vec-user", testutil.TestVector(1), 0.5, 0.3, timeutil.NowUnix(), 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "memvec-1", hits[0].ID)
	require.Greater(t, hits[0].Relevance, 0.5)
}

func TestMemoryRepoRecallDefaultOrdering(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	defer db.Exec(`DELETE FROM memories WHERE user_id = 'def-user'`)

	memories := repo.NewMemoryRepo(db)
	low := newTestMemory("def-1", "def-user", "low importance", 0.4)
	high := newTestMemory("def-2", "def-user", "high importance", 0.9)
	highPrio := newTestMemory("def-3", "def-user", "high priority category", 0.4)
	highPrio.Category = "user_preferences"
	require.NoError(t, memories.Create(context.Background(), low))
	require.NoError(t, memories.Create(context.Background(), high))
	require.NoError(t, memories.Create(context.Background(), highPrio))

	hits, err := memories.RecallDefault(context.Background(), "def-user", 0.3, timeutil.NowUnix(), 10)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	// category priority dominates importance
	require.Equal(t, "def-3", hits[0].ID)
	require.Equal(t, "def-2", hits[1].ID)
	require.Equal(t, "def-1", hits[2].ID)
	// default mode reports importance as relevance
	require.InDelta(t, hits[1].Importance, hits[1].Relevance, 0.001)
}

func TestMemoryRepoSweepIdempotent(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	defer db.Exec(`DELETE FROM memories WHERE user_id = 'sweep-user'`)

	memories := repo.NewMemoryRepo(db)
	now := timeutil.NowUnix()
	expired := newTestMemory("sweep-1", "sweep-user", "gone", 0.8)
	past := now - 10
	expired.ExpiresAt = &past
	keep := newTestMemory("sweep-2", "sweep-user", "stays", 0.8)
	future := now + 3600
	keep.ExpiresAt = &future
	forever := newTestMemory("sweep-3", "sweep-user", "never expires", 0.8)
	require.NoError(t, memories.Create(context.Background(), expired))
	require.NoError(t, memories.Create(context.Background(), keep))
	require.NoError(t, memories.Create(context.Background(), forever))

	deleted, err := memories.SweepExpired(context.Background(), now)
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)

	deleted, err = memories.SweepExpired(context.Background(), now)
	require.NoError(t, err)
	require.EqualValues(t, 0, deleted)
}

func TestMemoryRepoRescoreClamps(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	defer db.Exec(`DELETE FROM memories WHERE user_id = 'rescore-user'`)

	memories := repo.NewMemoryRepo(db)
	now := timeutil.NowUnix()

	hot := newTestMemory("rescore-hot", "rescore-user", "heavily used", 0.95)
	hot.AccessCount = 20
	recent := now - 3600
	hot.LastAccess = &recent
	cold := newTestMemory("rescore-cold", "rescore-user", "long forgotten", 0.15)
	cold.AccessCount = 1
	stale := now - 86400*120
	cold.LastAccess = &stale
	require.NoError(t, memories.Create(context.Background(), hot))
	require.NoError(t, memories.Create(context.Background(), cold))

	boostSince := now - 86400*30
	decayBefore := now - 86400*90
	for i := 0; i < 3; i++ {
		_, _, err := memories.Rescore(context.Background(), boostSince, decayBefore)
		require.NoError(t, err)
	}

	got, err := memories.GetByID(context.Background(), "rescore-hot")
	require.NoError(t, err)
	require.InDelta(t, 1.0, got.Importance, 0.0001)

	got, err = memories.GetByID(context.Background(), "rescore-cold")
	require.NoError(t, err)
	require.InDelta(t, 0.1, got.Importance, 0.0001)
}
