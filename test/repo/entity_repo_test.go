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

func newTestEntity(id, name string, lead float32) *model.Entity {
	now := timeutil.NowUnix()
	return &model.Entity{
		ID: id, Name: name, Type: model.EntityTypeTechnology,
		Confidence: 0.9, Embedding: testutil.TestVector(lead),
		Ctime: now, Mtime: now,
	}
}

func TestEntityRepoTrigramSearch(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	defer db.Exec(`DELETE FROM entities WHERE id LIKE 'trgm-%'`)

	entities := repo.NewEntityRepo(db)
	require.NoError(t, entities.Create(context.Background(), newTestEntity("trgm-1", "PostgreSQL", 1)))
	require.NoError(t, entities.Create(context.Background(), newTestEntity("trgm-2", "Postgres", 0.8)))
	require.NoError(t, entities.Create(context.Background(), newTestEntity("trgm-3", "Redis", 0)))

	matches, err := entities.SearchByName(context.Background(), "postgre", 0.3, 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	// best match first
	require.GreaterOrEqual(t, matches[0].Score, matches[1].Score)
	for _, m := range matches {
		require.Greater(t, m.Score, 0.3)
	}
}

func TestEntityRepoEmbeddingSearch(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	defer db.Exec(`DELETE FROM entities WHERE id LIKE 'emb-%'`)

	entities := repo.NewEntityRepo(db)
	require.NoError(t, entities.Create(context.Background(), newTestEntity("emb-1", "close match", 1)))
	require.NoError(t, entities.Create(context.Background(), newTestEntity("emb-2", "far match", 0)))
	// no embedding at all
	now := timeutil.NowUnix()
	require.NoError(t, entities.Create(context.Background(), &model.Entity{
		ID: "emb-3", Name: "no vector", Type: model.EntityTypeConcept, Ctime: now, Mtime: now,
	}))

	matches, err := entities.SearchByEmbedding(context.Background(), testutil.TestVector(1), 0.7, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, "emb-1", matches[0].ID)
	require.Greater(t, matches[0].Score, 0.7)
}

func TestEntityRepoDeleteCascades(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	defer db.Exec(`DELETE FROM entities WHERE id LIKE 'casc-%'`)

	entities := repo.NewEntityRepo(db)
	rels := repo.NewRelationshipRepo(db)
	facts := repo.NewFactRepo(db)

	require.NoError(t, entities.Create(context.Background(), newTestEntity("casc-1", "alpha", 1)))
	require.NoError(t, entities.Create(context.Background(), newTestEntity("casc-2", "beta", 0)))

	now := timeutil.NowUnix()
	require.NoError(t, rels.Create(context.Background(), &model.Relationship{
		ID: "casc-rel", SourceID: "casc-1", TargetID: "casc-2",
		RelType: "uses", Confidence: 0.8, Ctime: now, Mtime: now,
	}))
	require.NoError(t, facts.Create(context.Background(), &model.EntityFact{
		ID: "casc-fact", EntityID: "casc-1", FactType: "status",
		FactText: "active", Confidence: 1, Ctime: now,
	}))

	require.NoError(t, entities.Delete(context.Background(), "casc-1"))

	_, err := entities.GetByID(context.Background(), "casc-1")
	require.ErrorIs(t, err, appErr.ErrNotFound)
	_, err = rels.GetByID(context.Background(), "casc-rel")
	require.ErrorIs(t, err, appErr.ErrNotFound)
	timeline, err := facts.Timeline(context.Background(), "casc-1", nil, nil)
	require.NoError(t, err)
	require.Len(t, timeline, 0)
}

func TestRelationshipRepoRejectsSelfLoop(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	defer db.Exec(`DELETE FROM entities WHERE id = 'self-1'`)

	entities := repo.NewEntityRepo(db)
	rels := repo.NewRelationshipRepo(db)
	require.NoError(t, entities.Create(context.Background(), newTestEntity("self-1", "loop", 1)))

	now := timeutil.NowUnix()
	err := rels.Create(context.Background(), &model.Relationship{
		ID: "self-rel", SourceID: "self-1", TargetID: "self-1",
		RelType: "related-to", Confidence: 1, Ctime: now, Mtime: now,
	})
	require.ErrorIs(t, err, appErr.ErrSelfRelationship)
}

func TestRelationshipRepoListBySourcesOrdering(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	defer db.Exec(`DELETE FROM entities WHERE id LIKE 'ord-%'`)

	entities := repo.NewEntityRepo(db)
	rels := repo.NewRelationshipRepo(db)
	for i, id := range []string{"ord-1", "ord-2", "ord-3"} {
		require.NoError(t, entities.Create(context.Background(), newTestEntity(id, id, float32(i))))
	}
	now := timeutil.NowUnix()
	require.NoError(t, rels.Create(context.Background(), &model.Relationship{
		ID: "ord-rel-low", SourceID: "ord-1", TargetID: "ord-2",
		RelType: "uses", Confidence: 0.3, Ctime: now, Mtime: now,
	}))
	require.NoError(t, rels.Create(context.Background(), &model.Relationship{
		ID: "ord-rel-high", SourceID: "ord-1", TargetID: "ord-3",
		RelType: "uses", Confidence: 0.9, Ctime: now, Mtime: now,
	}))

	list, err := rels.ListBySources(context.Background(), []string{"ord-1"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "ord-rel-high", list[0].ID)
	require.Equal(t, "ord-rel-low", list[1].ID)
}
