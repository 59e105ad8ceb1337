package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/recall/internal/model"
	appErr "github.com/xxxsen/recall/internal/pkg/errors"
	"github.com/xxxsen/recall/internal/pkg/timeutil"
)

type fakeCategoryRepo struct {
	cats  map[string]*model.MemoryCategory
	looks int
}

func (f *fakeCategoryRepo) GetByName(ctx context.Context, name string) (*model.MemoryCategory, error) {
	f.looks++
	if cat, ok := f.cats[name]; ok {
		return cat, nil
	}
	return nil, appErr.ErrNotFound
}

func (f *fakeCategoryRepo) List(ctx context.Context) ([]model.MemoryCategory, error) {
	out := make([]model.MemoryCategory, 0, len(f.cats))
	for _, cat := range f.cats {
		out = append(out, *cat)
	}
	return out, nil
}

type fakeMemoryStore struct {
	created      []*model.Memory
	touched      int
	touchedUser  string
	mode         string
	sweepCount   int64
	rescoreCalls int
}

func (f *fakeMemoryStore) Create(ctx context.Context, m *model.Memory) error {
	f.created = append(f.created, m)
	return nil
}

func (f *fakeMemoryStore) RecallVector(ctx context.Context, userID string, vec []float32, simFloor, minImportance float64, now int64, limit int) ([]model.MemoryHit, error) {
	f.mode = "vector"
	return []model.MemoryHit{}, nil
}

func (f *fakeMemoryStore) RecallText(ctx context.Context, userID, text string, trigramThreshold, minImportance float64, now int64, limit int) ([]model.MemoryHit, error) {
	f.mode = "text"
	return []model.MemoryHit{}, nil
}

func (f *fakeMemoryStore) RecallDefault(ctx context.Context, userID string, minImportance float64, now int64, limit int) ([]model.MemoryHit, error) {
	f.mode = "default"
	return []model.MemoryHit{}, nil
}

func (f *fakeMemoryStore) TouchAll(ctx context.Context, userID string, minImportance float64, now int64) error {
	f.touched++
	f.touchedUser = userID
	return nil
}

func (f *fakeMemoryStore) Rescore(ctx context.Context, boostSince, decayBefore int64) (int64, int64, error) {
	f.rescoreCalls++
	return 0, 0, nil
}

func (f *fakeMemoryStore) SweepExpired(ctx context.Context, now int64) (int64, error) {
	return f.sweepCount, nil
}

func newMemoryFixture() (*MemoryService, *fakeMemoryStore, *fakeCategoryRepo) {
	retention := int64(30)
	cats := &fakeCategoryRepo{cats: map[string]*model.MemoryCategory{
		"project_context": {Name: "project_context", Priority: 8, RetentionDays: &retention},
		"scratch":         {Name: "scratch", Priority: 1},
	}}
	store := &fakeMemoryStore{}
	return NewMemoryService(store, cats, testRetrievalConfig()), store, cats
}

func TestStoreUnknownCategory(t *testing.T) {
	svc, _, _ := newMemoryFixture()
	_, err := svc.Store(context.Background(), &StoreMemoryRequest{
		UserID: "u1", Category: "nope", Content: "text",
	})
	require.ErrorIs(t, err, appErr.ErrCategoryNotFound)
}

func TestStoreDefaultsAndExpiry(t *testing.T) {
	svc, store, _ := newMemoryFixture()
	id, err := svc.Store(context.Background(), &StoreMemoryRequest{
		UserID: "u1", Category: "project_context", Content: "prefers tabs",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.Len(t, store.created, 1)

	m := store.created[0]
	require.InDelta(t, 1.0, m.Confidence, 1e-9)
	require.InDelta(t, 0.5, m.Importance, 1e-9)
	require.NotNil(t, m.ExpiresAt)
	// category default retention of 30 days
	require.InDelta(t, float64(timeutil.DaysAfter(30)), float64(*m.ExpiresAt), 5)
}

func TestStoreRetentionOverrideAndNeverExpires(t *testing.T) {
	svc, store, _ := newMemoryFixture()
	override := int64(7)
	_, err := svc.Store(context.Background(), &StoreMemoryRequest{
		UserID: "u1", Category: "project_context", Content: "short lived",
		RetentionDays: &override,
	})
	require.NoError(t, err)
	require.NotNil(t, store.created[0].ExpiresAt)
	require.InDelta(t, float64(timeutil.DaysAfter(7)), float64(*store.created[0].ExpiresAt), 5)

	// category without retention and no override: never expires
	_, err = svc.Store(context.Background(), &StoreMemoryRequest{
		UserID: "u1", Category: "scratch", Content: "forever",
	})
	require.NoError(t, err)
	require.Nil(t, store.created[1].ExpiresAt)
}

func TestStoreCategoryCached(t *testing.T) {
	svc, _, cats := newMemoryFixture()
	for i := 0; i < 3; i++ {
		_, err := svc.Store(context.Background(), &StoreMemoryRequest{
			UserID: "u1", Category: "project_context", Content: "x",
		})
		require.NoError(t, err)
	}
	require.Equal(t, 1, cats.looks)
}

func TestRecallModeDispatchAndTouch(t *testing.T) {
	svc, store, _ := newMemoryFixture()

	_, err := svc.Recall(context.Background(), &RecallRequest{UserID: "u1", Vector: []float32{1, 0, 0}})
	require.NoError(t, err)
	require.Equal(t, "vector", store.mode)

	_, err = svc.Recall(context.Background(), &RecallRequest{UserID: "u1", Query: "dark mode"})
	require.NoError(t, err)
	require.Equal(t, "text", store.mode)

	_, err = svc.Recall(context.Background(), &RecallRequest{UserID: "u1"})
	require.NoError(t, err)
	require.Equal(t, "default", store.mode)

	// every recall touches access bookkeeping for the whole user
	require.Equal(t, 3, store.touched)
	require.Equal(t, "u1", store.touchedUser)
}

func TestRecallRejectsWrongVectorDim(t *testing.T) {
	svc, _, _ := newMemoryFixture()
	_, err := svc.Recall(context.Background(), &RecallRequest{UserID: "u1", Vector: []float32{1}})
	require.ErrorIs(t, err, appErr.ErrBadVectorDim)
}

func TestSweepReportsCount(t *testing.T) {
	svc, store, _ := newMemoryFixture()
	store.sweepCount = 4
	deleted, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 4, deleted)
}
