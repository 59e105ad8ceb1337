package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/recall/internal/model"
	appErr "github.com/xxxsen/recall/internal/pkg/errors"
)

type fakeEntityFinder struct {
	entities map[string]*model.Entity
}

func (f *fakeEntityFinder) GetByID(ctx context.Context, id string) (*model.Entity, error) {
	if e, ok := f.entities[id]; ok {
		return e, nil
	}
	return nil, appErr.ErrNotFound
}

func (f *fakeEntityFinder) SearchByName(ctx context.Context, name string, threshold float64, limit int) ([]model.EntityMatch, error) {
	return nil, nil
}

func (f *fakeEntityFinder) SearchByEmbedding(ctx context.Context, vec []float32, threshold float64, limit int) ([]model.EntityMatch, error) {
	return nil, nil
}

func (f *fakeEntityFinder) NamesByIDs(ctx context.Context, ids []string) (map[string]string, error) {
	names := map[string]string{}
	for _, id := range ids {
		if e, ok := f.entities[id]; ok {
			names[id] = e.Name
		}
	}
	return names, nil
}

// fakeRelLister serves edges from an adjacency list, highest confidence
// first within each call, mirroring the store's ordering contract.
type fakeRelLister struct {
	edges map[string][]model.Relationship
	calls int
}

func (f *fakeRelLister) ListBySources(ctx context.Context, sourceIDs []string) ([]model.Relationship, error) {
	f.calls++
	out := make([]model.Relationship, 0)
	for _, id := range sourceIDs {
		out = append(out, f.edges[id]...)
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].Confidence > out[i].Confidence {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

type fakeFactLister struct{}

func (f *fakeFactLister) Timeline(ctx context.Context, entityID string, start, end *int64) ([]model.EntityFact, error) {
	return []model.EntityFact{}, nil
}

func buildGraphFixture() (*fakeEntityFinder, *fakeRelLister) {
	finder := &fakeEntityFinder{entities: map[string]*model.Entity{
		"a": {ID: "a", Name: "alpha"},
		"b": {ID: "b", Name: "beta"},
		"c": {ID: "c", Name: "gamma"},
		"d": {ID: "d", Name: "delta"},
	}}
	lister := &fakeRelLister{edges: map[string][]model.Relationship{
		"a": {
			{SourceID: "a", TargetID: "b", RelType: "uses", Confidence: 0.9},
			{SourceID: "a", TargetID: "c", RelType: "uses", Confidence: 0.5},
		},
		"b": {
			{SourceID: "b", TargetID: "d", RelType: "part-of", Confidence: 0.8},
		},
	}}
	return finder, lister
}

func TestTraverseDepthAndOrdering(t *testing.T) {
	finder, lister := buildGraphFixture()
	svc := NewGraphService(finder, lister, &fakeFactLister{}, testRetrievalConfig())

	rows, err := svc.Traverse(context.Background(), "a", 2, 100)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	// depth ascending, confidence descending within a depth
	require.Equal(t, 1, rows[0].Depth)
	require.Equal(t, "b", rows[0].TargetID)
	require.Equal(t, 1, rows[1].Depth)
	require.Equal(t, "c", rows[1].TargetID)
	require.Equal(t, 2, rows[2].Depth)
	require.Equal(t, "d", rows[2].TargetID)

	// endpoint names resolved
	require.Equal(t, "alpha", rows[0].SourceName)
	require.Equal(t, "delta", rows[2].TargetName)
}

func TestTraverseDepthOneStopsEarly(t *testing.T) {
	finder, lister := buildGraphFixture()
	svc := NewGraphService(finder, lister, &fakeFactLister{}, testRetrievalConfig())

	rows, err := svc.Traverse(context.Background(), "a", 1, 100)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, 1, lister.calls)
}

func TestTraverseCycleReExpandsWithinDepthBound(t *testing.T) {
	finder := &fakeEntityFinder{entities: map[string]*model.Entity{
		"x": {ID: "x", Name: "ex"},
		"y": {ID: "y", Name: "why"},
	}}
	lister := &fakeRelLister{edges: map[string][]model.Relationship{
		"x": {{SourceID: "x", TargetID: "y", RelType: "related-to", Confidence: 0.9}},
		"y": {{SourceID: "y", TargetID: "x", RelType: "related-to", Confidence: 0.9}},
	}}
	svc := NewGraphService(finder, lister, &fakeFactLister{}, testRetrievalConfig())

	// no visited set: the cycle keeps producing one edge per depth, the
	// depth bound is the only terminator
	rows, err := svc.Traverse(context.Background(), "x", 3, 100)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "y", rows[0].TargetID)
	require.Equal(t, "x", rows[1].TargetID)
	require.Equal(t, "y", rows[2].TargetID)
}

func TestTraverseTruncatesToMaxResults(t *testing.T) {
	finder, lister := buildGraphFixture()
	svc := NewGraphService(finder, lister, &fakeFactLister{}, testRetrievalConfig())

	rows, err := svc.Traverse(context.Background(), "a", 2, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "b", rows[0].TargetID)
	require.Equal(t, "c", rows[1].TargetID)
}

func TestTraverseUnknownRoot(t *testing.T) {
	finder, lister := buildGraphFixture()
	svc := NewGraphService(finder, lister, &fakeFactLister{}, testRetrievalConfig())

	_, err := svc.Traverse(context.Background(), "missing", 2, 10)
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestTimelineUnknownEntity(t *testing.T) {
	finder, lister := buildGraphFixture()
	svc := NewGraphService(finder, lister, &fakeFactLister{}, testRetrievalConfig())

	_, err := svc.Timeline(context.Background(), "missing", nil, nil)
	require.ErrorIs(t, err, appErr.ErrNotFound)

	facts, err := svc.Timeline(context.Background(), "a", nil, nil)
	require.NoError(t, err)
	require.Len(t, facts, 0)
}

func TestResolveByEmbeddingRejectsWrongDim(t *testing.T) {
	finder, lister := buildGraphFixture()
	svc := NewGraphService(finder, lister, &fakeFactLister{}, testRetrievalConfig())

	_, err := svc.ResolveByEmbedding(context.Background(), []float32{1}, 0, 0)
	require.ErrorIs(t, err, appErr.ErrBadVectorDim)
}
