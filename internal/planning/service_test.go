package planning

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"road-orienteer/internal/database"
	"road-orienteer/internal/geocoding"
	"road-orienteer/internal/models"
	"road-orienteer/internal/routing"
	"road-orienteer/internal/sqlite"
	"road-orienteer/internal/testutil"
)

type fixture struct {
	store    *sqlite.Store
	service  *Service
	geocoder *testutil.MockGeocoder
	graphID  string
}

func vertexCoords(i, n int) models.Coordinates {
	p := testutil.VertexPoint(i, n)
	return models.Coordinates{Lat: p.Lat(), Lng: p.Lon()}
}

func setup(t *testing.T, n int, edges []testutil.TestEdge) *fixture {
	t.Helper()
	store, err := sqlite.New(sqlite.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	g, err := testutil.BuildGraph(n, edges)
	require.NoError(t, err)
	info, err := store.Graphs().Save(context.Background(), "test.osm", "/maps/test.osm", g)
	require.NoError(t, err)

	geocoder := testutil.NewMockGeocoder(map[string]models.Coordinates{
		"2 Triangle Way": vertexCoords(2, n),
	})
	return &fixture{
		store:    store,
		service:  NewService(store, database.NewGraphCache(store.Graphs(), nil), geocoder, 100),
		geocoder: geocoder,
		graphID:  info.ID,
	}
}

func (f *fixture) input() *Input {
	return &Input{
		GraphID:     f.graphID,
		Mode:        testutil.TestMode,
		StartNode:   -1,
		MaxDistance: 3,
	}
}

func TestSolveFromNode(t *testing.T) {
	f := setup(t, 3, testutil.DirectedTriangle())
	ctx := context.Background()

	in := f.input()
	in.StartNode = 0
	rec, err := f.service.Solve(ctx, in)
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, f.graphID, rec.GraphID)
	assert.Equal(t, testutil.TestMode, rec.Mode)
	assert.Equal(t, models.SolveStatusOptimal, rec.Result.Status)
	assert.InDelta(t, 3.0, rec.Result.Score, 0.01)
	assert.Len(t, rec.Result.Arcs, 3)

	want := vertexCoords(0, 3)
	assert.InDelta(t, want.Lat, rec.Start.Lat, 1e-5)
	assert.InDelta(t, want.Lng, rec.Start.Lng, 1e-5)

	stored, err := f.store.Solves().GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Result.Status, stored.Result.Status)
	assert.Len(t, stored.Result.Arcs, 3)
}

func TestSolveFromCoordinates(t *testing.T) {
	f := setup(t, 3, testutil.DirectedTriangle())

	in := f.input()
	start := vertexCoords(1, 3)
	in.StartCoords = &start
	in.StartNode = 0 // coordinates win

	rec, err := f.service.Solve(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Result.StartNode)
	assert.True(t, rec.Result.HasRoute())
}

func TestSolveFromAddress(t *testing.T) {
	f := setup(t, 3, testutil.DirectedTriangle())

	in := f.input()
	in.StartAddress = "2 Triangle Way"
	rec, err := f.service.Solve(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Result.StartNode)
	assert.Equal(t, []string{"2 Triangle Way"}, f.geocoder.Calls)

	in.StartAddress = "Atlantis"
	_, err = f.service.Solve(context.Background(), in)
	var geoErr *geocoding.ErrGeocodingFailed
	assert.ErrorAs(t, err, &geoErr)
}

func TestSolveInfeasibleIsStored(t *testing.T) {
	f := setup(t, 3, testutil.DirectedTriangle())
	ctx := context.Background()

	in := f.input()
	in.StartNode = 0
	in.MaxDistance = 2
	rec, err := f.service.Solve(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, models.SolveStatusInfeasible, rec.Result.Status)
	assert.Empty(t, rec.Result.Arcs)

	_, total, err := f.store.Solves().List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestSolveInvalidInput(t *testing.T) {
	f := setup(t, 3, testutil.DirectedTriangle())
	noGeocoder := NewService(f.store, database.NewGraphCache(f.store.Graphs(), nil), nil, 100)

	cases := []struct {
		name    string
		service *Service
		mutate  func(*Input)
		field   string
	}{
		{"no start", f.service, func(in *Input) {}, "start"},
		{"unknown mode", f.service, func(in *Input) { in.Mode = "car"; in.StartNode = 0 }, "mode"},
		{"no graph", f.service, func(in *Input) { in.GraphID = ""; in.StartNode = 0 }, "graph_id"},
		{"zero budget", f.service, func(in *Input) { in.MaxDistance = 0; in.StartNode = 0 }, "max_distance"},
		{"no geocoder", noGeocoder, func(in *Input) { in.StartAddress = "2 Triangle Way" }, "start_address"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := f.input()
			tc.mutate(in)
			_, err := tc.service.Solve(context.Background(), in)

			var invalid *routing.ErrInvalidRequest
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tc.field, invalid.Field)
			assert.True(t, IsInputError(err))
		})
	}
}

func TestSolveUnknownGraph(t *testing.T) {
	f := setup(t, 3, testutil.DirectedTriangle())

	in := f.input()
	in.GraphID = "missing"
	in.StartNode = 0
	_, err := f.service.Solve(context.Background(), in)
	assert.True(t, errors.Is(err, database.ErrNotFound))
	assert.False(t, IsInputError(err))
}

func TestSolveWithoutStore(t *testing.T) {
	f := setup(t, 3, testutil.DirectedTriangle())
	service := NewService(nil, database.NewGraphCache(f.store.Graphs(), nil), nil, 100)

	in := f.input()
	in.StartNode = 0
	rec, err := service.Solve(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, rec.ID)
	assert.True(t, rec.Result.HasRoute())
}

func TestGeoJSON(t *testing.T) {
	f := setup(t, 3, testutil.DirectedTriangle())
	ctx := context.Background()

	in := f.input()
	in.StartNode = 0
	rec, err := f.service.Solve(ctx, in)
	require.NoError(t, err)

	fc, err := f.service.GeoJSON(ctx, rec)
	require.NoError(t, err)
	require.Len(t, fc.Features, 4)
	assert.Equal(t, "start", fc.Features[0].Properties["role"])
	for i, feature := range fc.Features[1:] {
		assert.Equal(t, i, feature.Properties["seq"])
		assert.Equal(t, "LineString", feature.Geometry.GeoJSONType())
	}

	rec.Result.Arcs[0].EdgeID = 42
	_, err = f.service.GeoJSON(ctx, rec)
	assert.True(t, errors.Is(err, routing.ErrUnknownArc))
}

func TestForget(t *testing.T) {
	f := setup(t, 3, testutil.DirectedTriangle())
	ctx := context.Background()

	in := f.input()
	in.StartNode = 0
	_, err := f.service.Solve(ctx, in)
	require.NoError(t, err)
	assert.Len(t, f.service.prepared, 1)

	f.service.Forget(f.graphID)
	assert.Empty(t, f.service.prepared)
}
