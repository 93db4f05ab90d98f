package roadgraph

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"road-orienteer/internal/models"
)

const mode = models.TravelModeBike

// triangle: 0->1 one-way, 1-2 both ways, 2-0 not traversable
func triangle(t *testing.T) *Graph {
	t.Helper()
	b := NewBuilder()
	b.AddVertex(orb.Point{-74.0060, 40.7128})
	b.AddVertex(orb.Point{-74.0050, 40.7128})
	b.AddVertex(orb.Point{-74.0055, 40.7138})

	_, err := b.AddRoad(0, 1, 84, mode, Access{Forward: true, Priority: 0.5})
	require.NoError(t, err)
	_, err = b.AddRoad(1, 2, 120, mode, Access{Forward: true, Backward: true, Priority: 1})
	require.NoError(t, err)
	_, err = b.AddRoad(2, 0, 120, mode, Access{})
	require.NoError(t, err)
	return b.Build()
}

func collect(it *ArcIterator) []Arc {
	var arcs []Arc
	for it.Next() {
		arcs = append(arcs, it.Arc())
	}
	return arcs
}

func TestBuilderRejectsBadEdges(t *testing.T) {
	b := NewBuilder()
	b.AddVertex(orb.Point{0, 0})
	b.AddVertex(orb.Point{1, 1})

	_, err := b.AddRoad(0, 5, 1, mode, Access{Forward: true})
	assert.Error(t, err)
	_, err = b.AddRoad(1, 1, 1, mode, Access{Forward: true})
	assert.Error(t, err)
	_, err = b.AddRoad(0, 1, -1, mode, Access{Forward: true})
	assert.Error(t, err)

	id, err := b.AddRoad(0, 1, 1, mode, Access{Forward: true})
	require.NoError(t, err)
	assert.Equal(t, 0, id)
}

func TestNetworkDirections(t *testing.T) {
	net := NewNetwork(triangle(t), mode, nil)

	fwd := Arc{Edge: 0, Base: 0, Adj: 1}
	rev := Arc{Edge: 0, Base: 1, Adj: 0}
	assert.True(t, net.IsForward(fwd))
	assert.False(t, net.IsBackward(fwd))
	assert.False(t, net.IsForward(rev))
	assert.True(t, net.IsBackward(rev))
	assert.True(t, net.IsOneWay(fwd))
	assert.True(t, net.IsTraversable(rev))

	both := Arc{Edge: 1, Base: 2, Adj: 1}
	assert.True(t, net.IsForward(both))
	assert.False(t, net.IsOneWay(both))

	closed := Arc{Edge: 2, Base: 2, Adj: 0}
	assert.False(t, net.IsTraversable(closed))
}

func TestOutgoingAndIncomingArcs(t *testing.T) {
	net := NewNetwork(triangle(t), mode, nil)

	assert.Equal(t, []Arc{{Edge: 0, Base: 0, Adj: 1}}, collect(net.OutgoingArcs(0)))
	assert.Empty(t, collect(net.IncomingArcs(0)))

	assert.Equal(t, []Arc{{Edge: 1, Base: 1, Adj: 2}}, collect(net.OutgoingArcs(1)))
	assert.ElementsMatch(t, []Arc{{Edge: 0, Base: 1, Adj: 0}, {Edge: 1, Base: 1, Adj: 2}}, collect(net.IncomingArcs(1)))

	assert.Equal(t, []Arc{{Edge: 1, Base: 2, Adj: 1}}, collect(net.OutgoingArcs(2)))
}

func TestExplorerSkipsClosedEdges(t *testing.T) {
	net := NewNetwork(triangle(t), mode, nil)
	x := net.Explorer()

	assert.Equal(t, []Arc{{Edge: 0, Base: 0, Adj: 1}}, collect(x.SetBaseNode(0)))
	assert.Len(t, collect(x.SetBaseNode(1)), 2)
	assert.Equal(t, []Arc{{Edge: 1, Base: 2, Adj: 1}}, collect(x.SetBaseNode(2)))
}

func TestAllEdgesUsesRecordedBase(t *testing.T) {
	net := NewNetwork(triangle(t), mode, nil)
	arcs := collect(net.AllEdges())
	require.Len(t, arcs, 3)
	assert.Equal(t, Arc{Edge: 2, Base: 2, Adj: 0}, arcs[2])
}

func TestWeightings(t *testing.T) {
	g := triangle(t)

	net := NewNetwork(g, mode, nil)
	assert.Equal(t, 0.5, net.Score(Arc{Edge: 0, Base: 0, Adj: 1}))
	assert.Equal(t, 1.0, net.Score(Arc{Edge: 1, Base: 2, Adj: 1}))

	fixed := NewNetwork(g, mode, FixedWeighting{2: 7})
	assert.Equal(t, 7.0, fixed.Score(Arc{Edge: 2, Base: 0, Adj: 2}))
	assert.Equal(t, 0.0, fixed.Score(Arc{Edge: 0, Base: 0, Adj: 1}))

	// Another mode has no access recorded
	foot := NewNetwork(g, models.TravelModeFoot, nil)
	assert.Equal(t, 0.0, foot.Score(Arc{Edge: 1, Base: 1, Adj: 2}))
	assert.False(t, foot.IsTraversable(Arc{Edge: 1, Base: 1, Adj: 2}))
}

func TestStats(t *testing.T) {
	s := triangle(t).Stats(mode)
	assert.Equal(t, Stats{Vertices: 3, Edges: 3, NonTraversable: 1, OneWay: 1}, s)
}

func TestBound(t *testing.T) {
	b := triangle(t).Bound()
	assert.Equal(t, orb.Point{-74.0060, 40.7128}, b.Min)
	assert.Equal(t, orb.Point{-74.0050, 40.7138}, b.Max)

	assert.True(t, NewBuilder().Build().Bound().IsZero())
}

func TestLocationIndexClosest(t *testing.T) {
	net := NewNetwork(triangle(t), mode, nil)
	idx, err := NewLocationIndex(net, 200)
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Len())

	v, d, err := idx.Closest(models.Coordinates{Lat: 40.71381, Lng: -74.00551})
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Less(t, d, 5.0)

	_, _, err = idx.Closest(models.Coordinates{Lat: 40.80, Lng: -74.00})
	assert.True(t, errors.Is(err, ErrNoVertexNearby))
}

func TestLocationIndexClosestInMeters(t *testing.T) {
	// At 70N a degree of longitude is about a third of a degree of latitude:
	// vertex 0 is nearer in meters although vertex 1 is nearer in degrees.
	b := NewBuilder()
	b.AddVertex(orb.Point{0.0009, 70})
	b.AddVertex(orb.Point{0, 70.0005})
	b.AddVertex(orb.Point{0.01, 70.01})
	_, err := b.AddRoad(0, 2, 1200, mode, Access{Forward: true, Backward: true, Priority: 1})
	require.NoError(t, err)
	_, err = b.AddRoad(1, 2, 1200, mode, Access{Forward: true, Backward: true, Priority: 1})
	require.NoError(t, err)

	idx, err := NewLocationIndex(NewNetwork(b.Build(), mode, nil), 200)
	require.NoError(t, err)

	v, d, err := idx.Closest(models.Coordinates{Lat: 70, Lng: 0})
	require.NoError(t, err)
	assert.Equal(t, 0, v)
	assert.InDelta(t, 34, d, 2)
}

func TestLocationIndexEmpty(t *testing.T) {
	net := NewNetwork(triangle(t), models.TravelModeFoot, nil)
	idx, err := NewLocationIndex(net, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Len())

	_, _, err = idx.Closest(models.Coordinates{Lat: 40.7128, Lng: -74.0060})
	assert.True(t, errors.Is(err, ErrNoVertexNearby))
}

func TestRouteFeatureCollection(t *testing.T) {
	net := NewNetwork(triangle(t), mode, nil)
	arcs := []Arc{{Edge: 1, Base: 2, Adj: 1}}

	fc := RouteFeatureCollection(net, 2, arcs)
	require.Len(t, fc.Features, 2)
	assert.Equal(t, "start", fc.Features[0].Properties["role"])

	line, ok := fc.Features[1].Geometry.(orb.LineString)
	require.True(t, ok)
	assert.Equal(t, net.Graph().Point(2), line[0])
	assert.Equal(t, net.Graph().Point(1), line[1])

	data, err := json.Marshal(fc)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"FeatureCollection"`)
}
