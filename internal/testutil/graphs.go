package testutil

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"road-orienteer/internal/models"
	"road-orienteer/internal/roadgraph"
)

// TestMode is the travel mode test graphs grant access for
const TestMode = models.TravelModeRacingBike

// Origin is the location of vertex 0 in test graphs
var Origin = models.Coordinates{Lat: 40.7128, Lng: -74.0060}

// TestEdge describes one road of a test graph
type TestEdge struct {
	A, B          int
	Bidirectional bool
	Distance      float64
	Score         float64
}

// Road is a shorthand for a TestEdge
func Road(a, b int, bidirectional bool, distance, score float64) TestEdge {
	return TestEdge{A: a, B: b, Bidirectional: bidirectional, Distance: distance, Score: score}
}

// VertexPoint places vertex i on a circle of roughly 100m around Origin
func VertexPoint(i, n int) orb.Point {
	angle := 2 * math.Pi * float64(i) / float64(max(n, 1))
	return orb.Point{
		Origin.Lng + 0.0012*math.Cos(angle),
		Origin.Lat + 0.0009*math.Sin(angle),
	}
}

// BuildGraph builds a graph with n vertices and the given roads. Scores are
// stored as the TestMode priority of each edge.
func BuildGraph(n int, edges []TestEdge) (*roadgraph.Graph, error) {
	b := roadgraph.NewBuilder()
	for i := 0; i < n; i++ {
		b.AddVertex(VertexPoint(i, n))
	}
	for _, e := range edges {
		_, err := b.AddRoad(e.A, e.B, e.Distance, TestMode, roadgraph.Access{
			Forward:  true,
			Backward: e.Bidirectional,
			Priority: e.Score,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to add test road %d->%d: %w", e.A, e.B, err)
		}
	}
	return b.Build(), nil
}

// BuildNetwork is BuildGraph wrapped in a TestMode network with priority weighting
func BuildNetwork(n int, edges []TestEdge) (*roadgraph.Network, error) {
	g, err := BuildGraph(n, edges)
	if err != nil {
		return nil, err
	}
	return roadgraph.NewNetwork(g, TestMode, nil), nil
}

// DirectedTriangle is 0->1->2->0 with unit distance and score
func DirectedTriangle() []TestEdge {
	return []TestEdge{
		Road(0, 1, false, 1, 1),
		Road(1, 2, false, 1, 1),
		Road(2, 0, false, 1, 1),
	}
}

// UndirectedTriangle is the two-way 0-1-2 cycle with unit distance and score
func UndirectedTriangle() []TestEdge {
	return []TestEdge{
		Road(0, 1, true, 1, 1),
		Road(1, 2, true, 1, 1),
		Road(2, 0, true, 1, 1),
	}
}

// TwoTriangles is two disconnected 3-cycles on 0-1-2 and 3-4-5
func TwoTriangles(bidirectional bool) []TestEdge {
	return []TestEdge{
		Road(0, 1, bidirectional, 1, 1),
		Road(1, 2, bidirectional, 1, 1),
		Road(2, 0, bidirectional, 1, 1),
		Road(3, 4, bidirectional, 1, 1),
		Road(4, 5, bidirectional, 1, 1),
		Road(5, 3, bidirectional, 1, 1),
	}
}

// DirectedK4 is the directed cycle 0->1->2->3->0 scoring 2 per arc plus the
// chords 0->2 and 1->3 scoring 1
func DirectedK4() []TestEdge {
	return []TestEdge{
		Road(0, 1, false, 1, 2),
		Road(1, 2, false, 1, 2),
		Road(2, 3, false, 1, 2),
		Road(3, 0, false, 1, 2),
		Road(0, 2, false, 1, 1),
		Road(1, 3, false, 1, 1),
	}
}

// Grid is a two-way rows x cols lattice with unit distances. Vertex r*cols+c
// sits at row r, column c; scores vary between 0.4 and 1 so ties are rare.
func Grid(rows, cols int) []TestEdge {
	var edges []TestEdge
	score := func(a, b int) float64 {
		return 0.4 + 0.1*float64((a*7+b*3)%7)
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			v := r*cols + c
			if c+1 < cols {
				edges = append(edges, Road(v, v+1, true, 1, score(v, v+1)))
			}
			if r+1 < rows {
				edges = append(edges, Road(v, v+cols, true, 1, score(v, v+cols)))
			}
		}
	}
	return edges
}
