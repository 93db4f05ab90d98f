// Package roadgraph holds the immutable road network a route is planned on
// and the read-only views the solver queries it through.
package roadgraph

import (
	"fmt"
	"log"

	"github.com/paulmach/orb"

	"road-orienteer/internal/models"
)

// Access describes how one travel mode may use an edge. Forward is the
// Base->Adj direction of the edge.
type Access struct {
	Forward  bool
	Backward bool
	// Priority is the desirability of the edge in [0, 1]
	Priority float64
}

// Edge is an undirected road segment between two vertices
type Edge struct {
	ID       int
	Base     int
	Adj      int
	Distance float64 // meters
	Name     string
	// Geometry runs from Base to Adj, endpoints included. May be empty.
	Geometry orb.LineString
	Access   map[models.TravelMode]Access
}

// Graph is an immutable road network. Build one with a Builder.
type Graph struct {
	points    []orb.Point
	edges     []Edge
	adjacency [][]int
}

// NumVertices returns the number of vertices
func (g *Graph) NumVertices() int { return len(g.points) }

// NumEdges returns the number of edges
func (g *Graph) NumEdges() int { return len(g.edges) }

// Point returns the location of vertex v
func (g *Graph) Point(v int) orb.Point { return g.points[v] }

// Bound returns the bounding box of all vertices
func (g *Graph) Bound() orb.Bound {
	if len(g.points) == 0 {
		return orb.Bound{}
	}
	return orb.MultiPoint(g.points).Bound()
}

// Edge returns the edge with the given id
func (g *Graph) Edge(id int) *Edge { return &g.edges[id] }

// Edges returns every edge ordered by id
func (g *Graph) Edges() []Edge { return g.edges }

// EdgesAt returns the ids of the edges touching v
func (g *Graph) EdgesAt(v int) []int { return g.adjacency[v] }

// EdgeGeometry returns the edge polyline from Base to Adj, falling back to the
// straight segment between the endpoints.
func (g *Graph) EdgeGeometry(e *Edge) orb.LineString {
	if len(e.Geometry) >= 2 {
		return e.Geometry
	}
	return orb.LineString{g.points[e.Base], g.points[e.Adj]}
}

// Stats counts edge kinds for one travel mode
type Stats struct {
	Vertices       int
	Edges          int
	NonTraversable int
	OneWay         int
}

// Stats computes edge statistics for mode
func (g *Graph) Stats(mode models.TravelMode) Stats {
	s := Stats{Vertices: len(g.points), Edges: len(g.edges)}
	for i := range g.edges {
		a := g.edges[i].Access[mode]
		switch {
		case !a.Forward && !a.Backward:
			s.NonTraversable++
		case a.Forward != a.Backward:
			s.OneWay++
		}
	}
	return s
}

// LogStats writes the edge statistics of mode to the log
func (g *Graph) LogStats(mode models.TravelMode) {
	s := g.Stats(mode)
	log.Printf("[GRAPH] mode=%s vertices=%d edges=%d non_traversable=%d one_way=%d",
		mode, s.Vertices, s.Edges, s.NonTraversable, s.OneWay)
}

// Builder assembles a Graph
type Builder struct {
	g *Graph
}

// NewBuilder returns an empty builder
func NewBuilder() *Builder {
	return &Builder{g: &Graph{}}
}

// AddVertex adds a vertex at p and returns its id
func (b *Builder) AddVertex(p orb.Point) int {
	b.g.points = append(b.g.points, p)
	b.g.adjacency = append(b.g.adjacency, nil)
	return len(b.g.points) - 1
}

// AddEdge adds e and returns its id; e.ID is ignored.
func (b *Builder) AddEdge(e Edge) (int, error) {
	n := len(b.g.points)
	if e.Base < 0 || e.Base >= n || e.Adj < 0 || e.Adj >= n {
		return 0, fmt.Errorf("edge %d->%d references unknown vertex (have %d)", e.Base, e.Adj, n)
	}
	if e.Base == e.Adj {
		return 0, fmt.Errorf("edge %d->%d is a self-loop", e.Base, e.Adj)
	}
	if e.Distance < 0 {
		return 0, fmt.Errorf("edge %d->%d has negative distance %g", e.Base, e.Adj, e.Distance)
	}
	e.ID = len(b.g.edges)
	if e.Access == nil {
		e.Access = make(map[models.TravelMode]Access)
	}
	b.g.edges = append(b.g.edges, e)
	b.g.adjacency[e.Base] = append(b.g.adjacency[e.Base], e.ID)
	b.g.adjacency[e.Adj] = append(b.g.adjacency[e.Adj], e.ID)
	return e.ID, nil
}

// AddRoad is a shorthand for an edge that allows mode in the given directions
func (b *Builder) AddRoad(base, adj int, distance float64, mode models.TravelMode, access Access) (int, error) {
	return b.AddEdge(Edge{
		Base:     base,
		Adj:      adj,
		Distance: distance,
		Access:   map[models.TravelMode]Access{mode: access},
	})
}

// Build returns the graph. The builder must not be used afterwards.
func (b *Builder) Build() *Graph {
	g := b.g
	b.g = nil
	return g
}
