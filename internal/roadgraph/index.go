package roadgraph

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/quadtree"

	"road-orienteer/internal/models"
)

// ErrNoVertexNearby is returned when no traversable vertex lies within the snap radius
var ErrNoVertexNearby = errors.New("no traversable vertex near location")

// DefaultSnapRadius is the snap radius in meters used when none is configured
const DefaultSnapRadius = 500.0

// snapCandidates is how many planar neighbours are ranked by geodesic distance
const snapCandidates = 8

type indexedVertex struct {
	id int
	p  orb.Point
	// projected is p with longitude scaled to the index latitude
	projected orb.Point
}

func (v indexedVertex) Point() orb.Point { return v.projected }

// LocationIndex finds the traversable vertex nearest to a coordinate. Points
// are indexed on an equirectangular projection centred on the graph so that
// planar neighbours are close to metric ones.
type LocationIndex struct {
	net      *Network
	tree     *quadtree.Quadtree
	radius   float64
	size     int
	lonScale float64
}

func (idx *LocationIndex) project(p orb.Point) orb.Point {
	return orb.Point{p.Lon() * idx.lonScale, p.Lat()}
}

// NewLocationIndex indexes every vertex of net that has at least one
// traversable arc. radius <= 0 selects DefaultSnapRadius.
func NewLocationIndex(net *Network, radius float64) (*LocationIndex, error) {
	if radius <= 0 {
		radius = DefaultSnapRadius
	}
	g := net.Graph()
	var vertices []indexedVertex
	latSum := 0.0
	x := net.Explorer()
	for v := 0; v < g.NumVertices(); v++ {
		if x.SetBaseNode(v).Len() == 0 {
			continue
		}
		vertices = append(vertices, indexedVertex{id: v, p: g.Point(v)})
		latSum += g.Point(v).Lat()
	}

	idx := &LocationIndex{net: net, radius: radius, size: len(vertices), lonScale: 1}
	if len(vertices) == 0 {
		return idx, nil
	}
	idx.lonScale = math.Max(math.Cos(latSum/float64(len(vertices))*math.Pi/180), 0.01)

	var mp orb.MultiPoint
	for i := range vertices {
		vertices[i].projected = idx.project(vertices[i].p)
		mp = append(mp, vertices[i].projected)
	}
	idx.tree = quadtree.New(mp.Bound().Pad(0.001))
	for _, v := range vertices {
		if err := idx.tree.Add(v); err != nil {
			return nil, fmt.Errorf("failed to index vertex %d: %w", v.id, err)
		}
	}
	return idx, nil
}

// Len returns the number of indexed vertices
func (idx *LocationIndex) Len() int { return idx.size }

// Closest returns the vertex nearest to c and its distance in meters
func (idx *LocationIndex) Closest(c models.Coordinates) (int, float64, error) {
	if idx.tree == nil {
		return 0, 0, ErrNoVertexNearby
	}
	p := orb.Point{c.Lng, c.Lat}
	near := idx.tree.KNearest(nil, idx.project(p), snapCandidates)
	if len(near) == 0 {
		return 0, 0, ErrNoVertexNearby
	}
	v := near[0].(indexedVertex)
	d := geo.Distance(p, v.p)
	for _, found := range near[1:] {
		if cand := found.(indexedVertex); geo.Distance(p, cand.p) < d {
			v, d = cand, geo.Distance(p, cand.p)
		}
	}
	if d > idx.radius {
		return 0, 0, fmt.Errorf("%w: closest vertex %d is %.0fm away (limit %.0fm)", ErrNoVertexNearby, v.id, d, idx.radius)
	}
	return v.id, d, nil
}
