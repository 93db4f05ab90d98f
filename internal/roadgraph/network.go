package roadgraph

import (
	"road-orienteer/internal/models"
)

// Arc is an edge seen from one of its endpoints. Base is the vertex the arc
// was reached from, Adj the other endpoint.
type Arc struct {
	Edge int
	Base int
	Adj  int
}

// ArcIterator walks a list of arcs
type ArcIterator struct {
	arcs []Arc
	pos  int
}

// Next advances to the next arc and reports whether there is one
func (it *ArcIterator) Next() bool {
	if it.pos >= len(it.arcs) {
		return false
	}
	it.pos++
	return true
}

// Arc returns the current arc
func (it *ArcIterator) Arc() Arc { return it.arcs[it.pos-1] }

// Len returns the total number of arcs in the iteration
func (it *ArcIterator) Len() int { return len(it.arcs) }

// Network is a read-only view of a Graph for one travel mode
type Network struct {
	graph     *Graph
	mode      models.TravelMode
	weighting Weighting
}

// NewNetwork wraps g. A nil weighting selects PriorityWeighting.
func NewNetwork(g *Graph, mode models.TravelMode, w Weighting) *Network {
	if w == nil {
		w = PriorityWeighting{}
	}
	return &Network{graph: g, mode: mode, weighting: w}
}

// Graph returns the underlying graph
func (n *Network) Graph() *Graph { return n.graph }

// Mode returns the travel mode of the view
func (n *Network) Mode() models.TravelMode { return n.mode }

// NumVertices returns the number of vertices
func (n *Network) NumVertices() int { return n.graph.NumVertices() }

// Edge returns the edge behind a
func (n *Network) Edge(a Arc) *Edge { return n.graph.Edge(a.Edge) }

// Distance returns the length of a in meters
func (n *Network) Distance(a Arc) float64 { return n.graph.edges[a.Edge].Distance }

// Score returns the desirability of a
func (n *Network) Score(a Arc) float64 {
	return n.weighting.Score(&n.graph.edges[a.Edge], n.mode)
}

// arcAt orients edge id so that v is its base
func (n *Network) arcAt(id, v int) Arc {
	e := &n.graph.edges[id]
	if e.Base == v {
		return Arc{Edge: id, Base: v, Adj: e.Adj}
	}
	return Arc{Edge: id, Base: v, Adj: e.Base}
}

// IsForward reports whether a may be travelled from a.Base to a.Adj
func (n *Network) IsForward(a Arc) bool {
	e := &n.graph.edges[a.Edge]
	acc := e.Access[n.mode]
	if e.Base == a.Base {
		return acc.Forward
	}
	return acc.Backward
}

// IsBackward reports whether a may be travelled from a.Adj to a.Base
func (n *Network) IsBackward(a Arc) bool {
	e := &n.graph.edges[a.Edge]
	acc := e.Access[n.mode]
	if e.Base == a.Base {
		return acc.Backward
	}
	return acc.Forward
}

// IsTraversable reports whether a may be travelled in any direction
func (n *Network) IsTraversable(a Arc) bool { return n.IsForward(a) || n.IsBackward(a) }

// IsOneWay reports whether a may be travelled in exactly one direction
func (n *Network) IsOneWay(a Arc) bool { return n.IsForward(a) != n.IsBackward(a) }

func (n *Network) filter(v int, keep func(Arc) bool) *ArcIterator {
	ids := n.graph.adjacency[v]
	arcs := make([]Arc, 0, len(ids))
	for _, id := range ids {
		if a := n.arcAt(id, v); keep(a) {
			arcs = append(arcs, a)
		}
	}
	return &ArcIterator{arcs: arcs}
}

// OutgoingArcs iterates the arcs based at v that can be left through
func (n *Network) OutgoingArcs(v int) *ArcIterator { return n.filter(v, n.IsForward) }

// IncomingArcs iterates the arcs based at v that can be entered through
func (n *Network) IncomingArcs(v int) *ArcIterator { return n.filter(v, n.IsBackward) }

// AllEdges iterates every edge once, oriented from its recorded base
func (n *Network) AllEdges() *ArcIterator {
	arcs := make([]Arc, len(n.graph.edges))
	for i := range n.graph.edges {
		e := &n.graph.edges[i]
		arcs[i] = Arc{Edge: e.ID, Base: e.Base, Adj: e.Adj}
	}
	return &ArcIterator{arcs: arcs}
}

// Explorer returns a cursor over the traversable arcs of any vertex
func (n *Network) Explorer() *Explorer {
	return &Explorer{net: n}
}

// Explorer enumerates the traversable arcs at a vertex regardless of their
// direction. It reuses its buffer between calls, so one Explorer must not be
// shared between goroutines.
type Explorer struct {
	net *Network
	it  ArcIterator
}

// SetBaseNode positions the explorer at v and returns an iterator over its arcs.
// The iterator is invalidated by the next call.
func (x *Explorer) SetBaseNode(v int) *ArcIterator {
	arcs := x.it.arcs[:0]
	for _, id := range x.net.graph.adjacency[v] {
		if a := x.net.arcAt(id, v); x.net.IsTraversable(a) {
			arcs = append(arcs, a)
		}
	}
	x.it = ArcIterator{arcs: arcs}
	return &x.it
}
