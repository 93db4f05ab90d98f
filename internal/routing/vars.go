package routing

import (
	"fmt"

	"road-orienteer/internal/mip"
	"road-orienteer/internal/roadgraph"
)

// arcRecord holds the two traversal variables of one edge. base is the edge's
// base vertex as seen when the variables were created and decides which
// physical direction is forward.
type arcRecord struct {
	edge     int
	base     int
	forward  mip.Var
	backward mip.Var
}

// Vars owns the decision variables of one solve
type Vars struct {
	net   *roadgraph.Network
	model *mip.Model

	verts  []mip.Var
	arcs   []arcRecord
	byEdge map[int]int
}

// NewVars creates an empty variable set for net on model
func NewVars(net *roadgraph.Network, model *mip.Model) *Vars {
	return &Vars{
		net:    net,
		model:  model,
		byEdge: make(map[int]int),
	}
}

// AddVarsToModel creates one visit-count variable per vertex and a forward and
// backward binary per edge. Directions the travel mode may not use get an
// upper bound of 0.
func (vs *Vars) AddVarsToModel() error {
	n := vs.net.NumVertices()
	vs.verts = make([]mip.Var, n)
	for i := 0; i < n; i++ {
		vs.verts[i] = vs.model.NewInteger(0, float64(n), fmt.Sprintf("visits_%d", i))
	}

	edges := vs.net.AllEdges()
	vs.arcs = make([]arcRecord, 0, edges.Len())
	for edges.Next() {
		a := edges.Arc()
		rec := arcRecord{
			edge:     a.Edge,
			base:     a.Base,
			forward:  vs.model.NewBinary(fmt.Sprintf("forward_%d|%d->%d", a.Edge, a.Base, a.Adj)),
			backward: vs.model.NewBinary(fmt.Sprintf("backward_%d|%d->%d", a.Edge, a.Base, a.Adj)),
		}
		if !vs.net.IsForward(a) {
			if err := vs.model.SetUpperBound(rec.forward, 0); err != nil {
				return err
			}
		}
		if !vs.net.IsBackward(a) {
			if err := vs.model.SetUpperBound(rec.backward, 0); err != nil {
				return err
			}
		}
		vs.byEdge[a.Edge] = len(vs.arcs)
		vs.arcs = append(vs.arcs, rec)
	}
	return nil
}

// ArcVar returns the variable for travelling a from a.Base to a.Adj, or from
// a.Adj to a.Base when reverse is set.
func (vs *Vars) ArcVar(a roadgraph.Arc, reverse bool) (mip.Var, error) {
	i, ok := vs.byEdge[a.Edge]
	if !ok {
		return mip.Var{}, fmt.Errorf("%w: edge %d", ErrUnknownArc, a.Edge)
	}
	rec := &vs.arcs[i]
	from := a.Base
	if reverse {
		from = a.Adj
	}
	if rec.base == from {
		return rec.forward, nil
	}
	return rec.backward, nil
}

// VertexVar returns the visit-count variable of vertex id
func (vs *Vars) VertexVar(id int) (mip.Var, error) {
	if id < 0 || id >= len(vs.verts) {
		return mip.Var{}, fmt.Errorf("%w: %d (graph has %d vertices)", ErrInvalidVertex, id, len(vs.verts))
	}
	return vs.verts[id], nil
}

// VertexVars returns the visit-count variables indexed by vertex
func (vs *Vars) VertexVars() []mip.Var { return vs.verts }

// ArcVars returns every traversal variable, forward and backward per edge
func (vs *Vars) ArcVars() []mip.Var {
	out := make([]mip.Var, 0, 2*len(vs.arcs))
	for _, rec := range vs.arcs {
		out = append(out, rec.forward, rec.backward)
	}
	return out
}

// SelectedArcs returns the arcs travelled in values, oriented in travel direction
func (vs *Vars) SelectedArcs(values ValueSource) []roadgraph.Arc {
	var out []roadgraph.Arc
	g := vs.net.Graph()
	for _, rec := range vs.arcs {
		e := g.Edge(rec.edge)
		adj := e.Adj
		if rec.base != e.Base {
			adj = e.Base
		}
		if values.Value(rec.forward) > 0.5 {
			out = append(out, roadgraph.Arc{Edge: rec.edge, Base: rec.base, Adj: adj})
		}
		if values.Value(rec.backward) > 0.5 {
			out = append(out, roadgraph.Arc{Edge: rec.edge, Base: adj, Adj: rec.base})
		}
	}
	return out
}
