package roadgraph

import "road-orienteer/internal/models"

// Weighting scores an edge for a travel mode. Higher is more desirable.
type Weighting interface {
	Name() string
	Score(e *Edge, mode models.TravelMode) float64
}

// PriorityWeighting scores an edge by the priority class the importer
// assigned to it for the mode, independent of its length.
type PriorityWeighting struct{}

func (PriorityWeighting) Name() string { return "priority" }

func (PriorityWeighting) Score(e *Edge, mode models.TravelMode) float64 {
	return e.Access[mode].Priority
}

// FixedWeighting scores edges from a table keyed by edge id; missing edges score 0
type FixedWeighting map[int]float64

func (FixedWeighting) Name() string { return "fixed" }

func (w FixedWeighting) Score(e *Edge, _ models.TravelMode) float64 {
	return w[e.ID]
}
