package routing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/samber/lo"

	"road-orienteer/internal/mip"
	"road-orienteer/internal/models"
	"road-orienteer/internal/roadgraph"
)

const costEpsilon = 1e-7

// planner builds and solves the arc-routing model for each request
type planner struct {
	net   *roadgraph.Network
	index *roadgraph.LocationIndex
}

// NewPlanner creates a router over net. index may be nil, in which case
// requests must name a start vertex.
func NewPlanner(net *roadgraph.Network, index *roadgraph.LocationIndex) Router {
	return &planner{net: net, index: index}
}

func (p *planner) resolveStart(req *Request) (int, error) {
	if req.StartCoords != nil {
		if p.index == nil {
			return 0, &ErrInvalidRequest{Field: "start", Reason: "coordinates given but no location index is loaded"}
		}
		v, d, err := p.index.Closest(*req.StartCoords)
		if err != nil {
			return 0, &ErrInvalidRequest{Field: "start", Reason: "cannot snap to road network", Err: err}
		}
		log.Printf("[SOLVER] Snapped start (%.5f, %.5f) to vertex %d (%.0fm)",
			req.StartCoords.Lat, req.StartCoords.Lng, v, d)
		return v, nil
	}
	if req.StartVertex < 0 || req.StartVertex >= p.net.NumVertices() {
		return 0, &ErrInvalidRequest{
			Field:  "start_vertex",
			Reason: fmt.Sprintf("%d is outside [0, %d)", req.StartVertex, p.net.NumVertices()),
			Err:    ErrInvalidVertex,
		}
	}
	return req.StartVertex, nil
}

func (p *planner) Plan(ctx context.Context, req *Request) (*models.RouteResult, error) {
	totalStart := time.Now()

	if req.MaxDistance <= 0 || math.IsNaN(req.MaxDistance) || math.IsInf(req.MaxDistance, 0) {
		return nil, &ErrInvalidRequest{Field: "max_distance", Reason: fmt.Sprintf("must be a positive number, got %g", req.MaxDistance)}
	}
	start, err := p.resolveStart(req)
	if err != nil {
		return nil, err
	}

	buildStart := time.Now()
	model := mip.NewModel()
	vars := NewVars(p.net, model)
	if err := vars.AddVarsToModel(); err != nil {
		return nil, fmt.Errorf("failed to create variables: %w", err)
	}
	cons := NewConstraints(p.net, model, vars)
	if err := cons.SetupConstraints(start, req.MaxDistance); err != nil {
		return nil, fmt.Errorf("failed to set up constraints: %w", err)
	}
	log.Printf("[SOLVER] Model built: vertices=%d edges=%d variables=%d constraints=%d start=%d budget=%.1f",
		p.net.NumVertices(), p.net.Graph().NumEdges(), model.NumVars(), model.NumConstraints(), start, req.MaxDistance)
	log.Printf("[TIMING] Model build: %v", time.Since(buildStart))

	sol, err := model.Optimize(ctx, req.Options)
	if err != nil {
		log.Printf("[ERROR] Solve failed: %v", err)
		return nil, fmt.Errorf("failed to optimize route model: %w", err)
	}

	cbStats := cons.Subtour().Stats()
	result := &models.RouteResult{
		Status:      solveStatus(sol.Status),
		StartNode:   start,
		MaxDistance: req.MaxDistance,
		Arcs:        []models.RouteArc{},
		Stats: models.SolveStats{
			Nodes:             sol.NodeCount,
			LazyConstraints:   sol.LazyCount,
			CallbackCalls:     cbStats.Calls,
			CallbackTime:      cbStats.Time,
			Runtime:           sol.Runtime,
			Variables:         model.NumVars(),
			StaticConstraints: model.NumConstraints(),
		},
	}
	if !math.IsInf(sol.Bound, 0) {
		result.Bound = sol.Bound
	}

	if sol.HasValues() {
		if err := p.verify(cons, vars, sol, req.MaxDistance); err != nil {
			log.Printf("[ERROR] %v", err)
			return nil, err
		}
		tour, err := extractTour(vars.SelectedArcs(sol), start)
		if err != nil {
			return nil, err
		}
		result.Arcs = lo.Map(tour, func(a roadgraph.Arc, i int) models.RouteArc {
			e := p.net.Edge(a)
			return models.RouteArc{
				Seq:      i,
				EdgeID:   a.Edge,
				From:     a.Base,
				To:       a.Adj,
				Distance: e.Distance,
				Score:    p.net.Score(a),
				Name:     e.Name,
			}
		})
		result.Score = cons.ObjectiveValue(sol)
		result.TotalDistance = cons.BudgetValue(sol)
	}

	log.Printf("[SOLVER] Finished: status=%s score=%.3f distance=%.1f arcs=%d nodes=%d lazy=%d",
		result.Status, result.Score, result.TotalDistance, len(result.Arcs), sol.NodeCount, sol.LazyCount)
	log.Printf("[TIMING] Lazy constraint time: %v, solver wall time: %v, total: %v",
		cbStats.Time, sol.Runtime, time.Since(totalStart))
	return result, nil
}

func solveStatus(s mip.Status) models.SolveStatus {
	switch s {
	case mip.StatusOptimal:
		return models.SolveStatusOptimal
	case mip.StatusFeasible:
		return models.SolveStatusFeasible
	case mip.StatusInfeasible:
		return models.SolveStatusInfeasible
	default:
		return models.SolveStatusNoSolution
	}
}

// verify re-checks an accepted solution: budget, direction exclusivity, flow
// balance against visit counts, and connectivity.
func (p *planner) verify(cons *Constraints, vars *Vars, sol *mip.Solution, maxCost float64) error {
	var errs []error

	if d := cons.BudgetValue(sol); d > maxCost+costEpsilon*math.Max(1, maxCost) {
		errs = append(errs, fmt.Errorf("distance %.3f exceeds budget %.3f", d, maxCost))
	}

	in := make([]int, p.net.NumVertices())
	out := make([]int, p.net.NumVertices())
	used := make(map[int]bool)
	for _, a := range vars.SelectedArcs(sol) {
		if used[a.Edge] {
			errs = append(errs, fmt.Errorf("edge %d is used in both directions", a.Edge))
		}
		used[a.Edge] = true
		out[a.Base]++
		in[a.Adj]++
	}
	for v := range in {
		z, err := vars.VertexVar(v)
		if err != nil {
			return err
		}
		visits := int(math.Round(sol.Value(z)))
		if in[v] != out[v] || out[v] != visits {
			errs = append(errs, fmt.Errorf("vertex %d: in=%d out=%d visits=%d", v, in[v], out[v], visits))
		}
	}

	disconnected, err := cons.Subtour().FindSubtour(sol)
	if err != nil {
		return err
	}
	if len(disconnected) > 0 {
		errs = append(errs, fmt.Errorf("vertices %v are not reachable from the start", disconnected))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidSolution, errors.Join(errs...))
	}
	return nil
}

// extractTour orders the selected arcs into a closed walk from start
// (Hierholzer's algorithm). Every arc must be used exactly once.
func extractTour(arcs []roadgraph.Arc, start int) ([]roadgraph.Arc, error) {
	if len(arcs) == 0 {
		return nil, nil
	}
	out := make(map[int][]roadgraph.Arc)
	for _, a := range arcs {
		out[a.Base] = append(out[a.Base], a)
	}
	next := make(map[int]int)

	vertices := []int{start}
	var path, circuit []roadgraph.Arc
	for len(vertices) > 0 {
		v := vertices[len(vertices)-1]
		if i := next[v]; i < len(out[v]) {
			next[v] = i + 1
			a := out[v][i]
			vertices = append(vertices, a.Adj)
			path = append(path, a)
			continue
		}
		vertices = vertices[:len(vertices)-1]
		if len(path) > 0 {
			circuit = append(circuit, path[len(path)-1])
			path = path[:len(path)-1]
		}
	}
	if len(circuit) != len(arcs) {
		return nil, fmt.Errorf("%w: tour from %d covers %d of %d arcs", ErrInvalidSolution, start, len(circuit), len(arcs))
	}
	return lo.Reverse(circuit), nil
}
