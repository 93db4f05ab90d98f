// Package planning ties stored graphs, start resolution, the route planner
// and persistence together for the command line and the HTTP API.
package planning

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/samber/lo"

	"road-orienteer/internal/database"
	"road-orienteer/internal/geocoding"
	"road-orienteer/internal/mip"
	"road-orienteer/internal/models"
	"road-orienteer/internal/roadgraph"
	"road-orienteer/internal/routing"
)

const geocodeRetries = 3

// Input describes one solve on a stored graph. Exactly one start is used, in
// order of precedence: StartCoords, StartAddress, StartNode.
type Input struct {
	GraphID      string
	Mode         models.TravelMode
	StartCoords  *models.Coordinates
	StartAddress string
	StartNode    int // -1 when unset
	MaxDistance  float64
	Options      mip.Options
}

type prepKey struct {
	graphID string
	mode    models.TravelMode
}

type prepared struct {
	net    *roadgraph.Network
	index  *roadgraph.LocationIndex
	router routing.Router
}

// Service plans routes on stored graphs and records the outcome
type Service struct {
	store      database.DataStore
	graphs     *database.GraphCache
	geocoder   geocoding.Geocoder
	snapRadius float64

	mu       sync.Mutex
	prepared map[prepKey]*prepared
}

// NewService creates a planning service. A nil store skips persistence and a
// nil geocoder rejects address starts.
func NewService(store database.DataStore, graphs *database.GraphCache, geocoder geocoding.Geocoder, snapRadius float64) *Service {
	return &Service{
		store:      store,
		graphs:     graphs,
		geocoder:   geocoder,
		snapRadius: snapRadius,
		prepared:   make(map[prepKey]*prepared),
	}
}

func (s *Service) prepare(ctx context.Context, graphID string, mode models.TravelMode) (*prepared, error) {
	key := prepKey{graphID: graphID, mode: mode}

	s.mu.Lock()
	p, ok := s.prepared[key]
	s.mu.Unlock()
	if ok {
		return p, nil
	}

	g, err := s.graphs.Get(ctx, graphID)
	if err != nil {
		return nil, err
	}
	net := roadgraph.NewNetwork(g, mode, nil)
	g.LogStats(mode)

	index, err := roadgraph.NewLocationIndex(net, s.snapRadius)
	if err != nil {
		return nil, fmt.Errorf("failed to build location index: %w", err)
	}
	p = &prepared{net: net, index: index, router: routing.NewPlanner(net, index)}

	s.mu.Lock()
	s.prepared[key] = p
	s.mu.Unlock()
	return p, nil
}

// Forget drops the prepared networks and the loaded graph for graphID
func (s *Service) Forget(graphID string) {
	s.mu.Lock()
	for key := range s.prepared {
		if key.graphID == graphID {
			delete(s.prepared, key)
		}
	}
	s.mu.Unlock()
	s.graphs.Forget(graphID)
}

func (s *Service) request(ctx context.Context, p *prepared, in *Input) (*routing.Request, error) {
	req := &routing.Request{
		StartVertex: in.StartNode,
		MaxDistance: in.MaxDistance,
		Options:     in.Options,
	}

	switch {
	case in.StartCoords != nil:
		req.StartCoords = in.StartCoords
	case in.StartAddress != "":
		if s.geocoder == nil {
			return nil, &routing.ErrInvalidRequest{Field: "start_address", Reason: "no geocoder is configured"}
		}
		result, err := s.geocoder.GeocodeWithRetry(ctx, in.StartAddress, p.net.Graph().Bound(), geocodeRetries)
		if err != nil {
			return nil, err
		}
		log.Printf("[SOLVER] Start address %q resolved to %s (%.5f, %.5f)",
			in.StartAddress, result.DisplayName, result.Coords.Lat, result.Coords.Lng)
		req.StartCoords = &result.Coords
	case in.StartNode < 0:
		return nil, &routing.ErrInvalidRequest{Field: "start", Reason: "one of coordinates, address or node is required"}
	}
	return req, nil
}

// Solve plans a closed route for in and stores it. Infeasible and
// interrupted searches are stored and returned too; check Result.HasRoute.
func (s *Service) Solve(ctx context.Context, in *Input) (*models.SolveRecord, error) {
	start := time.Now()

	if _, err := models.ParseTravelMode(string(in.Mode)); err != nil {
		return nil, &routing.ErrInvalidRequest{Field: "mode", Reason: err.Error()}
	}
	if in.GraphID == "" {
		return nil, &routing.ErrInvalidRequest{Field: "graph_id", Reason: "is required"}
	}

	p, err := s.prepare(ctx, in.GraphID, in.Mode)
	if err != nil {
		return nil, err
	}
	req, err := s.request(ctx, p, in)
	if err != nil {
		return nil, err
	}

	result, err := p.router.Plan(ctx, req)
	if err != nil {
		return nil, err
	}

	pt := p.net.Graph().Point(result.StartNode)
	rec := &models.SolveRecord{
		GraphID: in.GraphID,
		Mode:    in.Mode,
		Start: models.Coordinates{
			Lat: models.RoundCoordinate(pt.Lat()),
			Lng: models.RoundCoordinate(pt.Lon()),
		},
		Result: *result,
	}

	if s.store != nil {
		rec, err = s.store.Solves().Create(ctx, rec)
		if err != nil {
			return nil, fmt.Errorf("failed to store solve: %w", err)
		}
	}
	log.Printf("[TIMING] Solve %s: %v", rec.ID, time.Since(start))
	return rec, nil
}

// GeoJSON renders the route of rec on its graph
func (s *Service) GeoJSON(ctx context.Context, rec *models.SolveRecord) (*geojson.FeatureCollection, error) {
	p, err := s.prepare(ctx, rec.GraphID, rec.Mode)
	if err != nil {
		return nil, err
	}
	g := p.net.Graph()
	if rec.Result.StartNode < 0 || rec.Result.StartNode >= g.NumVertices() {
		return nil, fmt.Errorf("%w: start %d", routing.ErrInvalidVertex, rec.Result.StartNode)
	}

	var bad []int
	arcs := lo.Map(rec.Result.Arcs, func(a models.RouteArc, _ int) roadgraph.Arc {
		if a.EdgeID < 0 || a.EdgeID >= g.NumEdges() {
			bad = append(bad, a.EdgeID)
		}
		return roadgraph.Arc{Edge: a.EdgeID, Base: a.From, Adj: a.To}
	})
	if len(bad) > 0 {
		return nil, fmt.Errorf("%w: edges %v are not in graph %s", routing.ErrUnknownArc, bad, rec.GraphID)
	}
	return roadgraph.RouteFeatureCollection(p.net, rec.Result.StartNode, arcs), nil
}

// IsInputError reports whether err was caused by the caller's input rather
// than by the service
func IsInputError(err error) bool {
	var invalid *routing.ErrInvalidRequest
	return errors.As(err, &invalid)
}
