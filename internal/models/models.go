package models

import (
	"fmt"
	"math"
	"time"
)

// Coordinates represents a geographic point
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// RoundCoordinate rounds to 5 decimal places (~1m precision)
func RoundCoordinate(v float64) float64 {
	return math.Round(v*100000) / 100000
}

// TravelMode selects which traversability flags and priority scores apply
type TravelMode string

const (
	TravelModeBike       TravelMode = "bike"
	TravelModeRacingBike TravelMode = "racingbike"
	TravelModeMTB        TravelMode = "mtb"
	TravelModeFoot       TravelMode = "foot"
)

// TravelModes lists every supported mode in a stable order
var TravelModes = []TravelMode{TravelModeBike, TravelModeRacingBike, TravelModeMTB, TravelModeFoot}

// ParseTravelMode validates a mode name
func ParseTravelMode(s string) (TravelMode, error) {
	for _, m := range TravelModes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown travel mode %q", s)
}

// SolveStatus is the terminal outcome of a route solve
type SolveStatus string

const (
	SolveStatusOptimal    SolveStatus = "optimal"     // proven optimal, connected
	SolveStatusFeasible   SolveStatus = "feasible"    // best known, search limit hit before proof
	SolveStatusInfeasible SolveStatus = "infeasible"  // no route within budget exists
	SolveStatusNoSolution SolveStatus = "no_solution" // search limit hit before any route was found
)

// GraphInfo describes a stored road graph
type GraphInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	SourcePath string    `json:"source_path"`
	NodeCount  int       `json:"node_count"`
	EdgeCount  int       `json:"edge_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// RouteArc is one selected directed traversal of a road edge
type RouteArc struct {
	Seq      int     `json:"seq"`
	EdgeID   int     `json:"edge_id"`
	From     int     `json:"from"`
	To       int     `json:"to"`
	Distance float64 `json:"distance_meters"`
	Score    float64 `json:"score"`
	Name     string  `json:"name,omitempty"`
}

// SolveStats carries search statistics for one solve
type SolveStats struct {
	Nodes             int           `json:"nodes"`
	LazyConstraints   int           `json:"lazy_constraints"`
	CallbackCalls     int           `json:"callback_calls"`
	CallbackTime      time.Duration `json:"callback_time"`
	Runtime           time.Duration `json:"runtime"`
	Variables         int           `json:"variables"`
	StaticConstraints int           `json:"static_constraints"`
}

// RouteResult is the outcome of planning one closed route
type RouteResult struct {
	Status        SolveStatus `json:"status"`
	StartNode     int         `json:"start_node"`
	MaxDistance   float64     `json:"max_distance_meters"`
	Score         float64     `json:"score"`
	TotalDistance float64     `json:"total_distance_meters"`
	Bound         float64     `json:"bound"`
	Arcs          []RouteArc  `json:"arcs"`
	Stats         SolveStats  `json:"stats"`
}

// HasRoute reports whether the result carries a usable route
func (r *RouteResult) HasRoute() bool {
	return r.Status == SolveStatusOptimal || r.Status == SolveStatusFeasible
}

// SolveRecord is a persisted solve
type SolveRecord struct {
	ID        string      `json:"id"`
	GraphID   string      `json:"graph_id"`
	Mode      TravelMode  `json:"mode"`
	Start     Coordinates `json:"start"`
	Result    RouteResult `json:"result"`
	CreatedAt time.Time   `json:"created_at"`
}
