package routing

import (
	"context"
	"errors"
	"fmt"

	"road-orienteer/internal/mip"
	"road-orienteer/internal/models"
)

// Request contains the input for one route solve
type Request struct {
	// StartVertex is used when StartCoords is nil
	StartVertex int
	// StartCoords is snapped to the nearest traversable vertex
	StartCoords *models.Coordinates
	// MaxDistance is the route length budget in meters
	MaxDistance float64
	Options     mip.Options
}

// Router plans budget-constrained closed routes
type Router interface {
	Plan(ctx context.Context, req *Request) (*models.RouteResult, error)
}

// ValueSource reads variable values of a candidate or final solution.
// Both *mip.CallbackContext and *mip.Solution satisfy it.
type ValueSource interface {
	Value(v mip.Var) float64
}

// ErrInvalidRequest is returned for input that is rejected before a model is built
type ErrInvalidRequest struct {
	Field  string
	Reason string
	Err    error
}

func (e *ErrInvalidRequest) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid request: %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid request: %s: %s", e.Field, e.Reason)
}

func (e *ErrInvalidRequest) Unwrap() error { return e.Err }

var (
	// ErrInvalidVertex is returned for a vertex id outside the graph
	ErrInvalidVertex = errors.New("invalid vertex id")
	// ErrUnknownArc is returned for an arc whose edge has no variables
	ErrUnknownArc = errors.New("arc has no decision variables")
	// ErrInvalidSolution is returned when a final solution fails verification
	ErrInvalidSolution = errors.New("solution failed verification")
)
