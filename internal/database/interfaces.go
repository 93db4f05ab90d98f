package database

import (
	"context"

	"road-orienteer/internal/models"
	"road-orienteer/internal/roadgraph"
)

// DataStore is the interface for data persistence
type DataStore interface {
	Close() error
	HealthCheck(ctx context.Context) error
	Graphs() GraphRepository
	Solves() SolveRepository
}

// GraphRepository stores imported road graphs
type GraphRepository interface {
	List(ctx context.Context) ([]models.GraphInfo, error)
	GetByID(ctx context.Context, id string) (*models.GraphInfo, error)
	GetBySource(ctx context.Context, sourcePath string) (*models.GraphInfo, error)
	// Save stores g under a new id, replacing any graph with the same source path
	Save(ctx context.Context, name, sourcePath string, g *roadgraph.Graph) (*models.GraphInfo, error)
	Load(ctx context.Context, id string) (*roadgraph.Graph, error)
	Delete(ctx context.Context, id string) error
}

// SolveRepository handles solve history persistence
type SolveRepository interface {
	List(ctx context.Context, limit, offset int) ([]models.SolveRecord, int, error)
	GetByID(ctx context.Context, id string) (*models.SolveRecord, error)
	Create(ctx context.Context, rec *models.SolveRecord) (*models.SolveRecord, error)
	Delete(ctx context.Context, id string) error
}
