package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"road-orienteer/internal/models"
	"road-orienteer/internal/roadgraph"
)

// GraphImporter builds a graph from a map extract on disk
type GraphImporter interface {
	ImportFile(ctx context.Context, path string) (*roadgraph.Graph, error)
}

// GraphCache imports each map extract once, stores the result and keeps
// loaded graphs in memory
type GraphCache struct {
	repo     GraphRepository
	importer GraphImporter

	mu     sync.Mutex
	loaded map[string]*roadgraph.Graph
}

// NewGraphCache creates a cache over repo. importer may be nil when only
// stored graphs are needed.
func NewGraphCache(repo GraphRepository, importer GraphImporter) *GraphCache {
	return &GraphCache{
		repo:     repo,
		importer: importer,
		loaded:   make(map[string]*roadgraph.Graph),
	}
}

// LoadOrImport returns the stored graph for the extract at path, importing
// and storing it on first use. reimport forces a fresh import.
func (c *GraphCache) LoadOrImport(ctx context.Context, path string, reimport bool) (*models.GraphInfo, *roadgraph.Graph, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve graph path: %w", err)
	}

	if !reimport {
		info, err := c.repo.GetBySource(ctx, abs)
		switch {
		case err == nil:
			g, err := c.Get(ctx, info.ID)
			if err != nil {
				return nil, nil, err
			}
			log.Printf("[GRAPH] Loaded stored graph %s for %s", info.ID, abs)
			return info, g, nil
		case !errors.Is(err, ErrNotFound):
			return nil, nil, fmt.Errorf("failed to look up graph: %w", err)
		}
	}

	if c.importer == nil {
		return nil, nil, fmt.Errorf("no stored graph for %s and importing is disabled", abs)
	}

	start := time.Now()
	g, err := c.importer.ImportFile(ctx, abs)
	if err != nil {
		return nil, nil, err
	}
	info, err := c.repo.Save(ctx, filepath.Base(abs), abs, g)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to store graph: %w", err)
	}
	log.Printf("[GRAPH] Imported %s as %s in %v", abs, info.ID, time.Since(start))

	c.mu.Lock()
	c.loaded[info.ID] = g
	c.mu.Unlock()
	return info, g, nil
}

// Get returns the graph with the given id, loading it from the repository on
// first use
func (c *GraphCache) Get(ctx context.Context, id string) (*roadgraph.Graph, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if g, ok := c.loaded[id]; ok {
		return g, nil
	}
	g, err := c.repo.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	c.loaded[id] = g
	return g, nil
}

// Forget drops a graph from memory
func (c *GraphCache) Forget(id string) {
	c.mu.Lock()
	delete(c.loaded, id)
	c.mu.Unlock()
}
