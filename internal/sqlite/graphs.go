package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"

	"road-orienteer/internal/database"
	"road-orienteer/internal/models"
	"road-orienteer/internal/roadgraph"
)

type graphRepository struct {
	store *Store
}

const graphColumns = `id, name, source_path, node_count, edge_count, created_at`

func scanGraphInfo(row interface{ Scan(...any) error }) (*models.GraphInfo, error) {
	var info models.GraphInfo
	if err := row.Scan(&info.ID, &info.Name, &info.SourcePath, &info.NodeCount, &info.EdgeCount, &info.CreatedAt); err != nil {
		return nil, err
	}
	return &info, nil
}

func (r *graphRepository) List(ctx context.Context) ([]models.GraphInfo, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	rows, err := r.store.db.QueryContext(ctx, `SELECT `+graphColumns+` FROM graphs ORDER BY created_at DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query graphs: %w", err)
	}
	defer rows.Close()

	var graphs []models.GraphInfo
	for rows.Next() {
		info, err := scanGraphInfo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan graph: %w", err)
		}
		graphs = append(graphs, *info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating graphs: %w", err)
	}
	return graphs, nil
}

func (r *graphRepository) GetByID(ctx context.Context, id string) (*models.GraphInfo, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	info, err := scanGraphInfo(r.store.db.QueryRowContext(ctx, `SELECT `+graphColumns+` FROM graphs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get graph: %w", err)
	}
	return info, nil
}

func (r *graphRepository) GetBySource(ctx context.Context, sourcePath string) (*models.GraphInfo, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	info, err := scanGraphInfo(r.store.db.QueryRowContext(ctx, `SELECT `+graphColumns+` FROM graphs WHERE source_path = ?`, sourcePath))
	if err == sql.ErrNoRows {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get graph by source: %w", err)
	}
	return info, nil
}

func (r *graphRepository) Save(ctx context.Context, name, sourcePath string, g *roadgraph.Graph) (*models.GraphInfo, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM graphs WHERE source_path = ?`, sourcePath); err != nil {
		return nil, fmt.Errorf("failed to replace graph: %w", err)
	}

	info := &models.GraphInfo{
		ID:         uuid.NewString(),
		Name:       name,
		SourcePath: sourcePath,
		NodeCount:  g.NumVertices(),
		EdgeCount:  g.NumEdges(),
		CreatedAt:  time.Now(),
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO graphs (id, name, source_path, node_count, edge_count, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		info.ID, info.Name, info.SourcePath, info.NodeCount, info.EdgeCount, info.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create graph: %w", err)
	}

	nodeStmt, err := tx.PrepareContext(ctx, `INSERT INTO graph_nodes (graph_id, idx, lat, lng) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare node insert: %w", err)
	}
	defer nodeStmt.Close()
	for v := 0; v < g.NumVertices(); v++ {
		p := g.Point(v)
		if _, err := nodeStmt.ExecContext(ctx, info.ID, v, p.Lat(), p.Lon()); err != nil {
			return nil, fmt.Errorf("failed to insert node %d: %w", v, err)
		}
	}

	edgeStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO graph_edges (graph_id, idx, base, adj, distance_meters, name, geometry) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare edge insert: %w", err)
	}
	defer edgeStmt.Close()
	accessStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO graph_edge_access (graph_id, edge_idx, mode, forward, backward, priority) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare access insert: %w", err)
	}
	defer accessStmt.Close()

	for _, e := range g.Edges() {
		var geometry []byte
		if len(e.Geometry) > 0 {
			geometry, err = wkb.Marshal(e.Geometry)
			if err != nil {
				return nil, fmt.Errorf("failed to encode geometry of edge %d: %w", e.ID, err)
			}
		}
		if _, err := edgeStmt.ExecContext(ctx, info.ID, e.ID, e.Base, e.Adj, e.Distance, e.Name, geometry); err != nil {
			return nil, fmt.Errorf("failed to insert edge %d: %w", e.ID, err)
		}
		for mode, a := range e.Access {
			if _, err := accessStmt.ExecContext(ctx, info.ID, e.ID, string(mode), a.Forward, a.Backward, a.Priority); err != nil {
				return nil, fmt.Errorf("failed to insert access of edge %d: %w", e.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return info, nil
}

func (r *graphRepository) Load(ctx context.Context, id string) (*roadgraph.Graph, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var exists int
	err := r.store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM graphs WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to get graph: %w", err)
	}
	if exists == 0 {
		return nil, database.ErrNotFound
	}

	b := roadgraph.NewBuilder()
	if err := r.loadNodes(ctx, id, b); err != nil {
		return nil, err
	}
	access, err := r.loadAccess(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.loadEdges(ctx, id, b, access); err != nil {
		return nil, err
	}
	return b.Build(), nil
}

func (r *graphRepository) loadNodes(ctx context.Context, id string, b *roadgraph.Builder) error {
	rows, err := r.store.db.QueryContext(ctx, `SELECT lat, lng FROM graph_nodes WHERE graph_id = ? ORDER BY idx`, id)
	if err != nil {
		return fmt.Errorf("failed to query graph nodes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var lat, lng float64
		if err := rows.Scan(&lat, &lng); err != nil {
			return fmt.Errorf("failed to scan graph node: %w", err)
		}
		b.AddVertex(orb.Point{lng, lat})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating graph nodes: %w", err)
	}
	return nil
}

func (r *graphRepository) loadAccess(ctx context.Context, id string) (map[int]map[models.TravelMode]roadgraph.Access, error) {
	rows, err := r.store.db.QueryContext(ctx,
		`SELECT edge_idx, mode, forward, backward, priority FROM graph_edge_access WHERE graph_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query edge access: %w", err)
	}
	defer rows.Close()

	access := make(map[int]map[models.TravelMode]roadgraph.Access)
	for rows.Next() {
		var edge int
		var mode string
		var a roadgraph.Access
		if err := rows.Scan(&edge, &mode, &a.Forward, &a.Backward, &a.Priority); err != nil {
			return nil, fmt.Errorf("failed to scan edge access: %w", err)
		}
		if access[edge] == nil {
			access[edge] = make(map[models.TravelMode]roadgraph.Access)
		}
		access[edge][models.TravelMode(mode)] = a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating edge access: %w", err)
	}
	return access, nil
}

func (r *graphRepository) loadEdges(ctx context.Context, id string, b *roadgraph.Builder, access map[int]map[models.TravelMode]roadgraph.Access) error {
	rows, err := r.store.db.QueryContext(ctx,
		`SELECT idx, base, adj, distance_meters, name, geometry FROM graph_edges WHERE graph_id = ? ORDER BY idx`, id)
	if err != nil {
		return fmt.Errorf("failed to query graph edges: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e roadgraph.Edge
		var geometry []byte
		if err := rows.Scan(&e.ID, &e.Base, &e.Adj, &e.Distance, &e.Name, &geometry); err != nil {
			return fmt.Errorf("failed to scan graph edge: %w", err)
		}
		if len(geometry) > 0 {
			geom, err := wkb.Unmarshal(geometry)
			if err != nil {
				return fmt.Errorf("failed to decode geometry of edge %d: %w", e.ID, err)
			}
			line, ok := geom.(orb.LineString)
			if !ok {
				return fmt.Errorf("edge %d geometry is a %s, not a LineString", e.ID, geom.GeoJSONType())
			}
			e.Geometry = line
		}
		e.Access = access[e.ID]
		stored := e.ID
		got, err := b.AddEdge(e)
		if err != nil {
			return fmt.Errorf("failed to rebuild edge %d: %w", stored, err)
		}
		if got != stored {
			return fmt.Errorf("graph edges are not contiguous: expected %d, got %d", got, stored)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating graph edges: %w", err)
	}
	return nil
}

func (r *graphRepository) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	result, err := r.store.db.ExecContext(ctx, `DELETE FROM graphs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete graph: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 {
		return database.ErrNotFound
	}
	return nil
}
