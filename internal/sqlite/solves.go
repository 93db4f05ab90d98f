package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"road-orienteer/internal/database"
	"road-orienteer/internal/models"
)

type solveRepository struct {
	store *Store
}

const solveColumns = `id, graph_id, mode, start_lat, start_lng, start_node, status,
	max_distance_meters, score, total_distance_meters, bound,
	nodes, lazy_constraints, callback_calls, callback_time_ns, runtime_ns,
	variables, static_constraints, created_at`

func scanSolve(row interface{ Scan(...any) error }) (*models.SolveRecord, error) {
	var rec models.SolveRecord
	var callbackNs, runtimeNs int64
	res := &rec.Result
	err := row.Scan(
		&rec.ID, &rec.GraphID, &rec.Mode, &rec.Start.Lat, &rec.Start.Lng, &res.StartNode, &res.Status,
		&res.MaxDistance, &res.Score, &res.TotalDistance, &res.Bound,
		&res.Stats.Nodes, &res.Stats.LazyConstraints, &res.Stats.CallbackCalls, &callbackNs, &runtimeNs,
		&res.Stats.Variables, &res.Stats.StaticConstraints, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	res.Stats.CallbackTime = time.Duration(callbackNs)
	res.Stats.Runtime = time.Duration(runtimeNs)
	return &rec, nil
}

func (r *solveRepository) List(ctx context.Context, limit, offset int) ([]models.SolveRecord, int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var total int
	if err := r.store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM solves`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count solves: %w", err)
	}

	query := `SELECT ` + solveColumns + `
	          FROM solves
	          ORDER BY created_at DESC
	          LIMIT ? OFFSET ?`

	rows, err := r.store.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query solves: %w", err)
	}
	defer rows.Close()

	var solves []models.SolveRecord
	for rows.Next() {
		rec, err := scanSolve(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan solve: %w", err)
		}
		solves = append(solves, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating solves: %w", err)
	}

	return solves, total, nil
}

func (r *solveRepository) GetByID(ctx context.Context, id string) (*models.SolveRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	rec, err := scanSolve(r.store.db.QueryRowContext(ctx, `SELECT `+solveColumns+` FROM solves WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get solve: %w", err)
	}

	arcQuery := `SELECT seq, edge_id, from_node, to_node, distance_meters, score, name
	             FROM solve_arcs
	             WHERE solve_id = ?
	             ORDER BY seq`

	rows, err := r.store.db.QueryContext(ctx, arcQuery, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query solve arcs: %w", err)
	}
	defer rows.Close()

	rec.Result.Arcs = []models.RouteArc{}
	for rows.Next() {
		var a models.RouteArc
		if err := rows.Scan(&a.Seq, &a.EdgeID, &a.From, &a.To, &a.Distance, &a.Score, &a.Name); err != nil {
			return nil, fmt.Errorf("failed to scan solve arc: %w", err)
		}
		rec.Result.Arcs = append(rec.Result.Arcs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating solve arcs: %w", err)
	}

	return rec, nil
}

func (r *solveRepository) Create(ctx context.Context, rec *models.SolveRecord) (*models.SolveRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rec.ID = uuid.NewString()
	rec.CreatedAt = time.Now()
	res := &rec.Result

	query := `INSERT INTO solves (` + solveColumns + `)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = tx.ExecContext(ctx, query,
		rec.ID, rec.GraphID, string(rec.Mode), rec.Start.Lat, rec.Start.Lng, res.StartNode, string(res.Status),
		res.MaxDistance, res.Score, res.TotalDistance, res.Bound,
		res.Stats.Nodes, res.Stats.LazyConstraints, res.Stats.CallbackCalls,
		int64(res.Stats.CallbackTime), int64(res.Stats.Runtime),
		res.Stats.Variables, res.Stats.StaticConstraints, rec.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create solve: %w", err)
	}

	arcQuery := `INSERT INTO solve_arcs
	             (solve_id, seq, edge_id, from_node, to_node, distance_meters, score, name)
	             VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	for _, a := range res.Arcs {
		_, err := tx.ExecContext(ctx, arcQuery,
			rec.ID, a.Seq, a.EdgeID, a.From, a.To, a.Distance, a.Score, a.Name,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create solve arc: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return rec, nil
}

func (r *solveRepository) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	result, err := r.store.db.ExecContext(ctx, `DELETE FROM solves WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete solve: %w", err)
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
