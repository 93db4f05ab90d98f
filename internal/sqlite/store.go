package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"road-orienteer/internal/database"

	_ "modernc.org/sqlite"
)

const (
	MemoryPath    = ":memory:"
	schemaVersion = 1
)

// Store is a SQLite-based data store implementing database.DataStore
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex

	graphRepo database.GraphRepository
	solveRepo database.SolveRepository
}

// New creates a new SQLite store at the specified path. MemoryPath opens a
// private in-memory database.
func New(dbPath string) (*Store, error) {
	if dbPath != MemoryPath {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	log.Printf("Opening SQLite database at: %s", dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == MemoryPath {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000", // 64MB cache
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	store := &Store{
		db:     db,
		dbPath: dbPath,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	store.graphRepo = &graphRepository{store: store}
	store.solveRepo = &solveRepository{store: store}

	return store, nil
}

// GetDBPath returns the current database file path
func (s *Store) GetDBPath() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	var version int
	err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		// Table doesn't exist, create everything
		return s.createSchema()
	}

	if version < schemaVersion {
		if err := s.runMigrations(version); err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);
	INSERT INTO schema_version (version) VALUES (1);

	-- Imported road graphs, one per source extract
	CREATE TABLE IF NOT EXISTS graphs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		source_path TEXT NOT NULL UNIQUE,
		node_count INTEGER NOT NULL,
		edge_count INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS graph_nodes (
		graph_id TEXT NOT NULL,
		idx INTEGER NOT NULL,
		lat REAL NOT NULL,
		lng REAL NOT NULL,
		PRIMARY KEY (graph_id, idx),
		FOREIGN KEY (graph_id) REFERENCES graphs(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS graph_edges (
		graph_id TEXT NOT NULL,
		idx INTEGER NOT NULL,
		base INTEGER NOT NULL,
		adj INTEGER NOT NULL,
		distance_meters REAL NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		geometry BLOB,
		PRIMARY KEY (graph_id, idx),
		FOREIGN KEY (graph_id) REFERENCES graphs(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS graph_edge_access (
		graph_id TEXT NOT NULL,
		edge_idx INTEGER NOT NULL,
		mode TEXT NOT NULL,
		forward INTEGER NOT NULL,
		backward INTEGER NOT NULL,
		priority REAL NOT NULL,
		PRIMARY KEY (graph_id, edge_idx, mode),
		FOREIGN KEY (graph_id, edge_idx) REFERENCES graph_edges(graph_id, idx) ON DELETE CASCADE
	);

	-- Solve history
	CREATE TABLE IF NOT EXISTS solves (
		id TEXT PRIMARY KEY,
		graph_id TEXT NOT NULL,
		mode TEXT NOT NULL,
		start_lat REAL NOT NULL,
		start_lng REAL NOT NULL,
		start_node INTEGER NOT NULL,
		status TEXT NOT NULL,
		max_distance_meters REAL NOT NULL,
		score REAL NOT NULL,
		total_distance_meters REAL NOT NULL,
		bound REAL NOT NULL,
		nodes INTEGER NOT NULL DEFAULT 0,
		lazy_constraints INTEGER NOT NULL DEFAULT 0,
		callback_calls INTEGER NOT NULL DEFAULT 0,
		callback_time_ns INTEGER NOT NULL DEFAULT 0,
		runtime_ns INTEGER NOT NULL DEFAULT 0,
		variables INTEGER NOT NULL DEFAULT 0,
		static_constraints INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (graph_id) REFERENCES graphs(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS solve_arcs (
		solve_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		edge_id INTEGER NOT NULL,
		from_node INTEGER NOT NULL,
		to_node INTEGER NOT NULL,
		distance_meters REAL NOT NULL,
		score REAL NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (solve_id, seq),
		FOREIGN KEY (solve_id) REFERENCES solves(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_solves_created ON solves(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_solves_graph ON solves(graph_id);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	log.Printf("SQLite schema initialized (version %d)", schemaVersion)
	return nil
}

func (s *Store) runMigrations(fromVersion int) error {
	log.Printf("Migrating SQLite schema from version %d to %d", fromVersion, schemaVersion)
	_, err := s.db.Exec("UPDATE schema_version SET version = ?", schemaVersion)
	return err
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		// Checkpoint WAL before closing
		s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		return s.db.Close()
	}
	return nil
}

// HealthCheck verifies the database connection
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Repository accessors
func (s *Store) Graphs() database.GraphRepository { return s.graphRepo }
func (s *Store) Solves() database.SolveRepository { return s.solveRepo }
