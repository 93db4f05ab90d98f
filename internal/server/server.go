package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"road-orienteer/internal/config"
	"road-orienteer/internal/database"
	"road-orienteer/internal/geocoding"
	"road-orienteer/internal/handlers"
	"road-orienteer/internal/osmimport"
	"road-orienteer/internal/planning"
	"road-orienteer/internal/sqlite"
)

// Server wraps the HTTP server and all dependencies
type Server struct {
	httpServer *http.Server
	handler    *handlers.Handler
	db         *sqlite.Store
	listener   net.Listener
	addr       string
}

// New creates and initializes a new server (does not start it). A configured
// graph file is imported up front so the first solve does not pay for it.
func New(cfg *config.Config) (*Server, error) {
	dbPath, err := database.GetDBPath(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	log.Printf("Initializing data store...")
	db, err := sqlite.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize data store: %w", err)
	}

	importer, err := osmimport.NewImporter()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize importer: %w", err)
	}
	graphs := database.NewGraphCache(db.Graphs(), importer)
	geocoder := geocoding.NewNominatimGeocoder(cfg.GeocoderURL, cfg.GeocoderUserAgent)

	if cfg.GraphFile != "" {
		log.Printf("Loading graph %s...", cfg.GraphFile)
		if _, _, err := graphs.LoadOrImport(context.Background(), cfg.GraphFile, false); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to load graph: %w", err)
		}
	}

	handler := &handlers.Handler{
		DB:      db,
		Graphs:  graphs,
		Planner: planning.NewService(db, graphs, geocoder, cfg.SnapRadius),
		Defaults: handlers.SolveDefaults{
			Mode:      cfg.Mode,
			TimeLimit: cfg.TimeLimit,
			NodeLimit: cfg.NodeLimit,
		},
	}

	mux := setupRoutes(handler)

	// Solves run inside the request and must finish before the write timeout
	httpServer := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      loggingMiddleware(corsMiddleware(mux)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: max(60*time.Second, cfg.TimeLimit+30*time.Second),
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		handler:    handler,
		db:         db,
		addr:       cfg.ServerAddr,
	}, nil
}

// Start starts the server and returns the actual address (useful for random port)
func (s *Server) Start() (string, error) {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen: %w", err)
	}

	s.listener = listener
	actualAddr := listener.Addr().String()
	log.Printf("Starting server on %s", actualAddr)

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	return actualAddr, nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	return s.db.Close()
}

func methodNotAllowed(w http.ResponseWriter) {
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}

// setupRoutes configures all HTTP routes
func setupRoutes(handler *handlers.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		handler.HandleHealthCheck(w, r)
	})

	mux.HandleFunc("/api/v1/graphs", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handler.HandleListGraphs(w, r)
		case http.MethodPost:
			handler.HandleImportGraph(w, r)
		default:
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc("/api/v1/graphs/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/graphs/" {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}

		switch r.Method {
		case http.MethodGet:
			handler.HandleGetGraph(w, r)
		case http.MethodDelete:
			handler.HandleDeleteGraph(w, r)
		default:
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc("/api/v1/solves", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handler.HandleListSolves(w, r)
		case http.MethodPost:
			handler.HandleCreateSolve(w, r)
		default:
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc("/api/v1/solves/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/solves/" {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}

		if strings.HasSuffix(r.URL.Path, "/geojson") {
			if r.Method != http.MethodGet {
				methodNotAllowed(w)
				return
			}
			handler.HandleSolveGeoJSON(w, r)
			return
		}

		switch r.Method {
		case http.MethodGet:
			handler.HandleGetSolve(w, r)
		case http.MethodDelete:
			handler.HandleDeleteSolve(w, r)
		default:
			methodNotAllowed(w)
		}
	})

	return mux
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(lrw, r)

		duration := time.Since(start)
		log.Printf("[HTTP] %s %s %d %v", r.Method, r.URL.Path, lrw.statusCode, duration)
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// Only allow localhost origins (local map viewers and development)
		if origin == "" ||
			strings.HasPrefix(origin, "http://localhost:") ||
			strings.HasPrefix(origin, "http://127.0.0.1:") {
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
