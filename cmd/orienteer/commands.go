package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"road-orienteer/internal/cli"
	"road-orienteer/internal/config"
	"road-orienteer/internal/database"
	"road-orienteer/internal/geocoding"
	"road-orienteer/internal/mip"
	"road-orienteer/internal/models"
	"road-orienteer/internal/osmimport"
	"road-orienteer/internal/planning"
	"road-orienteer/internal/server"
	"road-orienteer/internal/sqlite"
)

// exitNoRoute is returned by solve when the search ends without a route
const exitNoRoute = 3

func openStore(cfg *config.Config) (*sqlite.Store, *database.GraphCache, error) {
	dbPath, err := database.GetDBPath(cfg.DataDir)
	if err != nil {
		return nil, nil, err
	}
	store, err := sqlite.New(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize data store: %w", err)
	}
	importer, err := osmimport.NewImporter()
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("failed to initialize importer: %w", err)
	}
	return store, database.NewGraphCache(store.Graphs(), importer), nil
}

func meters(d float64) string {
	return humanize.SIWithDigits(d, 1, "m")
}

func count(n int) string {
	return humanize.Comma(int64(n))
}

func runImport(ctx context.Context, out io.Writer, cmd *cli.Command) error {
	store, graphs, err := openStore(cmd.Config)
	if err != nil {
		return err
	}
	defer store.Close()

	info, g, err := graphs.LoadOrImport(ctx, cmd.Config.GraphFile, cmd.Reimport)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Graph     %s (%s)\n", info.Name, info.ID)
	fmt.Fprintf(out, "Source    %s\n", info.SourcePath)
	fmt.Fprintf(out, "Size      %s vertices, %s edges\n", count(info.NodeCount), count(info.EdgeCount))
	for _, mode := range models.TravelModes {
		s := g.Stats(mode)
		fmt.Fprintf(out, "%-10s%s usable edges, %s one-way\n", mode, count(s.Edges-s.NonTraversable), count(s.OneWay))
	}
	return nil
}

func runSolve(ctx context.Context, out io.Writer, cmd *cli.Command) error {
	cfg := cmd.Config
	store, graphs, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	info, _, err := graphs.LoadOrImport(ctx, cfg.GraphFile, cmd.Reimport)
	if err != nil {
		return err
	}

	var geocoder geocoding.Geocoder
	if cfg.StartAddress != "" {
		geocoder = geocoding.NewNominatimGeocoder(cfg.GeocoderURL, cfg.GeocoderUserAgent)
	}
	service := planning.NewService(store, graphs, geocoder, cfg.SnapRadius)

	rec, err := service.Solve(ctx, &planning.Input{
		GraphID:      info.ID,
		Mode:         cfg.Mode,
		StartCoords:  cfg.StartCoords,
		StartAddress: cfg.StartAddress,
		StartNode:    cfg.StartNode,
		MaxDistance:  cfg.MaxDistance,
		Options: mip.Options{
			TimeLimit: cfg.TimeLimit,
			NodeLimit: cfg.NodeLimit,
			Verbose:   cfg.Verbose,
		},
	})
	if err != nil {
		if planning.IsInputError(err) {
			return &cli.ExitError{Code: 2, Message: err.Error()}
		}
		return err
	}

	printSolve(out, info, rec)

	if !rec.Result.HasRoute() {
		return &cli.ExitError{Code: exitNoRoute, Message: fmt.Sprintf("no route found: %s", rec.Result.Status)}
	}
	if cmd.GeoJSON != "" {
		fc, err := service.GeoJSON(ctx, rec)
		if err != nil {
			return err
		}
		data, err := fc.MarshalJSON()
		if err != nil {
			return fmt.Errorf("failed to encode route: %w", err)
		}
		if err := os.WriteFile(cmd.GeoJSON, data, 0644); err != nil {
			return fmt.Errorf("failed to write route: %w", err)
		}
		fmt.Fprintf(out, "GeoJSON   %s\n", cmd.GeoJSON)
	}
	return nil
}

func printSolve(out io.Writer, info *models.GraphInfo, rec *models.SolveRecord) {
	res := &rec.Result
	fmt.Fprintf(out, "Solve     %s\n", rec.ID)
	fmt.Fprintf(out, "Graph     %s (%s vertices, %s edges)\n", info.Name, count(info.NodeCount), count(info.EdgeCount))
	fmt.Fprintf(out, "Mode      %s\n", rec.Mode)
	fmt.Fprintf(out, "Start     vertex %d (%.5f, %.5f)\n", res.StartNode, rec.Start.Lat, rec.Start.Lng)
	fmt.Fprintf(out, "Status    %s\n", res.Status)
	if res.HasRoute() {
		fmt.Fprintf(out, "Score     %.3f (bound %.3f)\n", res.Score, res.Bound)
		fmt.Fprintf(out, "Distance  %s of %s budget\n", meters(res.TotalDistance), meters(res.MaxDistance))
	}
	st := res.Stats
	fmt.Fprintf(out, "Search    %s nodes, %s lazy cuts in %s callbacks, %v\n",
		count(st.Nodes), count(st.LazyConstraints), count(st.CallbackCalls), st.Runtime.Round(time.Millisecond))

	if len(res.Arcs) == 0 {
		return
	}
	fmt.Fprintln(out, "Route")
	for _, a := range res.Arcs {
		name := a.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(out, "  %4d  %d -> %d  %s  %.2f  %s\n", a.Seq, a.From, a.To, meters(a.Distance), a.Score, name)
	}
}

func runServe(cmd *cli.Command) error {
	srv, err := server.New(cmd.Config)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	actualAddr, err := srv.Start()
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	log.Printf("Listening on http://%s", actualAddr)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	sig := <-shutdown
	log.Printf("Received signal %v, starting graceful shutdown", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("could not gracefully shutdown the server: %w", err)
	}

	log.Println("Server stopped")
	return nil
}
