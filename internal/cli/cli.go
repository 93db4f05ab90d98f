// Package cli parses command-line arguments into a command and its resolved
// configuration, and maps bad input onto exit codes.
package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"road-orienteer/internal/config"
	"road-orienteer/internal/models"
)

const (
	CommandImport = "import"
	CommandSolve  = "solve"
	CommandServe  = "serve"
)

// ExitError is an error that carries a process exit code
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

func usageError(format string, args ...interface{}) *ExitError {
	return &ExitError{Code: 2, Message: fmt.Sprintf(format, args...)}
}

// Command is a parsed invocation
type Command struct {
	Name   string
	Config *config.Config
	// Reimport forces a fresh import of the graph file
	Reimport bool
	// GeoJSON is where solve writes the route, empty for none
	GeoJSON string
}

func printUsage(output io.Writer) {
	fmt.Fprint(output, `
Road Orienteer - plans the most rewarding closed route within a distance budget.

Usage:
  orienteer import [options] [GRAPH_FILE]
  orienteer solve  [options] [GRAPH_FILE]
  orienteer serve  [options]

Commands:
  import   Import an OSM extract (.osm or .osm.pbf) into the local store.
  solve    Plan one route and print it.
  serve    Run the JSON HTTP API.

Run 'orienteer COMMAND -h' for the options of a command. Settings are read
from the -config file, then ORIENTEER_* environment variables, then flags.
`)
}

type flagValues struct {
	configPath string
	graph      string
	vehicle    string
	maxCost    float64
	dataDir    string
	snapRadius float64
	lat, lon   float64
	address    string
	node       int
	timeLimit  time.Duration
	nodeLimit  int
	verbose    bool
	addr       string
	reimport   bool
	geojson    string
}

func newFlagSet(name string, output io.Writer, v *flagValues) *flag.FlagSet {
	fs := flag.NewFlagSet("orienteer "+name, flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprintf(output, "\nUsage:\n  orienteer %s [options]\n\nOptions:\n", name)
		fs.PrintDefaults()
	}

	fs.StringVar(&v.configPath, "config", os.Getenv(config.EnvPrefix+"CONFIG"), "Path to an HCL config file.")
	fs.StringVar(&v.graph, "graph", "", "Path to the OSM extract.")
	fs.StringVar(&v.vehicle, "vehicle", "", "Travel mode: bike, racingbike, mtb or foot.")
	fs.StringVar(&v.dataDir, "data-dir", "", "Directory holding the database (default ~/.road-orienteer).")
	fs.BoolVar(&v.reimport, "reimport", false, "Import the graph file even if it is already stored.")

	if name == CommandSolve || name == CommandServe {
		fs.Float64Var(&v.snapRadius, "snap-radius", 0, "Maximum distance in meters from a start location to the road network.")
		fs.DurationVar(&v.timeLimit, "time-limit", 0, "Solver time limit, e.g. 90s.")
		fs.IntVar(&v.nodeLimit, "node-limit", 0, "Maximum number of branch-and-bound nodes, 0 for no limit.")
	}
	if name == CommandSolve {
		fs.Float64Var(&v.maxCost, "max-cost", 0, "Route length budget in meters.")
		fs.Float64Var(&v.lat, "lat", 0, "Start latitude.")
		fs.Float64Var(&v.lon, "lon", 0, "Start longitude.")
		fs.StringVar(&v.address, "address", "", "Start address, geocoded within the graph area.")
		fs.IntVar(&v.node, "node", -1, "Start vertex id.")
		fs.BoolVar(&v.verbose, "verbose", false, "Log search progress.")
		fs.StringVar(&v.geojson, "geojson", "", "Write the route as GeoJSON to this file.")
	}
	if name == CommandServe {
		fs.StringVar(&v.addr, "addr", "", "Listen address, e.g. 127.0.0.1:8080.")
	}
	return fs
}

// Parse processes command-line arguments. It returns the command, a boolean
// telling the caller to exit cleanly (help was shown), or an *ExitError.
func Parse(args []string, output io.Writer) (*Command, bool, error) {
	if len(args) == 0 {
		printUsage(output)
		return nil, true, nil
	}

	name := args[0]
	switch name {
	case CommandImport, CommandSolve, CommandServe:
	case "-h", "-help", "--help", "help":
		printUsage(output)
		return nil, true, nil
	default:
		return nil, false, usageError("unknown command %q (want import, solve or serve)", name)
	}

	var v flagValues
	fs := newFlagSet(name, output, &v)
	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, usageError("%v", err)
	}
	if fs.NArg() > 1 {
		return nil, false, usageError("unexpected arguments: %v", fs.Args()[1:])
	}

	cfg, err := config.Load(v.configPath)
	if err != nil {
		return nil, false, usageError("%v", err)
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if err := applyFlags(cfg, &v, set); err != nil {
		return nil, false, err
	}
	if fs.NArg() == 1 {
		cfg.GraphFile = fs.Arg(0)
	}

	switch name {
	case CommandImport:
		err = cfg.Validate()
		if err == nil && cfg.GraphFile == "" {
			err = &config.ErrInvalidConfig{Field: "graph_file", Reason: "is required"}
		}
	case CommandSolve:
		err = cfg.ValidateSolve()
	default:
		err = cfg.Validate()
	}
	if err != nil {
		return nil, false, usageError("%v", err)
	}

	return &Command{
		Name:     name,
		Config:   cfg,
		Reimport: v.reimport,
		GeoJSON:  v.geojson,
	}, false, nil
}

// applyFlags copies explicitly set flags over cfg
func applyFlags(cfg *config.Config, v *flagValues, set map[string]bool) error {
	if set["graph"] {
		cfg.GraphFile = v.graph
	}
	if set["vehicle"] {
		mode, err := models.ParseTravelMode(v.vehicle)
		if err != nil {
			return usageError("invalid -vehicle: %v", err)
		}
		cfg.Mode = mode
	}
	if set["max-cost"] {
		cfg.MaxDistance = v.maxCost
	}
	if set["data-dir"] {
		cfg.DataDir = v.dataDir
	}
	if set["snap-radius"] {
		cfg.SnapRadius = v.snapRadius
	}
	if set["lat"] != set["lon"] {
		return usageError("-lat and -lon must be given together")
	}
	if set["lat"] {
		cfg.StartCoords = &models.Coordinates{Lat: v.lat, Lng: v.lon}
	}
	if set["address"] {
		cfg.StartAddress = v.address
	}
	if set["node"] {
		cfg.StartNode = v.node
	}
	if set["time-limit"] {
		cfg.TimeLimit = v.timeLimit
	}
	if set["node-limit"] {
		cfg.NodeLimit = v.nodeLimit
	}
	if set["verbose"] {
		cfg.Verbose = v.verbose
	}
	if set["addr"] {
		cfg.ServerAddr = v.addr
	}
	return nil
}
