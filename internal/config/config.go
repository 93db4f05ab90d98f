// Package config loads orienteer settings from an HCL file and the
// environment.
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"road-orienteer/internal/models"
	"road-orienteer/internal/roadgraph"
)

const EnvPrefix = "ORIENTEER_"

// Config holds resolved settings
type Config struct {
	GraphFile   string
	Mode        models.TravelMode
	MaxDistance float64 // meters, 0 when unset
	DataDir     string
	SnapRadius  float64 // meters

	StartCoords  *models.Coordinates
	StartAddress string
	StartNode    int // -1 when unset

	TimeLimit time.Duration
	NodeLimit int
	Verbose   bool

	ServerAddr        string
	GeocoderURL       string
	GeocoderUserAgent string
}

// ErrInvalidConfig is returned when a setting is missing or out of range
type ErrInvalidConfig struct {
	Field  string
	Reason string
}

func (e *ErrInvalidConfig) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}

// Default returns the settings used when nothing is configured
func Default() *Config {
	return &Config{
		Mode:       models.TravelModeRacingBike,
		SnapRadius: roadgraph.DefaultSnapRadius,
		StartNode:  -1,
		TimeLimit:  5 * time.Minute,
		ServerAddr: "127.0.0.1:8080",
	}
}

type fileConfig struct {
	GraphFile  *string  `hcl:"graph_file,optional"`
	Vehicle    *string  `hcl:"vehicle,optional"`
	MaxCost    *float64 `hcl:"max_cost,optional"`
	DataDir    *string  `hcl:"data_dir,optional"`
	SnapRadius *float64 `hcl:"snap_radius,optional"`

	Start    *startBlock    `hcl:"start,block"`
	Solver   *solverBlock   `hcl:"solver,block"`
	Server   *serverBlock   `hcl:"server,block"`
	Geocoder *geocoderBlock `hcl:"geocoder,block"`
}

type startBlock struct {
	Lat     *float64 `hcl:"lat,optional"`
	Lon     *float64 `hcl:"lon,optional"`
	Address *string  `hcl:"address,optional"`
	Node    *int     `hcl:"node,optional"`
}

type solverBlock struct {
	TimeLimit *string `hcl:"time_limit,optional"`
	NodeLimit *int    `hcl:"node_limit,optional"`
	Verbose   *bool   `hcl:"verbose,optional"`
}

type serverBlock struct {
	Addr *string `hcl:"addr,optional"`
}

type geocoderBlock struct {
	URL       *string `hcl:"url,optional"`
	UserAgent *string `hcl:"user_agent,optional"`
}

// Load reads path (if not empty) over the defaults and then applies
// ORIENTEER_* environment overrides. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := cfg.decode(src, path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes HCL source over the defaults without consulting the environment
// for overrides. filename is used in diagnostics.
func Parse(src []byte, filename string) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(src, filename); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(src []byte, filename string) error {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse config file %s: %w", filename, diags)
	}

	var fc fileConfig
	diags = gohcl.DecodeBody(file.Body, evalContext(), &fc)
	if diags.HasErrors() {
		return fmt.Errorf("failed to decode config file %s: %w", filename, diags)
	}
	return c.merge(&fc)
}

// evalContext exposes the process environment to config expressions as env.NAME
func evalContext() *hcl.EvalContext {
	env := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			env[k] = cty.StringVal(v)
		}
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(env),
		},
	}
}

func (c *Config) merge(fc *fileConfig) error {
	setString(&c.GraphFile, fc.GraphFile)
	setString(&c.DataDir, fc.DataDir)
	setFloat(&c.MaxDistance, fc.MaxCost)
	setFloat(&c.SnapRadius, fc.SnapRadius)
	if fc.Vehicle != nil {
		mode, err := models.ParseTravelMode(*fc.Vehicle)
		if err != nil {
			return &ErrInvalidConfig{Field: "vehicle", Reason: err.Error()}
		}
		c.Mode = mode
	}

	if s := fc.Start; s != nil {
		if (s.Lat == nil) != (s.Lon == nil) {
			return &ErrInvalidConfig{Field: "start", Reason: "lat and lon must be set together"}
		}
		if s.Lat != nil {
			c.StartCoords = &models.Coordinates{Lat: *s.Lat, Lng: *s.Lon}
		}
		setString(&c.StartAddress, s.Address)
		if s.Node != nil {
			c.StartNode = *s.Node
		}
	}

	if s := fc.Solver; s != nil {
		if s.TimeLimit != nil {
			d, err := time.ParseDuration(*s.TimeLimit)
			if err != nil {
				return &ErrInvalidConfig{Field: "solver.time_limit", Reason: err.Error()}
			}
			c.TimeLimit = d
		}
		if s.NodeLimit != nil {
			c.NodeLimit = *s.NodeLimit
		}
		if s.Verbose != nil {
			c.Verbose = *s.Verbose
		}
	}

	if fc.Server != nil {
		setString(&c.ServerAddr, fc.Server.Addr)
	}
	if g := fc.Geocoder; g != nil {
		setString(&c.GeocoderURL, g.URL)
		setString(&c.GeocoderUserAgent, g.UserAgent)
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

// ApplyEnv overrides settings from ORIENTEER_* variables found by lookup
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(EnvPrefix + key)
		return v, ok && v != ""
	}

	if v, ok := get("GRAPH_FILE"); ok {
		c.GraphFile = v
	}
	if v, ok := get("DATA_DIR"); ok {
		c.DataDir = v
	}
	if v, ok := get("SERVER_ADDR"); ok {
		c.ServerAddr = v
	}
	if v, ok := get("GEOCODER_URL"); ok {
		c.GeocoderURL = v
	}
	if v, ok := get("VEHICLE"); ok {
		mode, err := models.ParseTravelMode(v)
		if err != nil {
			return &ErrInvalidConfig{Field: EnvPrefix + "VEHICLE", Reason: err.Error()}
		}
		c.Mode = mode
	}
	if v, ok := get("MAX_COST"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return &ErrInvalidConfig{Field: EnvPrefix + "MAX_COST", Reason: err.Error()}
		}
		c.MaxDistance = f
	}
	if v, ok := get("TIME_LIMIT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return &ErrInvalidConfig{Field: EnvPrefix + "TIME_LIMIT", Reason: err.Error()}
		}
		c.TimeLimit = d
	}
	return nil
}

// Validate checks settings shared by every command
func (c *Config) Validate() error {
	if _, err := models.ParseTravelMode(string(c.Mode)); err != nil {
		return &ErrInvalidConfig{Field: "vehicle", Reason: err.Error()}
	}
	if c.MaxDistance < 0 || math.IsNaN(c.MaxDistance) || math.IsInf(c.MaxDistance, 0) {
		return &ErrInvalidConfig{Field: "max_cost", Reason: "must be a positive distance in meters"}
	}
	if c.SnapRadius <= 0 {
		return &ErrInvalidConfig{Field: "snap_radius", Reason: "must be positive"}
	}
	if c.TimeLimit < 0 {
		return &ErrInvalidConfig{Field: "solver.time_limit", Reason: "must not be negative"}
	}
	if c.NodeLimit < 0 {
		return &ErrInvalidConfig{Field: "solver.node_limit", Reason: "must not be negative"}
	}
	return nil
}

// ValidateSolve additionally requires what a single solve needs: a graph, a
// positive budget and a start
func (c *Config) ValidateSolve() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.GraphFile == "" {
		return &ErrInvalidConfig{Field: "graph_file", Reason: "is required"}
	}
	if c.MaxDistance <= 0 {
		return &ErrInvalidConfig{Field: "max_cost", Reason: "must be a positive distance in meters"}
	}
	if c.StartCoords == nil && c.StartAddress == "" && c.StartNode < 0 {
		return &ErrInvalidConfig{Field: "start", Reason: "one of lat/lon, address or node is required"}
	}
	return nil
}
