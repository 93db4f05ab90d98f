package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"road-orienteer/internal/models"
)

func parse(t *testing.T, args ...string) (*Command, bool, string, error) {
	t.Helper()
	t.Setenv("ORIENTEER_CONFIG", "")
	t.Setenv("ORIENTEER_MAX_COST", "")
	out := &bytes.Buffer{}
	cmd, exit, err := Parse(args, out)
	return cmd, exit, out.String(), err
}

func requireExitCode(t *testing.T, err error, code int) {
	t.Helper()
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, code, exitErr.Code)
}

func TestParseUsage(t *testing.T) {
	for _, args := range [][]string{nil, {"-h"}, {"help"}} {
		cmd, exit, out, err := parse(t, args...)
		require.NoError(t, err)
		assert.True(t, exit)
		assert.Nil(t, cmd)
		assert.Contains(t, out, "Usage:")
	}

	_, exit, out, err := parse(t, "solve", "-h")
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Contains(t, out, "-max-cost")
}

func TestParseUnknownCommand(t *testing.T) {
	_, _, _, err := parse(t, "route")
	requireExitCode(t, err, 2)
}

func TestParseSolve(t *testing.T) {
	cmd, exit, _, err := parse(t, "solve",
		"-vehicle", "mtb",
		"-max-cost", "12000",
		"-lat", "52.5", "-lon", "13.4",
		"-time-limit", "45s",
		"-node-limit", "300",
		"-geojson", "route.geojson",
		"berlin.osm.pbf",
	)
	require.NoError(t, err)
	assert.False(t, exit)
	assert.Equal(t, CommandSolve, cmd.Name)
	assert.Equal(t, "route.geojson", cmd.GeoJSON)

	cfg := cmd.Config
	assert.Equal(t, "berlin.osm.pbf", cfg.GraphFile)
	assert.Equal(t, models.TravelModeMTB, cfg.Mode)
	assert.Equal(t, 12000.0, cfg.MaxDistance)
	require.NotNil(t, cfg.StartCoords)
	assert.Equal(t, models.Coordinates{Lat: 52.5, Lng: 13.4}, *cfg.StartCoords)
	assert.Equal(t, 45*time.Second, cfg.TimeLimit)
	assert.Equal(t, 300, cfg.NodeLimit)
}

func TestParseFlagsOverrideConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orienteer.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`
graph_file = "/maps/city.osm"
max_cost   = 8000
start {
  node = 4
}
`), 0600))

	cmd, _, _, err := parse(t, "solve", "-config", path, "-max-cost", "9000")
	require.NoError(t, err)
	assert.Equal(t, "/maps/city.osm", cmd.Config.GraphFile)
	assert.Equal(t, 9000.0, cmd.Config.MaxDistance)
	assert.Equal(t, 4, cmd.Config.StartNode)
}

func TestParseSolveErrors(t *testing.T) {
	cases := map[string][]string{
		"missing budget":  {"solve", "-node", "0", "a.osm"},
		"missing start":   {"solve", "-max-cost", "100", "a.osm"},
		"missing graph":   {"solve", "-max-cost", "100", "-node", "0"},
		"half coordinate": {"solve", "-max-cost", "100", "-lat", "1", "a.osm"},
		"bad vehicle":     {"solve", "-vehicle", "car", "-max-cost", "100", "-node", "0", "a.osm"},
		"unknown flag":    {"solve", "-budget", "100"},
		"extra args":      {"solve", "a.osm", "b.osm"},
		"missing config":  {"solve", "-config", "/does/not/exist.hcl"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, _, err := parse(t, args...)
			requireExitCode(t, err, 2)
		})
	}
}

func TestParseImportAndServe(t *testing.T) {
	cmd, _, _, err := parse(t, "import", "-reimport", "-data-dir", "/tmp/orienteer", "city.osm")
	require.NoError(t, err)
	assert.Equal(t, CommandImport, cmd.Name)
	assert.True(t, cmd.Reimport)
	assert.Equal(t, "/tmp/orienteer", cmd.Config.DataDir)
	assert.Equal(t, "city.osm", cmd.Config.GraphFile)

	_, _, _, err = parse(t, "import")
	requireExitCode(t, err, 2)

	cmd, _, _, err = parse(t, "serve", "-addr", ":9999")
	require.NoError(t, err)
	assert.Equal(t, CommandServe, cmd.Name)
	assert.Equal(t, ":9999", cmd.Config.ServerAddr)

	// solve-only flags are rejected elsewhere
	_, _, _, err = parse(t, "serve", "-max-cost", "100")
	requireExitCode(t, err, 2)
}
