package osmimport

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"road-orienteer/internal/models"
)

const extract = `<?xml version="1.0" encoding="UTF-8"?>
<osm version="0.6" generator="test">
  <node id="1" lat="40.0000" lon="-74.0000"/>
  <node id="2" lat="40.0010" lon="-74.0000"/>
  <node id="3" lat="40.0020" lon="-74.0000"/>
  <node id="4" lat="40.0010" lon="-74.0010"/>
  <node id="5" lat="40.0030" lon="-74.0010"/>
  <node id="6" lat="40.0030" lon="-74.0000"/>
  <way id="10">
    <nd ref="1"/><nd ref="2"/><nd ref="3"/>
    <tag k="highway" v="residential"/>
    <tag k="name" v="Main Street"/>
  </way>
  <way id="11">
    <nd ref="4"/><nd ref="2"/>
    <tag k="highway" v="cycleway"/>
    <tag k="oneway" v="yes"/>
  </way>
  <way id="12">
    <nd ref="3"/><nd ref="5"/><nd ref="6"/><nd ref="3"/>
    <tag k="highway" v="service"/>
  </way>
  <way id="13">
    <nd ref="1"/><nd ref="4"/>
    <tag k="highway" v="motorway"/>
  </way>
  <way id="14">
    <nd ref="4"/><nd ref="5"/>
    <tag k="building" v="yes"/>
  </way>
</osm>`

func TestImportSplitsWaysAtJunctions(t *testing.T) {
	im, err := NewImporter()
	require.NoError(t, err)

	g, err := im.Import(context.Background(), strings.NewReader(extract), FormatXML, "test.osm")
	require.NoError(t, err)

	assert.Equal(t, 5, g.NumVertices())
	assert.Equal(t, 5, g.NumEdges())

	main1 := g.Edge(0)
	assert.Equal(t, "Main Street", main1.Name)
	assert.Equal(t, 0, main1.Base)
	assert.Equal(t, 1, main1.Adj)
	assert.InDelta(t, 111.2, main1.Distance, 1.0)
	assert.Len(t, main1.Geometry, 2)

	main2 := g.Edge(1)
	assert.Equal(t, 1, main2.Base)
	assert.Equal(t, 2, main2.Adj)
}

func TestImportOneWayPerMode(t *testing.T) {
	im, err := NewImporter()
	require.NoError(t, err)
	g, err := im.Import(context.Background(), strings.NewReader(extract), FormatXML, "test.osm")
	require.NoError(t, err)

	cycleway := g.Edge(2)
	bike := cycleway.Access[models.TravelModeBike]
	assert.True(t, bike.Forward)
	assert.False(t, bike.Backward)
	assert.InDelta(t, VeryNice.Value(), bike.Priority, 1e-9)

	foot := cycleway.Access[models.TravelModeFoot]
	assert.True(t, foot.Forward)
	assert.True(t, foot.Backward)
}

func TestImportSplitsClosedLoops(t *testing.T) {
	im, err := NewImporter(models.TravelModeBike)
	require.NoError(t, err)
	g, err := im.Import(context.Background(), strings.NewReader(extract), FormatXML, "test.osm")
	require.NoError(t, err)

	a, b := g.Edge(3), g.Edge(4)
	assert.Equal(t, a.Adj, b.Base)
	assert.Equal(t, a.Base, b.Adj)
	assert.Len(t, a.Geometry, 3)
	assert.Len(t, b.Geometry, 2)
	for _, e := range g.Edges() {
		assert.NotEqual(t, e.Base, e.Adj, "edge %d is a self-loop", e.ID)
	}

	_, hasFoot := a.Access[models.TravelModeFoot]
	assert.False(t, hasFoot)
}

func TestImportRejectsEmptyExtract(t *testing.T) {
	im, err := NewImporter()
	require.NoError(t, err)

	data := `<osm version="0.6"><node id="1" lat="1" lon="1"/></osm>`
	_, err = im.Import(context.Background(), strings.NewReader(data), FormatXML, "empty.osm")
	var failed *ErrImportFailed
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, "empty.osm", failed.Source)
}

func TestImportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "small.osm")
	require.NoError(t, os.WriteFile(path, []byte(extract), 0644))

	im, err := NewImporter(models.TravelModeFoot)
	require.NoError(t, err)
	g, err := im.ImportFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 5, g.NumEdges())

	_, err = im.ImportFile(context.Background(), filepath.Join(t.TempDir(), "missing.osm"))
	var failed *ErrImportFailed
	assert.True(t, errors.As(err, &failed))
}

func TestNewImporterRejectsUnknownMode(t *testing.T) {
	_, err := NewImporter(models.TravelMode("car"))
	assert.Error(t, err)
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatPBF, DetectFormat("berlin-latest.osm.pbf"))
	assert.Equal(t, FormatPBF, DetectFormat("X.PBF"))
	assert.Equal(t, FormatXML, DetectFormat("map.osm"))
}

func tags(kv ...string) osm.Tags {
	var ts osm.Tags
	for i := 0; i+1 < len(kv); i += 2 {
		ts = append(ts, osm.Tag{Key: kv[i], Value: kv[i+1]})
	}
	return ts
}

func TestEncoderAccess(t *testing.T) {
	bike, err := NewEncoder(models.TravelModeBike)
	require.NoError(t, err)
	foot, err := NewEncoder(models.TravelModeFoot)
	require.NoError(t, err)

	_, ok := bike.Access(tags("highway", "residential", "access", "private"))
	assert.False(t, ok)
	_, ok = bike.Access(tags("highway", "residential", "access", "private", "bicycle", "yes"))
	assert.True(t, ok)

	_, ok = bike.Access(tags("highway", "footway", "bicycle", "no"))
	assert.False(t, ok)
	_, ok = foot.Access(tags("highway", "footway", "bicycle", "no"))
	assert.True(t, ok)

	_, ok = bike.Access(tags("highway", "motorway"))
	assert.False(t, ok)
	_, ok = bike.Access(tags("highway", "trunk", "bicycle", "designated"))
	assert.True(t, ok)

	_, ok = foot.Access(tags("highway", "pedestrian", "area", "yes"))
	assert.False(t, ok)
	_, ok = bike.Access(tags("building", "yes"))
	assert.False(t, ok)
}

func TestEncoderDirections(t *testing.T) {
	bike, err := NewEncoder(models.TravelModeBike)
	require.NoError(t, err)
	foot, err := NewEncoder(models.TravelModeFoot)
	require.NoError(t, err)

	cases := []struct {
		name      string
		tags      osm.Tags
		fwd, back bool
	}{
		{"two-way", tags("highway", "residential"), true, true},
		{"oneway", tags("highway", "residential", "oneway", "yes"), true, false},
		{"reverse oneway", tags("highway", "residential", "oneway", "-1"), false, true},
		{"roundabout", tags("highway", "residential", "junction", "roundabout"), true, false},
		{"contraflow lane", tags("highway", "residential", "oneway", "yes", "cycleway", "opposite_lane"), true, true},
		{"oneway except bikes", tags("highway", "residential", "oneway", "yes", "oneway:bicycle", "no"), true, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			acc, ok := bike.Access(tc.tags)
			require.True(t, ok)
			assert.Equal(t, tc.fwd, acc.Forward)
			assert.Equal(t, tc.back, acc.Backward)

			acc, ok = foot.Access(tc.tags)
			require.True(t, ok)
			assert.True(t, acc.Forward && acc.Backward, "foot ignores one-way rules")
		})
	}
}

func TestEncoderPriority(t *testing.T) {
	racing, err := NewEncoder(models.TravelModeRacingBike)
	require.NoError(t, err)
	mtb, err := NewEncoder(models.TravelModeMTB)
	require.NoError(t, err)
	bike, err := NewEncoder(models.TravelModeBike)
	require.NoError(t, err)

	acc, _ := racing.Access(tags("highway", "tertiary", "surface", "gravel"))
	assert.Equal(t, AvoidAtAllCosts.Value(), acc.Priority)

	acc, _ = mtb.Access(tags("highway", "track", "surface", "gravel"))
	assert.Equal(t, Best.Value(), acc.Priority)

	acc, _ = bike.Access(tags("highway", "residential", "bicycle", "designated"))
	assert.Equal(t, VeryNice.Value(), acc.Priority)

	acc, _ = bike.Access(tags("highway", "secondary", "maxspeed", "70"))
	assert.Equal(t, ReachDest.Value(), acc.Priority)

	acc, _ = bike.Access(tags("highway", "cycleway", "bicycle", "designated"))
	assert.Equal(t, 1.0, acc.Priority)

	assert.Equal(t, 0.0, Worst.Value())
	assert.Equal(t, 1.0, Best.Value())
}
