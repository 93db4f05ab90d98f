// Package osmimport turns an OpenStreetMap extract into a roadgraph.Graph.
package osmimport

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"

	"road-orienteer/internal/models"
	"road-orienteer/internal/roadgraph"
)

// Format is the encoding of an OSM extract
type Format int

const (
	FormatXML Format = iota
	FormatPBF
)

// DetectFormat picks the format from the file name
func DetectFormat(path string) Format {
	if strings.HasSuffix(strings.ToLower(path), ".pbf") {
		return FormatPBF
	}
	return FormatXML
}

// ErrImportFailed is returned when an extract cannot be turned into a graph
type ErrImportFailed struct {
	Source string
	Reason string
}

func (e *ErrImportFailed) Error() string {
	return fmt.Sprintf("osm import failed for %s: %s", e.Source, e.Reason)
}

// Importer builds road graphs with access for a set of travel modes
type Importer struct {
	encoders []*Encoder
	procs    int
}

// NewImporter creates an importer for modes; no modes means all modes
func NewImporter(modes ...models.TravelMode) (*Importer, error) {
	if len(modes) == 0 {
		modes = models.TravelModes
	}
	im := &Importer{procs: runtime.GOMAXPROCS(0)}
	for _, m := range modes {
		enc, err := NewEncoder(m)
		if err != nil {
			return nil, err
		}
		im.encoders = append(im.encoders, enc)
	}
	return im, nil
}

// ImportFile reads an .osm or .osm.pbf file
func (im *Importer) ImportFile(ctx context.Context, path string) (*roadgraph.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ErrImportFailed{Source: path, Reason: err.Error()}
	}
	defer f.Close()

	return im.Import(ctx, f, DetectFormat(path), filepath.Base(path))
}

type wayRecord struct {
	id     osm.WayID
	nodes  []osm.NodeID
	name   string
	access map[models.TravelMode]roadgraph.Access
}

// Import reads an extract from r. source names it in errors and logs.
func (im *Importer) Import(ctx context.Context, r io.Reader, format Format, source string) (*roadgraph.Graph, error) {
	start := time.Now()

	var scanner osm.Scanner
	switch format {
	case FormatPBF:
		s := osmpbf.New(ctx, r, im.procs)
		s.SkipRelations = true
		scanner = s
	default:
		scanner = osmxml.New(ctx, r)
	}
	defer scanner.Close()

	points := make(map[osm.NodeID]orb.Point)
	var ways []wayRecord
	for scanner.Scan() {
		switch o := scanner.Object().(type) {
		case *osm.Node:
			points[o.ID] = o.Point()
		case *osm.Way:
			if w, ok := im.way(o); ok {
				ways = append(ways, w)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &ErrImportFailed{Source: source, Reason: err.Error()}
	}
	log.Printf("[OSM] Scanned %s: nodes=%d routable_ways=%d in %v", source, len(points), len(ways), time.Since(start))

	g, err := im.build(points, ways)
	if err != nil {
		return nil, &ErrImportFailed{Source: source, Reason: err.Error()}
	}
	if g.NumEdges() == 0 {
		return nil, &ErrImportFailed{Source: source, Reason: "extract contains no routable roads"}
	}
	log.Printf("[OSM] Built graph from %s: vertices=%d edges=%d in %v", source, g.NumVertices(), g.NumEdges(), time.Since(start))
	return g, nil
}

func (im *Importer) way(w *osm.Way) (wayRecord, bool) {
	rec := wayRecord{id: w.ID, access: make(map[models.TravelMode]roadgraph.Access)}
	for _, enc := range im.encoders {
		if acc, ok := enc.Access(w.Tags); ok {
			rec.access[enc.Mode()] = acc
		}
	}
	if len(rec.access) == 0 || len(w.Nodes) < 2 {
		return rec, false
	}
	rec.nodes = make([]osm.NodeID, 0, len(w.Nodes))
	for _, n := range w.Nodes {
		if len(rec.nodes) > 0 && rec.nodes[len(rec.nodes)-1] == n.ID {
			continue
		}
		rec.nodes = append(rec.nodes, n.ID)
	}
	rec.name = w.Tags.Find("name")
	if rec.name == "" {
		rec.name = w.Tags.Find("ref")
	}
	return rec, len(rec.nodes) >= 2
}

// build splits ways at tower nodes (way ends and nodes shared by several ways
// or repeated within one) so that every edge runs between two vertices.
func (im *Importer) build(points map[osm.NodeID]orb.Point, ways []wayRecord) (*roadgraph.Graph, error) {
	uses := make(map[osm.NodeID]int)
	tower := make(map[osm.NodeID]bool)
	for i := range ways {
		nodes := ways[i].nodes
		tower[nodes[0]] = true
		tower[nodes[len(nodes)-1]] = true
		for _, n := range nodes {
			uses[n]++
		}
	}
	for n, c := range uses {
		if c > 1 {
			tower[n] = true
		}
	}

	b := roadgraph.NewBuilder()
	vertex := make(map[osm.NodeID]int)
	vertexOf := func(n osm.NodeID) int {
		if v, ok := vertex[n]; ok {
			return v
		}
		v := b.AddVertex(points[n])
		vertex[n] = v
		return v
	}

	missing := 0
	for i := range ways {
		w := &ways[i]
		var seg []osm.NodeID
		for _, n := range w.nodes {
			if _, ok := points[n]; !ok {
				missing++
				seg = nil
				continue
			}
			seg = append(seg, n)
			if len(seg) > 1 && tower[n] {
				if err := im.addSegment(b, vertexOf, points, w, seg); err != nil {
					return nil, err
				}
				seg = []osm.NodeID{n}
			}
		}
	}
	if missing > 0 {
		log.Printf("[OSM] Skipped %d way node references without coordinates", missing)
	}
	return b.Build(), nil
}

func (im *Importer) addSegment(b *roadgraph.Builder, vertexOf func(osm.NodeID) int, points map[osm.NodeID]orb.Point, w *wayRecord, seg []osm.NodeID) error {
	first, last := seg[0], seg[len(seg)-1]
	if first == last {
		// A loop back to its own start is split at its middle pillar node
		if len(seg) < 3 {
			return nil
		}
		mid := len(seg) / 2
		if err := im.addSegment(b, vertexOf, points, w, seg[:mid+1]); err != nil {
			return err
		}
		return im.addSegment(b, vertexOf, points, w, seg[mid:])
	}

	line := make(orb.LineString, len(seg))
	for i, n := range seg {
		line[i] = points[n]
	}
	access := make(map[models.TravelMode]roadgraph.Access, len(w.access))
	for m, a := range w.access {
		access[m] = a
	}
	_, err := b.AddEdge(roadgraph.Edge{
		Base:     vertexOf(first),
		Adj:      vertexOf(last),
		Distance: geo.Length(line),
		Name:     w.name,
		Geometry: line,
		Access:   access,
	})
	if err != nil {
		return fmt.Errorf("way %d: %w", w.id, err)
	}
	return nil
}
