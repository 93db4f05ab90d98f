package roadgraph

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// RouteFeatureCollection renders arcs as one LineString feature per arc plus a
// start point feature. Each line is oriented in travel direction.
func RouteFeatureCollection(net *Network, start int, arcs []Arc) *geojson.FeatureCollection {
	g := net.Graph()
	fc := geojson.NewFeatureCollection()

	startFeature := geojson.NewFeature(g.Point(start))
	startFeature.Properties["role"] = "start"
	startFeature.Properties["vertex"] = start
	fc.Append(startFeature)

	for i, a := range arcs {
		e := g.Edge(a.Edge)
		line := orientedGeometry(g, e, a.Base)
		f := geojson.NewFeature(line)
		f.Properties["seq"] = i
		f.Properties["edge_id"] = a.Edge
		f.Properties["from"] = a.Base
		f.Properties["to"] = a.Adj
		f.Properties["distance"] = e.Distance
		f.Properties["score"] = net.Score(a)
		if e.Name != "" {
			f.Properties["name"] = e.Name
		}
		fc.Append(f)
	}
	return fc
}

func orientedGeometry(g *Graph, e *Edge, from int) orb.LineString {
	line := g.EdgeGeometry(e)
	if from == e.Base {
		return line
	}
	rev := make(orb.LineString, len(line))
	for i, p := range line {
		rev[len(line)-1-i] = p
	}
	return rev
}
