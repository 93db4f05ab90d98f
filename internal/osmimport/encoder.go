package osmimport

import (
	"fmt"
	"strings"

	"github.com/paulmach/osm"

	"road-orienteer/internal/models"
	"road-orienteer/internal/roadgraph"
)

// PriorityCode ranks how pleasant a road is for a travel mode
type PriorityCode int

const (
	Worst PriorityCode = iota
	AvoidAtAllCosts
	ReachDest
	AvoidIfPossible
	Unchanged
	Prefer
	VeryNice
	Best
)

// Value normalizes the code to [0, 1]
func (p PriorityCode) Value() float64 {
	return float64(p) / float64(Best)
}

func (p PriorityCode) clamp() PriorityCode {
	switch {
	case p < Worst:
		return Worst
	case p > Best:
		return Best
	default:
		return p
	}
}

var bikeHighways = map[string]PriorityCode{
	"cycleway":       VeryNice,
	"path":           Prefer,
	"living_street":  Prefer,
	"residential":    Unchanged,
	"unclassified":   Unchanged,
	"service":        Unchanged,
	"road":           Unchanged,
	"track":          Unchanged,
	"tertiary":       Unchanged,
	"tertiary_link":  Unchanged,
	"secondary":      AvoidIfPossible,
	"secondary_link": AvoidIfPossible,
	"primary":        AvoidAtAllCosts,
	"primary_link":   AvoidAtAllCosts,
	"footway":        ReachDest,
	"pedestrian":     ReachDest,
	"bridleway":      ReachDest,
}

var racingBikeHighways = map[string]PriorityCode{
	"cycleway":       VeryNice,
	"tertiary":       Prefer,
	"tertiary_link":  Prefer,
	"unclassified":   Prefer,
	"secondary":      Unchanged,
	"secondary_link": Unchanged,
	"residential":    Unchanged,
	"living_street":  Unchanged,
	"road":           Unchanged,
	"service":        AvoidIfPossible,
	"primary":        AvoidIfPossible,
	"primary_link":   AvoidIfPossible,
	"path":           AvoidIfPossible,
	"track":          AvoidAtAllCosts,
	"footway":        ReachDest,
	"pedestrian":     ReachDest,
}

var mtbHighways = map[string]PriorityCode{
	"path":          VeryNice,
	"track":         VeryNice,
	"bridleway":     Prefer,
	"cycleway":      Prefer,
	"unclassified":  Unchanged,
	"residential":   Unchanged,
	"living_street": Unchanged,
	"service":       Unchanged,
	"road":          Unchanged,
	"tertiary":      AvoidIfPossible,
	"secondary":     AvoidIfPossible,
	"primary":       AvoidAtAllCosts,
	"footway":       ReachDest,
	"pedestrian":    ReachDest,
}

var footHighways = map[string]PriorityCode{
	"footway":       VeryNice,
	"pedestrian":    VeryNice,
	"path":          VeryNice,
	"steps":         Prefer,
	"track":         Prefer,
	"living_street": Prefer,
	"residential":   Unchanged,
	"service":       Unchanged,
	"unclassified":  Unchanged,
	"road":          Unchanged,
	"cycleway":      Unchanged,
	"bridleway":     Unchanged,
	"tertiary":      AvoidIfPossible,
	"secondary":     AvoidIfPossible,
	"primary":       AvoidAtAllCosts,
	"trunk":         AvoidAtAllCosts,
}

var unpaved = map[string]bool{
	"unpaved": true, "gravel": true, "fine_gravel": true, "dirt": true,
	"earth": true, "ground": true, "grass": true, "mud": true, "sand": true,
	"compacted": true, "pebblestone": true,
}

var restricted = map[string]bool{
	"no": true, "private": true, "agricultural": true, "forestry": true, "delivery": true,
}

var permitted = map[string]bool{
	"yes": true, "designated": true, "permissive": true, "destination": true,
}

// Encoder derives access and priority of a way for one travel mode
type Encoder struct {
	mode       models.TravelMode
	highways   map[string]PriorityCode
	accessKey  string
	oneways    bool
	avoidRough bool
	likeRough  bool
}

// NewEncoder returns the encoder for mode
func NewEncoder(mode models.TravelMode) (*Encoder, error) {
	switch mode {
	case models.TravelModeBike:
		return &Encoder{mode: mode, highways: bikeHighways, accessKey: "bicycle", oneways: true}, nil
	case models.TravelModeRacingBike:
		return &Encoder{mode: mode, highways: racingBikeHighways, accessKey: "bicycle", oneways: true, avoidRough: true}, nil
	case models.TravelModeMTB:
		return &Encoder{mode: mode, highways: mtbHighways, accessKey: "bicycle", oneways: true, likeRough: true}, nil
	case models.TravelModeFoot:
		return &Encoder{mode: mode, highways: footHighways, accessKey: "foot"}, nil
	}
	return nil, fmt.Errorf("no encoder for travel mode %q", mode)
}

// Mode returns the travel mode of the encoder
func (e *Encoder) Mode() models.TravelMode { return e.mode }

// Accepts reports whether the way is usable at all by this mode. Highway
// classes outside the mode's table are accepted only when the mode-specific
// access tag opens them.
func (e *Encoder) Accepts(tags osm.Tags) bool {
	highway := tags.Find("highway")
	if highway == "" || tags.Find("area") == "yes" {
		return false
	}
	modeAccess := tags.Find(e.accessKey)
	if _, ok := e.highways[highway]; !ok && !permitted[modeAccess] {
		return false
	}
	if modeAccess != "" {
		return !restricted[modeAccess] && modeAccess != "use_sidepath"
	}
	return !restricted[tags.Find("access")]
}

// Access computes direction flags and priority of a way. ok is false when the
// mode may not use the way.
func (e *Encoder) Access(tags osm.Tags) (access roadgraph.Access, ok bool) {
	if !e.Accepts(tags) {
		return roadgraph.Access{}, false
	}
	access.Forward, access.Backward = e.directions(tags)
	access.Priority = e.priority(tags).Value()
	return access, true
}

func (e *Encoder) directions(tags osm.Tags) (forward, backward bool) {
	if !e.oneways {
		return true, true
	}
	if tags.Find("oneway:bicycle") == "no" || strings.HasPrefix(tags.Find("cycleway"), "opposite") {
		return true, true
	}
	oneway := tags.Find("oneway:bicycle")
	if oneway == "" {
		oneway = tags.Find("oneway")
	}
	switch oneway {
	case "yes", "true", "1":
		return true, false
	case "-1", "reverse":
		return false, true
	}
	if tags.Find("junction") == "roundabout" {
		return true, false
	}
	return true, true
}

func (e *Encoder) priority(tags osm.Tags) PriorityCode {
	p, ok := e.highways[tags.Find("highway")]
	if !ok {
		p = ReachDest
	}
	if tags.Find(e.accessKey) == "designated" {
		p += 2
	}
	if e.accessKey == "bicycle" && tags.Find("bicycle") == "dismount" {
		p = ReachDest
	}
	rough := unpaved[tags.Find("surface")]
	switch {
	case rough && e.avoidRough:
		p = AvoidAtAllCosts
	case rough && e.likeRough:
		p++
	}
	if e.accessKey == "bicycle" {
		if maxspeed := tags.Find("maxspeed"); maxspeed != "" && speedAbove(maxspeed, 50) {
			p--
		}
	}
	return p.clamp()
}

func speedAbove(v string, limit int) bool {
	var speed int
	if _, err := fmt.Sscanf(v, "%d", &speed); err != nil {
		return false
	}
	return speed > limit
}
