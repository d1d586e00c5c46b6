// Package zone resolves geographic points to zone labels using an ordered list
// of polygon sets: finer special zones first, the administrative partition last.
package zone

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"

	"github.com/red-atencion/outreach-cli/internal/model"
)

// Kind distinguishes operational sub-areas from the administrative partition.
type Kind string

const (
	KindSpecial Kind = "special"
	KindBase    Kind = "base"
)

// Feature is one labelled polygon (or multipolygon) of a zone set.
type Feature struct {
	Label  string
	Geom   *geom.MultiPolygon
	bounds *geom.Bounds
}

// NewFeature wraps a multipolygon with its label and precomputed bounds.
func NewFeature(label string, mp *geom.MultiPolygon) Feature {
	return Feature{Label: label, Geom: mp, bounds: mp.Bounds()}
}

// Contains reports whether the point lies inside the feature. Rings are
// combined with the even-odd rule, so holes and multi-part shapes work
// whether or not ring orientation was preserved by the source file.
func (f Feature) Contains(c geom.Coord) bool {
	if f.Geom == nil {
		return false
	}
	if f.bounds != nil && !f.bounds.OverlapsPoint(geom.XY, c) {
		return false
	}
	layout := f.Geom.Layout()
	var hits int
	for i := 0; i < f.Geom.NumPolygons(); i++ {
		poly := f.Geom.Polygon(i)
		for j := 0; j < poly.NumLinearRings(); j++ {
			if xy.IsPointInRing(layout, c, poly.LinearRing(j).FlatCoords()) {
				hits++
			}
		}
	}
	return hits%2 == 1
}

// Set is an immutable named collection of zone features.
type Set struct {
	Name     string
	Kind     Kind
	Features []Feature
}

// Locate returns the label of the first feature in the set containing p.
func (s *Set) Locate(p model.Point) (string, bool) {
	c := geom.Coord{p.Lon, p.Lat}
	for _, f := range s.Features {
		if f.Contains(c) {
			return f.Label, true
		}
	}
	return "", false
}

// Resolver assigns at most one zone per point by strict set precedence.
type Resolver struct {
	sets []*Set
}

// NewResolver validates the precedence list: at least one set, at most one
// base set, and the base set (if any) is last.
func NewResolver(sets []*Set) (*Resolver, error) {
	if len(sets) == 0 {
		return nil, eris.New("zone: no zone sets configured")
	}
	for i, s := range sets {
		if s == nil {
			return nil, eris.Errorf("zone: nil zone set at position %d", i)
		}
		if s.Kind == KindBase && i != len(sets)-1 {
			return nil, eris.Errorf("zone: base set %q must be last in precedence order", s.Name)
		}
	}
	return &Resolver{sets: sets}, nil
}

// Sets returns the zone sets in precedence order.
func (r *Resolver) Sets() []*Set {
	return r.sets
}

// Resolve evaluates the sets in precedence order and stops at the first set
// containing p. Lower-precedence sets are never consulted once a label is found.
func (r *Resolver) Resolve(p model.Point) (string, bool) {
	for _, s := range r.sets {
		if label, ok := s.Locate(p); ok {
			return label, true
		}
	}
	return "", false
}

// ResolveAll resolves a batch of points. Each set is a partition step over the
// indices still pending: indices it claims are removed before the next set
// runs, so a point can never be labelled twice. Nil points stay unresolved.
func (r *Resolver) ResolveAll(points []*model.Point) []*string {
	out := make([]*string, len(points))

	pending := make([]int, 0, len(points))
	for i, p := range points {
		if p != nil {
			pending = append(pending, i)
		}
	}

	for _, s := range r.sets {
		if len(pending) == 0 {
			break
		}
		remaining := make([]int, 0, len(pending))
		for _, i := range pending {
			label, ok := s.Locate(*points[i])
			if !ok {
				remaining = append(remaining, i)
				continue
			}
			out[i] = &label
		}
		pending = remaining
	}

	return out
}
