// Package evolution labels each identity's weekly presence as new, recurring
// or migratory relative to the zone it was last seen in.
package evolution

import (
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/red-atencion/outreach-cli/internal/model"
)

// DedupPolicy selects which record represents an identity within a week.
type DedupPolicy string

const (
	KeepLatest   DedupPolicy = "latest"
	KeepEarliest DedupPolicy = "earliest"
)

// Options controls week bucketing and dedup.
type Options struct {
	WeekStart time.Weekday
	Policy    DedupPolicy
}

// DefaultOptions buckets weeks from Sunday and keeps the latest record.
func DefaultOptions() Options {
	return Options{WeekStart: time.Sunday, Policy: KeepLatest}
}

// ParseWeekStart accepts "sunday" or "monday".
func ParseWeekStart(s string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sunday":
		return time.Sunday, nil
	case "monday":
		return time.Monday, nil
	default:
		return 0, eris.Errorf("evolution: unsupported week start %q", s)
	}
}

// ParsePolicy accepts "latest" or "earliest".
func ParsePolicy(s string) (DedupPolicy, error) {
	switch p := DedupPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return KeepLatest, nil
	case KeepLatest, KeepEarliest:
		return p, nil
	default:
		return "", eris.Errorf("evolution: unsupported dedup policy %q", s)
	}
}

// WeekOf returns midnight of the first day of t's week in t's location.
func WeekOf(t time.Time, start time.Weekday) time.Time {
	offset := (int(t.Weekday()) - int(start) + 7) % 7
	y, m, d := t.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, t.Location())
}

// Observation is one identity's representative record for a week.
type Observation struct {
	Identity int64
	Week     time.Time
	Zone     string
	HasZone  bool
	// Index points at the representative record in the classified slice.
	Index int
	Label model.Evolution
}

// Result lists the labeled observations ordered by week, then identity.
type Result struct {
	Observations []Observation
}

// History is the state threaded through the weekly fold.
type History struct {
	lastZone map[int64]string
	seen     map[int64]struct{}
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{
		lastZone: make(map[int64]string),
		seen:     make(map[int64]struct{}),
	}
}

// Label classifies an observation against the state accumulated so far.
func (h *History) Label(o Observation) model.Evolution {
	last, hasLast := h.lastZone[o.Identity]
	if _, seen := h.seen[o.Identity]; !seen && !hasLast {
		return model.EvolutionNew
	}
	if o.HasZone && hasLast && last == o.Zone {
		return model.EvolutionRecurring
	}
	return model.EvolutionMigratory
}

// Observe records an observation. A zone-less observation stores "" so the
// next zoned week cannot count as recurring.
func (h *History) Observe(o Observation) {
	h.seen[o.Identity] = struct{}{}
	if o.HasZone {
		h.lastZone[o.Identity] = o.Zone
		return
	}
	h.lastZone[o.Identity] = ""
}

type weekKey struct {
	week     int64
	identity int64
}

// Classify sets Week and Evolution on every record. Records without a
// numeric identity are Unclassifiable. Records dropped by the weekly dedup
// take the label of their week's observation.
func Classify(records []model.CaseRecord, opts Options) Result {
	if opts.Policy == "" {
		opts.Policy = KeepLatest
	}

	order := make([]int, 0, len(records))
	for i := range records {
		r := &records[i]
		r.Week = WeekOf(r.Start, opts.WeekStart)
		if r.Identity.Category != model.IdentityNumeric {
			r.Evolution = model.EvolutionUnclassifiable
			continue
		}
		order = append(order, i)
	}
	sort.SliceStable(order, func(a, b int) bool {
		return records[order[a]].Start.Before(records[order[b]].Start)
	})

	rep := make(map[weekKey]int)
	members := make(map[weekKey][]int)
	var keys []weekKey
	for _, i := range order {
		r := &records[i]
		k := weekKey{week: r.Week.Unix(), identity: r.Identity.Number}
		if _, ok := rep[k]; !ok {
			keys = append(keys, k)
			rep[k] = i
		} else if opts.Policy == KeepLatest {
			rep[k] = i
		}
		members[k] = append(members[k], i)
	}

	obs := make([]Observation, 0, len(keys))
	for _, k := range keys {
		r := &records[rep[k]]
		obs = append(obs, Observation{
			Identity: k.identity,
			Week:     r.Week,
			Zone:     r.ZoneLabel(),
			HasZone:  r.Zone != nil,
			Index:    rep[k],
		})
	}
	sort.SliceStable(obs, func(a, b int) bool {
		if !obs[a].Week.Equal(obs[b].Week) {
			return obs[a].Week.Before(obs[b].Week)
		}
		return obs[a].Identity < obs[b].Identity
	})

	h := NewHistory()
	for start := 0; start < len(obs); {
		end := start
		for end < len(obs) && obs[end].Week.Equal(obs[start].Week) {
			end++
		}
		week := obs[start:end]
		for i := range week {
			week[i].Label = h.Label(week[i])
		}
		for i := range week {
			h.Observe(week[i])
		}
		start = end
	}

	for _, o := range obs {
		for _, i := range members[weekKey{week: o.Week.Unix(), identity: o.Identity}] {
			records[i].Evolution = o.Label
		}
	}
	return Result{Observations: obs}
}

// WeekCount holds one week's evolution counts for a zone.
type WeekCount struct {
	Week      time.Time `json:"week" yaml:"week"`
	New       int       `json:"new" yaml:"new"`
	Recurring int       `json:"recurring" yaml:"recurring"`
	Migratory int       `json:"migratory" yaml:"migratory"`
}

// CountByZone tallies observations in zone per week, oldest first. An empty
// zone counts every observation.
func CountByZone(res Result, zone string) []WeekCount {
	var out []WeekCount
	for _, o := range res.Observations {
		if zone != "" && (!o.HasZone || o.Zone != zone) {
			continue
		}
		if len(out) == 0 || !out[len(out)-1].Week.Equal(o.Week) {
			out = append(out, WeekCount{Week: o.Week})
		}
		wc := &out[len(out)-1]
		switch o.Label {
		case model.EvolutionNew:
			wc.New++
		case model.EvolutionRecurring:
			wc.Recurring++
		case model.EvolutionMigratory:
			wc.Migratory++
		}
	}
	return out
}
