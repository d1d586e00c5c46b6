// Package report computes the weekly outreach indicators published to
// supervisors.
package report

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/red-atencion/outreach-cli/internal/evolution"
	"github.com/red-atencion/outreach-cli/internal/model"
	"github.com/red-atencion/outreach-cli/internal/outcome"
)

// Options controls the weekly indicators.
type Options struct {
	// Weeks is how many trailing weeks to report.
	Weeks int
	// Since is the cutoff for cumulative totals; zero means all records.
	Since             time.Time
	AutomaticCardType string
	TransferCategory  string
}

// DefaultOptions mirrors the published dashboard.
func DefaultOptions() Options {
	return Options{
		Weeks:             8,
		Since:             time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		AutomaticCardType: "AUTOMATICA",
		TransferCategory:  outcome.CategoryTransferCIS,
	}
}

// Share is a count with its rounded percentage of the automatic calls.
type Share struct {
	Count   int `json:"count" yaml:"count"`
	Percent int `json:"percent" yaml:"percent"`
}

func (s Share) String() string {
	return fmt.Sprintf("%d%% (%d)", s.Percent, s.Count)
}

// Period holds the indicators for one week or for the cumulative span.
type Period struct {
	Week          time.Time `json:"week,omitempty" yaml:"week,omitempty"`
	Interventions int       `json:"interventions" yaml:"interventions"`
	Transfers     int       `json:"transfers" yaml:"transfers"`
	Automatic     int       `json:"automatic_calls" yaml:"automatic_calls"`
	Contacted     Share     `json:"contacted" yaml:"contacted"`
	NotContacted  Share     `json:"not_contacted" yaml:"not_contacted"`
	Uncovered     Share     `json:"uncovered" yaml:"uncovered"`
}

func (p *Period) add(r *model.CaseRecord, opts Options) {
	p.Interventions++
	if r.Category == opts.TransferCategory {
		p.Transfers++
	}
	if r.CardType != opts.AutomaticCardType {
		return
	}
	p.Automatic++
	switch r.ContactLevel {
	case model.ContactNotContacted:
		p.NotContacted.Count++
	case model.ContactUncovered:
		p.Uncovered.Count++
	default:
		p.Contacted.Count++
	}
}

func (p *Period) finish() {
	total := max(p.Automatic, 1)
	for _, s := range []*Share{&p.Contacted, &p.NotContacted, &p.Uncovered} {
		s.Percent = int(math.RoundToEven(float64(s.Count) * 100 / float64(total)))
	}
}

// Indicators is the weekly table for one zone, or for all zones when Zone is "".
type Indicators struct {
	Zone       string   `json:"zone" yaml:"zone"`
	Since      string   `json:"since,omitempty" yaml:"since,omitempty"`
	Cumulative Period   `json:"cumulative" yaml:"cumulative"`
	Weeks      []Period `json:"weeks" yaml:"weeks"`
}

// Weekly computes the indicators of zone over the trailing weeks of the
// whole batch. Weeks without records in the zone are reported as zeros.
// Records must already carry their Week.
func Weekly(batch []model.CaseRecord, zone string, opts Options) Indicators {
	weeks := trailingWeeks(batch, opts.Weeks)
	index := make(map[int64]int, len(weeks))
	out := Indicators{Zone: zone, Weeks: make([]Period, len(weeks))}
	for i, w := range weeks {
		index[w.Unix()] = i
		out.Weeks[i].Week = w
	}
	if !opts.Since.IsZero() {
		out.Since = opts.Since.Format("2006-01-02")
	}

	for i := range batch {
		r := &batch[i]
		if zone != "" && r.ZoneLabel() != zone {
			continue
		}
		if opts.Since.IsZero() || !r.Start.Before(opts.Since) {
			out.Cumulative.add(r, opts)
		}
		if wi, ok := index[r.Week.Unix()]; ok {
			out.Weeks[wi].add(r, opts)
		}
	}

	out.Cumulative.finish()
	for i := range out.Weeks {
		out.Weeks[i].finish()
	}
	return out
}

func trailingWeeks(batch []model.CaseRecord, n int) []time.Time {
	seen := make(map[int64]time.Time)
	for i := range batch {
		if w := batch[i].Week; !w.IsZero() {
			seen[w.Unix()] = w
		}
	}
	weeks := make([]time.Time, 0, len(seen))
	for _, w := range seen {
		weeks = append(weeks, w)
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].Before(weeks[j]) })
	if n > 0 && len(weeks) > n {
		weeks = weeks[len(weeks)-n:]
	}
	return weeks
}

// Evolution returns the last n weeks of evolution counts for zone.
func Evolution(res evolution.Result, zone string, n int) []evolution.WeekCount {
	counts := evolution.CountByZone(res, zone)
	if n > 0 && len(counts) > n {
		counts = counts[len(counts)-n:]
	}
	return counts
}

// Summary bundles both reports for one zone.
type Summary struct {
	Indicators Indicators            `json:"indicators" yaml:"indicators"`
	Evolution  []evolution.WeekCount `json:"evolution" yaml:"evolution"`
}
