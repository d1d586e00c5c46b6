package pipeline

import (
	"github.com/red-atencion/outreach-cli/internal/model"
	"github.com/red-atencion/outreach-cli/internal/outcome"
	"github.com/red-atencion/outreach-cli/internal/textnorm"
	"github.com/red-atencion/outreach-cli/internal/zone"
)

type enrichCounts struct {
	unmatched int
	noZone    int
}

// ClosureText picks the supervisor's closing note, falling back to the
// field result. Placeholder values count as absent.
func ClosureText(r *model.CaseRecord) string {
	if !textnorm.IsBlank(r.SupervisorClose) {
		return r.SupervisorClose
	}
	if !textnorm.IsBlank(r.Result) {
		return r.Result
	}
	return ""
}

// enrich recomputes every derived column except week and evolution.
func (p *Pipeline) enrich(batch []model.CaseRecord, resolver *zone.Resolver) enrichCounts {
	var counts enrichCounts

	points := make([]*model.Point, len(batch))
	texts := make([]string, len(batch))
	for i := range batch {
		r := &batch[i]
		points[i] = r.Location
		r.Identity = p.identity.Resolve(r.IdentityRaw)
		r.FirstName = textnorm.PersonName(r.FirstName)
		r.LastName = textnorm.PersonName(r.LastName)
		r.OutcomeText = ClosureText(r)
		r.OutcomeNormalized = textnorm.Closure(r.OutcomeText)
		texts[i] = r.OutcomeNormalized
	}

	zones := resolver.ResolveAll(points)
	categories := p.categorizer.CategorizeAll(texts)
	tax := p.categorizer.Taxonomy()

	for i := range batch {
		r := &batch[i]
		r.Zone = zones[i]
		if r.Zone == nil {
			counts.noZone++
		}
		r.Category = categories[i]
		if r.Category == outcome.Unmatched {
			counts.unmatched++
		}
		r.Contacted, r.FollowUp = tax.Levels(r.Category)
		r.ContactLevel = tax.ContactLevel(r.Category, r.Status, p.opts.PendingStatus)
	}
	return counts
}
