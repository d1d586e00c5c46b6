package pipeline

import (
	"sort"
	"time"

	"github.com/red-atencion/outreach-cli/internal/model"
	"github.com/red-atencion/outreach-cli/internal/textnorm"
)

// MergeResult is the combined batch and how it was formed.
type MergeResult struct {
	Batch []model.CaseRecord
	// Watermark is the latest historical start; nil when there was no history.
	Watermark *time.Time
	Appended  int
}

// Merge appends the incoming rows that start strictly after the latest
// historical row. Stored rows are never modified. The result is stably
// sorted by start so reruns over the same input produce the same order.
func Merge(historical, incoming []model.CaseRecord) MergeResult {
	var res MergeResult
	for i := range historical {
		if s := historical[i].Start; res.Watermark == nil || s.After(*res.Watermark) {
			wm := s
			res.Watermark = &wm
		}
	}

	batch := make([]model.CaseRecord, 0, len(historical)+len(incoming))
	batch = append(batch, historical...)
	for _, r := range incoming {
		if res.Watermark != nil && !r.Start.After(*res.Watermark) {
			continue
		}
		batch = append(batch, r)
		res.Appended++
	}
	sort.SliceStable(batch, func(i, j int) bool { return batch[i].Start.Before(batch[j].Start) })
	res.Batch = batch
	return res
}

// ExcludeAgencies returns the rows whose agency is not in the list, compared
// after case and accent folding, and how many were dropped.
func ExcludeAgencies(batch []model.CaseRecord, agencies []string) ([]model.CaseRecord, int) {
	if len(agencies) == 0 {
		return batch, 0
	}
	excluded := make(map[string]struct{}, len(agencies))
	for _, a := range agencies {
		excluded[textnorm.Fold(a)] = struct{}{}
	}
	kept := make([]model.CaseRecord, 0, len(batch))
	for _, r := range batch {
		if _, ok := excluded[textnorm.Fold(r.Agency)]; ok {
			continue
		}
		kept = append(kept, r)
	}
	return kept, len(batch) - len(kept)
}
