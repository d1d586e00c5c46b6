// Package outcome maps closure descriptions onto the fixed outcome taxonomy.
package outcome

import (
	"strings"

	"github.com/red-atencion/outreach-cli/internal/model"
	"github.com/red-atencion/outreach-cli/internal/textnorm"
)

// Family groups categories by what happened with the person.
type Family string

const (
	FamilyFollowUp   Family = "engaged-with-followup"
	FamilyNoFollowUp Family = "engaged-no-followup"
	FamilyNotReached Family = "not-reached"
)

// Unmatched is returned when no matcher accepts the text.
const Unmatched = "unmatched"

// Well-known categories referenced by reporting.
const (
	CategoryTransferCIS = "traslado efectivo a cis"
	CategoryUncovered   = "sin cubrir"
)

var followUpCategories = []string{
	CategoryTransferCIS,
	"acepta cis pero no hay vacante",
	"se activa protocolo de salud mental",
	"derivacion a same",
	"traslado/acompanamiento a otros efectores",
	"mendicidad (menores de edad)",
}

var noFollowUpCategories = []string{
	"se realiza entrevista",
	"rechaza entrevista y se retira del lugar",
	"imposibilidad de abordaje por consumo",
	"rechaza entrevista y se queda en el lugar",
	"derivacion a espacio publico",
	"no se encuentra en situacion de calle",
}

var notReachedCategories = []string{
	"no se contacta y se observan pertenencias",
	"no se contacta y no se observan pertenencias",
	CategoryUncovered,
	"desestimado (cartas 911 u otras areas)",
}

// Taxonomy is the closed, ordered set of outcome categories.
type Taxonomy struct {
	labels   []string
	families map[string]Family
}

// DefaultTaxonomy returns the program's outcome categories in declaration order.
func DefaultTaxonomy() *Taxonomy {
	t := &Taxonomy{families: make(map[string]Family)}
	for _, group := range []struct {
		family Family
		labels []string
	}{
		{FamilyFollowUp, followUpCategories},
		{FamilyNoFollowUp, noFollowUpCategories},
		{FamilyNotReached, notReachedCategories},
	} {
		for _, l := range group.labels {
			t.labels = append(t.labels, l)
			t.families[l] = group.family
		}
	}
	return t
}

// Labels returns the category labels in declaration order.
func (t *Taxonomy) Labels() []string {
	return append([]string(nil), t.labels...)
}

// Has reports whether category belongs to the taxonomy.
func (t *Taxonomy) Has(category string) bool {
	_, ok := t.families[category]
	return ok
}

// Family returns the family of a category. Unmatched and unknown values
// return "" and false.
func (t *Taxonomy) Family(category string) (Family, bool) {
	f, ok := t.families[category]
	return f, ok
}

// Levels derives the two ancillary flags of a category: whether the person
// was contacted, and whether follow-up was provided.
func (t *Taxonomy) Levels(category string) (contacted, followUp bool) {
	switch t.families[category] {
	case FamilyFollowUp:
		return true, true
	case FamilyNoFollowUp:
		return true, false
	default:
		return false, false
	}
}

// ContactLevel combines the category with the case status flag. A pending
// case is uncovered regardless of its outcome text.
func (t *Taxonomy) ContactLevel(category, status, pendingStatus string) model.ContactLevel {
	if pendingStatus != "" && strings.EqualFold(textnorm.Fold(status), textnorm.Fold(pendingStatus)) {
		return model.ContactUncovered
	}
	if category == CategoryUncovered {
		return model.ContactUncovered
	}
	if t.families[category] == FamilyNotReached {
		return model.ContactNotContacted
	}
	return model.ContactContacted
}
