// Package model defines the case records that flow through the classification pipeline.
package model

import (
	"strconv"
	"time"
)

// IdentityCategory classifies a raw identity-document value.
type IdentityCategory string

const (
	IdentityNumeric    IdentityCategory = "numeric"
	IdentityForeign    IdentityCategory = "foreign_contact"
	IdentityUnresolved IdentityCategory = "unresolved"
)

// Identity is the resolved form of a raw identity-document value.
type Identity struct {
	Category IdentityCategory `json:"category"`
	Number   int64            `json:"number,omitempty"` // set only when Category is IdentityNumeric
	Reason   string           `json:"reason"`
}

// Identifiable reports whether the identity can take part in evolution tracking.
func (i Identity) Identifiable() bool {
	return i.Category == IdentityNumeric
}

// Label renders the identity the way it is stored in the DNI_Categorizado column.
func (i Identity) Label() string {
	switch i.Category {
	case IdentityNumeric:
		return strconv.FormatInt(i.Number, 10)
	case IdentityForeign:
		return "CONTACTO EXTRANJERO"
	default:
		return "NO BRINDO/NO VISIBLE"
	}
}

// ContactLevel is the coarse contact outcome used by the weekly indicators.
type ContactLevel string

const (
	ContactContacted    ContactLevel = "Se contacta"
	ContactNotContacted ContactLevel = "No se contacta"
	ContactUncovered    ContactLevel = "Sin cubrir"
)

// Evolution is the week-over-week population label of a record.
type Evolution string

const (
	EvolutionNew            Evolution = "New"
	EvolutionRecurring      Evolution = "Recurring"
	EvolutionMigratory      Evolution = "Migratory"
	EvolutionUnclassifiable Evolution = "Unclassifiable"
)

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// CaseRecord is one intervention or contact event.
type CaseRecord struct {
	// Ingested columns.
	CaseID          string     `json:"case_id,omitempty"`
	IdentityRaw     string     `json:"identity_raw"`
	Start           time.Time  `json:"start"`
	End             *time.Time `json:"end,omitempty"`
	Location        *Point     `json:"location,omitempty"`
	Result          string     `json:"result"`
	SupervisorClose string     `json:"supervisor_close,omitempty"`
	Status          string     `json:"status,omitempty"`
	CardType        string     `json:"card_type,omitempty"`
	Agency          string     `json:"agency,omitempty"`
	FirstName       string     `json:"first_name,omitempty"`
	LastName        string     `json:"last_name,omitempty"`

	// Derived columns, recomputed every run.
	Identity          Identity     `json:"identity"`
	Zone              *string      `json:"zone,omitempty"`
	OutcomeText       string       `json:"outcome_text"`
	OutcomeNormalized string       `json:"outcome_normalized"`
	Category          string       `json:"category"`
	Contacted         bool         `json:"contacted"`
	FollowUp          bool         `json:"follow_up"`
	ContactLevel      ContactLevel `json:"contact_level"`
	Week              time.Time    `json:"week"`
	Evolution         Evolution    `json:"evolution"`
}

// ZoneLabel returns the resolved zone or "" when the record has none.
func (r *CaseRecord) ZoneLabel() string {
	if r.Zone == nil {
		return ""
	}
	return *r.Zone
}
