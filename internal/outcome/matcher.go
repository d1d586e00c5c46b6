package outcome

import (
	"strings"
)

// Matcher is one stage of the categorization cascade. Match reports the
// category for a normalized closure text, or false when the stage abstains.
type Matcher interface {
	Match(text string) (string, bool)
}

// ExactMatcher looks up whole normalized texts.
type ExactMatcher map[string]string

// Match implements Matcher.
func (m ExactMatcher) Match(text string) (string, bool) {
	c, ok := m[text]
	return c, ok
}

// Rule maps a substring of the normalized text to a category.
type Rule struct {
	Pattern  string `yaml:"pattern" mapstructure:"pattern"`
	Category string `yaml:"category" mapstructure:"category"`
}

// RuleMatcher applies substring rules in order; the first hit wins.
type RuleMatcher []Rule

// Match implements Matcher.
func (m RuleMatcher) Match(text string) (string, bool) {
	for _, r := range m {
		if strings.Contains(text, r.Pattern) {
			return r.Category, true
		}
	}
	return "", false
}

// FuzzyMatcher picks the best scoring label and accepts it at or above Threshold.
type FuzzyMatcher struct {
	Labels    []string
	Threshold float64
	Scorer    Scorer
}

// Match implements Matcher. Labels are scanned in order and only a strictly
// better score replaces the current best, so ties keep the earlier label.
func (m FuzzyMatcher) Match(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	scorer := m.Scorer
	if scorer == nil {
		scorer = WRatio
	}

	best, bestScore := "", -1.0
	for _, l := range m.Labels {
		if s := scorer(text, l); s > bestScore {
			best, bestScore = l, s
		}
	}
	if best == "" || bestScore < m.Threshold {
		return "", false
	}
	return best, true
}

// DefaultExact holds whole texts that substring rules would misfile.
var DefaultExact = map[string]string{
	"17 dipa derivacion a cis": CategoryTransferCIS,
	"01 positivo traslado a cis hogar 08 positivo derivacion a sas cud cp identidad etc": CategoryTransferCIS,
}

// DefaultRules is the ordered substring rule table.
var DefaultRules = []Rule{
	{Pattern: "derivacion a cis", Category: CategoryTransferCIS},
	{Pattern: "traslado a cis", Category: CategoryTransferCIS},
	{Pattern: "acepta cis", Category: "acepta cis pero no hay vacante"},
	{Pattern: "protocolo de salud mental", Category: "se activa protocolo de salud mental"},
	{Pattern: " same", Category: "derivacion a same"},
	{Pattern: "otros efectores", Category: "traslado/acompanamiento a otros efectores"},
	{Pattern: "mendicidad", Category: "mendicidad (menores de edad)"},
	{Pattern: "se realiza entrevista", Category: "se realiza entrevista"},
	{Pattern: "rechaza entrevista y se retira", Category: "rechaza entrevista y se retira del lugar"},
	{Pattern: "rechaza entrevista y se queda", Category: "rechaza entrevista y se queda en el lugar"},
	{Pattern: "imposibilidad de abordaje", Category: "imposibilidad de abordaje por consumo"},
	{Pattern: "espacio publico", Category: "derivacion a espacio publico"},
	{Pattern: "no se encuentra en situacion de calle", Category: "no se encuentra en situacion de calle"},
	{Pattern: "sin cubrir", Category: CategoryUncovered},
	{Pattern: "desestimado", Category: "desestimado (cartas 911 u otras areas)"},
}
