package outcome

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/red-atencion/outreach-cli/internal/textnorm"
)

// DefaultThreshold is the minimum fuzzy score accepted.
const DefaultThreshold = 80.0

// ErrEmptyTaxonomy is returned when the categorizer has no labels to match against.
var ErrEmptyTaxonomy = eris.New("outcome: empty taxonomy")

// Options configures a Categorizer. Nil maps and slices select the defaults.
type Options struct {
	Exact     map[string]string
	Rules     []Rule
	Threshold float64
	Scorer    Scorer
}

// Categorizer runs the matcher cascade over closure texts.
type Categorizer struct {
	taxonomy *Taxonomy
	matchers []Matcher
}

// New builds the exact, rule and fuzzy cascade. Exact and rule targets must
// name taxonomy categories.
func New(tax *Taxonomy, opts Options) (*Categorizer, error) {
	if tax == nil || len(tax.labels) == 0 {
		return nil, ErrEmptyTaxonomy
	}
	exact := opts.Exact
	if exact == nil {
		exact = DefaultExact
	}
	rules := opts.Rules
	if rules == nil {
		rules = DefaultRules
	}
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	normExact := make(ExactMatcher, len(exact))
	for text, category := range exact {
		if !tax.Has(category) {
			return nil, eris.Errorf("outcome: exact entry %q targets unknown category %q", text, category)
		}
		normExact[textnorm.Closure(text)] = category
	}
	for _, r := range rules {
		if r.Pattern == "" {
			return nil, eris.Errorf("outcome: empty rule pattern for category %q", r.Category)
		}
		if !tax.Has(r.Category) {
			return nil, eris.Errorf("outcome: rule %q targets unknown category %q", r.Pattern, r.Category)
		}
	}

	return &Categorizer{
		taxonomy: tax,
		matchers: []Matcher{
			normExact,
			RuleMatcher(rules),
			FuzzyMatcher{Labels: tax.Labels(), Threshold: threshold, Scorer: opts.Scorer},
		},
	}, nil
}

// Taxonomy returns the categories the cascade maps onto.
func (c *Categorizer) Taxonomy() *Taxonomy {
	return c.taxonomy
}

// Categorize maps a normalized closure text to a category or Unmatched.
func (c *Categorizer) Categorize(text string) string {
	for _, m := range c.matchers {
		if category, ok := m.Match(text); ok {
			return category
		}
	}
	return Unmatched
}

// CategorizeAll categorizes a batch of normalized texts. Closure texts repeat
// heavily, so each distinct text runs through the cascade once.
func (c *Categorizer) CategorizeAll(texts []string) []string {
	memo := make(map[string]string)
	out := make([]string, len(texts))
	unmatched := 0
	for i, t := range texts {
		category, ok := memo[t]
		if !ok {
			category = c.Categorize(t)
			memo[t] = category
		}
		if category == Unmatched {
			unmatched++
		}
		out[i] = category
	}
	zap.L().With(zap.String("component", "outcome")).Debug("categorized closures",
		zap.Int("texts", len(texts)),
		zap.Int("distinct", len(memo)),
		zap.Int("unmatched", unmatched),
	)
	return out
}
