// Package identity classifies raw identity-document values (DNI) into numeric
// identities, foreign contacts or unresolved markers.
package identity

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"

	"github.com/red-atencion/outreach-cli/internal/model"
	"github.com/red-atencion/outreach-cli/internal/textnorm"
)

// Reason codes attached to every resolution.
const (
	ReasonMissing              = "missing"
	ReasonRefusal              = "explicit-refusal-pattern"
	ReasonPlaceholder          = "placeholder-token"
	ReasonDegenerateRepetition = "degenerate-repetition"
	ReasonForeign              = "foreign-marker"
	ReasonValid                = "valid"
	ReasonResidual             = "residual"
)

// Accepted digit counts for a document number.
const (
	MinDigits = 6
	MaxDigits = 10
)

// ErrEmptyVocabulary is returned when a required pattern list is empty.
var ErrEmptyVocabulary = eris.New("identity: empty vocabulary")

// DefaultRefusalPatterns match values meaning the person did not provide a
// usable document (refused, illegible, unknown, minor...). They are applied to
// lower-cased, accent-stripped text.
var DefaultRefusalPatterns = []string{
	`no\s*brind`,
	`no\s*bri[nm]d`,
	`no\s*aport`,
	`no\s*indica`,
	`no\s*sabe`,
	`no\s*recuerd`,
	`no\s*tiene`,
	`nunca\s*tuvo`,
	`sin\s*dni`,
	`sin\s*dato`,
	`sin\s*inform`,
	`se\s*niega`,
	`rechaz`,
	`desconoc`,
	`ilegible`,
	`invisible`,
	`no\s*visible`,
	`exhib`,
	`no\s*lo\s*sabe`,
	`menor\s*de\s*edad`,
}

// DefaultForeignPatterns match nationality or foreign-documentation markers.
var DefaultForeignPatterns = []string{
	`extranjer`,
	`paraguay`,
	`venezol`,
	`colombian`,
	`uruguay`,
	`brasil`,
	`chilen`,
	`peruan`,
	`mexican`,
	`espanol`,
	`dominican`,
	`pasaporte`,
	`c\.?d\.?[ie]:?`,
	`rnm`,
	`cedula`,
}

var (
	shortLettersRe = regexp.MustCompile(`^[a-z]{1,3}$`)
	onlyLettersRe  = regexp.MustCompile(`^[a-z]+$`)
	nonDigitRe     = regexp.MustCompile(`\D`)
)

// Resolver classifies raw identity strings. It is safe for concurrent use.
type Resolver struct {
	refusal *regexp.Regexp
	foreign *regexp.Regexp
}

// New compiles the refusal and foreign vocabularies into a Resolver.
func New(refusalPatterns, foreignPatterns []string) (*Resolver, error) {
	refusal, err := compileAlternation(refusalPatterns)
	if err != nil {
		return nil, eris.Wrap(err, "identity: refusal patterns")
	}
	foreign, err := compileAlternation(foreignPatterns)
	if err != nil {
		return nil, eris.Wrap(err, "identity: foreign patterns")
	}
	return &Resolver{refusal: refusal, foreign: foreign}, nil
}

// NewDefault returns a Resolver built from the default vocabularies.
func NewDefault() *Resolver {
	r, err := New(DefaultRefusalPatterns, DefaultForeignPatterns)
	if err != nil {
		panic(err)
	}
	return r
}

func compileAlternation(patterns []string) (*regexp.Regexp, error) {
	var parts []string
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, "(?:"+p+")")
		}
	}
	if len(parts) == 0 {
		return nil, ErrEmptyVocabulary
	}
	re, err := regexp.Compile("(?i)" + strings.Join(parts, "|"))
	if err != nil {
		return nil, eris.Wrap(err, "compile")
	}
	return re, nil
}

// Resolve classifies raw. Every input yields exactly one identity; the first
// matching rule wins.
func (r *Resolver) Resolve(raw string) model.Identity {
	s := strings.TrimSpace(raw)
	if s == "" {
		return unresolved(ReasonMissing)
	}

	folded := textnorm.Fold(s)
	if r.refusal.MatchString(folded) {
		return unresolved(ReasonRefusal)
	}
	if symbolsOnly(s) || shortLettersRe.MatchString(folded) {
		return unresolved(ReasonPlaceholder)
	}
	if onlyLettersRe.MatchString(folded) && distinctRunes(folded) <= 2 {
		return unresolved(ReasonDegenerateRepetition)
	}
	if r.foreign.MatchString(folded) {
		return model.Identity{Category: model.IdentityForeign, Reason: ReasonForeign}
	}

	digits := nonDigitRe.ReplaceAllString(s, "")
	if n := len(digits); n >= MinDigits && n <= MaxDigits {
		num, err := strconv.ParseInt(digits, 10, 64)
		if err == nil {
			return model.Identity{Category: model.IdentityNumeric, Number: num, Reason: ReasonValid}
		}
	}
	return unresolved(ReasonResidual)
}

func unresolved(reason string) model.Identity {
	return model.Identity{Category: model.IdentityUnresolved, Reason: reason}
}

// symbolsOnly reports whether s holds punctuation or symbol characters and
// nothing else besides spaces and x fillers ("xx.xx", "X-X"). A run of x with
// no mark at all is left to the repetition rule.
func symbolsOnly(s string) bool {
	var marks int
	for _, r := range s {
		switch {
		case unicode.IsSpace(r), r == 'x', r == 'X':
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			marks++
		default:
			return false
		}
	}
	return marks > 0
}

func distinctRunes(s string) int {
	set := make(map[rune]struct{}, 4)
	for _, r := range s {
		set[r] = struct{}{}
	}
	return len(set)
}
