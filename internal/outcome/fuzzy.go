package outcome

import (
	"sort"
	"strings"

	"github.com/agext/levenshtein"
)

// Scorer returns a similarity between two strings on a 0-100 scale.
type Scorer func(a, b string) float64

// indelParams weights a substitution as a deletion plus an insertion, which
// turns the edit distance into the indel distance used by the ratio scores.
var indelParams = levenshtein.NewParams().SubCost(2)

const (
	unbaseScale = 0.95
)

// Ratio is the normalized indel similarity of a and b.
func Ratio(a, b string) float64 {
	la, lb := runeLen(a), runeLen(b)
	if la+lb == 0 {
		return 100
	}
	dist := levenshtein.Distance(a, b, indelParams)
	return 100 * (1 - float64(dist)/float64(la+lb))
}

// PartialRatio scores the shorter string against the best-aligned window of
// the longer one, including windows clipped at either end.
func PartialRatio(a, b string) float64 {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 {
		if len(long) == 0 {
			return 100
		}
		return 0
	}
	needle := string(short)
	m, n := len(short), len(long)

	best := 0.0
	consider := func(window []rune) bool {
		if s := Ratio(needle, string(window)); s > best {
			best = s
		}
		return best == 100
	}
	for i := 0; i+m <= n; i++ {
		if consider(long[i : i+m]) {
			return best
		}
	}
	for i := 1; i < m && i <= n; i++ {
		if consider(long[:i]) || consider(long[n-i:]) {
			return best
		}
	}
	return best
}

// TokenSortRatio compares the strings after sorting their words.
func TokenSortRatio(a, b string) float64 {
	return Ratio(sortedJoin(strings.Fields(a)), sortedJoin(strings.Fields(b)))
}

// TokenSetRatio compares the shared words against each side's remainder.
func TokenSetRatio(a, b string) float64 {
	setA, setB := wordSet(a), wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	var inter, diffAB, diffBA []string
	for w := range setA {
		if _, ok := setB[w]; ok {
			inter = append(inter, w)
		} else {
			diffAB = append(diffAB, w)
		}
	}
	for w := range setB {
		if _, ok := setA[w]; !ok {
			diffBA = append(diffBA, w)
		}
	}
	if len(inter) > 0 && (len(diffAB) == 0 || len(diffBA) == 0) {
		return 100
	}

	sect := sortedJoin(inter)
	withAB := strings.TrimSpace(sect + " " + sortedJoin(diffAB))
	withBA := strings.TrimSpace(sect + " " + sortedJoin(diffBA))

	best := Ratio(withAB, withBA)
	if sect == "" {
		return best
	}
	return max(best, Ratio(sect, withAB), Ratio(sect, withBA))
}

// PartialTokenRatio is the partial ratio over sorted words. Any shared word
// scores 100.
func PartialTokenRatio(a, b string) float64 {
	tokensA, tokensB := strings.Fields(a), strings.Fields(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}
	setA, setB := wordSet(a), wordSet(b)
	var diffAB, diffBA []string
	for w := range setA {
		if _, ok := setB[w]; ok {
			return 100
		}
		diffAB = append(diffAB, w)
	}
	for w := range setB {
		diffBA = append(diffBA, w)
	}

	result := PartialRatio(sortedJoin(tokensA), sortedJoin(tokensB))
	if len(tokensA) == len(diffAB) && len(tokensB) == len(diffBA) {
		return result
	}
	return max(result, PartialRatio(sortedJoin(diffAB), sortedJoin(diffBA)))
}

// WRatio combines the ratio family the way rapidfuzz's WRatio does: plain
// ratio for similar lengths, token ratios discounted by 0.95, and partial
// ratios discounted further as the length gap grows.
func WRatio(a, b string) float64 {
	la, lb := runeLen(a), runeLen(b)
	if la == 0 || lb == 0 {
		return 0
	}
	lenRatio := float64(max(la, lb)) / float64(min(la, lb))

	score := Ratio(a, b)
	if lenRatio < 1.5 {
		return max(score, max(TokenSortRatio(a, b), TokenSetRatio(a, b))*unbaseScale)
	}

	partialScale := 0.9
	if lenRatio >= 8 {
		partialScale = 0.6
	}
	score = max(score, PartialRatio(a, b)*partialScale)
	return max(score, PartialTokenRatio(a, b)*unbaseScale*partialScale)
}

func runeLen(s string) int {
	return len([]rune(s))
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		set[w] = struct{}{}
	}
	return set
}

func sortedJoin(words []string) string {
	sorted := append([]string(nil), words...)
	sort.Strings(sorted)
	return strings.Join(sorted, " ")
}
