package outcome

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "abc", "abc", 100},
		{"both empty", "", "", 100},
		{"one empty", "abc", "", 0},
		{"one substitution", "abc", "abd", 100 * (1 - 2.0/6.0)},
		{"accented runes count once", "ñandu", "ñandu", 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Ratio(tt.a, tt.b), 1e-9)
		})
	}
}

func TestPartialRatio(t *testing.T) {
	assert.Equal(t, 100.0, PartialRatio("abc", "xxabcxx"))
	assert.Equal(t, 100.0, PartialRatio("xxabcxx", "abc"))
	assert.Equal(t, 0.0, PartialRatio("abc", "xyz"))
	assert.Equal(t, 100.0, PartialRatio("cis", "derivacion a cis"))
}

func TestTokenRatios(t *testing.T) {
	assert.Equal(t, 100.0, TokenSortRatio("b a", "a b"))
	assert.Equal(t, 100.0, TokenSetRatio("a b", "a b c"))
	assert.Equal(t, 0.0, TokenSetRatio("", "a"))
	assert.Equal(t, 100.0, PartialTokenRatio("caso de prueba", "de"))
	assert.Equal(t, 0.0, PartialTokenRatio("abc", ""))
}

func TestWRatio(t *testing.T) {
	assert.Equal(t, 0.0, WRatio("", "abc"))
	assert.Equal(t, 100.0, WRatio("se realiza entrevista", "se realiza entrevista"))
	assert.InDelta(t, 97.5, WRatio(
		"rechasa entrevista y se retira del lugar",
		"rechaza entrevista y se retira del lugar",
	), 1e-9)
	assert.InDelta(t, 95.0, WRatio("entrevista realiza se", "se realiza entrevista"), 1e-9)
	assert.Less(t, WRatio("xyz", "sin cubrir"), DefaultThreshold)
}
