package identity

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/red-atencion/outreach-cli/internal/model"
)

func TestResolve(t *testing.T) {
	r := NewDefault()

	tests := []struct {
		name     string
		raw      string
		category model.IdentityCategory
		number   int64
		reason   string
	}{
		{"empty", "", model.IdentityUnresolved, 0, ReasonMissing},
		{"whitespace", "   ", model.IdentityUnresolved, 0, ReasonMissing},
		{"no brindo", "NO BRINDÓ", model.IdentityUnresolved, 0, ReasonRefusal},
		{"no brinda lowercase", "no brinda datos", model.IdentityUnresolved, 0, ReasonRefusal},
		{"illegible", "Ilegible", model.IdentityUnresolved, 0, ReasonRefusal},
		{"minor", "Menor de edad", model.IdentityUnresolved, 0, ReasonRefusal},
		{"refusal wins over digits", "no recuerda 30123456", model.IdentityUnresolved, 0, ReasonRefusal},
		{"dashes", "---", model.IdentityUnresolved, 0, ReasonPlaceholder},
		{"stars and dots", "*.*", model.IdentityUnresolved, 0, ReasonPlaceholder},
		{"x filler with dots", "xx.xx", model.IdentityUnresolved, 0, ReasonPlaceholder},
		{"x filler with dash", "X-X", model.IdentityUnresolved, 0, ReasonPlaceholder},
		{"x filler dotted", "x.x.x", model.IdentityUnresolved, 0, ReasonPlaceholder},
		{"short letters", "SD", model.IdentityUnresolved, 0, ReasonPlaceholder},
		{"three letters", "abc", model.IdentityUnresolved, 0, ReasonPlaceholder},
		{"repeated x", "XXXX", model.IdentityUnresolved, 0, ReasonDegenerateRepetition},
		{"two letters repeated", "ababab", model.IdentityUnresolved, 0, ReasonDegenerateRepetition},
		{"foreign nationality", "Venezolano", model.IdentityForeign, 0, ReasonForeign},
		{"foreign passport", "Pasaporte 1234", model.IdentityForeign, 0, ReasonForeign},
		{"foreign accent", "ESPAÑOL", model.IdentityForeign, 0, ReasonForeign},
		{"plain dni", "30123456", model.IdentityNumeric, 30123456, ReasonValid},
		{"dotted dni", "30.123.456", model.IdentityNumeric, 30123456, ReasonValid},
		{"dni with prefix", "DNI 30.123.456", model.IdentityNumeric, 30123456, ReasonValid},
		{"six digits", "123456", model.IdentityNumeric, 123456, ReasonValid},
		{"ten digits", "1234567890", model.IdentityNumeric, 1234567890, ReasonValid},
		{"too short", "12345", model.IdentityUnresolved, 0, ReasonResidual},
		{"too long", "12345678901", model.IdentityUnresolved, 0, ReasonResidual},
		{"letters only many distinct", "juanperez", model.IdentityUnresolved, 0, ReasonResidual},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Resolve(tt.raw)
			assert.Equal(t, tt.category, got.Category)
			assert.Equal(t, tt.number, got.Number)
			assert.Equal(t, tt.reason, got.Reason)
		})
	}
}

func TestResolve_DigitStringsAreNumeric(t *testing.T) {
	r := NewDefault()
	for _, s := range []string{"100000", "4400000", "99999999", "123456789", "9876543210", "000123456"} {
		want, err := strconv.ParseInt(s, 10, 64)
		require.NoError(t, err)

		got := r.Resolve(s)
		assert.Equal(t, model.IdentityNumeric, got.Category, s)
		assert.Equal(t, want, got.Number, s)
	}
}

func TestResolve_RefusalIgnoresCaseAndAccents(t *testing.T) {
	r := NewDefault()
	for _, s := range []string{"no brindó", "NO BRINDO", "No Brindo", "NO BRÍNDO", "sin dni", "SIN DNI", "No Visible", "NO VISÍBLE"} {
		got := r.Resolve(s)
		assert.Equal(t, model.IdentityUnresolved, got.Category, s)
		assert.Equal(t, ReasonRefusal, got.Reason, s)
	}
}

func TestNew_EmptyVocabulary(t *testing.T) {
	_, err := New(nil, DefaultForeignPatterns)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyVocabulary)

	_, err = New(DefaultRefusalPatterns, []string{"  "})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyVocabulary)
}

func TestNew_BadPattern(t *testing.T) {
	_, err := New([]string{"("}, DefaultForeignPatterns)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "identity: refusal patterns")
}

func TestNew_CustomVocabulary(t *testing.T) {
	r, err := New([]string{"rehusa"}, []string{"bolivian"})
	require.NoError(t, err)

	assert.Equal(t, ReasonRefusal, r.Resolve("Rehúsa").Reason)
	assert.Equal(t, ReasonForeign, r.Resolve("boliviana").Reason)
	// Default vocabulary is not active anymore.
	assert.Equal(t, ReasonResidual, r.Resolve("no brindo").Reason)
}
