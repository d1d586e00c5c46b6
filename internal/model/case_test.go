package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentityLabel(t *testing.T) {
	tests := []struct {
		name string
		id   Identity
		want string
	}{
		{"numeric", Identity{Category: IdentityNumeric, Number: 30123456}, "30123456"},
		{"foreign", Identity{Category: IdentityForeign}, "CONTACTO EXTRANJERO"},
		{"unresolved", Identity{Category: IdentityUnresolved}, "NO BRINDO/NO VISIBLE"},
		{"zero value", Identity{}, "NO BRINDO/NO VISIBLE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.id.Label())
		})
	}
}

func TestIdentityIdentifiable(t *testing.T) {
	assert.True(t, Identity{Category: IdentityNumeric, Number: 1234567}.Identifiable())
	assert.False(t, Identity{Category: IdentityForeign}.Identifiable())
	assert.False(t, Identity{Category: IdentityUnresolved}.Identifiable())
}

func TestCaseRecordZoneLabel(t *testing.T) {
	var r CaseRecord
	assert.Equal(t, "", r.ZoneLabel())

	z := "2"
	r.Zone = &z
	assert.Equal(t, "2", r.ZoneLabel())
}
