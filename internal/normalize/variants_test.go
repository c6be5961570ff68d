package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripNumber(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"12 bis Rue de la Paix", "Rue de la Paix"},
		{"12bis Rue de la Paix", "Rue de la Paix"},
		{"7 ter Allée des Lilas", "Allée des Lilas"},
		{"4B Rue Alsace, 31000 Toulouse", "Rue Alsace, 31000 Toulouse"},
		{"654 Chemin de la Salade Ponsan", "Chemin de la Salade Ponsan"},
		{"12, Rue du Taur", "Rue du Taur"},
		{"Rue de la Paix", "Rue de la Paix"},
		{"12 Bistrot Lane", "Bistrot Lane"},
		{"42", "42"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, StripNumber(tt.input))
		})
	}
}

func TestExtractPostcodeCity(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"postcode then country", "12 Rue de la Paix, 31000 Toulouse, France", "31000 Toulouse, France"},
		{"end of string", "Chemin du Moulin 31290 Villefranche-de-Lauragais", "31290 Villefranche-de-Lauragais, France"},
		{"apostrophe in city", "5 Rue Jean Moulin, 31240 L'Union", "31240 L'Union, France"},
		{"accented city", "Route de Paris, 31150 Fenouillet", "31150 Fenouillet, France"},
		{"collapses spaces", "3 Place X, 31130   Balma  ,", "31130 Balma, France"},
		{"city too short", "Lieu dit 75 ab, Zone 31000 ab, nowhere", ""},
		{"short then valid", "31000 ab, 31200 Toulouse", "31200 Toulouse, France"},
		{"no postcode", "Rue de la Paix, Toulouse", ""},
		{"trailing digits break the city", "BP 12 31000 Toulouse Cedex 6", ""},
		{"six digits", "123456 Toulouse", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractPostcodeCity(tt.input))
		})
	}
}

func TestBuildVariants(t *testing.T) {
	v := BuildVariants("BAT E PORTE B9, 12 Rue de la Paix, 31000 Toulouse")

	assert.Equal(t, "12 Rue de la Paix, 31000 Toulouse", v.Cleaned)
	assert.Equal(t, "Rue de la Paix, 31000 Toulouse", v.NoNumber)
	assert.Equal(t, "31000 Toulouse, France", v.CityOnly)
}

func TestBuildVariants_NoNumberSkippedWhenUnchanged(t *testing.T) {
	v := BuildVariants("Rue de la Paix")

	assert.Equal(t, "Rue de la Paix", v.Cleaned)
	assert.Empty(t, v.NoNumber)
	assert.Empty(t, v.CityOnly)
}
