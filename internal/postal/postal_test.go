package postal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsed_Get(t *testing.T) {
	p := Parsed{Components: []Component{
		{Label: "house_number", Value: "12"},
		{Label: "road", Value: "rue de la paix"},
		{Label: "postcode", Value: "31000"},
		{Label: "city", Value: "toulouse"},
	}}

	assert.Equal(t, "rue de la paix", p.Get("road"))
	assert.Empty(t, p.Get("unit"))
	assert.Equal(t, "31000 Toulouse, France", p.PostcodeCity())
}

func TestParsed_PostcodeCityNeedsBoth(t *testing.T) {
	p := Parsed{Components: []Component{{Label: "city", Value: "toulouse"}}}

	assert.Empty(t, p.PostcodeCity())
}

func TestParsed_PostcodeCityCompoundName(t *testing.T) {
	p := Parsed{Components: []Component{
		{Label: "postcode", Value: "31240"},
		{Label: "city", Value: "saint-jean"},
	}}

	assert.Equal(t, "31240 Saint-Jean, France", p.PostcodeCity())
}
