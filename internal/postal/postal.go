// Package postal exposes libpostal address parsing for diagnostics. The
// parser needs the libpostal C library and its data files, so it is only
// compiled in with the libpostal build tag.
package postal

import (
	"errors"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrUnavailable is returned by Parse when the binary was built without libpostal.
var ErrUnavailable = errors.New("libpostal support not compiled in (build with -tags libpostal)")

// Component is one labelled piece of a parsed address, e.g. road or postcode.
type Component struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Parsed is the labelled breakdown of one address.
type Parsed struct {
	Input      string      `json:"input"`
	Components []Component `json:"components"`
}

// Get returns the first value for label, or "".
func (p Parsed) Get(label string) string {
	for _, c := range p.Components {
		if c.Label == label {
			return c.Value
		}
	}
	return ""
}

// PostcodeCity renders the postcode and city components the way the
// city-only pass queries them. libpostal lowercases its output.
func (p Parsed) PostcodeCity() string {
	postcode, city := p.Get("postcode"), p.Get("city")
	if postcode == "" || city == "" {
		return ""
	}
	return postcode + " " + cases.Title(language.French).String(city) + ", France"
}
