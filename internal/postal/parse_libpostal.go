//go:build libpostal

package postal

import (
	parser "github.com/openvenues/gopostal/parser"
)

// Available reports whether Parse is backed by libpostal.
const Available = true

// Parse splits address into libpostal components.
func Parse(address string) (Parsed, error) {
	parsed := Parsed{Input: address}
	for _, c := range parser.ParseAddress(address) {
		parsed.Components = append(parsed.Components, Component{Label: c.Label, Value: c.Value})
	}
	return parsed, nil
}
