//go:build !libpostal

package postal

// Available reports whether Parse is backed by libpostal.
const Available = false

// Parse always fails without libpostal.
func Parse(address string) (Parsed, error) {
	return Parsed{Input: address}, ErrUnavailable
}
