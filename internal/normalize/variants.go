package normalize

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Leading house number, optionally letter-suffixed and followed by bis/ter.
var reLeadingHouseNumber = regexp.MustCompile(`(?i)^\d+[A-Z]?(?:\s*(?:bis|ter|quater)\b)?[\s,]+`)

// Five-digit postcode followed by a city name running to a comma or the end.
var rePostcodeCity = regexp.MustCompile(`\b(\d{5})\s+([\p{L}' ’\-]+?)\s*(?:,|$)`)

// MinCityLength is the shortest city name ExtractPostcodeCity accepts.
const MinCityLength = 3

// StripNumber removes the leading house number and the whitespace after it.
// The input is returned unchanged when it does not start with a number.
func StripNumber(cleaned string) string {
	loc := reLeadingHouseNumber.FindStringIndex(cleaned)
	if loc == nil || loc[1] == len(cleaned) {
		return cleaned
	}
	return cleaned[loc[1]:]
}

// ExtractPostcodeCity finds the first "postcode city" clause in a raw
// address and returns it as "<postcode> <city>, France". City names shorter
// than MinCityLength are treated as noise. It returns "" when nothing usable
// is found.
func ExtractPostcodeCity(raw string) string {
	s := norm.NFC.String(raw)

	for _, m := range rePostcodeCity.FindAllStringSubmatch(s, -1) {
		city := strings.Join(strings.Fields(m[2]), " ")
		city = strings.Trim(city, "-'’ ")
		if utf8.RuneCountInString(city) < MinCityLength {
			continue
		}
		return m[1] + " " + city + ", France"
	}
	return ""
}

// Variants holds the three query shapes tried for one raw address.
type Variants struct {
	Raw      string `json:"raw"`
	Cleaned  string `json:"cleaned"`
	NoNumber string `json:"no_number"`
	CityOnly string `json:"city_only"`
}

// BuildVariants derives every query shape from a raw address. NoNumber is ""
// when stripping the number would not change the cleaned address.
func BuildVariants(raw string) Variants {
	v := Variants{Raw: raw, Cleaned: Clean(raw)}
	if v.Cleaned != "" {
		if stripped := StripNumber(v.Cleaned); stripped != v.Cleaned {
			v.NoNumber = stripped
		}
	}
	v.CityOnly = ExtractPostcodeCity(raw)
	return v
}
