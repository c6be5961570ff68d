package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/monolithe-geofix/internal/debug"
)

// Step is one named rewrite of the cleaning pipeline.
type Step struct {
	Name  string
	Apply func(string) string
	// OnlyAfter restricts the step to runs where one of the named steps
	// changed the address. Empty means always.
	OnlyAfter []string
}

func (st Step) enabled(changed map[string]bool) bool {
	if len(st.OnlyAfter) == 0 {
		return true
	}
	for _, name := range st.OnlyAfter {
		if changed[name] {
			return true
		}
	}
	return false
}

// Leading building/office annotation: "BAT E PORTE B9,", "BATIMENT C APT 12,",
// "BUREAU 3,", "APPT 4B,".
var reLeadingBuilding = regexp.MustCompile(
	`(?i)^(?:BAT(?:IMENT)?\s+[A-Z0-9]+(?:\s*(?:PORTE|APPT|APT?)\s*[A-Z0-9]+)?\s*,?\s*|BUREAU\s+\d+\s*,?\s*|APPT\s*[A-Z0-9]+\s*,\s*)`)

// Apartment prefix left behind once the building part is gone: "APT 101,".
var reLeadingApartment = regexp.MustCompile(`(?i)^APT\s*\d+\s*,?\s*`)

// Inline building reference: "bât H no 360", "bâtiment B3 apt 159", "bat B".
var reInlineBuilding = regexp.MustCompile(
	`(?i),?\s*\bb[âa]t(?:iment)?\s+[A-Z0-9]+(?:\s*(?:no|n°|appt|apt?|porte)\s*[A-Z0-9]+)*`)

// Inline apartment reference: "appt 120", "apt 10", "app 3".
var reInlineApartment = regexp.MustCompile(`(?i),?\s*\b(?:appt|app|apt)\.?\s*\d+`)

// Bare number stranded right before a comma once an inline reference went.
var reOrphanNumber = regexp.MustCompile(`([^,\s])\s+\d+\s*,`)

// Stray letter glued in front of the house number: "x654 Chemin".
var reStrayLetterPrefix = regexp.MustCompile(`^[A-Za-z](\d+\b)`)

// Letter-suffixed house number followed by text: "2A DU TERLON".
var reLetterSuffixedNumber = regexp.MustCompile(`^\d+[A-Za-z]\s+(\D)`)

// Number with a short alphabetic tail: "30is", "96or", "12h".
var reNumberAlphaTypo = regexp.MustCompile(`(?i)\b(\d+)[a-z]{1,2}\b`)

// Candidate start of a "postcode city" clause.
var rePostcodeStart = regexp.MustCompile(`\b\d{5}\s`)

// Parenthesised postcode after a city name: "BALMA (31130)".
var reParenPostcode = regexp.MustCompile(`\s*\(\s*\d{5}\s*\)`)

var (
	reRepeatedComma = regexp.MustCompile(`,\s*,`)
	reSpaceRun      = regexp.MustCompile(`\s{2,}`)
	reSpaceComma    = regexp.MustCompile(`\s+,`)
	reTrailingComma = regexp.MustCompile(`,\s*$`)
	reLeadingComma  = regexp.MustCompile(`^\s*,\s*`)
)

// Steps is the cleaning pipeline in execution order. Later steps rely on
// the earlier ones having run.
var Steps = []Step{
	{Name: "strip-leading-building", Apply: StripLeadingBuilding},
	{Name: "strip-leading-apartment", Apply: StripLeadingApartment},
	{Name: "strip-inline-building", Apply: StripInlineBuilding},
	{Name: "strip-inline-apartment", Apply: StripInlineApartment},
	{
		Name:      "strip-orphan-numbers",
		Apply:     StripOrphanNumbers,
		OnlyAfter: []string{"strip-inline-building", "strip-inline-apartment"},
	},
	{Name: "fix-stray-letter-prefix", Apply: FixStrayLetterPrefix},
	{Name: "fix-letter-suffixed-number", Apply: FixLetterSuffixedNumber},
	{Name: "fix-number-typos", Apply: FixNumberTypos},
	{Name: "collapse-duplicate-postcode-city", Apply: CollapseDuplicatePostcodeCity},
	{Name: "strip-parenthesized-postcode", Apply: StripParenthesizedPostcode},
	{Name: "tidy", Apply: Tidy},
}

// Clean turns a free-text French postal address into a single-line query
// suitable for a geocoder. It returns "" when there is nothing left to look up.
func Clean(raw string) string {
	return CleanDebug(false, raw)
}

// CleanDebug is Clean with per-step debug output.
func CleanDebug(localDebug bool, raw string) string {
	debug.DebugHeader(localDebug)
	defer debug.DebugFooter(localDebug)

	return run(raw, func(step Step, before, after string, ran bool) {
		switch {
		case !ran:
			debug.DebugOutput(localDebug, "%s: skipped", step.Name)
		case after != before:
			debug.DebugOutput(localDebug, "%s: %q -> %q", step.Name, before, after)
		}
	})
}

// StepTrace is the address as it left one step.
type StepTrace struct {
	Name    string `json:"name"`
	Output  string `json:"output"`
	Skipped bool   `json:"skipped,omitempty"`
}

// Trace runs Clean and records the output of every step.
func Trace(raw string) (string, []StepTrace) {
	var trace []StepTrace
	s := run(raw, func(step Step, _, after string, ran bool) {
		trace = append(trace, StepTrace{Name: step.Name, Output: after, Skipped: !ran})
	})
	return s, trace
}

// run applies Steps to raw, calling visit after each one. Blank input
// returns "" without visiting anything.
func run(raw string, visit func(step Step, before, after string, ran bool)) string {
	s := strings.TrimSpace(norm.NFC.String(raw))
	if s == "" {
		return ""
	}

	changed := make(map[string]bool, len(Steps))
	for _, step := range Steps {
		before := s
		ran := step.enabled(changed)
		if ran {
			s = step.Apply(s)
		}
		changed[step.Name] = s != before
		visit(step, before, s, ran)
	}
	return s
}

// StripLeadingBuilding removes a building, office or apartment annotation
// that precedes the street address.
func StripLeadingBuilding(s string) string {
	return reLeadingBuilding.ReplaceAllString(s, "")
}

// StripLeadingApartment removes an "APT <n>," prefix.
func StripLeadingApartment(s string) string {
	return reLeadingApartment.ReplaceAllString(s, "")
}

// StripInlineBuilding removes building references anywhere in the string.
func StripInlineBuilding(s string) string {
	return reInlineBuilding.ReplaceAllString(s, "")
}

// StripInlineApartment removes apartment references anywhere in the string.
func StripInlineApartment(s string) string {
	return reInlineApartment.ReplaceAllString(s, "")
}

// StripOrphanNumbers drops a bare number sitting right before a comma. In
// the pipeline it only runs once an inline reference has been removed.
func StripOrphanNumbers(s string) string {
	return reOrphanNumber.ReplaceAllString(s, "$1,")
}

// FixStrayLetterPrefix turns "x654 Chemin" into "654 Chemin".
func FixStrayLetterPrefix(s string) string {
	return reStrayLetterPrefix.ReplaceAllString(s, "$1")
}

// FixLetterSuffixedNumber turns "2A DU TERLON" into "DU TERLON".
func FixLetterSuffixedNumber(s string) string {
	return reLetterSuffixedNumber.ReplaceAllString(s, "$1")
}

// FixNumberTypos drops a one or two letter tail glued to a number.
// This misfires on genuine suffixes such as "12b"; the geocoder copes better
// with the bare number than with the noise.
func FixNumberTypos(s string) string {
	return reNumberAlphaTypo.ReplaceAllString(s, "$1")
}

// CollapseDuplicatePostcodeCity turns "31200 Toulouse, 31200 Toulouse" into
// "31200 Toulouse". The comparison is case-insensitive.
func CollapseDuplicatePostcodeCity(s string) string {
	for {
		next := collapseOnce(s)
		if next == s {
			return s
		}
		s = next
	}
}

func collapseOnce(s string) string {
	var b strings.Builder
	segStart := 0
	for segStart <= len(s) {
		comma := strings.IndexByte(s[segStart:], ',')
		if comma < 0 {
			b.WriteString(s[segStart:])
			break
		}
		comma += segStart
		segment := s[segStart:comma]

		if end, ok := duplicateClauseEnd(s, segment, comma); ok {
			b.WriteString(segment)
			b.WriteString(s[end:])
			return b.String()
		}

		b.WriteString(s[segStart : comma+1])
		segStart = comma + 1
	}
	return b.String()
}

// duplicateClauseEnd reports where the repeated clause following the comma
// ends, if the text after the comma repeats a "postcode city" clause that
// closes segment.
func duplicateClauseEnd(s, segment string, comma int) (int, bool) {
	rest := s[comma+1:]
	trimmed := strings.TrimLeft(rest, " \t")
	offset := comma + 1 + len(rest) - len(trimmed)

	for _, loc := range rePostcodeStart.FindAllStringIndex(segment, -1) {
		clause := strings.TrimRight(segment[loc[0]:], " \t")
		if len(trimmed) < len(clause) || !strings.EqualFold(trimmed[:len(clause)], clause) {
			continue
		}
		if len(trimmed) > len(clause) && !isClauseBoundary(trimmed[len(clause)]) {
			continue
		}
		return offset + len(clause), true
	}
	return 0, false
}

func isClauseBoundary(c byte) bool {
	switch c {
	case ',', ' ', '\t', '(':
		return true
	}
	return false
}

// StripParenthesizedPostcode turns "BALMA (31130)" into "BALMA".
func StripParenthesizedPostcode(s string) string {
	return reParenPostcode.ReplaceAllString(s, "")
}

// Tidy collapses repeated commas and whitespace and trims the result.
func Tidy(s string) string {
	for reRepeatedComma.MatchString(s) {
		s = reRepeatedComma.ReplaceAllString(s, ",")
	}
	s = reSpaceRun.ReplaceAllString(s, " ")
	s = reSpaceComma.ReplaceAllString(s, ",")
	s = reLeadingComma.ReplaceAllString(s, "")
	s = reTrailingComma.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
