package importer

import (
	"bufio"
	"bytes"
	"io"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if b, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(b, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

// Header fragments. Exports from the directory site come with varying
// accents and encodings, so columns are found by partial, case-insensitive
// match rather than by exact name.
var (
	emailKeys    = []string{"mail"}
	phoneKeys    = []string{"phone", "telephone", "téléphone", "phon"}
	legalRepKeys = []string{"sentant", "legal", "légal"}
	addressKeys  = []string{"siege", "siège", "ège"}
	categoryKeys = []string{"gorie", "category"}
)

// companyHeader is the one column matched by exact name.
const companyHeader = "Name"

type columns struct {
	names []string
	lower []string
}

func newColumns(header []string) columns {
	c := columns{names: make([]string, len(header)), lower: make([]string, len(header))}
	for i, h := range header {
		h = strings.TrimSpace(h)
		c.names[i] = h
		c.lower[i] = strings.ToLower(h)
	}
	return c
}

// index returns the first column whose name contains one of keys.
func (c columns) index(keys ...string) int {
	for i, name := range c.lower {
		for _, k := range keys {
			if strings.Contains(name, strings.ToLower(k)) {
				return i
			}
		}
	}
	return -1
}

func (c columns) has(keys ...string) bool {
	return c.index(keys...) >= 0
}

func (c columns) exact(name string) int {
	for i, n := range c.names {
		if n == name {
			return i
		}
	}
	return -1
}

func (c columns) row(values []string) providerRow {
	get := func(i int) string {
		if i < 0 || i >= len(values) {
			return ""
		}
		return strings.TrimSpace(values[i])
	}
	return providerRow{
		email:    strings.ToLower(get(c.index(emailKeys...))),
		phone:    get(c.index(phoneKeys...)),
		company:  get(c.exact(companyHeader)),
		legalRep: get(c.index(legalRepKeys...)),
		address:  get(c.index(addressKeys...)),
		category: get(c.index(categoryKeys...)),
	}
}

type providerRow struct {
	email    string
	phone    string
	company  string
	legalRep string
	address  string
	category string
}

// name prefers the legal representative over the company name.
func (r providerRow) name() string {
	if r.legalRep != "" {
		return r.legalRep
	}
	return r.company
}

// specialty is the first entry of the comma separated category list.
func (r providerRow) specialty() string {
	first, _, _ := strings.Cut(r.category, ",")
	return strings.TrimSpace(first)
}

func (r providerRow) missing() string {
	var parts []string
	if r.email == "" {
		parts = append(parts, "email")
	}
	if r.phone == "" {
		parts = append(parts, "phone")
	}
	if r.name() == "" {
		parts = append(parts, "name")
	}
	return strings.Join(parts, " ")
}
