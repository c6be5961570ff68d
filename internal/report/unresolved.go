package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/monolithe-geofix/internal/batch"
	"github.com/monolithe-geofix/internal/normalize"
	"github.com/monolithe-geofix/internal/store"
)

// Header is the column layout of the unresolved-providers CSV.
var Header = []string{"id", "name", "address", "cleaned", "no_number", "city_only"}

// Row is one provider awaiting manual follow-up.
type Row struct {
	Record   store.AddressRecord
	Variants normalize.Variants
}

// FromUnresolved converts the leftovers of a sweep into report rows.
func FromUnresolved(items []batch.Unresolved) []Row {
	rows := make([]Row, 0, len(items))
	for _, u := range items {
		rows = append(rows, Row{Record: u.Record, Variants: u.Variants})
	}
	return rows
}

// FromRecords builds rows for records that have not been resolved yet,
// deriving the query variants the sweep would try.
func FromRecords(records []store.AddressRecord) []Row {
	rows := make([]Row, 0, len(records))
	for _, r := range records {
		rows = append(rows, Row{Record: r, Variants: normalize.BuildVariants(r.RawAddress)})
	}
	return rows
}

// Write emits the header and one line per row.
func Write(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range rows {
		record := []string{
			r.Record.ID,
			r.Record.DisplayName,
			r.Record.RawAddress,
			r.Variants.Cleaned,
			r.Variants.NoNumber,
			r.Variants.CityOnly,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row %s: %w", r.Record.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes the report to path, creating parent directories.
func WriteFile(path string, rows []Row) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report %s: %w", path, err)
	}

	if err := Write(file, rows); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
