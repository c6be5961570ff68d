package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/monolithe-geofix/internal/debug"
	"github.com/monolithe-geofix/internal/resolver"
	"github.com/monolithe-geofix/internal/store"
)

// ErrMissingColumns is returned when the CSV header has no email or phone column.
var ErrMissingColumns = errors.New("required columns not found")

// ErrNoPassword is returned when no initial password was configured.
var ErrNoPassword = errors.New("initial password is required")

// DocumentsMissing is the compliance status given to every imported provider.
const DocumentsMissing = "missing"

// ProviderStore is the part of the store the importer writes through.
type ProviderStore interface {
	EmailExists(ctx context.Context, email string) (bool, error)
	InsertProvider(ctx context.Context, p store.Provider) error
}

// AddressResolver turns a raw address into coordinates.
type AddressResolver interface {
	Resolve(ctx context.Context, raw string) resolver.ResolutionResult
}

// Options controls one import.
type Options struct {
	// InitialPassword is hashed once and given to every new provider.
	InitialPassword string
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
	Progress   io.Writer
	Logger     *zap.Logger
	Debug      bool
}

// ImportStats summarises an import run.
type ImportStats struct {
	Rows       int
	Inserted   int
	Skipped    int
	Duplicates int
	Geocoded   int
	Errors     int
}

// CSVImporter loads provider rows from a directory export into the users table.
type CSVImporter struct {
	store    ProviderStore
	resolver AddressResolver
	opts     Options
	newID    func() string
}

// NewCSVImporter creates a new CSV importer
func NewCSVImporter(s ProviderStore, r AddressResolver, opts Options) *CSVImporter {
	if opts.Progress == nil {
		opts.Progress = io.Discard
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	return &CSVImporter{
		store:    s,
		resolver: r,
		opts:     opts,
		newID:    func() string { return "art_" + uuid.NewString() },
	}
}

// ImportFile imports the CSV at filename.
func (ci *CSVImporter) ImportFile(ctx context.Context, filename string) (*ImportStats, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", filename, err)
	}
	defer file.Close()

	return ci.Import(ctx, file)
}

// Import reads provider rows from r. Rows without an email, a phone or a
// name are skipped, as are emails already present. Addresses are resolved
// through the multi-pass resolver, so the geocoder pacing applies.
func (ci *CSVImporter) Import(ctx context.Context, r io.Reader) (*ImportStats, error) {
	debug.DebugHeader(ci.opts.Debug)
	defer debug.DebugFooter(ci.opts.Debug)

	if ci.opts.InitialPassword == "" {
		return nil, ErrNoPassword
	}

	reader := csv.NewReader(skipBOM(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	cols := newColumns(header)
	if !cols.has("mail") || !cols.has("phon") {
		return nil, fmt.Errorf("%w: have %s", ErrMissingColumns, strings.Join(cols.names, " | "))
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	fmt.Fprintf(ci.opts.Progress, "Columns: %s\n", strings.Join(cols.names, " | "))
	fmt.Fprintf(ci.opts.Progress, "Total rows: %d\n\n", len(rows))

	hash, err := bcrypt.GenerateFromPassword([]byte(ci.opts.InitialPassword), ci.opts.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash initial password: %w", err)
	}

	stats := &ImportStats{Rows: len(rows)}
	for i, values := range rows {
		if ctx.Err() != nil {
			return stats, fmt.Errorf("import interrupted: %w", ctx.Err())
		}
		pad := fmt.Sprintf("[%03d/%d]", i+1, len(rows))
		if err := ci.importRow(ctx, pad, cols.row(values), string(hash), stats); err != nil {
			return stats, err
		}
	}

	ci.opts.Logger.Info("provider import finished",
		zap.Int("inserted", stats.Inserted),
		zap.Int("skipped", stats.Skipped),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("geocoded", stats.Geocoded),
	)
	return stats, nil
}

func (ci *CSVImporter) importRow(ctx context.Context, pad string, row providerRow, hash string, stats *ImportStats) error {
	out := ci.opts.Progress

	if missing := row.missing(); missing != "" {
		label := row.company
		if label == "" {
			label = "?"
		}
		fmt.Fprintf(out, "%s SKIP    %s (missing: %s)\n", pad, label, missing)
		stats.Skipped++
		return nil
	}

	exists, err := ci.store.EmailExists(ctx, row.email)
	if err != nil {
		return fmt.Errorf("failed to check %s: %w", row.email, err)
	}
	if exists {
		fmt.Fprintf(out, "%s DUPE    %s\n", pad, row.email)
		stats.Duplicates++
		return nil
	}

	p := store.Provider{
		ID:             ci.newID(),
		Name:           row.name(),
		Email:          row.email,
		PasswordHash:   hash,
		CompanyName:    row.company,
		Specialty:      row.specialty(),
		Address:        row.address,
		Phone:          row.phone,
		DocumentStatus: DocumentsMissing,
	}

	coords := "no coords"
	if row.address != "" {
		res := ci.resolver.Resolve(ctx, row.address)
		if res.Resolved() {
			p.Coordinates = res.Coordinates
			coords = fmt.Sprintf("%.3f,%.3f", res.Coordinates.Latitude, res.Coordinates.Longitude)
		}
		debug.DebugOutput(ci.opts.Debug, "Resolved %q via %q", row.address, res.Pass)
	}

	if err := ci.store.InsertProvider(ctx, p); err != nil {
		fmt.Fprintf(out, "%s ERROR   %s: %v\n", pad, row.email, err)
		ci.opts.Logger.Error("failed to insert provider", zap.String("email", row.email), zap.Error(err))
		stats.Errors++
		return nil
	}

	fmt.Fprintf(out, "%s OK      %-30.30s  %s\n", pad, row.company, coords)
	stats.Inserted++
	if p.Coordinates != nil {
		stats.Geocoded++
	}
	return nil
}

// WriteSummary prints the end-of-import block.
func (s *ImportStats) WriteSummary(w io.Writer) {
	rule := strings.Repeat("-", 40)
	fmt.Fprintf(w, "\n%s\n", rule)
	fmt.Fprintf(w, "Inserted:   %d\n", s.Inserted)
	fmt.Fprintf(w, "Skipped:    %d\n", s.Skipped)
	fmt.Fprintf(w, "Duplicates: %d\n", s.Duplicates)
	if s.Errors > 0 {
		fmt.Fprintf(w, "Errors:     %d\n", s.Errors)
	}
	fmt.Fprintf(w, "Geocoded:   %d of %d inserted\n", s.Geocoded, s.Inserted)
	fmt.Fprintln(w, rule)
}
