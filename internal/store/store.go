package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/monolithe-geofix/internal/db"
	"github.com/monolithe-geofix/internal/geocode"
)

// ErrNotFound is returned when an update matches no row.
var ErrNotFound = errors.New("record not found")

// AddressRecord is a provider whose coordinates are missing.
type AddressRecord struct {
	ID          string `json:"id"`
	DisplayName string `json:"name"`
	RawAddress  string `json:"address"`
}

// Provider is a new provider row written by the CSV importer.
type Provider struct {
	ID             string
	Name           string
	Email          string
	PasswordHash   string
	CompanyName    string
	Specialty      string
	Address        string
	Phone          string
	Coordinates    *geocode.Coordinates
	DocumentStatus string
}

// Stats summarises provider coordinate coverage.
type Stats struct {
	Providers       int `json:"providers"`
	WithCoordinates int `json:"with_coordinates"`
	Missing         int `json:"missing_coordinates"`
}

// AddressStore reads and writes provider rows in the portal's users table.
// Only lat and lng are ever updated on existing rows.
type AddressStore struct {
	db      *sql.DB
	dialect db.Dialect
	role    string
}

// NewAddressStore creates a store scoped to providers with the given role.
func NewAddressStore(conn *sql.DB, dialect db.Dialect, role string) *AddressStore {
	return &AddressStore{db: conn, dialect: dialect, role: role}
}

// FetchCandidates returns providers that have an address but no latitude.
func (s *AddressStore) FetchCandidates(ctx context.Context) ([]AddressRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, name, address
		FROM users
		WHERE role = ?
		  AND lat IS NULL
		  AND address IS NOT NULL
		  AND address != ''
		ORDER BY id
	`), s.role)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	var records []AddressRecord
	for rows.Next() {
		var r AddressRecord
		if err := rows.Scan(&r.ID, &r.DisplayName, &r.RawAddress); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read candidates: %w", err)
	}
	return records, nil
}

// UpdateCoordinates writes lat/lng for one provider.
func (s *AddressStore) UpdateCoordinates(ctx context.Context, id string, c geocode.Coordinates) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE users SET lat = ?, lng = ? WHERE id = ?`),
		c.Latitude, c.Longitude, id)
	if err != nil {
		return fmt.Errorf("failed to update coordinates for %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected for %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("update coordinates for %s: %w", id, ErrNotFound)
	}
	return nil
}

// Stats counts providers with and without coordinates.
func (s *AddressStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN lat IS NOT NULL THEN 1 ELSE 0 END), 0)
		FROM users
		WHERE role = ?
	`), s.role).Scan(&st.Providers, &st.WithCoordinates)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count providers: %w", err)
	}
	st.Missing = st.Providers - st.WithCoordinates
	return st, nil
}

// EmailExists reports whether any user already has email.
func (s *AddressStore) EmailExists(ctx context.Context, email string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT 1 FROM users WHERE email = ?`), email).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return true, nil
}

// InsertProvider adds a new, not yet onboarded provider.
func (s *AddressStore) InsertProvider(ctx context.Context, p Provider) error {
	var lat, lng sql.NullFloat64
	if p.Coordinates != nil {
		lat = sql.NullFloat64{Float64: p.Coordinates.Latitude, Valid: true}
		lng = sql.NullFloat64{Float64: p.Coordinates.Longitude, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO users
			(id, name, email, password, role, is_onboarded, company_name, specialty,
			 address, phone, lat, lng, documents_status)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?, ?, ?, ?, ?)
	`),
		p.ID, p.Name, p.Email, p.PasswordHash, s.role,
		nullString(p.CompanyName), nullString(p.Specialty), nullString(p.Address), p.Phone,
		lat, lng, p.DocumentStatus,
	)
	if err != nil {
		return fmt.Errorf("failed to insert provider %s: %w", p.Email, err)
	}
	return nil
}

// rebind turns ? placeholders into $n for PostgreSQL.
func (s *AddressStore) rebind(query string) string {
	if s.dialect != db.DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
