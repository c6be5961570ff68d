package importer

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/monolithe-geofix/internal/geocode"
	"github.com/monolithe-geofix/internal/resolver"
	"github.com/monolithe-geofix/internal/store"
)

type memoryStore struct {
	providers []store.Provider
	emails    map[string]bool
}

func newMemoryStore(existing ...string) *memoryStore {
	s := &memoryStore{emails: map[string]bool{}}
	for _, e := range existing {
		s.emails[e] = true
	}
	return s
}

func (s *memoryStore) EmailExists(_ context.Context, email string) (bool, error) {
	return s.emails[email], nil
}

func (s *memoryStore) InsertProvider(_ context.Context, p store.Provider) error {
	s.providers = append(s.providers, p)
	s.emails[p.Email] = true
	return nil
}

type tableResolver struct {
	coords map[string]geocode.Coordinates
	seen   []string
}

func (r *tableResolver) Resolve(_ context.Context, raw string) resolver.ResolutionResult {
	r.seen = append(r.seen, raw)
	if c, ok := r.coords[raw]; ok {
		return resolver.ResolutionResult{Coordinates: &c, Pass: resolver.PassFull, Variant: raw}
	}
	return resolver.ResolutionResult{}
}

const providersCSV = "\uFEFFName,Représentant légal,Email,Téléphone,Adresse du siège,Catégorie\n" +
	`Plomberie Martin,Jean Martin,Contact@Martin.fr,0561000000,"12 Rue de la Paix, 31000 Toulouse","Plomberie, Chauffage"` + "\n" +
	`Elec Sans Tel,,elec@example.test,,"3 Allée Jean Jaurès, 31000 Toulouse",Électricité` + "\n" +
	"Doublon,Paul,contact@martin.fr,0600000000,,Peinture\n" +
	"Sans Adresse,,nouveau@example.test,0700000000,,\n"

func newTestImporter(s ProviderStore, r AddressResolver, out *bytes.Buffer) *CSVImporter {
	ci := NewCSVImporter(s, r, Options{
		InitialPassword: "changeme",
		BcryptCost:      bcrypt.MinCost,
		Progress:        out,
	})
	n := 0
	ci.newID = func() string {
		n++
		return "art_test_" + string(rune('0'+n))
	}
	return ci
}

func TestImport_InsertsSkipsAndDeduplicates(t *testing.T) {
	st := newMemoryStore()
	res := &tableResolver{coords: map[string]geocode.Coordinates{
		"12 Rue de la Paix, 31000 Toulouse": {Latitude: 43.6, Longitude: 1.44},
	}}
	var out bytes.Buffer

	stats, err := newTestImporter(st, res, &out).Import(context.Background(), strings.NewReader(providersCSV))

	require.NoError(t, err)
	assert.Equal(t, &ImportStats{Rows: 4, Inserted: 2, Skipped: 1, Duplicates: 1, Geocoded: 1}, stats)
	assert.Equal(t, []string{"12 Rue de la Paix, 31000 Toulouse"}, res.seen)

	require.Len(t, st.providers, 2)
	first := st.providers[0]
	assert.Equal(t, "art_test_1", first.ID)
	assert.Equal(t, "Jean Martin", first.Name)
	assert.Equal(t, "contact@martin.fr", first.Email)
	assert.Equal(t, "Plomberie Martin", first.CompanyName)
	assert.Equal(t, "Plomberie", first.Specialty)
	assert.Equal(t, "12 Rue de la Paix, 31000 Toulouse", first.Address)
	assert.Equal(t, DocumentsMissing, first.DocumentStatus)
	require.NotNil(t, first.Coordinates)
	assert.InDelta(t, 43.6, first.Coordinates.Latitude, 1e-9)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(first.PasswordHash), []byte("changeme")))

	second := st.providers[1]
	assert.Equal(t, "Sans Adresse", second.Name)
	assert.Nil(t, second.Coordinates)
	assert.Equal(t, first.PasswordHash, second.PasswordHash)

	got := out.String()
	assert.Contains(t, got, "Columns: Name | Représentant légal | Email | Téléphone | Adresse du siège | Catégorie\n")
	assert.Contains(t, got, "[001/4] OK      Plomberie Martin                43.600,1.440\n")
	assert.Contains(t, got, "[002/4] SKIP    Elec Sans Tel (missing: phone)\n")
	assert.Contains(t, got, "[003/4] DUPE    contact@martin.fr\n")
	assert.Contains(t, got, "[004/4] OK      Sans Adresse                    no coords\n")
}

func TestImport_ExistingEmailIsDuplicate(t *testing.T) {
	st := newMemoryStore("nouveau@example.test")
	var out bytes.Buffer

	stats, err := newTestImporter(st, &tableResolver{}, &out).Import(context.Background(), strings.NewReader(providersCSV))

	require.NoError(t, err)
	assert.Equal(t, 2, stats.Duplicates)
	assert.Equal(t, 1, stats.Inserted)
}

func TestImport_MissingColumns(t *testing.T) {
	csv := "Name,Adresse du siège\nPlomberie Martin,12 Rue de la Paix\n"

	_, err := newTestImporter(newMemoryStore(), &tableResolver{}, &bytes.Buffer{}).
		Import(context.Background(), strings.NewReader(csv))

	assert.ErrorIs(t, err, ErrMissingColumns)
}

func TestImport_RequiresPassword(t *testing.T) {
	ci := NewCSVImporter(newMemoryStore(), &tableResolver{}, Options{})

	_, err := ci.Import(context.Background(), strings.NewReader(providersCSV))

	assert.ErrorIs(t, err, ErrNoPassword)
}

func TestImportFile_MissingFile(t *testing.T) {
	_, err := newTestImporter(newMemoryStore(), &tableResolver{}, &bytes.Buffer{}).
		ImportFile(context.Background(), "does-not-exist.csv")

	assert.Error(t, err)
}

func TestProviderRow(t *testing.T) {
	tests := []struct {
		name     string
		row      providerRow
		wantName string
		wantSpec string
		wantMiss string
	}{
		{
			name:     "legal representative wins",
			row:      providerRow{email: "a@b.fr", phone: "06", company: "SARL X", legalRep: "Marie X", category: "Maçonnerie, Carrelage"},
			wantName: "Marie X",
			wantSpec: "Maçonnerie",
		},
		{
			name:     "falls back to company",
			row:      providerRow{email: "a@b.fr", phone: "06", company: "SARL X"},
			wantName: "SARL X",
		},
		{
			name:     "everything missing",
			row:      providerRow{},
			wantMiss: "email phone name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantName, tt.row.name())
			assert.Equal(t, tt.wantSpec, tt.row.specialty())
			assert.Equal(t, tt.wantMiss, tt.row.missing())
		})
	}
}

func TestSkipBOM(t *testing.T) {
	var buf bytes.Buffer
	_, err := buf.ReadFrom(skipBOM(strings.NewReader("\uFEFFName")))
	require.NoError(t, err)
	assert.Equal(t, "Name", buf.String())

	buf.Reset()
	_, err = buf.ReadFrom(skipBOM(strings.NewReader("Na")))
	require.NoError(t, err)
	assert.Equal(t, "Na", buf.String())
}
