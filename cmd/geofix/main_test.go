package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/monolithe-geofix/internal/postal"
)

const usersTable = `
CREATE TABLE users (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT UNIQUE NOT NULL,
	password TEXT NOT NULL,
	role TEXT NOT NULL,
	is_onboarded INTEGER NOT NULL DEFAULT 0,
	company_name TEXT,
	specialty TEXT,
	address TEXT,
	phone TEXT,
	lat REAL,
	lng REAL,
	documents_status TEXT
)`

// fakeNominatim answers the queries in known and returns no candidate otherwise.
func fakeNominatim(t *testing.T, known map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if body, ok := known[r.URL.Query().Get("q")]; ok {
			_, _ = w.Write([]byte(body))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// testEnv points the CLI at a fresh SQLite file and the fake geocoder.
func testEnv(t *testing.T, geocoderURL string) *sql.DB {
	t.Helper()
	chdir(t, t.TempDir())
	dbPath := filepath.Join(t.TempDir(), "portal.sqlite")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", dbPath)
	t.Setenv("GEOCODER_URL", geocoderURL)
	t.Setenv("GEOCODER_MIN_INTERVAL", "0")
	t.Setenv("LOG_LEVEL", "error")

	conn, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_, err = conn.Exec(usersTable)
	require.NoError(t, err)
	return conn
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "none.yaml")}, args...))

	err := root.ExecuteContext(context.Background())
	teardown()
	return out.String(), err
}

func seedProvider(t *testing.T, conn *sql.DB, id, name, address string) {
	t.Helper()
	_, err := conn.Exec(`INSERT INTO users (id, name, email, password, role, address)
		VALUES (?, ?, ?, 'x', 'ARTISAN', ?)`, id, name, id+"@example.test", address)
	require.NoError(t, err)
}

func TestCleanCommand(t *testing.T) {
	testEnv(t, "http://127.0.0.1:1")

	out, err := runCLI(t, "clean", "BAT E PORTE B9, 12 Rue de la Paix, 31000 Toulouse")

	require.NoError(t, err)
	assert.Contains(t, out, "Cleaned:   12 Rue de la Paix, 31000 Toulouse\n")
	assert.Contains(t, out, "No number: Rue de la Paix, 31000 Toulouse\n")
	assert.Contains(t, out, "City only: 31000 Toulouse, France\n")
}

func TestCleanCommand_Steps(t *testing.T) {
	testEnv(t, "http://127.0.0.1:1")

	out, err := runCLI(t, "clean", "--steps", "30is Avenue Foch (31130)")

	require.NoError(t, err)
	assert.Contains(t, out, "fix-number-typos")
	assert.Contains(t, out, "strip-orphan-numbers               (skipped)\n")
	assert.Contains(t, out, "Cleaned:   30 Avenue Foch\n")
	assert.Contains(t, out, "City only: (none)\n")
}

func TestSweepCommand(t *testing.T) {
	srv := fakeNominatim(t, map[string]string{
		"3 Allée Jean Jaurès, 31000 Toulouse": `[{"lat":"43.609","lon":"1.449"}]`,
		"Rue de la Paix, 31000 Toulouse":      `[{"lat":"43.6045","lon":"1.444"}]`,
	})
	conn := testEnv(t, srv.URL)
	seedProvider(t, conn, "a1", "Elec Dupont", "3 Allée Jean Jaurès, 31000 Toulouse")
	seedProvider(t, conn, "a2", "Plomberie Martin", "Bat A, 12 Rue de la Paix, 31000 Toulouse")
	seedProvider(t, conn, "a3", "Inconnu", "Lieu-dit Nulle Part")
	reportPath := filepath.Join(t.TempDir(), "unresolved.csv")

	out, err := runCLI(t, "sweep", "--report", reportPath)

	require.NoError(t, err)
	assert.Contains(t, out, "Fixed:  2\n")
	assert.Contains(t, out, "Failed: 1  <-- check addresses above\n")

	var resolved int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM users WHERE lat IS NOT NULL`).Scan(&resolved))
	assert.Equal(t, 2, resolved)

	var address string
	require.NoError(t, conn.QueryRow(`SELECT address FROM users WHERE id = 'a2'`).Scan(&address))
	assert.Equal(t, "Bat A, 12 Rue de la Paix, 31000 Toulouse", address)

	f, err := os.Open(reportPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a3", rows[1][0])
}

func TestSweepCommand_DryRun(t *testing.T) {
	srv := fakeNominatim(t, map[string]string{
		"3 Allée Jean Jaurès, 31000 Toulouse": `[{"lat":"43.609","lon":"1.449"}]`,
	})
	conn := testEnv(t, srv.URL)
	seedProvider(t, conn, "a1", "Elec Dupont", "3 Allée Jean Jaurès, 31000 Toulouse")

	out, err := runCLI(t, "sweep", "--dry-run")

	require.NoError(t, err)
	assert.Contains(t, out, "Dry run: nothing was written")
	var resolved int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM users WHERE lat IS NOT NULL`).Scan(&resolved))
	assert.Zero(t, resolved)
}

func TestResolveCommand(t *testing.T) {
	srv := fakeNominatim(t, map[string]string{
		"31000 Toulouse, France": `[{"lat":"43.6045","lon":"1.444"}]`,
	})
	testEnv(t, srv.URL)

	out, err := runCLI(t, "resolve", "12 Rue Inconnue, 31000 Toulouse")

	require.NoError(t, err)
	assert.Contains(t, out, "Result:    43.6045, 1.4440 via city-only\n")
}

func TestPingCommand(t *testing.T) {
	conn := testEnv(t, "http://127.0.0.1:1")
	seedProvider(t, conn, "a1", "Elec Dupont", "3 Allée Jean Jaurès, 31000 Toulouse")

	out, err := runCLI(t, "ping")

	require.NoError(t, err)
	assert.Contains(t, out, "Database connection successful!")
	assert.Contains(t, out, "Missing coordinates:   1\n")
}

func TestExportUnresolvedCommand(t *testing.T) {
	conn := testEnv(t, "http://127.0.0.1:1")
	seedProvider(t, conn, "a1", "Elec Dupont", "3 Allée Jean Jaurès, 31000 Toulouse")
	path := filepath.Join(t.TempDir(), "out", "missing.csv")

	out, err := runCLI(t, "export-unresolved", path)

	require.NoError(t, err)
	assert.Contains(t, out, "Exported 1 providers")
	assert.FileExists(t, path)
}

func TestImportCommand(t *testing.T) {
	srv := fakeNominatim(t, map[string]string{
		"12 Rue de la Paix, 31000 Toulouse": `[{"lat":"43.6","lon":"1.44"}]`,
	})
	conn := testEnv(t, srv.URL)
	csvPath := filepath.Join(t.TempDir(), "providers.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(
		"Name,Représentant légal,Email,Téléphone,Adresse du siège,Catégorie\n"+
			`Plomberie Martin,Jean Martin,contact@martin.fr,0561000000,"12 Rue de la Paix, 31000 Toulouse",Plomberie`+"\n"),
		0644))

	out, err := runCLI(t, "import", "--password", "changeme", "--bcrypt-cost", "4", csvPath)

	require.NoError(t, err)
	assert.Contains(t, out, "Inserted:   1\n")
	var name, status string
	var lat float64
	require.NoError(t, conn.QueryRow(`SELECT name, documents_status, lat FROM users WHERE email = 'contact@martin.fr'`).
		Scan(&name, &status, &lat))
	assert.Equal(t, "Jean Martin", name)
	assert.Equal(t, "missing", status)
	assert.InDelta(t, 43.6, lat, 1e-9)
}

func TestParseCommand_WithoutLibpostal(t *testing.T) {
	if postal.Available {
		t.Skip("built with libpostal")
	}
	testEnv(t, "http://127.0.0.1:1")

	_, err := runCLI(t, "parse", "12 Rue de la Paix, 31000 Toulouse")

	assert.ErrorIs(t, err, postal.ErrUnavailable)
}

func TestUnknownDriverFailsSetup(t *testing.T) {
	testEnv(t, "http://127.0.0.1:1")
	t.Setenv("DB_DRIVER", "oracle")

	_, err := runCLI(t, "clean", "x")

	assert.Error(t, err)
}
