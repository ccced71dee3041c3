package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// TestingT is an interface for testing compatibility.
type TestingT interface {
	Logf(format string, args ...any)
	FailNow()
	Cleanup(func())
}

// LegacyTestingT additionally allows skipping when no Postgres is configured.
type LegacyTestingT interface {
	TestingT
	Skipf(format string, args ...any)
}

// LegacyURLEnv names the variable holding the Postgres URL for legacy import tests.
const LegacyURLEnv = "DIRT_TEST_POSTGRES_URL"

var legacySchemaSQL = `
CREATE TABLE client (
    id       SERIAL PRIMARY KEY,
    name     TEXT,
    nick     TEXT,
    plan     TEXT,
    type     TEXT,
    url      TEXT,
    created  TIMESTAMPTZ,
    status   TEXT,
    team     TEXT
);
CREATE TABLE contact (
    id         SERIAL PRIMARY KEY,
    client_id  INTEGER REFERENCES client (id),
    name       TEXT,
    email      TEXT,
    role       TEXT
);
CREATE TABLE payment (
    id         SERIAL PRIMARY KEY,
    client_id  INTEGER REFERENCES client (id),
    amount     NUMERIC(10, 2),
    frequency  TEXT,
    plan       TEXT,
    type       TEXT,
    created    TIMESTAMPTZ
);
CREATE TABLE event (
    id         SERIAL PRIMARY KEY,
    client_id  INTEGER REFERENCES client (id),
    type       TEXT,
    created    TIMESTAMPTZ
);`

// SetupTestDatabase creates a migrated SQLite database in its own temporary file.
func SetupTestDatabase(t TestingT) *sql.DB {
	var name = fmt.Sprintf("test_%s.db", uuid.New().String()[0:8])

	dir, err := os.MkdirTemp("", "dirt-db-")
	if err != nil {
		t.Logf("failed to create temp dir: %v", err)
		t.FailNow()
	}

	db, err := Open(filepath.Join(dir, name))
	if err != nil {
		t.Logf("failed to open test database: %v", err)
		t.FailNow()
	}

	t.Cleanup(func() {
		_ = db.Close()
		_ = os.RemoveAll(dir)
	})

	return db
}

// SetupLegacyDatabase creates the legacy Postgres tables in an isolated
// schema. It skips the test when LegacyURLEnv is not set.
func SetupLegacyDatabase(t LegacyTestingT) *sql.DB {
	var baseURL = os.Getenv(LegacyURLEnv)
	if baseURL == "" {
		t.Skipf("%s not set", LegacyURLEnv)
		return nil
	}

	var schema = fmt.Sprintf("test_%s", uuid.New().String()[0:8])

	// First, connect to create the schema
	conn, err := sql.Open("postgres", baseURL)
	if err != nil {
		t.Logf("failed to connect to database. Is your local database running?: %v", err)
		t.FailNow()
	}
	if _, err := conn.Exec("CREATE SCHEMA IF NOT EXISTS " + schema); err != nil {
		t.Logf("Failed to create schema %s: %s", schema, err)
		t.FailNow()
	}
	conn.Close()

	conn, err = sql.Open("postgres", withSearchPath(baseURL, schema))
	if err != nil {
		t.Logf("failed to connect to database with schema: %v", err)
		t.FailNow()
	}
	if _, err := conn.Exec(legacySchemaSQL); err != nil {
		t.Logf("failed to create legacy tables: %v", err)
		t.FailNow()
	}

	t.Cleanup(func() {
		_, _ = conn.Exec("DROP SCHEMA IF EXISTS " + schema + " CASCADE")
		_ = conn.Close()
	})

	return conn
}

func withSearchPath(connURL, schema string) string {
	var sep = "?"
	if strings.Contains(connURL, "?") {
		sep = "&"
	}
	return connURL + sep + "search_path=" + schema
}
