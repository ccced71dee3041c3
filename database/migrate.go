package database

import (
	"database/sql"
	"fmt"
)

// Schema version tracking (PRAGMA user_version):
// 0 - empty file
// 1 - client, contact, payment, event tables
const currentSchemaVersion = 1

var (
	createClientTableSQL = `
CREATE TABLE IF NOT EXISTS client (
    id        INTEGER   PRIMARY KEY AUTOINCREMENT,
    name      TEXT      NOT NULL,
    nick      TEXT      NOT NULL DEFAULT '',
    plan      TEXT      NOT NULL DEFAULT '',
    type      TEXT      NOT NULL DEFAULT '',
    url       TEXT      NOT NULL DEFAULT '',
    created   DATETIME  NOT NULL,
    status    TEXT      NOT NULL DEFAULT 'active',
    team      TEXT      NOT NULL DEFAULT ''
);`

	createContactTableSQL = `
CREATE TABLE IF NOT EXISTS contact (
    id         INTEGER  PRIMARY KEY AUTOINCREMENT,
    client_id  INTEGER  NOT NULL REFERENCES client (id),
    name       TEXT     NOT NULL DEFAULT '',
    email      TEXT     NOT NULL DEFAULT '',
    role       TEXT     NOT NULL DEFAULT ''
);`

	createPaymentTableSQL = `
CREATE TABLE IF NOT EXISTS payment (
    id         INTEGER   PRIMARY KEY AUTOINCREMENT,
    client_id  INTEGER   NOT NULL REFERENCES client (id),
    amount     REAL      NOT NULL DEFAULT 0,
    frequency  TEXT      NOT NULL DEFAULT '',
    plan       TEXT      NOT NULL DEFAULT '',
    type       TEXT      NOT NULL DEFAULT '',
    created    DATETIME  NOT NULL
);`

	createEventTableSQL = `
CREATE TABLE IF NOT EXISTS event (
    id         INTEGER   PRIMARY KEY AUTOINCREMENT,
    client_id  INTEGER   NOT NULL REFERENCES client (id),
    type       TEXT      NOT NULL DEFAULT '',
    created    DATETIME  NOT NULL
);`

	createIndexesSQL = `
CREATE INDEX IF NOT EXISTS contact_client_idx ON contact (client_id);
CREATE INDEX IF NOT EXISTS payment_client_created_idx ON payment (client_id, created);
CREATE INDEX IF NOT EXISTS event_client_created_idx ON event (client_id, created);`
)

// Migrate brings the schema up to the current version. It is idempotent.
func Migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}
	return nil
}

func migrateToV1(db *sql.DB) error {
	var steps = []struct {
		name string
		sql  string
	}{
		{"client table", createClientTableSQL},
		{"contact table", createContactTableSQL},
		{"payment table", createPaymentTableSQL},
		{"event table", createEventTableSQL},
		{"indexes", createIndexesSQL},
	}

	for _, step := range steps {
		if _, err := db.Exec(step.sql); err != nil {
			return fmt.Errorf("failed to create %s: %w", step.name, err)
		}
	}
	return nil
}
