package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

// ErrNotEmpty is returned by ImportLegacy when the destination already has clients.
var ErrNotEmpty = errors.New("destination database is not empty")

// ImportStats counts the rows copied by ImportLegacy.
type ImportStats struct {
	Clients  int
	Contacts int
	Payments int
	Events   int
}

// Total returns the number of rows copied.
func (s ImportStats) Total() int {
	return s.Clients + s.Contacts + s.Payments + s.Events
}

var (
	legacyClientsSQL = `
SELECT id, COALESCE(name, ''), COALESCE(nick, ''), COALESCE(plan, ''), COALESCE(type, ''),
       COALESCE(url, ''), COALESCE(created, now()), COALESCE(status, 'active'), COALESCE(team, '')
FROM client
ORDER BY id;`

	legacyContactsSQL = `
SELECT id, client_id, COALESCE(name, ''), COALESCE(email, ''), COALESCE(role, '')
FROM contact
ORDER BY id;`

	legacyPaymentsSQL = `
SELECT id, client_id, COALESCE(amount, 0)::float8, COALESCE(frequency, ''), COALESCE(plan, ''),
       COALESCE(type, ''), COALESCE(created, now())
FROM payment
ORDER BY id;`

	legacyEventsSQL = `
SELECT id, client_id, COALESCE(type, ''), COALESCE(created, now())
FROM event
ORDER BY id;`

	countClientsSQL = `SELECT COUNT(*) FROM client;`

	importClientSQL = `
INSERT INTO client (id, name, nick, plan, type, url, created, status, team)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`

	importContactSQL = `
INSERT INTO contact (id, client_id, name, email, role)
VALUES (?, ?, ?, ?, ?);`

	importPaymentSQL = `
INSERT INTO payment (id, client_id, amount, frequency, plan, type, created)
VALUES (?, ?, ?, ?, ?, ?, ?);`

	importEventSQL = `
INSERT INTO event (id, client_id, type, created)
VALUES (?, ?, ?, ?);`
)

// OpenLegacy connects to the Postgres database the tool used before the
// replica existed.
func OpenLegacy(ctx context.Context, connURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open legacy database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to legacy database: %w", err)
	}
	return db, nil
}

// ImportLegacy copies every client, contact, payment and event from src
// (Postgres) into dst (SQLite), keeping ids. dst must not contain clients.
// Run it inside a transaction on dst so a failure leaves nothing behind.
func ImportLegacy(ctx context.Context, src DBTX, dst DBTX) (ImportStats, error) {
	var stats ImportStats

	var existing int
	if err := dst.QueryRowContext(ctx, countClientsSQL).Scan(&existing); err != nil {
		return stats, fmt.Errorf("failed to count clients: %w", err)
	}
	if existing > 0 {
		return stats, fmt.Errorf("%w: %d clients", ErrNotEmpty, existing)
	}

	var err error
	if stats.Clients, err = copyRows(ctx, src, dst, "client", legacyClientsSQL, importClientSQL, func(rows *sql.Rows) ([]any, error) {
		var c ClientRecord
		if err := rows.Scan(&c.ID, &c.Name, &c.Nick, &c.Plan, &c.Type, &c.URL, &c.Created, &c.Status, &c.Team); err != nil {
			return nil, err
		}
		return []any{c.ID, c.Name, c.Nick, c.Plan, c.Type, c.URL, c.Created.UTC(), c.Status, c.Team}, nil
	}); err != nil {
		return stats, err
	}

	if stats.Contacts, err = copyRows(ctx, src, dst, "contact", legacyContactsSQL, importContactSQL, func(rows *sql.Rows) ([]any, error) {
		var c ContactRecord
		if err := rows.Scan(&c.ID, &c.ClientID, &c.Name, &c.Email, &c.Role); err != nil {
			return nil, err
		}
		return []any{c.ID, c.ClientID, c.Name, c.Email, c.Role}, nil
	}); err != nil {
		return stats, err
	}

	if stats.Payments, err = copyRows(ctx, src, dst, "payment", legacyPaymentsSQL, importPaymentSQL, func(rows *sql.Rows) ([]any, error) {
		var p PaymentRecord
		if err := rows.Scan(&p.ID, &p.ClientID, &p.Amount, &p.Frequency, &p.Plan, &p.Type, &p.Created); err != nil {
			return nil, err
		}
		return []any{p.ID, p.ClientID, p.Amount, p.Frequency, p.Plan, p.Type, p.Created.UTC()}, nil
	}); err != nil {
		return stats, err
	}

	if stats.Events, err = copyRows(ctx, src, dst, "event", legacyEventsSQL, importEventSQL, func(rows *sql.Rows) ([]any, error) {
		var e EventRecord
		if err := rows.Scan(&e.ID, &e.ClientID, &e.Type, &e.Created); err != nil {
			return nil, err
		}
		return []any{e.ID, e.ClientID, e.Type, e.Created.UTC()}, nil
	}); err != nil {
		return stats, err
	}

	return stats, nil
}

func copyRows(ctx context.Context, src, dst DBTX, table, selectSQL, insertSQL string, scan func(*sql.Rows) ([]any, error)) (int, error) {
	rows, err := src.QueryContext(ctx, selectSQL)
	if err != nil {
		return 0, fmt.Errorf("failed to read legacy %s rows: %w", table, err)
	}
	defer rows.Close()

	var count int
	for rows.Next() {
		var args, err = scan(rows)
		if err != nil {
			return count, fmt.Errorf("failed to scan legacy %s: %w", table, err)
		}
		if _, err := dst.ExecContext(ctx, insertSQL, args...); err != nil {
			return count, fmt.Errorf("failed to import %s: %w", table, err)
		}
		count++
	}

	if err := rows.Err(); err != nil {
		return count, fmt.Errorf("row iteration error: %w", err)
	}
	return count, nil
}
