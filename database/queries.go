package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DBTX is an interface that both sql.DB and sql.Tx implement.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Queries provides the client, contact, payment and event operations.
type Queries struct {
	db DBTX
}

// NewQueries creates a new Queries instance.
func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

var (
	clientColumns  = `id, name, nick, plan, type, url, created, status, team`
	contactColumns = `id, client_id, name, email, role`
	paymentColumns = `id, client_id, amount, frequency, plan, type, created`

	listClientSummariesSQL = `
WITH
ranked_contacts AS (
    SELECT
        client_id,
        name  AS contact_name,
        email AS contact_email,
        ROW_NUMBER() OVER (PARTITION BY client_id ORDER BY (role = ''), role, id) AS rn
    FROM contact
),
ranked_payments AS (
    SELECT
        client_id,
        amount,
        plan,
        ROW_NUMBER() OVER (PARTITION BY client_id ORDER BY created DESC, id DESC) AS rn
    FROM payment
),
payment_totals AS (
    SELECT
        client_id,
        substr(MAX(created), 1, 10) AS last_payment_date,
        COUNT(*)                    AS payments,
        SUM(amount)                 AS total,
        MAX(type)                   AS payment_type
    FROM payment
    GROUP BY client_id
),
ranked_events AS (
    SELECT
        client_id,
        type,
        ROW_NUMBER() OVER (PARTITION BY client_id ORDER BY created DESC, id DESC) AS rn
    FROM event
)
SELECT
    c.id,
    c.name,
    c.status,
    COALESCE(rc.contact_name, ''),
    COALESCE(rc.contact_email, ''),
    COALESCE(pt.last_payment_date, ''),
    COALESCE(rp.amount, 0),
    COALESCE(pt.payments, 0),
    COALESCE(pt.total, 0),
    COALESCE(pt.payment_type, ''),
    COALESCE(rp.plan, ''),
    COALESCE(re.type, '')
FROM client c
LEFT JOIN ranked_contacts rc ON rc.client_id = c.id AND rc.rn = 1
LEFT JOIN payment_totals  pt ON pt.client_id = c.id
LEFT JOIN ranked_payments rp ON rp.client_id = c.id AND rp.rn = 1
LEFT JOIN ranked_events   re ON re.client_id = c.id AND re.rn = 1
ORDER BY c.status, c.created, c.id;`

	findClientsSQL = `
SELECT ` + clientColumns + `
FROM client
WHERE nick LIKE ? OR name LIKE ?
ORDER BY created, id;`

	getClientSQL = `
SELECT ` + clientColumns + `
FROM client
WHERE id = ?;`

	insertClientSQL = `
INSERT INTO client (name, nick, plan, type, url, created, status, team)
VALUES (?, ?, ?, ?, ?, ?, ?, ?);`

	updateClientSQL = `
UPDATE client
SET name = ?, nick = ?, plan = ?, type = ?, url = ?, created = ?, status = ?, team = ?
WHERE id = ?;`

	listContactsSQL = `
SELECT ` + contactColumns + `
FROM contact
WHERE client_id = ?
ORDER BY id;`

	findContactByEmailSQL = `
SELECT ` + contactColumns + `
FROM contact
WHERE email = ?
ORDER BY id
LIMIT 1;`

	insertContactSQL = `
INSERT INTO contact (client_id, name, email, role)
VALUES (?, ?, ?, ?);`

	listPaymentsSQL = `
SELECT ` + paymentColumns + `
FROM payment
WHERE client_id = ?
ORDER BY created, id;`

	insertPaymentSQL = `
INSERT INTO payment (client_id, amount, frequency, plan, type, created)
VALUES (?, ?, ?, ?, ?, ?);`

	updatePaymentSQL = `
UPDATE payment
SET amount = ?, frequency = ?, plan = ?, type = ?, created = ?
WHERE id = ?;`

	insertEventSQL = `
INSERT INTO event (client_id, type, created)
VALUES (?, ?, ?);`
)

// ListClientSummaries returns one overview line per client, ordered by
// status then creation time.
func (q *Queries) ListClientSummaries(ctx context.Context) ([]*ClientSummary, error) {
	var rows, err = q.db.QueryContext(ctx, listClientSummariesSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var summaries []*ClientSummary
	for rows.Next() {
		var s ClientSummary
		if err := rows.Scan(
			&s.ID, &s.Name, &s.Status, &s.ContactName, &s.ContactEmail,
			&s.LastPaymentDate, &s.LastPayment, &s.Payments, &s.Total,
			&s.PaymentType, &s.Plan, &s.RecentEvent,
		); err != nil {
			return nil, fmt.Errorf("failed to scan client summary: %w", err)
		}
		summaries = append(summaries, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return summaries, nil
}

// FindClients returns clients whose nick or name contains term, ignoring
// case, oldest first.
func (q *Queries) FindClients(ctx context.Context, term string) ([]*ClientRecord, error) {
	var (
		pattern   = "%" + term + "%"
		rows, err = q.db.QueryContext(ctx, findClientsSQL, pattern, pattern)
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find clients: %w", err)
	}
	defer rows.Close()

	var clients []*ClientRecord
	for rows.Next() {
		var client, err = scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return clients, nil
}

// GetClient retrieves a client by id. It returns nil when there is none.
func (q *Queries) GetClient(ctx context.Context, id int64) (*ClientRecord, error) {
	var client, err = scanClient(q.db.QueryRowContext(ctx, getClientSQL, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return client, nil
}

// InsertClient stores a new client and sets its ID.
func (q *Queries) InsertClient(ctx context.Context, client *ClientRecord) (int64, error) {
	var result, err = q.db.ExecContext(ctx, insertClientSQL,
		client.Name, client.Nick, client.Plan, client.Type, client.URL,
		client.Created.UTC(), client.Status, client.Team,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert client: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read client id: %w", err)
	}
	client.ID = id
	return id, nil
}

// UpdateClient overwrites every column of an existing client.
// It returns false when no client has that id.
func (q *Queries) UpdateClient(ctx context.Context, client *ClientRecord) (bool, error) {
	var result, err = q.db.ExecContext(ctx, updateClientSQL,
		client.Name, client.Nick, client.Plan, client.Type, client.URL,
		client.Created.UTC(), client.Status, client.Team, client.ID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update client: %w", err)
	}
	return affected(result)
}

// ListContacts returns the contacts of a client in insertion order.
func (q *Queries) ListContacts(ctx context.Context, clientID int64) ([]*ContactRecord, error) {
	var rows, err = q.db.QueryContext(ctx, listContactsSQL, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer rows.Close()

	var contacts []*ContactRecord
	for rows.Next() {
		var contact ContactRecord
		if err := rows.Scan(&contact.ID, &contact.ClientID, &contact.Name, &contact.Email, &contact.Role); err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, &contact)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return contacts, nil
}

// FindContactByEmail returns the first contact with the given email, or nil.
func (q *Queries) FindContactByEmail(ctx context.Context, email string) (*ContactRecord, error) {
	var (
		contact ContactRecord
		err     = q.db.QueryRowContext(ctx, findContactByEmailSQL, email).Scan(
			&contact.ID, &contact.ClientID, &contact.Name, &contact.Email, &contact.Role,
		)
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find contact: %w", err)
	}
	return &contact, nil
}

// InsertContact stores a new contact and sets its ID.
func (q *Queries) InsertContact(ctx context.Context, contact *ContactRecord) (int64, error) {
	var result, err = q.db.ExecContext(ctx, insertContactSQL,
		contact.ClientID, contact.Name, contact.Email, contact.Role,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert contact: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read contact id: %w", err)
	}
	contact.ID = id
	return id, nil
}

// ListPayments returns the payments of a client, oldest first.
func (q *Queries) ListPayments(ctx context.Context, clientID int64) ([]*PaymentRecord, error) {
	var rows, err = q.db.QueryContext(ctx, listPaymentsSQL, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []*PaymentRecord
	for rows.Next() {
		var payment PaymentRecord
		if err := rows.Scan(
			&payment.ID, &payment.ClientID, &payment.Amount, &payment.Frequency,
			&payment.Plan, &payment.Type, &payment.Created,
		); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, &payment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return payments, nil
}

// InsertPayment stores a new payment and sets its ID.
func (q *Queries) InsertPayment(ctx context.Context, payment *PaymentRecord) (int64, error) {
	var result, err = q.db.ExecContext(ctx, insertPaymentSQL,
		payment.ClientID, payment.Amount, payment.Frequency, payment.Plan,
		payment.Type, payment.Created.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert payment: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read payment id: %w", err)
	}
	payment.ID = id
	return id, nil
}

// UpdatePayment overwrites the mutable columns of a payment.
// It returns false when no payment has that id.
func (q *Queries) UpdatePayment(ctx context.Context, payment *PaymentRecord) (bool, error) {
	var result, err = q.db.ExecContext(ctx, updatePaymentSQL,
		payment.Amount, payment.Frequency, payment.Plan, payment.Type,
		payment.Created.UTC(), payment.ID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update payment: %w", err)
	}
	return affected(result)
}

// InsertEvent records a client event.
func (q *Queries) InsertEvent(ctx context.Context, event *EventRecord) (int64, error) {
	var created = event.Created
	if created.IsZero() {
		created = time.Now()
	}
	var result, err = q.db.ExecContext(ctx, insertEventSQL, event.ClientID, event.Type, created.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to insert event: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read event id: %w", err)
	}
	event.ID = id
	return id, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanClient(row scanner) (*ClientRecord, error) {
	var client ClientRecord
	var err = row.Scan(
		&client.ID, &client.Name, &client.Nick, &client.Plan, &client.Type,
		&client.URL, &client.Created, &client.Status, &client.Team,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan client: %w", err)
	}
	return &client, nil
}

func affected(result sql.Result) (bool, error) {
	var n, err = result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}
