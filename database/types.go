package database

import "time"

// ClientRecord represents a row of the client table.
type ClientRecord struct {
	ID      int64
	Name    string
	Nick    string
	Plan    string
	Type    string
	URL     string
	Created time.Time
	Status  string
	Team    string
}

// ContactRecord represents a row of the contact table.
type ContactRecord struct {
	ID       int64
	ClientID int64
	Name     string
	Email    string
	Role     string
}

// PaymentRecord represents a row of the payment table.
type PaymentRecord struct {
	ID        int64
	ClientID  int64
	Amount    float64
	Frequency string
	Plan      string
	Type      string
	Created   time.Time
}

// EventRecord represents a row of the event table.
type EventRecord struct {
	ID       int64
	ClientID int64
	Type     string
	Created  time.Time
}

// ClientSummary is one line of the client overview.
type ClientSummary struct {
	ID              int64
	Name            string
	Status          string
	ContactName     string
	ContactEmail    string
	LastPaymentDate string // YYYY-MM-DD, empty when the client never paid
	LastPayment     float64
	Payments        int64
	Total           float64
	PaymentType     string
	Plan            string
	RecentEvent     string
}
