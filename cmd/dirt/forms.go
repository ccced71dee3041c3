package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go-dirt/console"
	"go-dirt/database"
)

var errNoClient = errors.New("no client matches")

// form asks a series of questions and keeps the first error, so callers can
// check once after the last prompt.
type form struct {
	c   *console.Console
	err error
}

func (f *form) text(env, prompt, def string) string {
	if f.err != nil {
		return def
	}
	value, err := f.c.Ask(env, prompt, def)
	if err != nil {
		f.err = err
		return def
	}
	return value
}

func (f *form) amount(env, prompt string, def float64) float64 {
	if f.err != nil {
		return def
	}
	value, err := f.c.AskFloat(env, prompt, def)
	if err != nil {
		f.err = err
		return def
	}
	return value
}

// findClient asks for a search term (or reads CLIENT) and resolves it to a
// single client, asking the operator to choose when several match.
func findClient(ctx context.Context, c *console.Console, q *database.Queries) (*database.ClientRecord, error) {
	term, err := c.Ask("CLIENT", "Enter client nickname", "")
	if err != nil {
		return nil, err
	}

	clients, err := q.FindClients(ctx, term)
	if err != nil {
		return nil, err
	}
	if len(clients) == 0 {
		return nil, fmt.Errorf("%w %q", errNoClient, term)
	}

	var labels = make([]string, len(clients))
	for i, client := range clients {
		labels[i] = fmt.Sprintf("%s (%d %s)", client.Nick, client.ID, client.Name)
	}
	index, err := c.Choose("Choose a client", labels)
	if err != nil {
		return nil, err
	}
	return clients[index], nil
}

func clientFields(client *database.ClientRecord) [][2]string {
	return [][2]string{
		{"id", strconv.FormatInt(client.ID, 10)},
		{"name", client.Name},
		{"nick", client.Nick},
		{"plan", client.Plan},
		{"type", client.Type},
		{"url", client.URL},
		{"created", console.Date(client.Created)},
		{"status", client.Status},
		{"team", client.Team},
	}
}

func contactRows(contacts []*database.ContactRecord) [][]string {
	var rows = make([][]string, 0, len(contacts))
	for _, contact := range contacts {
		rows = append(rows, []string{
			strconv.FormatInt(contact.ID, 10),
			contact.Name,
			contact.Email,
			contact.Role,
		})
	}
	return rows
}

var contactHeaders = []string{"ID", "NAME", "EMAIL", "ROLE"}

func paymentRows(payments []*database.PaymentRecord) [][]string {
	var rows = make([][]string, 0, len(payments))
	for _, payment := range payments {
		rows = append(rows, []string{
			strconv.FormatInt(payment.ID, 10),
			console.Date(payment.Created),
			console.Money(payment.Amount),
			payment.Frequency,
			payment.Plan,
			payment.Type,
		})
	}
	return rows
}

var paymentHeaders = []string{"ID", "DATE", "AMOUNT", "FREQUENCY", "PLAN", "TYPE"}
