package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"go-dirt/console"
	"go-dirt/database"
)

var errNoPayments = errors.New("client has no payments")

func newPaymentCmd(a *app) *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "payment",
		Short: "Record and inspect client payments",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "new",
			Short: "Record a payment, defaulting to the client's last one",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.run(cmd.Context(), a.paymentNew)
			},
		},
		&cobra.Command{
			Use:   "edit",
			Short: "Correct one of a client's payments",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.run(cmd.Context(), a.paymentEdit)
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "List a client's payments",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.run(cmd.Context(), a.paymentShow)
			},
		},
	)

	return cmd
}

func (a *app) paymentNew(ctx context.Context, db *sql.DB) (bool, error) {
	c, err := a.prompt()
	if err != nil {
		return false, err
	}

	var q = database.NewQueries(db)
	client, err := findClient(ctx, c, q)
	if err != nil {
		return false, err
	}
	payments, err := q.ListPayments(ctx, client.ID)
	if err != nil {
		return false, err
	}
	console.Record(a.stdout, clientFields(client))
	fmt.Fprintln(a.stdout)
	console.Table(a.stdout, paymentHeaders, paymentRows(payments))

	var defaults = &database.PaymentRecord{}
	if len(payments) > 0 {
		defaults = payments[len(payments)-1]
	}

	var f = &form{c: c}
	var payment = &database.PaymentRecord{
		ClientID:  client.ID,
		Amount:    f.amount("PAYMENT_AMOUNT", "Enter payment amount", defaults.Amount),
		Frequency: f.text("PAYMENT_FREQ", "Enter payment frequency (monthly, yearly)", defaults.Frequency),
		Plan:      f.text("PAYMENT_PLAN", "Enter payment plan (extra_9, pro_49)", defaults.Plan),
		Type:      f.text("PAYMENT_TYPE", "Enter payment type (stripe, paypal, bmac)", defaults.Type),
		Created:   a.now().UTC(),
	}
	if f.err != nil {
		return false, f.err
	}

	fmt.Fprintln(a.stdout, "New payment:")
	console.Table(a.stdout, paymentHeaders[1:], [][]string{paymentRows([]*database.PaymentRecord{payment})[0][1:]})
	if _, err := q.InsertPayment(ctx, payment); err != nil {
		return false, err
	}
	if _, err := q.InsertEvent(ctx, &database.EventRecord{ClientID: client.ID, Type: "payment", Created: payment.Created}); err != nil {
		return false, err
	}
	return true, nil
}

func (a *app) paymentEdit(ctx context.Context, db *sql.DB) (bool, error) {
	c, err := a.prompt()
	if err != nil {
		return false, err
	}

	var q = database.NewQueries(db)
	client, err := findClient(ctx, c, q)
	if err != nil {
		return false, err
	}
	payments, err := q.ListPayments(ctx, client.ID)
	if err != nil {
		return false, err
	}
	if len(payments) == 0 {
		return false, fmt.Errorf("%w: %s", errNoPayments, client.Nick)
	}

	var labels = make([]string, len(payments))
	for i, p := range payments {
		labels[i] = fmt.Sprintf("%s %s %s %s", console.Date(p.Created), console.Money(p.Amount), p.Frequency, p.Plan)
	}
	index, err := c.Choose("Choose a payment", labels)
	if err != nil {
		return false, err
	}

	var current = payments[index]
	var f = &form{c: c}
	var edited = *current
	edited.Amount = f.amount("PAYMENT_AMOUNT", "Enter payment amount", current.Amount)
	edited.Frequency = f.text("PAYMENT_FREQ", "Enter payment frequency", current.Frequency)
	edited.Plan = f.text("PAYMENT_PLAN", "Enter payment plan", current.Plan)
	edited.Type = f.text("PAYMENT_TYPE", "Enter payment type", current.Type)
	if f.err != nil {
		return false, f.err
	}

	if edited == *current {
		fmt.Fprintln(a.stdout, "No changes.")
		return false, nil
	}
	if _, err := q.UpdatePayment(ctx, &edited); err != nil {
		return false, err
	}

	fmt.Fprintln(a.stdout, "Updated payment:")
	console.Table(a.stdout, paymentHeaders, paymentRows([]*database.PaymentRecord{&edited}))
	return true, nil
}

func (a *app) paymentShow(ctx context.Context, db *sql.DB) (bool, error) {
	c, err := a.prompt()
	if err != nil {
		return false, err
	}

	var q = database.NewQueries(db)
	client, err := findClient(ctx, c, q)
	if err != nil {
		return false, err
	}
	payments, err := q.ListPayments(ctx, client.ID)
	if err != nil {
		return false, err
	}

	var total float64
	for _, p := range payments {
		total += p.Amount
	}
	fmt.Fprintf(a.stdout, "Payments of %s (%d):\n", client.Name, client.ID)
	console.Table(a.stdout, paymentHeaders, paymentRows(payments))
	fmt.Fprintf(a.stdout, "Total: %s over %d payments\n", console.Money(total), len(payments))
	return false, nil
}
