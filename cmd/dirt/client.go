package main

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"go-dirt/console"
	"go-dirt/database"
)

func newClientCmd(a *app) *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "client",
		Short: "List clients with their first contact and payment totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), a.clientList)
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "new",
			Short: "Add a client and its first contact",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.run(cmd.Context(), a.clientNew)
			},
		},
		&cobra.Command{
			Use:   "edit",
			Short: "Edit a client",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.run(cmd.Context(), a.clientEdit)
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Show a client and its contacts",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.run(cmd.Context(), a.clientShow)
			},
		},
	)

	return cmd
}

func (a *app) clientList(ctx context.Context, db *sql.DB) (bool, error) {
	summaries, err := database.NewQueries(db).ListClientSummaries(ctx)
	if err != nil {
		return false, err
	}

	var rows = make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{
			strconv.FormatInt(s.ID, 10),
			s.Name,
			s.Status,
			s.ContactName,
			s.ContactEmail,
			s.LastPaymentDate,
			console.Money(s.LastPayment),
			strconv.FormatInt(s.Payments, 10),
			console.Money(s.Total),
			s.PaymentType,
			s.Plan,
			s.RecentEvent,
		})
	}
	console.Table(a.stdout, []string{
		"ID", "NAME", "STATUS", "CONTACT", "EMAIL", "LAST PAID", "LAST", "PAYMENTS", "TOTAL", "TYPE", "PLAN", "EVENT",
	}, rows)
	return false, nil
}

func (a *app) clientNew(ctx context.Context, db *sql.DB) (bool, error) {
	c, err := a.prompt()
	if err != nil {
		return false, err
	}

	var f = &form{c: c}
	var client = &database.ClientRecord{
		Name:    f.text("CLIENT_NAME", "Enter client full name", ""),
		Nick:    f.text("CLIENT_NICK", "Enter client Slack nickname", ""),
		Plan:    f.text("CLIENT_PLAN", "Enter client plan (extra, pro)", "extra"),
		Type:    f.text("CLIENT_TYPE", "Enter client type (slack, discord)", "slack"),
		URL:     f.text("CLIENT_URL", "Enter client's website URL", ""),
		Team:    f.text("CLIENT_TEAM", "Enter client's Slack Team ID", ""),
		Created: a.now().UTC(),
		Status:  "active",
	}
	if f.err != nil {
		return false, f.err
	}

	var q = database.NewQueries(db)
	fmt.Fprintln(a.stdout, "Inserting new client:")
	console.Record(a.stdout, clientFields(client)[1:])
	if _, err := q.InsertClient(ctx, client); err != nil {
		return false, err
	}
	if _, err := q.InsertEvent(ctx, &database.EventRecord{ClientID: client.ID, Type: "created", Created: client.Created}); err != nil {
		return false, err
	}

	var contact = &database.ContactRecord{
		ClientID: client.ID,
		Name:     f.text("CONTACT_NAME", "Enter contact full name", ""),
		Email:    f.text("CONTACT_EMAIL", "Enter contact email address", ""),
		Role:     f.text("CONTACT_ROLE", "Enter contact role (payer or blank)", ""),
	}
	if f.err != nil {
		return false, f.err
	}
	fmt.Fprintln(a.stdout, "Inserting new contact:")
	console.Table(a.stdout, contactHeaders[1:], [][]string{contactRows([]*database.ContactRecord{contact})[0][1:]})
	if _, err := q.InsertContact(ctx, contact); err != nil {
		return false, err
	}

	return true, nil
}

func (a *app) clientEdit(ctx context.Context, db *sql.DB) (bool, error) {
	c, err := a.prompt()
	if err != nil {
		return false, err
	}

	var q = database.NewQueries(db)
	client, err := findClient(ctx, c, q)
	if err != nil {
		return false, err
	}
	console.Record(a.stdout, clientFields(client))

	var f = &form{c: c}
	var edited = *client
	edited.Name = f.text("CLIENT_NAME", "Enter client name", client.Name)
	edited.Nick = f.text("CLIENT_NICK", "Enter client nick", client.Nick)
	edited.Plan = f.text("CLIENT_PLAN", "Enter client plan", client.Plan)
	edited.Type = f.text("CLIENT_TYPE", "Enter client type", client.Type)
	edited.URL = f.text("CLIENT_URL", "Enter client url", client.URL)
	edited.Status = f.text("CLIENT_STATUS", "Enter client status", client.Status)
	edited.Team = f.text("CLIENT_TEAM", "Enter client team", client.Team)
	if f.err != nil {
		return false, f.err
	}

	if edited == *client {
		fmt.Fprintln(a.stdout, "No changes.")
		return false, nil
	}

	if _, err := q.UpdateClient(ctx, &edited); err != nil {
		return false, err
	}
	if edited.Status != client.Status {
		if _, err := q.InsertEvent(ctx, &database.EventRecord{ClientID: client.ID, Type: edited.Status, Created: a.now().UTC()}); err != nil {
			return false, err
		}
	}

	updated, err := q.GetClient(ctx, client.ID)
	if err != nil {
		return false, err
	}
	fmt.Fprintln(a.stdout, "Updated client:")
	console.Record(a.stdout, clientFields(updated))
	return true, nil
}

func (a *app) clientShow(ctx context.Context, db *sql.DB) (bool, error) {
	c, err := a.prompt()
	if err != nil {
		return false, err
	}

	var q = database.NewQueries(db)
	client, err := findClient(ctx, c, q)
	if err != nil {
		return false, err
	}
	contacts, err := q.ListContacts(ctx, client.ID)
	if err != nil {
		return false, err
	}

	console.Record(a.stdout, clientFields(client))
	fmt.Fprintln(a.stdout)
	console.Table(a.stdout, contactHeaders, contactRows(contacts))
	return false, nil
}
