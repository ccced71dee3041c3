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

var errDuplicateContact = errors.New("a contact with that email already exists")

func newContactCmd(a *app) *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "contact",
		Short: "Manage client contacts",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "new",
		Short: "Add a contact to a client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), a.contactNew)
		},
	})

	return cmd
}

func (a *app) contactNew(ctx context.Context, db *sql.DB) (bool, error) {
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
	var contact = &database.ContactRecord{
		ClientID: client.ID,
		Name:     f.text("CONTACT_NAME", "Enter contact name", ""),
		Email:    f.text("CONTACT_EMAIL", "Enter contact email", ""),
		Role:     f.text("CONTACT_ROLE", "Enter contact role", ""),
	}
	if f.err != nil {
		return false, f.err
	}

	if contact.Email != "" {
		existing, err := q.FindContactByEmail(ctx, contact.Email)
		if err != nil {
			return false, err
		}
		if existing != nil {
			return false, fmt.Errorf("%w: %s (contact %d of client %d)", errDuplicateContact, contact.Email, existing.ID, existing.ClientID)
		}
	}

	fmt.Fprintln(a.stdout, "New contact:")
	console.Table(a.stdout, contactHeaders[1:], [][]string{contactRows([]*database.ContactRecord{contact})[0][1:]})
	if _, err := q.InsertContact(ctx, contact); err != nil {
		return false, err
	}
	return true, nil
}
