package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"go-dirt/config"
	"go-dirt/database"
)

const keyLegacyURL = "legacy-url"

var errNoLegacyURL = errors.New("no legacy database url")

func newImportCmd(a *app) *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "import",
		Short: "Copy every row from the legacy Postgres database",
		Long: `Import copies clients, contacts, payments and events from the Postgres
database the tool used before, keeping their ids. The target database must
not contain any clients yet.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var connURL = a.v.GetString(keyLegacyURL)
			if connURL == "" {
				return &ExitError{
					Code:    exitConfig,
					Message: "configuration error",
					Err:     fmt.Errorf("%w: set --%s or %s", errNoLegacyURL, keyLegacyURL, config.EnvName(keyLegacyURL)),
				}
			}
			return a.run(cmd.Context(), func(ctx context.Context, db *sql.DB) (bool, error) {
				return a.importLegacy(ctx, db, connURL)
			})
		},
	}

	cmd.Flags().String(keyLegacyURL, "", "postgres connection url of the legacy database")
	if err := a.v.BindPFlag(keyLegacyURL, cmd.Flags().Lookup(keyLegacyURL)); err != nil {
		panic(err)
	}

	return cmd
}

func (a *app) importLegacy(ctx context.Context, db *sql.DB, connURL string) (bool, error) {
	legacy, err := database.OpenLegacy(ctx, connURL)
	if err != nil {
		return false, err
	}
	defer legacy.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin import: %w", err)
	}
	defer tx.Rollback()

	stats, err := database.ImportLegacy(ctx, legacy, tx)
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit import: %w", err)
	}

	fmt.Fprintf(a.stdout, "Imported %d clients, %d contacts, %d payments and %d events.\n",
		stats.Clients, stats.Contacts, stats.Payments, stats.Events)
	return stats.Total() > 0, nil
}
