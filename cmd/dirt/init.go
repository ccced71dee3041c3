package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create an empty database in the bucket",
		Long: `Init creates an empty database with the current schema and uploads it
as the canonical copy. It never overwrites an existing database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var session = a.newSession()
			created, err := session.Seed(cmd.Context())
			if err != nil {
				return classify(err, session.Synced())
			}

			if !created {
				fmt.Fprintf(a.stdout, "Database already exists at %s, nothing was changed.\n", a.location(a.cfg.DBKey))
				return nil
			}
			fmt.Fprintf(a.stdout, "Created empty database at %s.\n", a.location(a.cfg.DBKey))
			return nil
		},
	}
}
