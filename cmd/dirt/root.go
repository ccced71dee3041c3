package main

import (
	"github.com/spf13/cobra"

	"go-dirt/config"
)

func newRootCmd(a *app) *cobra.Command {
	var rootCmd = &cobra.Command{
		Use:   "dirt",
		Short: "Manage clients, contacts and payments in a shared database",
		Long: `Dirt keeps a small SQLite database in an object storage bucket.
Each command takes a lease on the bucket, downloads the database, runs,
uploads it again if anything changed (after backing up the previous copy)
and releases the lease. Only one command can hold the lease at a time.

Settings come from flags, DIRT_* environment variables or --config.
Prompts can be answered ahead of time through environment variables
such as CLIENT, CLIENT_NAME or PAYMENT_AMOUNT.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Context())
		},
	}

	var flags = rootCmd.PersistentFlags()
	config.RegisterFlags(flags)
	flags.BoolVar(&a.clearStale, "clear-stale", false, "remove an abandoned lease (older than lock-ttl) before acquiring")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log at debug level")
	if err := config.BindFlags(a.v, flags); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		newClientCmd(a),
		newPaymentCmd(a),
		newContactCmd(a),
		newInitCmd(a),
		newLockCmd(a),
		newImportCmd(a),
	)

	return rootCmd
}
