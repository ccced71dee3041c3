package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	dirt "go-dirt"
	"go-dirt/console"
	"go-dirt/objectstore"
)

func newLockCmd(a *app) *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "lock",
		Short: "Inspect or remove the lease guarding the database",
	}

	var (
		yes   bool
		force bool
	)
	var releaseCmd = &cobra.Command{
		Use:   "release",
		Short: "Remove the lease by hand",
		Long: `Release deletes the lock object. A lease younger than lock-ttl is
refused unless --force is given, since its session may still be running.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.lockRelease(cmd.Context(), yes, force)
		},
	}
	releaseCmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	releaseCmd.Flags().BoolVar(&force, "force", false, "release a lease that is not stale yet")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Show the lease and the canonical database",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.lockStatus(cmd.Context())
			},
		},
		releaseCmd,
	)

	return cmd
}

func (a *app) leaseComponents() (*dirt.LeaseStore, *dirt.StalenessPolicy) {
	var opts = a.sessionOptions()
	var leases = dirt.NewLeaseStore(a.objects, a.cfg.LockKey, opts...)
	return leases, dirt.NewStalenessPolicy(leases, opts...)
}

func (a *app) lockStatus(ctx context.Context) error {
	var _, policy = a.leaseComponents()
	status, err := policy.Inspect(ctx)
	if err != nil {
		return classify(err, false)
	}

	var now = a.now()
	var fields = [][2]string{{"lease", a.location(a.cfg.LockKey)}}
	if status.Lease == nil {
		fields = append(fields, [2]string{"state", "free"})
	} else {
		var state = "held"
		if status.Stale {
			state = "stale"
		}
		fields = append(fields,
			[2]string{"state", state},
			[2]string{"holder", status.Lease.Holder},
			[2]string{"acquired", fmt.Sprintf("%s (%s)", status.Lease.CreatedAt.UTC().Format(time.RFC3339), console.Ago(status.Lease.CreatedAt, now))},
			[2]string{"ttl", status.TTL.String()},
		)
		if !status.Stale {
			fields = append(fields, [2]string{"stale in", status.Remaining().Round(time.Second).String()})
		}
	}

	info, err := a.objects.Head(ctx, a.cfg.DBKey)
	switch {
	case errors.Is(err, objectstore.ErrNotFound):
		fields = append(fields, [2]string{"database", "missing, run 'dirt init'"})
	case err != nil:
		return classify(err, false)
	default:
		fields = append(fields,
			[2]string{"database", a.location(a.cfg.DBKey)},
			[2]string{"size", console.Size(info.Size)},
			[2]string{"modified", fmt.Sprintf("%s (%s)", console.Date(info.LastModified), console.Ago(info.LastModified, now))},
		)
	}

	console.Record(a.stdout, fields)
	return nil
}

func (a *app) lockRelease(ctx context.Context, yes, force bool) error {
	var leases, policy = a.leaseComponents()
	status, err := policy.Inspect(ctx)
	if err != nil {
		return classify(err, false)
	}
	if status.Lease == nil {
		fmt.Fprintln(a.stdout, "No lease is held.")
		return nil
	}

	if !status.Stale && !force {
		return &ExitError{
			Code: exitTempFail,
			Message: fmt.Sprintf("the lease held by %s is %s old and not stale for another %s; pass --force to release it anyway",
				status.Lease.Holder, status.Age.Round(time.Second), status.Remaining().Round(time.Second)),
		}
	}

	if !yes {
		c, err := a.prompt()
		if err != nil {
			return classify(err, false)
		}
		ok, err := c.Confirm(fmt.Sprintf("Release the lease held by %s?", status.Lease.Holder))
		if err != nil {
			return classify(err, false)
		}
		if !ok {
			return classify(console.ErrAborted, false)
		}
	}

	cleared, err := leases.Clear(ctx, status.Lease)
	if err != nil {
		return classify(err, false)
	}
	if !cleared {
		return &ExitError{
			Code:    exitTempFail,
			Message: fmt.Sprintf("the lease held by %s was replaced while waiting; nothing was released", status.Lease.Holder),
		}
	}
	a.logger.Warn("lease released by hand", "key", leases.Key(), "holder", status.Lease.Holder, "stale", status.Stale)
	fmt.Fprintf(a.stdout, "Released lease held by %s.\n", status.Lease.Holder)
	return nil
}
