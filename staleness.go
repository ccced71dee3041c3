package dirt

import (
	"context"
	"time"
)

// StalenessPolicy judges whether an existing lease has been abandoned.
// It only reports; it never releases anything.
type StalenessPolicy struct {
	leases  *LeaseStore
	options options
}

// NewStalenessPolicy creates a policy over the given lease store.
// The TTL comes from WithLeaseTTL.
func NewStalenessPolicy(leases *LeaseStore, opts ...Option) *StalenessPolicy {
	return &StalenessPolicy{
		leases:  leases,
		options: applyOptions(opts),
	}
}

// TTL returns the configured lease time-to-live.
func (p *StalenessPolicy) TTL() time.Duration {
	return p.options.leaseTTL
}

// IsStale reports whether the lease is older than the TTL.
// No lease means nothing is stale.
func (p *StalenessPolicy) IsStale(ctx context.Context) (bool, error) {
	var status, err = p.Inspect(ctx)
	if err != nil {
		return false, err
	}
	return status.Stale, nil
}

// Inspect reads the lease and evaluates it against the TTL.
func (p *StalenessPolicy) Inspect(ctx context.Context) (*LeaseStatus, error) {
	var lease, err = p.leases.ReadMetadata(ctx)
	if err != nil {
		return nil, err
	}

	var status = &LeaseStatus{Lease: lease, TTL: p.options.leaseTTL}
	if lease == nil {
		return status, nil
	}

	status.Age = p.options.now().Sub(lease.CreatedAt)
	status.Stale = status.Age > p.options.leaseTTL
	return status, nil
}
