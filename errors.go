package dirt

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrLeaseHeld is matched when another session holds the lease.
	ErrLeaseHeld = errors.New("lease is held by another session")

	// ErrLeaseStale is matched when the lease held by another session has outlived its TTL.
	ErrLeaseStale = errors.New("lease is stale")

	// ErrReplicaNotFound is returned when the canonical database object does not exist.
	ErrReplicaNotFound = errors.New("canonical replica not found")

	// ErrBackupFailed is returned when the pre-store backup could not be taken.
	ErrBackupFailed = errors.New("backup failed")

	// ErrHandlerPanic is returned when the command handler panicked.
	ErrHandlerPanic = errors.New("command handler panicked")
)

// DeniedError reports a failed acquisition together with what is known
// about the lease that blocked it.
type DeniedError struct {
	Key    string
	Status *LeaseStatus
}

func (e *DeniedError) Error() string {
	if e.Status == nil || e.Status.Lease == nil {
		return fmt.Sprintf("lease %q is held by another session", e.Key)
	}
	var lease = e.Status.Lease
	if e.Status.Stale {
		return fmt.Sprintf("lease %q held by %s is stale (age %s exceeds ttl %s)",
			e.Key, lease.Holder, e.Status.Age.Round(time.Second), e.Status.TTL)
	}
	return fmt.Sprintf("lease %q is held by %s (age %s, ttl %s)",
		e.Key, lease.Holder, e.Status.Age.Round(time.Second), e.Status.TTL)
}

// Is matches ErrLeaseHeld always and ErrLeaseStale when the lease is stale.
func (e *DeniedError) Is(target error) bool {
	switch target {
	case ErrLeaseHeld:
		return true
	case ErrLeaseStale:
		return e.Status != nil && e.Status.Stale
	}
	return false
}
