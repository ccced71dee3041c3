package dirt

import (
	"fmt"
	"time"
)

// Lease is the lock object as seen through its metadata.
type Lease struct {
	Key       string
	Holder    string
	CreatedAt time.Time // whole seconds, as stored
	ETag      string    // identifies this particular lease object
}

// LeaseStatus is a lease together with the staleness verdict at a point in time.
type LeaseStatus struct {
	Lease *Lease // nil when no lease exists
	Age   time.Duration
	TTL   time.Duration
	Stale bool
}

// Remaining returns how long until the lease would be considered stale.
func (s *LeaseStatus) Remaining() time.Duration {
	if s == nil || s.Lease == nil || s.Stale {
		return 0
	}
	return s.TTL - s.Age
}

// State is a step of the session lifecycle.
type State int

const (
	StateIdle State = iota
	StateAcquiring
	StateAcquired
	StateDenied
	StateFetching
	StateRunning
	StateSyncing
	StateSkipSync
	StateReleasing
	StateDone
)

var stateNames = [...]string{
	StateIdle:      "IDLE",
	StateAcquiring: "ACQUIRING",
	StateAcquired:  "ACQUIRED",
	StateDenied:    "DENIED",
	StateFetching:  "FETCHING",
	StateRunning:   "RUNNING",
	StateSyncing:   "SYNCING",
	StateSkipSync:  "SKIP_SYNC",
	StateReleasing: "RELEASING",
	StateDone:      "DONE",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}
