package main

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dirt "go-dirt"
	"go-dirt/config"
	"go-dirt/console"
)

func TestClassify(t *testing.T) {
	var held = &dirt.DeniedError{
		Key: "dirt.lock",
		Status: &dirt.LeaseStatus{
			Lease: &dirt.Lease{Key: "dirt.lock", Holder: "host/1/abc"},
			Age:   30 * time.Second,
			TTL:   2 * time.Minute,
		},
	}
	var stale = &dirt.DeniedError{
		Key: "dirt.lock",
		Status: &dirt.LeaseStatus{
			Lease: &dirt.Lease{Key: "dirt.lock", Holder: "host/1/abc"},
			Age:   10 * time.Minute,
			TTL:   2 * time.Minute,
			Stale: true,
		},
	}
	var almostStale = &dirt.DeniedError{
		Key: "dirt.lock",
		Status: &dirt.LeaseStatus{
			Lease: &dirt.Lease{Key: "dirt.lock"},
			Age:   119 * time.Second,
			TTL:   2 * time.Minute,
		},
	}

	var cases = []struct {
		name     string
		err      error
		synced   bool
		code     int
		contains string
	}{
		{"held lease", fmt.Errorf("wrapped: %w", held), false, exitTempFail, "retry in about 1m30s"},
		{"held lease without status", &dirt.DeniedError{Key: "dirt.lock"}, false, exitTempFail, "retry in about 5s"},
		{"lease about to go stale", almostStale, false, exitTempFail, "retry in about 5s"},
		{"stale lease", stale, false, exitTempFail, "--clear-stale"},
		{"unwrapped lease sentinel", dirt.ErrLeaseHeld, false, exitFailure, "operation failed"},
		{"configuration", fmt.Errorf("%w: missing bucket", config.ErrInvalid), false, exitConfig, "missing bucket"},
		{"replica missing", dirt.ErrReplicaNotFound, false, exitFailure, "dirt init"},
		{"aborted prompt", console.ErrAborted, false, exitFailure, "aborted, nothing was changed"},
		{"handler failure", errors.New("boom"), false, exitFailure, "operation failed, nothing was changed: boom"},
		{"release failed after sync", errors.New("delete denied"), true, exitFailure, "changes were saved"},
	}

	for _, tc := range cases {
		t.Run("should classify "+tc.name, func(t *testing.T) {
			// Act
			var err = classify(tc.err, tc.synced)

			// Assert
			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, tc.code, exitErr.Code)
			assert.Contains(t, exitErr.Error(), tc.contains)
		})
	}

	t.Run("should pass nil through", func(t *testing.T) {
		assert.NoError(t, classify(nil, true))
	})

	t.Run("should keep an existing exit error", func(t *testing.T) {
		// Arrange
		var original = &ExitError{Code: exitConfig, Message: "bad"}

		// Act
		var err = classify(fmt.Errorf("outer: %w", original), false)

		// Assert
		assert.Same(t, original, err)
	})

	t.Run("should keep the cause reachable", func(t *testing.T) {
		// Act
		var err = classify(fmt.Errorf("fetch: %w", dirt.ErrReplicaNotFound), false)

		// Assert
		assert.ErrorIs(t, err, dirt.ErrReplicaNotFound)
	})
}
