package dirt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-dirt/objectstore/memory"
)

func TestStalenessPolicy(t *testing.T) {
	const (
		lockKey = "dirt.lock"
		ttl     = 120 * time.Second
	)

	var (
		created = time.Unix(1000, 0)
		newSut  = func(t *testing.T, now time.Time) *StalenessPolicy {
			var objects = memory.New()
			simulateCrash(t, objects, lockKey, created)
			var opts = []Option{WithLeaseTTL(ttl), WithClock(func() time.Time { return now })}
			return NewStalenessPolicy(NewLeaseStore(objects, lockKey, opts...), opts...)
		}
	)

	t.Run("should judge age against the ttl", func(t *testing.T) {
		var cases = []struct {
			name  string
			now   time.Time
			stale bool
		}{
			{"well within ttl", time.Unix(1050, 0), false},
			{"one second before ttl", created.Add(ttl - time.Second), false},
			{"exactly at ttl", created.Add(ttl), false},
			{"one second after ttl", created.Add(ttl + time.Second), true},
			{"well past ttl", time.Unix(1150, 0), true},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				// Arrange
				var sut = newSut(t, tc.now)

				// Act
				var stale, err = sut.IsStale(context.Background())

				// Assert
				require.NoError(t, err)
				assert.Equal(t, tc.stale, stale)
			})
		}
	})

	t.Run("should report no staleness when no lease exists", func(t *testing.T) {
		// Arrange
		var (
			objects = memory.New()
			sut     = NewStalenessPolicy(NewLeaseStore(objects, lockKey), WithLeaseTTL(ttl))
		)

		// Act
		var status, err = sut.Inspect(context.Background())

		// Assert
		require.NoError(t, err)
		assert.Nil(t, status.Lease)
		assert.False(t, status.Stale)
		assert.Zero(t, status.Remaining())
	})

	t.Run("should report age and remaining time", func(t *testing.T) {
		// Arrange
		var sut = newSut(t, time.Unix(1050, 0))

		// Act
		var status, err = sut.Inspect(context.Background())

		// Assert
		require.NoError(t, err)
		require.NotNil(t, status.Lease)
		assert.Equal(t, 50*time.Second, status.Age)
		assert.Equal(t, 70*time.Second, status.Remaining())
		assert.Equal(t, ttl, sut.TTL())
	})

	t.Run("should never delete the lease", func(t *testing.T) {
		// Arrange
		var (
			objects = newRecordingStore()
			opts    = []Option{WithLeaseTTL(ttl), WithClock(func() time.Time { return time.Unix(5000, 0) })}
		)
		simulateCrash(t, objects, lockKey, created)
		var sut = NewStalenessPolicy(NewLeaseStore(objects, lockKey, opts...), opts...)

		// Act
		var stale, err = sut.IsStale(context.Background())

		// Assert
		require.NoError(t, err)
		assert.True(t, stale)
		assert.Zero(t, objects.count("delete", lockKey))
	})
}
