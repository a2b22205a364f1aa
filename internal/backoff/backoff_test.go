package backoff_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sigilindex/migrator/internal/backoff"
)

func TestExponentialBackoff_Duration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		bo       *backoff.ExponentialBackoff
		retries  int
		expected time.Duration
	}{
		{"first retry returns the base interval", &backoff.ExponentialBackoff{Interval: 30 * time.Second, Base: 2}, 0, 30 * time.Second},
		{"base 2 doubles each retry", &backoff.ExponentialBackoff{Interval: 30 * time.Second, Base: 2}, 3, 240 * time.Second},
		{"base 3 triples each retry", &backoff.ExponentialBackoff{Interval: 30 * time.Second, Base: 3}, 3, 810 * time.Second},
		{"negative retries clamp to the base interval", &backoff.ExponentialBackoff{Interval: 30 * time.Second, Base: 2}, -1, 30 * time.Second},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.bo.Duration(tc.retries))
		})
	}
}

func TestConstantBackoff_Duration(t *testing.T) {
	t.Parallel()

	bo := &backoff.ConstantBackoff{Interval: 30 * time.Second}
	for _, retries := range []int{0, 1, 5, 100} {
		assert.Equal(t, 30*time.Second, bo.Duration(retries))
	}
}

func TestScheduledBackoff_Duration(t *testing.T) {
	t.Parallel()

	t.Run("follows the schedule then clamps to the last entry", func(t *testing.T) {
		bo := &backoff.ScheduledBackoff{
			Schedule: []time.Duration{5 * time.Second, time.Minute, 10 * time.Minute, time.Hour},
		}
		assert.Equal(t, 5*time.Second, bo.Duration(0))
		assert.Equal(t, time.Minute, bo.Duration(1))
		assert.Equal(t, time.Hour, bo.Duration(3))
		assert.Equal(t, time.Hour, bo.Duration(100), "beyond the schedule, the last entry is reused")
	})

	t.Run("negative retries clamp to the first entry", func(t *testing.T) {
		bo := &backoff.ScheduledBackoff{Schedule: []time.Duration{5 * time.Second, time.Minute}}
		assert.Equal(t, 5*time.Second, bo.Duration(-3))
	})

	t.Run("a single-entry schedule always returns that entry", func(t *testing.T) {
		bo := &backoff.ScheduledBackoff{Schedule: []time.Duration{time.Minute}}
		assert.Equal(t, time.Minute, bo.Duration(0))
		assert.Equal(t, time.Minute, bo.Duration(5))
	})

	t.Run("an empty schedule always waits zero", func(t *testing.T) {
		bo := &backoff.ScheduledBackoff{}
		assert.Equal(t, time.Duration(0), bo.Duration(0))
		assert.Equal(t, time.Duration(0), bo.Duration(5))
	})
}
