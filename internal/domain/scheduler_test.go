package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/integrations-dispatch/internal/domain"
	apperrors "github.com/target/integrations-dispatch/internal/errors"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

func TestShouldFire_Hourly(t *testing.T) {
	last := mustTime(t, "2025-01-01T10:00:00Z")

	fire, err := domain.ShouldFire("0 * * * *", &last, mustTime(t, "2025-01-01T10:59:00Z"))
	require.NoError(t, err)
	assert.False(t, fire)

	fire, err = domain.ShouldFire("0 * * * *", &last, mustTime(t, "2025-01-01T11:00:00Z"))
	require.NoError(t, err)
	assert.True(t, fire)
}

func TestShouldFire_NeverScheduledFiresImmediately(t *testing.T) {
	fire, err := domain.ShouldFire("0 0 1 1 *", nil, mustTime(t, "2025-06-01T12:00:00Z"))
	require.NoError(t, err)
	assert.True(t, fire)
}

func TestShouldFire_FiresOnceAfterDowntime(t *testing.T) {
	// Three occurrences were missed; a single firing resynchronizes.
	last := mustTime(t, "2025-01-01T10:00:00Z")
	now := mustTime(t, "2025-01-01T13:30:00Z")

	fire, err := domain.ShouldFire("0 * * * *", &last, now)
	require.NoError(t, err)
	require.True(t, fire)

	// Enqueue stamps last_scheduled_at=now; the next occurrence is 14:00.
	fire, err = domain.ShouldFire("0 * * * *", &now, mustTime(t, "2025-01-01T13:59:59Z"))
	require.NoError(t, err)
	assert.False(t, fire)

	fire, err = domain.ShouldFire("0 * * * *", &now, mustTime(t, "2025-01-01T14:00:00Z"))
	require.NoError(t, err)
	assert.True(t, fire)
}

func TestShouldFire_Descriptor(t *testing.T) {
	last := mustTime(t, "2025-01-01T10:00:00Z")
	fire, err := domain.ShouldFire("@every 15m", &last, mustTime(t, "2025-01-01T10:15:00Z"))
	require.NoError(t, err)
	assert.True(t, fire)
}

func TestShouldFire_InvalidExpression(t *testing.T) {
	last := mustTime(t, "2025-01-01T10:00:00Z")
	for _, expr := range []string{"", "not a cron", "61 * * * *", "* * * * * *"} {
		t.Run(expr, func(t *testing.T) {
			fire, err := domain.ShouldFire(expr, &last, last.Add(time.Hour))
			require.Error(t, err)
			assert.False(t, fire)
			assert.True(t, apperrors.IsScheduling(err))
		})
	}
}

func TestValidateSchedule(t *testing.T) {
	require.NoError(t, domain.ValidateSchedule("*/5 * * * *"))
	require.NoError(t, domain.ValidateSchedule("@daily"))
	require.Error(t, domain.ValidateSchedule("*/5 * *"))
}
