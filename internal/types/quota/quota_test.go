package quota

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayFor_UsesReferenceZone(t *testing.T) {
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	// 20:00 UTC is already the next day in Kolkata (UTC+05:30).
	instant := time.Date(2026, 3, 9, 20, 0, 0, 0, time.UTC)

	assert.Equal(t, "2026-03-09", DayFor(instant, time.UTC))
	assert.Equal(t, "2026-03-10", DayFor(instant, kolkata))
	assert.Equal(t, "2026-03-09", DayFor(instant, nil))
}

func TestDayFor_IgnoresInputZone(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	utc := time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC)
	sameInstantNY := utc.In(ny)

	assert.Equal(t, DayFor(utc, time.UTC), DayFor(sameInstantNY, time.UTC))
}

func TestRemaining(t *testing.T) {
	assert.Equal(t, 4, Remaining(5, 1))
	assert.Equal(t, 0, Remaining(5, 5))
	assert.Equal(t, 0, Remaining(5, 7))
}
