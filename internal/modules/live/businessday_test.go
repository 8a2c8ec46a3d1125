package live

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsBusinessDay(t *testing.T) {
	friday := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	saturday := time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC)
	monday := time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC)

	assert.True(t, isBusinessDay(friday))
	assert.False(t, isBusinessDay(saturday))
	assert.True(t, isBusinessDay(monday))
}

func TestBusinessDaysBetweenSkipsWeekend(t *testing.T) {
	// Friday 2024-03-15 to Monday 2024-03-18: only Monday counts.
	days, err := businessDaysBetween("2024-03-15", "2024-03-18")
	require.NoError(t, err)
	assert.Equal(t, 1, days)
}

func TestBusinessDaysBetweenSameDay(t *testing.T) {
	days, err := businessDaysBetween("2024-03-15", "2024-03-15")
	require.NoError(t, err)
	assert.Equal(t, 0, days)
}
