package dateutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseMonth(t *testing.T) {
	got, err := ParseMonth("202306")
	require.NoError(t, err)
	assert.Equal(t, date(2023, 6, 1), got)

	for _, bad := range []string{"", "2023-06", "20231", "202313", "abcdef"} {
		_, err := ParseMonth(bad)
		assert.Error(t, err, "Should reject %q", bad)
		assert.False(t, ValidMonth(bad))
	}
}

func TestAddMonthsAcrossYear(t *testing.T) {
	assert.Equal(t, "202501", AddMonths("202412", 1))
	assert.Equal(t, "202412", PrevMonth("202501"))
	assert.Equal(t, "202301", AddMonths("202412", -23))
	assert.Equal(t, "bogus", AddMonths("bogus", 1))
}

func TestMonthRange(t *testing.T) {
	months, err := MonthRange("202311", "202402")
	require.NoError(t, err)
	assert.Equal(t, []string{"202311", "202312", "202401", "202402"}, months)

	empty, err := MonthRange("202402", "202311")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMonthsBetween(t *testing.T) {
	assert.Equal(t, 0, MonthsBetween(date(2023, 6, 15), date(2023, 6, 1)))
	assert.Equal(t, 13, MonthsBetween(date(2023, 6, 1), date(2024, 7, 31)))

	n, err := MonthKeysBetween("202412", "202311")
	require.NoError(t, err)
	assert.Equal(t, -13, n)
}

func TestDaysAndOverlap(t *testing.T) {
	assert.Equal(t, 365, DaysInclusive(date(2023, 6, 1), date(2024, 5, 30)))
	assert.Equal(t, 1, DaysInclusive(date(2023, 6, 1), date(2023, 6, 1)))
	assert.Equal(t, 0, DaysInclusive(date(2023, 6, 2), date(2023, 6, 1)))

	june := date(2023, 6, 1)
	assert.Equal(t, 30, OverlapDays(june, date(2023, 1, 1), date(2024, 1, 1)))
	assert.Equal(t, 16, OverlapDays(june, date(2023, 6, 15), date(2024, 1, 1)))
	assert.Equal(t, 10, OverlapDays(june, date(2023, 1, 1), date(2023, 6, 10)))
	assert.Equal(t, 0, OverlapDays(june, date(2023, 7, 1), date(2024, 1, 1)))
	assert.Equal(t, 29, OverlapDays(date(2024, 2, 1), date(2024, 1, 1), date(2025, 1, 1)))
}

func TestMaxMonth(t *testing.T) {
	assert.Equal(t, "202412", MaxMonth("202306", "202412"))
	assert.Equal(t, "202501", MaxMonth("202501", "202412"))
}
