package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("2025-03")
	require.NoError(t, err)
	require.Equal(t, Period("2025-03"), p)

	for _, raw := range []string{"", "2025", "2025-13", "2025/03", "03-2025"} {
		_, err := ParsePeriod(raw)
		require.ErrorIs(t, err, ErrInvalidPeriod, "input %q", raw)
	}
}

func TestPeriodBounds(t *testing.T) {
	p := Period("2025-03")
	require.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), p.Start())
	require.Equal(t, time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), p.End())

	// February across a leap year boundary.
	require.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), Period("2024-02").End())
	require.Equal(t, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), Period("2025-02").End())
}

func TestPeriodOfAndContains(t *testing.T) {
	date := time.Date(2025, 3, 15, 10, 30, 0, 0, time.UTC)
	p := PeriodOf(date)
	require.Equal(t, Period("2025-03"), p)
	require.True(t, p.Contains(date))
	require.False(t, p.Contains(date.AddDate(0, 1, 0)))
}
