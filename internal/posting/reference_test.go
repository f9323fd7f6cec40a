package posting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReferenceString(t *testing.T) {
	date := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

	purchase := Reference{Direction: DirectionInbound, Date: date, Number: 7}
	require.Equal(t, "매입-20250303-7", purchase.String())

	shipment := Reference{Direction: DirectionOutbound, Date: date, Number: 12}
	require.Equal(t, "출고-20250303-12", shipment.String())
}

func TestParseReferenceRoundTrip(t *testing.T) {
	original := Reference{
		Direction: DirectionOutbound,
		Date:      time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		Number:    450,
	}
	parsed, err := ParseReference(original.String())
	require.NoError(t, err)
	require.Equal(t, original.Direction, parsed.Direction)
	require.True(t, original.Date.Equal(parsed.Date))
	require.Equal(t, original.Number, parsed.Number)
}

func TestParseReferenceRejectsMalformedInput(t *testing.T) {
	cases := []string{
		"",
		"매입",
		"매입-20250303",
		"환불-20250303-7",  // unknown label
		"매입-2025033-7",   // bad date
		"매입-20250303-xy", // bad number
		"매입-20250303-0",  // number must be positive
	}
	for _, raw := range cases {
		_, err := ParseReference(raw)
		require.Error(t, err, "input %q", raw)
	}
}
