package posting

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

// The fakes in service_test.go never touch the DDL, so drift between the
// persisted constants and the schema's CHECK lists would only surface in a
// real deployment. Guard the alignment here.
func TestSchemaAcceptsPersistedDirections(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("..", "..", "scripts", "schema.sql"))
	require.NoError(t, err)

	re := regexp.MustCompile(`CHECK \(direction IN \(([^)]+)\)\)`)
	match := re.FindStringSubmatch(string(raw))
	require.NotNil(t, match, "vouchers.direction CHECK constraint not found in schema")

	for _, direction := range []Direction{DirectionInbound, DirectionOutbound} {
		require.Contains(t, match[1], `'`+string(direction)+`'`,
			"schema CHECK rejects persisted direction %q", direction)
	}
}
