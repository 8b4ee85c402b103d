package testutil

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reactor/internal/value"
)

// AssertGolden compares the canonical JSON of v with
// testdata/golden/{name}.golden in the calling package.
//
// To regenerate golden files, run the test with -update.
func AssertGolden(t *testing.T, name string, v any) {
	t.Helper()

	data, err := value.Marshal(v)
	require.NoError(t, err, "golden value must encode as canonical JSON")

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}
