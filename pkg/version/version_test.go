package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncrement(t *testing.T) {
	tests := []struct {
		name     string
		version  string
		level    Level
		expected string
	}{
		{"patch bump", "1.2.3", Patch, "1.2.4"},
		{"minor bump resets patch", "1.2.3", Minor, "1.3.0"},
		{"major bump resets minor and patch", "1.2.3", Major, "2.0.0"},
		{"patch from baseline", "1.0.0", Patch, "1.0.1"},
		{"malformed defaults to baseline before bump", "not-a-version", Patch, "1.0.1"},
		{"empty defaults to baseline before bump", "", Minor, "1.1.0"},
		{"two components defaults to baseline", "1.2", Major, "2.0.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Increment(tt.version, tt.level))
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "1.2.3", Normalize("1.2.3"))
	assert.Equal(t, "1.2.3", Normalize(" 1.2.3 "))
	assert.Equal(t, Baseline, Normalize("garbage"))
	assert.Equal(t, Baseline, Normalize(""))
}

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"patch", "minor", "major"} {
		level, err := ParseLevel(s)
		require.NoError(t, err)
		assert.Equal(t, s, level.String())
	}

	level, err := ParseLevel("MAJOR")
	require.NoError(t, err)
	assert.Equal(t, Major, level)

	_, err = ParseLevel("catastrophic")
	assert.Error(t, err)
}

func TestLevelOrdering(t *testing.T) {
	assert.True(t, Patch < Minor)
	assert.True(t, Minor < Major)
}

func TestCompare(t *testing.T) {
	assert.Equal(t, -1, Compare("1.0.0", "1.0.1"))
	assert.Equal(t, 0, Compare("2.1.0", "2.1.0"))
	assert.Equal(t, 1, Compare("2.0.0", "1.9.9"))
	// Malformed inputs normalize to the baseline.
	assert.Equal(t, 0, Compare("junk", "1.0.0"))
}

func TestLevelYAMLRoundTrip(t *testing.T) {
	out, err := Major.MarshalYAML()
	require.NoError(t, err)
	assert.Equal(t, "major", out)

	var l Level
	err = l.UnmarshalYAML(func(v interface{}) error {
		*(v.(*string)) = "minor"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, Minor, l)
}
