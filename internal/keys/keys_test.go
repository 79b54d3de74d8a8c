package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	key, err := Build("packages", "pkg-42", "detail")
	require.NoError(t, err)
	assert.Equal(t, "packages:pkg-42:detail", key)
}

func TestBuild_NoParts(t *testing.T) {
	key, err := Build("stats")
	require.NoError(t, err)
	assert.Equal(t, "stats", key)
}

func TestBuild_RejectsSeparatorInPart(t *testing.T) {
	_, err := Build("packages", "bad:part")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidKeyPart)
}

func TestBuildList_FilterOrderIndependence(t *testing.T) {
	// Maps iterate in random order; build repeatedly to exercise it.
	for i := 0; i < 32; i++ {
		a := BuildList("packages", 1, 20, map[string]any{"author": "ada", "minStars": 3, "lang": "go"})
		b := BuildList("packages", 1, 20, map[string]any{"lang": "go", "minStars": 3, "author": "ada"})
		assert.Equal(t, a, b)
	}
}

func TestBuildList_PageNeverCollides(t *testing.T) {
	filters := map[string]any{"lang": "go"}
	page1 := BuildList("packages", 1, 20, filters)
	page2 := BuildList("packages", 2, 20, filters)
	assert.NotEqual(t, page1, page2)

	size20 := BuildList("packages", 1, 20, filters)
	size50 := BuildList("packages", 1, 50, filters)
	assert.NotEqual(t, size20, size50)
}

func TestBuildList_DifferentFiltersDiffer(t *testing.T) {
	a := BuildList("packages", 1, 20, map[string]any{"lang": "go"})
	b := BuildList("packages", 1, 20, map[string]any{"lang": "rust"})
	assert.NotEqual(t, a, b)
}

func TestBuildList_NoFrameAmbiguity(t *testing.T) {
	// A filter value containing the old joiner characters must not collapse
	// into the same byte stream as two separate filters.
	a := BuildList("packages", 1, 20, map[string]any{"a": "1;b=2"})
	b := BuildList("packages", 1, 20, map[string]any{"a": "1", "b": 2})
	assert.NotEqual(t, a, b)

	// Shifting a boundary between name and value must also change the key.
	c := BuildList("packages", 1, 20, map[string]any{"ab": "c"})
	d := BuildList("packages", 1, 20, map[string]any{"a": "bc"})
	assert.NotEqual(t, c, d)
}

func TestBuildList_ValueTypeDistinguished(t *testing.T) {
	asInt := BuildList("packages", 1, 20, map[string]any{"minStars": 1})
	asString := BuildList("packages", 1, 20, map[string]any{"minStars": "1"})
	assert.NotEqual(t, asInt, asString)
}

func TestBuildList_EmptyFilters(t *testing.T) {
	a := BuildList("packages", 1, 20, nil)
	b := BuildList("packages", 1, 20, map[string]any{})
	assert.Equal(t, a, b)
}
