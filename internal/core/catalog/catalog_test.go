package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogLookup(t *testing.T) {
	cat := Default()

	desc, ok := cat.Get("sonarr")
	require.True(t, ok)
	assert.Equal(t, CategoryMediaManagement, desc.Category)
	assert.Equal(t, 8989, desc.DefaultPort)

	assert.True(t, cat.Has("transmission"))
	assert.True(t, cat.Has(VPNGatewayName))
	assert.False(t, cat.Has("vlc"))

	_, ok = cat.Get("vlc")
	assert.False(t, ok)
}

func TestOrderedIsStableAndUnique(t *testing.T) {
	cat := Default()

	first := cat.Ordered()
	second := cat.Ordered()
	require.Equal(t, first, second)

	seen := make(map[string]bool, len(first))
	for _, d := range first {
		assert.False(t, seen[d.Name], "duplicate catalog entry %q", d.Name)
		seen[d.Name] = true
		assert.NotEmpty(t, d.Image)
	}
	assert.True(t, seen[VPNGatewayName])
	assert.True(t, seen[TailscaleName])

	// Ordered hands out a copy; mutating it must not touch the catalog.
	first[0].Name = "mutated"
	desc, ok := cat.Get("sonarr")
	require.True(t, ok)
	assert.Equal(t, "sonarr", desc.Name)
}

func TestByCategoryExcludesInfra(t *testing.T) {
	cat := Default()
	for _, category := range Categories() {
		for _, d := range cat.ByCategory(category) {
			assert.NotEqual(t, VPNGatewayName, d.Name)
			assert.NotEqual(t, TailscaleName, d.Name)
			assert.Equal(t, category, d.Category)
		}
	}
}
