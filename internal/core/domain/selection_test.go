package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrstack/arrstack/internal/core/catalog"
)

func TestCloneIsIndependent(t *testing.T) {
	sel := DefaultSelection()
	clone := sel.Clone()

	clone.Toggle("sonarr", false)
	clone.Toggle("plex", true)

	assert.True(t, sel.Enabled("sonarr"), "mutating the clone must not touch the original")
	assert.False(t, sel.Enabled("plex"))
	assert.False(t, clone.Enabled("sonarr"))
}

func TestCountEnabled(t *testing.T) {
	sel := DefaultSelection()
	n := sel.CountEnabled()
	assert.Equal(t, 6, n)

	sel.Toggle("plex", true)
	assert.Equal(t, n+1, sel.CountEnabled())
}

func TestToggleUnknownService(t *testing.T) {
	sel := DefaultSelection()
	assert.False(t, sel.Toggle("vlc", true))
}

func TestNormalizeDropsUnknownAndFillsMissing(t *testing.T) {
	cat := catalog.Default()
	sel := SelectionState{
		catalog.CategoryMediaManagement: {"sonarr": true, "vlc": true},
	}

	norm := sel.Normalize(cat)
	assert.True(t, norm.Enabled("sonarr"))
	assert.False(t, norm.Enabled("vlc"))
	require.Contains(t, norm, catalog.CategoryDownloadClient)
	assert.Contains(t, norm[catalog.CategoryDownloadClient], "transmission")
	assert.False(t, norm.Enabled("transmission"))
}
