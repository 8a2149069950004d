package domain

import (
	"github.com/arrstack/arrstack/internal/core/catalog"
)

// =============================================================================
// Selection State
// =============================================================================

// SelectionState maps category → service name → enabled flag. Every name
// present must exist in the catalog; Normalize enforces that.
type SelectionState map[catalog.Category]map[string]bool

// DefaultSelection returns the recommended starter selection.
func DefaultSelection() SelectionState {
	return SelectionState{
		catalog.CategoryMediaManagement: {
			"sonarr": true, "radarr": true, "prowlarr": true,
			"lidarr": false, "readarr": false, "bazarr": false,
		},
		catalog.CategoryDownloadClient: {
			"transmission": true, "qbittorrent": false,
			"nzbget": false, "sabnzbd": false, "jdownloader": false,
		},
		catalog.CategoryMediaServer: {
			"jellyfin": true, "plex": false, "emby": false,
		},
		catalog.CategoryUtility: {
			"portainer": true, "heimdall": false, "overseerr": false,
			"tautulli": false, "nginx_proxy_manager": false, "get_iplayer": false,
		},
	}
}

// Clone returns a deep copy.
func (s SelectionState) Clone() SelectionState {
	out := make(SelectionState, len(s))
	for cat, services := range s {
		m := make(map[string]bool, len(services))
		for name, enabled := range services {
			m[name] = enabled
		}
		out[cat] = m
	}
	return out
}

// Enabled reports whether a service is enabled anywhere in the selection.
func (s SelectionState) Enabled(name string) bool {
	for _, services := range s {
		if enabled, ok := services[name]; ok {
			return enabled
		}
	}
	return false
}

// EnabledInCategory returns the enabled service names of one category.
// Order is not defined here; callers iterate the catalog for determinism.
func (s SelectionState) EnabledInCategory(cat catalog.Category) map[string]bool {
	out := make(map[string]bool)
	for name, enabled := range s[cat] {
		if enabled {
			out[name] = true
		}
	}
	return out
}

// Toggle flips a service's enabled flag. Returns false if the service is not
// present in the selection.
func (s SelectionState) Toggle(name string, enabled bool) bool {
	for _, services := range s {
		if _, ok := services[name]; ok {
			services[name] = enabled
			return true
		}
	}
	return false
}

// Normalize drops identifiers unknown to the catalog and fills in missing
// catalog services as disabled. Unknown names are skipped, never fatal:
// a selection written by a newer release must still load.
func (s SelectionState) Normalize(cat *catalog.Catalog) SelectionState {
	out := make(SelectionState, len(s))
	for _, category := range catalog.Categories() {
		m := make(map[string]bool)
		for _, desc := range cat.ByCategory(category) {
			m[desc.Name] = false
		}
		for name, enabled := range s[category] {
			if _, ok := m[name]; ok {
				m[name] = enabled
			}
		}
		out[category] = m
	}
	return out
}

// CountEnabled returns the number of enabled services.
func (s SelectionState) CountEnabled() int {
	n := 0
	for _, services := range s {
		for _, enabled := range services {
			if enabled {
				n++
			}
		}
	}
	return n
}
