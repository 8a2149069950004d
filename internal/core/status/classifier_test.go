package status

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrstack/arrstack/internal/core/catalog"
	"github.com/arrstack/arrstack/internal/core/domain"
)

func TestClassifyByName(t *testing.T) {
	tests := []struct {
		name        string
		category    string
		description string
	}{
		{"sonarr", "media_management", "TV Series Management"},
		{"sonarr-custom", "media_management", "TV Series Management"},
		{"radarr", "media_management", "Movie Management"},
		{"Lidarr-4K", "media_management", "Music Management"},
		{"transmission", "download_client", "Torrent Client"},
		{"my-qbittorrent", "download_client", "Torrent Client"},
		{"nzbget", "download_client", "Usenet Client"},
		{"jellyfin", "media_server", "Media Server"},
		{"my-plex-server", "media_server", "Media Server"},
		{"emby", "media_server", "Media Server"},
		{"portainer", "utility", "Docker Management"},
		{"nginx_proxy_manager", "utility", "Reverse Proxy"},
		{"gluetun", "utility", "VPN Gateway"},
		{"tailscale", "utility", "Remote Access"},
		{"postgres", "other", "Docker container"},
		{"", "other", "Docker container"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			category, description := classify(tt.name)
			assert.Equal(t, tt.category, category)
			assert.Equal(t, tt.description, description)
		})
	}
}

func TestClassifyPriorityOrder(t *testing.T) {
	// Names containing keywords from multiple categories resolve to the
	// earliest category in the fixed order.
	category, _ := classify("sonarr-nginx")
	assert.Equal(t, "media_management", category)

	category, _ = classify("transmission-plex")
	assert.Equal(t, "download_client", category)

	category, _ = classify("plex-portainer")
	assert.Equal(t, "media_server", category)
}

func TestClassifyInventory(t *testing.T) {
	inv := []ContainerRecord{
		{
			Name:  "sonarr",
			State: "running",
			Ports: []PortBinding{{ContainerPort: 8989, HostPort: 8989, Protocol: "tcp"}},
		},
		{
			Name:  "transmission",
			State: "exited",
			Ports: []PortBinding{{ContainerPort: 9091, HostPort: 9091, Protocol: "tcp"}},
		},
		{Name: "gluetun", State: "running"},
	}

	out := Classify(inv)
	require.Len(t, out, 3)

	sonarr := out["sonarr"]
	assert.Equal(t, "running", sonarr.Status)
	assert.Equal(t, "http://localhost:8989", sonarr.URL)

	// Stopped containers never get a URL, even with an allow-listed port.
	tx := out["transmission"]
	assert.Equal(t, "exited", tx.Status)
	assert.Empty(t, tx.URL)

	gluetun := out["gluetun"]
	assert.Empty(t, gluetun.URL)
	assert.NotNil(t, gluetun.Ports)
}

func TestClassifyURLAllowList(t *testing.T) {
	// Only allow-listed container ports synthesize a URL; the first match
	// wins and the URL uses the host side of the binding.
	out := Classify([]ContainerRecord{
		{
			Name:  "custom",
			State: "running",
			Ports: []PortBinding{
				{ContainerPort: 51413, HostPort: 51413, Protocol: "tcp"},
				{ContainerPort: 8080, HostPort: 18080, Protocol: "tcp"},
				{ContainerPort: 80, HostPort: 8081, Protocol: "tcp"},
			},
		},
		{
			Name:  "plex",
			State: "running",
			Ports: []PortBinding{{ContainerPort: 32400, HostPort: 32400, Protocol: "tcp"}},
		},
	})

	assert.Equal(t, "http://localhost:18080", out["custom"].URL)
	assert.Empty(t, out["plex"].URL, "32400 is not on the web-port allow-list")
}

func TestErrorEntry(t *testing.T) {
	out := ErrorEntry(errors.New("socket unreachable"))
	require.Len(t, out, 1)

	entry, ok := out["error"]
	require.True(t, ok)
	assert.Equal(t, "error", entry.Status)
	assert.Equal(t, CategoryOther, entry.Category)
	assert.Contains(t, entry.Message, "socket unreachable")
}

func TestBuildServiceInfo(t *testing.T) {
	cat := catalog.Default()
	sel := domain.DefaultSelection()
	containers := Classify([]ContainerRecord{
		{
			Name:  "sonarr",
			State: "running",
			Ports: []PortBinding{{ContainerPort: 8989, HostPort: 8989, Protocol: "tcp"}},
		},
		{Name: "transmission", State: "exited"},
	})

	info := BuildServiceInfo(sel, containers, cat)

	sonarr := info[catalog.CategoryMediaManagement]["sonarr"]
	assert.True(t, sonarr.Enabled)
	assert.Equal(t, "running", sonarr.Status)
	assert.Equal(t, "http://localhost:8989", sonarr.URL)
	assert.Equal(t, 8989, sonarr.DefaultPort)
	assert.Equal(t, "linuxserver/sonarr:latest", sonarr.Image)

	tx := info[catalog.CategoryDownloadClient]["transmission"]
	assert.True(t, tx.Enabled)
	assert.Equal(t, "exited", tx.Status)

	// Selected but absent from the inventory.
	jellyfin := info[catalog.CategoryMediaServer]["jellyfin"]
	assert.True(t, jellyfin.Enabled)
	assert.Equal(t, StateNotInstalled, jellyfin.Status)

	// Disabled and absent.
	plex := info[catalog.CategoryMediaServer]["plex"]
	assert.False(t, plex.Enabled)
	assert.Equal(t, StateNotInstalled, plex.Status)
}
