// Package status classifies live containers into the service taxonomy and
// assembles the dashboard's service-info view. Classification is a
// best-effort heuristic over container names; the persisted selection, not
// the classifier, remains the source of truth for what the user wants.
package status

import (
	"fmt"
	"strings"

	"github.com/arrstack/arrstack/internal/core/catalog"
)

// =============================================================================
// Runtime Inventory
// =============================================================================

// PortBinding is one published port of a live container.
type PortBinding struct {
	ContainerPort int    `json:"container"`
	HostPort      int    `json:"host"`
	Protocol      string `json:"protocol"`
}

// ContainerRecord is the runtime's view of one container, as reported by the
// control socket.
type ContainerRecord struct {
	Name  string
	State string // "running", "exited", "paused", ...
	Ports []PortBinding
}

// =============================================================================
// Classification
// =============================================================================

// CategoryOther is the fallback for containers matching no keyword set.
const CategoryOther = "other"

// StateNotInstalled marks a selected service with no live container.
const StateNotInstalled = "not_installed"

// ContainerInfo is the classified view of one live container.
type ContainerInfo struct {
	Status      string        `json:"status"`
	Category    string        `json:"type"`
	Description string        `json:"description"`
	URL         string        `json:"url,omitempty"`
	Ports       []PortBinding `json:"ports"`
	Message     string        `json:"message,omitempty"`
}

// rule pairs a name keyword with its category and human description.
// Evaluated top to bottom so ambiguous names resolve deterministically:
// "my-plex-server" hits the media-server rule before any utility keyword
// could claim it.
type rule struct {
	keyword     string
	category    catalog.Category
	description string
}

var rules = []rule{
	{"sonarr", catalog.CategoryMediaManagement, "TV Series Management"},
	{"radarr", catalog.CategoryMediaManagement, "Movie Management"},
	{"lidarr", catalog.CategoryMediaManagement, "Music Management"},
	{"readarr", catalog.CategoryMediaManagement, "Book Management"},
	{"prowlarr", catalog.CategoryMediaManagement, "Indexer Management"},
	{"bazarr", catalog.CategoryMediaManagement, "Subtitle Management"},

	{"transmission", catalog.CategoryDownloadClient, "Torrent Client"},
	{"qbittorrent", catalog.CategoryDownloadClient, "Torrent Client"},
	{"nzbget", catalog.CategoryDownloadClient, "Usenet Client"},
	{"sabnzbd", catalog.CategoryDownloadClient, "Usenet Client"},
	{"jdownloader", catalog.CategoryDownloadClient, "Direct Download Client"},

	{"jellyfin", catalog.CategoryMediaServer, "Media Server"},
	{"plex", catalog.CategoryMediaServer, "Media Server"},
	{"emby", catalog.CategoryMediaServer, "Media Server"},

	{"portainer", catalog.CategoryUtility, "Docker Management"},
	{"heimdall", catalog.CategoryUtility, "Application Dashboard"},
	{"overseerr", catalog.CategoryUtility, "Media Requests"},
	{"tautulli", catalog.CategoryUtility, "Plex Monitoring"},
	{"nginx", catalog.CategoryUtility, "Reverse Proxy"},
	{"gluetun", catalog.CategoryUtility, "VPN Gateway"},
	{"tailscale", catalog.CategoryUtility, "Remote Access"},
}

// webPorts is the container-port allow-list for synthesizing a reachable URL.
var webPorts = map[int]bool{
	80: true, 8080: true, 8096: true, 9090: true, 9091: true,
	7878: true, 8989: true, 8686: true, 8787: true, 9696: true,
	6767: true, 6789: true, 5055: true, 8181: true,
}

// classify resolves a container name to (category, description) by substring
// match against the rule list.
func classify(name string) (string, string) {
	lower := strings.ToLower(name)
	for _, r := range rules {
		if strings.Contains(lower, r.keyword) {
			return string(r.category), r.description
		}
	}
	return CategoryOther, "Docker container"
}

// webURL synthesizes a reachable URL from the first allow-listed container
// port. Only running containers get one.
func webURL(rec ContainerRecord) string {
	if rec.State != "running" {
		return ""
	}
	for _, pb := range rec.Ports {
		if webPorts[pb.ContainerPort] {
			return fmt.Sprintf("http://localhost:%d", pb.HostPort)
		}
	}
	return ""
}

// Classify maps every container in the inventory to its classified view,
// keyed by container name.
func Classify(inventory []ContainerRecord) map[string]ContainerInfo {
	out := make(map[string]ContainerInfo, len(inventory))
	for _, rec := range inventory {
		category, description := classify(rec.Name)
		ports := rec.Ports
		if ports == nil {
			ports = []PortBinding{}
		}
		out[rec.Name] = ContainerInfo{
			Status:      rec.State,
			Category:    category,
			Description: description,
			URL:         webURL(rec),
			Ports:       ports,
		}
	}
	return out
}

// ErrorEntry builds the single synthetic entry surfaced when the runtime is
// unreachable. Status display degrades to this instead of failing the query.
func ErrorEntry(err error) map[string]ContainerInfo {
	return map[string]ContainerInfo{
		"error": {
			Status:      "error",
			Category:    CategoryOther,
			Description: "Error checking container runtime status",
			Ports:       []PortBinding{},
			Message:     fmt.Sprintf("Error getting container status: %v", err),
		},
	}
}
