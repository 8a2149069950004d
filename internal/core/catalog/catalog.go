// Package catalog defines the fixed table of services the appliance knows
// how to deploy. The catalog is immutable: it is constructed once at process
// start and passed explicitly to the plan generator and status classifier.
package catalog

// =============================================================================
// Categories
// =============================================================================

// Category groups services by role.
type Category string

const (
	CategoryMediaManagement Category = "media_management"
	CategoryDownloadClient  Category = "download_client"
	CategoryMediaServer     Category = "media_server"
	CategoryUtility         Category = "utility"
)

// Categories lists the selectable categories in their canonical order.
// This order drives plan emission and classifier priority.
func Categories() []Category {
	return []Category{
		CategoryMediaManagement,
		CategoryDownloadClient,
		CategoryMediaServer,
		CategoryUtility,
	}
}

// Description returns the human name for a category.
func (c Category) Description() string {
	switch c {
	case CategoryMediaManagement:
		return "Media Management Apps"
	case CategoryDownloadClient:
		return "Download Clients"
	case CategoryMediaServer:
		return "Media Servers"
	case CategoryUtility:
		return "Utility Services"
	default:
		return "Other"
	}
}

// =============================================================================
// Service Descriptors
// =============================================================================

// ServiceDescriptor is one catalog entry. Descriptors are defined at build
// time and never mutated.
type ServiceDescriptor struct {
	Name        string
	Category    Category
	Description string
	DefaultPort int // 0 means no web UI port
	Image       string

	// DockerSocket grants the container a bind mount of the runtime's
	// control socket (container-management utilities).
	DockerSocket bool

	// StateDirs are extra persistent state directories bind-mounted into
	// the container, as "subdir:target" pairs relative to the service's
	// directory under the compose root (reverse proxies with certificate
	// state).
	StateDirs []string
}

// Infra service names. These are driven by BaseConfig flags rather than the
// selection state, but live in the catalog so images and descriptions have a
// single home.
const (
	VPNGatewayName = "gluetun"
	TailscaleName  = "tailscale"
)

// Catalog is the immutable set of known services.
type Catalog struct {
	entries []ServiceDescriptor
	byName  map[string]*ServiceDescriptor
}

// New builds a catalog from descriptors. Order is preserved.
func New(entries []ServiceDescriptor) *Catalog {
	c := &Catalog{
		entries: entries,
		byName:  make(map[string]*ServiceDescriptor, len(entries)),
	}
	for i := range c.entries {
		c.byName[c.entries[i].Name] = &c.entries[i]
	}
	return c
}

// Default returns the built-in appliance catalog.
func Default() *Catalog {
	return New([]ServiceDescriptor{
		// Media management
		{Name: "sonarr", Category: CategoryMediaManagement, Description: "TV Series Management", DefaultPort: 8989, Image: "linuxserver/sonarr:latest"},
		{Name: "radarr", Category: CategoryMediaManagement, Description: "Movie Management", DefaultPort: 7878, Image: "linuxserver/radarr:latest"},
		{Name: "lidarr", Category: CategoryMediaManagement, Description: "Music Management", DefaultPort: 8686, Image: "linuxserver/lidarr:latest"},
		{Name: "readarr", Category: CategoryMediaManagement, Description: "Book & Audiobook Management", DefaultPort: 8787, Image: "linuxserver/readarr:latest"},
		{Name: "prowlarr", Category: CategoryMediaManagement, Description: "Indexer Management", DefaultPort: 9696, Image: "linuxserver/prowlarr:latest"},
		{Name: "bazarr", Category: CategoryMediaManagement, Description: "Subtitle Management", DefaultPort: 6767, Image: "linuxserver/bazarr:latest"},

		// Download clients
		{Name: "transmission", Category: CategoryDownloadClient, Description: "Torrent Client", DefaultPort: 9091, Image: "linuxserver/transmission:latest"},
		{Name: "qbittorrent", Category: CategoryDownloadClient, Description: "Torrent Client", DefaultPort: 8080, Image: "linuxserver/qbittorrent:latest"},
		{Name: "nzbget", Category: CategoryDownloadClient, Description: "Usenet Client", DefaultPort: 6789, Image: "linuxserver/nzbget:latest"},
		{Name: "sabnzbd", Category: CategoryDownloadClient, Description: "Usenet Client", DefaultPort: 8080, Image: "linuxserver/sabnzbd:latest"},
		{Name: "jdownloader", Category: CategoryDownloadClient, Description: "Direct Download Client", DefaultPort: 5800, Image: "jlesage/jdownloader-2:latest"},

		// Media servers
		{Name: "jellyfin", Category: CategoryMediaServer, Description: "Media Server", DefaultPort: 8096, Image: "linuxserver/jellyfin:latest"},
		{Name: "plex", Category: CategoryMediaServer, Description: "Media Server", DefaultPort: 32400, Image: "linuxserver/plex:latest"},
		{Name: "emby", Category: CategoryMediaServer, Description: "Media Server", DefaultPort: 8096, Image: "linuxserver/emby:latest"},

		// Utilities
		{Name: "heimdall", Category: CategoryUtility, Description: "Application Dashboard", DefaultPort: 80, Image: "linuxserver/heimdall:latest"},
		{Name: "overseerr", Category: CategoryUtility, Description: "Media Requests", DefaultPort: 5055, Image: "linuxserver/overseerr:latest"},
		{Name: "tautulli", Category: CategoryUtility, Description: "Plex Monitoring", DefaultPort: 8181, Image: "linuxserver/tautulli:latest"},
		{Name: "portainer", Category: CategoryUtility, Description: "Docker Management", DefaultPort: 9000, Image: "portainer/portainer-ce:latest", DockerSocket: true},
		{Name: "nginx_proxy_manager", Category: CategoryUtility, Description: "Reverse Proxy", DefaultPort: 81, Image: "jc21/nginx-proxy-manager:latest", StateDirs: []string{"data:/data", "letsencrypt:/etc/letsencrypt"}},
		{Name: "get_iplayer", Category: CategoryUtility, Description: "BBC Content Downloader", DefaultPort: 1935, Image: "lsiobase/alpine:3.13"},

		// Infra (flag-driven, not selectable)
		{Name: VPNGatewayName, Category: CategoryUtility, Description: "VPN Client", Image: "qmcgaw/gluetun:latest"},
		{Name: TailscaleName, Category: CategoryUtility, Description: "Secure Network", Image: "tailscale/tailscale:latest"},
	})
}

// Get looks up a descriptor by service name.
func (c *Catalog) Get(name string) (ServiceDescriptor, bool) {
	d, ok := c.byName[name]
	if !ok {
		return ServiceDescriptor{}, false
	}
	return *d, true
}

// Has reports whether the catalog knows the service.
func (c *Catalog) Has(name string) bool {
	_, ok := c.byName[name]
	return ok
}

// Ordered returns all descriptors in catalog order.
func (c *Catalog) Ordered() []ServiceDescriptor {
	out := make([]ServiceDescriptor, len(c.entries))
	copy(out, c.entries)
	return out
}

// ByCategory returns the descriptors of one category, in catalog order.
// Infra services (gluetun, tailscale) are excluded: they are not selectable.
func (c *Catalog) ByCategory(cat Category) []ServiceDescriptor {
	var out []ServiceDescriptor
	for _, d := range c.entries {
		if d.Name == VPNGatewayName || d.Name == TailscaleName {
			continue
		}
		if d.Category == cat {
			out = append(out, d)
		}
	}
	return out
}
