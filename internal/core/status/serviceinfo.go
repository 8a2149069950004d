package status

import (
	"github.com/arrstack/arrstack/internal/core/catalog"
	"github.com/arrstack/arrstack/internal/core/domain"
)

// =============================================================================
// Service Info Map
// =============================================================================

// ServiceInfo joins one catalog entry with its selection flag and, when a
// matching container exists, its live classification.
type ServiceInfo struct {
	Name        string        `json:"name"`
	Enabled     bool          `json:"enabled"`
	Description string        `json:"description"`
	DefaultPort int           `json:"default_port,omitempty"`
	Image       string        `json:"docker_image"`
	Status      string        `json:"status"`
	URL         string        `json:"url,omitempty"`
	Ports       []PortBinding `json:"ports,omitempty"`
}

// ServiceInfoMap is the dashboard view: category → service name → info.
type ServiceInfoMap map[catalog.Category]map[string]ServiceInfo

// BuildServiceInfo assembles the full service-info map from the catalog, the
// persisted selection, and a classified container inventory. Services with no
// live container report status "not_installed"; the classifier output never
// adds services the catalog does not know.
func BuildServiceInfo(sel domain.SelectionState, containers map[string]ContainerInfo, cat *catalog.Catalog) ServiceInfoMap {
	out := make(ServiceInfoMap, len(catalog.Categories()))
	for _, category := range catalog.Categories() {
		group := make(map[string]ServiceInfo)
		for _, desc := range cat.ByCategory(category) {
			info := ServiceInfo{
				Name:        desc.Name,
				Enabled:     sel.Enabled(desc.Name),
				Description: desc.Description,
				DefaultPort: desc.DefaultPort,
				Image:       desc.Image,
				Status:      StateNotInstalled,
			}
			if ci, ok := containers[desc.Name]; ok {
				info.Status = ci.Status
				info.URL = ci.URL
				info.Ports = ci.Ports
			}
			group[desc.Name] = info
		}
		out[category] = group
	}
	return out
}
