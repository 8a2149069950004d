package plan

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/arrstack/arrstack/internal/core/catalog"
	"github.com/arrstack/arrstack/internal/core/domain"
)

// =============================================================================
// Plan Generation
// =============================================================================

// Generate produces a deployment plan from the selection and configuration.
// It is deterministic: emission follows catalog order, and no wall-clock or
// random state is consulted. Unknown selection identifiers are skipped.
// Fails atomically with a ValidationError; no partial plan is ever returned.
func Generate(sel domain.SelectionState, cfg domain.BaseConfig, hw domain.HardwareCaps, cat *catalog.Catalog) (*DeploymentPlan, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &DeploymentPlan{
		Network: NetworkName,
		Volumes: []string{ConfigVolume},
	}

	commonEnv := map[string]string{
		"PUID": strconv.Itoa(cfg.PUID),
		"PGID": strconv.Itoa(cfg.PGID),
		"TZ":   cfg.Timezone,
	}

	// VPN gateway first, so download clients can delegate to it. Delegated
	// ports accumulate in a local slice and are spliced onto the gateway
	// after emission; appends may move p.Containers, so no pointer into it
	// is held across the loop.
	gatewayName := ""
	var gatewayPorts []PortMapping
	if cfg.VPN.Enabled {
		desc, _ := cat.Get(catalog.VPNGatewayName)
		env := mergeEnv(commonEnv, map[string]string{
			"VPN_SERVICE_PROVIDER": cfg.VPN.Provider,
			"OPENVPN_USER":         cfg.VPN.Username,
			"OPENVPN_PASSWORD":     cfg.VPN.Password,
			"SERVER_REGIONS":       cfg.VPN.Region,
		})
		p.Containers = append(p.Containers, ContainerSpec{
			Name:        desc.Name,
			Image:       desc.Image,
			CapAdd:      []string{"NET_ADMIN"},
			Devices:     []string{"/dev/net/tun:/dev/net/tun"},
			Environment: env,
			Volumes:     []VolumeMount{{Source: ConfigVolume, Target: "/gluetun"}},
			Restart:     "unless-stopped",
		})
		gatewayName = desc.Name
	}

	for _, category := range catalog.Categories() {
		enabled := sel.EnabledInCategory(category)
		for _, desc := range cat.ByCategory(category) {
			if !enabled[desc.Name] {
				continue
			}
			spec := buildServiceSpec(desc, cfg, hw, commonEnv)

			if category == catalog.CategoryDownloadClient && gatewayName != "" {
				// Route all client traffic through the VPN gateway: the
				// client loses its own network stack and ports, and the
				// gateway publishes them tagged with the client's name.
				for _, pm := range spec.Ports {
					pm.Origin = desc.Name
					if !hasPort(gatewayPorts, pm) {
						gatewayPorts = append(gatewayPorts, pm)
					}
				}
				spec.Ports = nil
				spec.NetworkMode = "service:" + gatewayName
			}

			p.Containers = append(p.Containers, spec)
		}
	}

	if gatewayName != "" {
		p.Containers[0].Ports = gatewayPorts
	}

	if cfg.RemoteAccess.Enabled {
		desc, _ := cat.Get(catalog.TailscaleName)
		p.Containers = append(p.Containers, ContainerSpec{
			Name:   desc.Name,
			Image:  desc.Image,
			CapAdd: []string{"NET_ADMIN"},
			Environment: mergeEnv(commonEnv, map[string]string{
				"TS_AUTH_KEY": cfg.RemoteAccess.AuthKey,
			}),
			Volumes:     []VolumeMount{{Source: filepath.Join(cfg.DockerDir, desc.Name), Target: "/var/lib/tailscale"}},
			NetworkMode: "host",
			Restart:     "unless-stopped",
		})
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// buildServiceSpec emits the spec for one selectable service: config mount
// always, downloads and media mounts by category, the catalog default port,
// and the common environment overlay.
func buildServiceSpec(desc catalog.ServiceDescriptor, cfg domain.BaseConfig, hw domain.HardwareCaps, commonEnv map[string]string) ContainerSpec {
	spec := ContainerSpec{
		Name:        desc.Name,
		Image:       desc.Image,
		Environment: mergeEnv(commonEnv, nil),
		Volumes: []VolumeMount{
			{Source: filepath.Join(cfg.DockerDir, desc.Name), Target: "/config"},
		},
		Restart: "unless-stopped",
	}

	switch desc.Category {
	case catalog.CategoryMediaManagement:
		spec.Volumes = append(spec.Volumes,
			VolumeMount{Source: cfg.MediaDir, Target: "/media"},
			VolumeMount{Source: cfg.DownloadsDir, Target: "/downloads"},
		)
	case catalog.CategoryDownloadClient:
		spec.Volumes = append(spec.Volumes,
			VolumeMount{Source: cfg.DownloadsDir, Target: "/downloads"},
		)
	case catalog.CategoryMediaServer:
		spec.Volumes = append(spec.Volumes,
			VolumeMount{Source: cfg.MediaDir, Target: "/media"},
		)
		applyTranscoding(&spec, hw)
	}

	if desc.DockerSocket {
		spec.Volumes = append(spec.Volumes,
			VolumeMount{Source: "/var/run/docker.sock", Target: "/var/run/docker.sock"},
		)
	}
	for _, pair := range desc.StateDirs {
		sub, target, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		spec.Volumes = append(spec.Volumes, VolumeMount{
			Source: filepath.Join(cfg.DockerDir, desc.Name, sub),
			Target: target,
		})
	}

	if desc.DefaultPort > 0 {
		spec.Ports = []PortMapping{{HostPort: desc.DefaultPort, ContainerPort: desc.DefaultPort}}
	}

	return spec
}

// applyTranscoding exposes a hardware transcoder to a media server.
// Preference order: NVIDIA runtime > VAAPI > V4L2, mutually exclusive.
// NVIDIA uses the container runtime plus a visibility env var, not a device
// mount.
func applyTranscoding(spec *ContainerSpec, hw domain.HardwareCaps) {
	switch {
	case hw.NVDEC:
		spec.Runtime = "nvidia"
		spec.Environment["NVIDIA_VISIBLE_DEVICES"] = "all"
	case hw.VAAPI:
		spec.Devices = append(spec.Devices, "/dev/dri:/dev/dri")
	case hw.V4L2:
		spec.Devices = append(spec.Devices, "/dev/video10:/dev/video10")
	}
}

func mergeEnv(base, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func hasPort(ports []PortMapping, pm PortMapping) bool {
	for _, p := range ports {
		if p.HostPort == pm.HostPort && p.ContainerPort == pm.ContainerPort {
			return true
		}
	}
	return false
}
