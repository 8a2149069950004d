package plan

import (
	"fmt"
	"strings"

	"github.com/arrstack/arrstack/internal/core/domain"
)

// RenderEnvFile produces the flat KEY=VALUE environment document that the
// rendered compose file substitutes at apply time. Kept separate from plan
// generation so credentials can be rotated without touching topology.
func RenderEnvFile(cfg domain.BaseConfig) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("# Base Configuration\n")
	fmt.Fprintf(&sb, "PUID=%d\n", cfg.PUID)
	fmt.Fprintf(&sb, "PGID=%d\n", cfg.PGID)
	fmt.Fprintf(&sb, "TIMEZONE=%s\n", cfg.Timezone)
	sb.WriteString("IMAGE_RELEASE=latest\n")
	fmt.Fprintf(&sb, "DOCKER_DIR=%s\n", cfg.DockerDir)
	sb.WriteString("\n# Media and Download Directories\n")
	fmt.Fprintf(&sb, "MEDIA_DIR=%s\n", cfg.MediaDir)
	fmt.Fprintf(&sb, "DOWNLOADS_DIR=%s\n", cfg.DownloadsDir)
	fmt.Fprintf(&sb, "WATCH_DIR=%s/watch\n", cfg.DownloadsDir)

	if cfg.VPN.Enabled {
		sb.WriteString("\n# VPN Configuration\n")
		fmt.Fprintf(&sb, "VPN_CONTAINER=%s\n", "gluetun")
		sb.WriteString("VPN_IMAGE=qmcgaw/gluetun\n")
		fmt.Fprintf(&sb, "VPN_SERVICE_PROVIDER=%s\n", cfg.VPN.Provider)
		fmt.Fprintf(&sb, "OPENVPN_USER=%s\n", cfg.VPN.Username)
		fmt.Fprintf(&sb, "OPENVPN_PASSWORD=%s\n", cfg.VPN.Password)
		fmt.Fprintf(&sb, "SERVER_REGIONS=%s\n", cfg.VPN.Region)
	}

	if cfg.RemoteAccess.Enabled {
		sb.WriteString("\n# Remote Access\n")
		fmt.Fprintf(&sb, "TAILSCALE_AUTH_KEY=%s\n", cfg.RemoteAccess.AuthKey)
	}

	sb.WriteString("\n# Network Configuration\n")
	fmt.Fprintf(&sb, "CONTAINER_NETWORK=%s\n", NetworkName)

	return sb.String(), nil
}
