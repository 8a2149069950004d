package plan

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrstack/arrstack/internal/core/catalog"
	"github.com/arrstack/arrstack/internal/core/domain"
)

func TestRenderYAMLDeterministic(t *testing.T) {
	cat := catalog.Default()
	cfg := domain.DefaultBaseConfig()
	cfg.VPN = domain.VPNConfig{Enabled: true, Provider: "alpha", Username: "u", Password: "p", Region: "west"}
	sel := testSelection("sonarr", "radarr", "prowlarr", "transmission", "qbittorrent", "jellyfin", "portainer")

	render := func() string {
		p, err := Generate(sel, cfg, domain.HardwareCaps{VAAPI: true}, cat)
		require.NoError(t, err)
		out, err := RenderYAML(p)
		require.NoError(t, err)
		return out
	}

	first := render()
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, render(), "compose output must be byte-identical across runs")
	}
}

func TestRenderYAMLStructure(t *testing.T) {
	cat := catalog.Default()
	cfg := domain.DefaultBaseConfig()
	cfg.VPN = domain.VPNConfig{Enabled: true, Provider: "alpha", Region: "west"}

	p, err := Generate(testSelection("sonarr", "transmission", "jellyfin"), cfg, domain.HardwareCaps{NVDEC: true}, cat)
	require.NoError(t, err)
	out, err := RenderYAML(p)
	require.NoError(t, err)

	assert.Contains(t, out, "services:")
	assert.Contains(t, out, "container_name: gluetun")
	assert.Contains(t, out, "image: qmcgaw/gluetun:latest")
	assert.Contains(t, out, "network_mode: service:gluetun")
	assert.Contains(t, out, "runtime: nvidia")
	assert.Contains(t, out, "NVIDIA_VISIBLE_DEVICES: all")
	assert.Contains(t, out, "restart: unless-stopped")
	assert.Contains(t, out, "networks:")
	assert.Contains(t, out, "driver: bridge")
	assert.Contains(t, out, "volumes:")
	assert.Contains(t, out, "driver: local")

	// Gateway carries the delegated client's port; the client section has none.
	assert.Contains(t, out, "9091:9091")
	gatewayIdx := strings.Index(out, "container_name: gluetun")
	clientIdx := strings.Index(out, "container_name: transmission")
	portIdx := strings.Index(out, "9091:9091")
	assert.Greater(t, clientIdx, gatewayIdx, "gateway is emitted before clients")
	assert.Greater(t, clientIdx, portIdx, "delegated port belongs to the gateway section")
}

func TestRenderYAMLValidatesThroughLoader(t *testing.T) {
	cat := catalog.Default()
	cfg := domain.DefaultBaseConfig()
	cfg.VPN = domain.VPNConfig{Enabled: true, Provider: "alpha", Region: "west"}
	cfg.RemoteAccess = domain.RemoteAccessConfig{Enabled: true, AuthKey: "tskey"}

	p, err := Generate(domain.DefaultSelection(), cfg, domain.HardwareCaps{VAAPI: true}, cat)
	require.NoError(t, err)
	out, err := RenderYAML(p)
	require.NoError(t, err)

	assert.NoError(t, ValidateRendered(out))
}

func TestValidateRenderedRejectsGarbage(t *testing.T) {
	assert.Error(t, ValidateRendered(":\nnot yaml ["))
	assert.Error(t, ValidateRendered(""))
}

func TestRenderYAMLInvalidPlan(t *testing.T) {
	p := &DeploymentPlan{
		Network:    NetworkName,
		Containers: []ContainerSpec{{Name: "a"}, {Name: "a"}},
	}
	_, err := RenderYAML(p)
	assert.Error(t, err)
}

func TestPortMappingString(t *testing.T) {
	assert.Equal(t, "8989:8989", PortMapping{HostPort: 8989, ContainerPort: 8989}.String())
	assert.Equal(t, "8989:8989", PortMapping{HostPort: 8989, ContainerPort: 8989, Protocol: "tcp"}.String())
	assert.Equal(t, "1900:1900/udp", PortMapping{HostPort: 1900, ContainerPort: 1900, Protocol: "udp"}.String())
}

func TestVolumeMountString(t *testing.T) {
	assert.Equal(t, "/a:/b", VolumeMount{Source: "/a", Target: "/b"}.String())
	assert.Equal(t, "/a:/b:ro", VolumeMount{Source: "/a", Target: "/b", ReadOnly: true}.String())
}
