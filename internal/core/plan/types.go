// Package plan turns a service selection and base configuration into a
// deployment plan: the concrete container/network/volume topology that the
// lifecycle controller applies to the runtime. Everything here is pure;
// generation is deterministic for fixed inputs.
package plan

import (
	"fmt"
	"strings"

	"github.com/arrstack/arrstack/internal/core/domain"
)

// =============================================================================
// Plan Types
// =============================================================================

// NetworkName is the single shared bridge network every plan declares.
const NetworkName = "container_network"

// ConfigVolume is the named volume holding infra container state.
const ConfigVolume = "config"

// PortMapping maps a host port to a container port. Origin names the
// delegating service when the mapping was merged into a gateway's list.
type PortMapping struct {
	HostPort      int
	ContainerPort int
	Protocol      string // "" means tcp
	Origin        string // delegating service, "" for the container's own port
}

// String renders the mapping in compose "host:container" form.
func (p PortMapping) String() string {
	s := fmt.Sprintf("%d:%d", p.HostPort, p.ContainerPort)
	if p.Protocol != "" && p.Protocol != "tcp" {
		s += "/" + p.Protocol
	}
	return s
}

// VolumeMount binds a host path or named volume into a container.
type VolumeMount struct {
	Source   string
	Target   string
	ReadOnly bool
}

// String renders the mount in compose "source:target" form.
func (v VolumeMount) String() string {
	s := v.Source + ":" + v.Target
	if v.ReadOnly {
		s += ":ro"
	}
	return s
}

// ContainerSpec is one container in the plan.
type ContainerSpec struct {
	Name        string
	Image       string
	CapAdd      []string
	Devices     []string
	Runtime     string // "nvidia" when the NVIDIA container runtime is selected
	Ports       []PortMapping
	Environment map[string]string
	Volumes     []VolumeMount
	// NetworkMode is "" for an attachment to the plan's shared network,
	// "service:<name>" to route through another container's network stack,
	// or "host" for host networking.
	NetworkMode string
	Restart     string
}

// Delegated reports whether the container routes through another container's
// network stack instead of owning its own attachment.
func (c *ContainerSpec) Delegated() bool {
	return strings.HasPrefix(c.NetworkMode, "service:")
}

// DeploymentPlan is the full topology derived from a selection and config.
type DeploymentPlan struct {
	Network    string
	Volumes    []string
	Containers []ContainerSpec
}

// Container returns the spec with the given name, or nil.
func (p *DeploymentPlan) Container(name string) *ContainerSpec {
	for i := range p.Containers {
		if p.Containers[i].Name == name {
			return &p.Containers[i]
		}
	}
	return nil
}

// Validate checks the plan invariants: unique container names, and no port
// mappings on a container that delegates its network stack.
func (p *DeploymentPlan) Validate() error {
	seen := make(map[string]bool, len(p.Containers))
	for i := range p.Containers {
		c := &p.Containers[i]
		if seen[c.Name] {
			return domain.NewValidationError("containers", fmt.Sprintf("duplicate container name %q", c.Name))
		}
		seen[c.Name] = true
		if c.Delegated() && len(c.Ports) > 0 {
			return domain.NewValidationError("containers", fmt.Sprintf("container %q delegates its network but declares port mappings", c.Name))
		}
	}
	return nil
}
