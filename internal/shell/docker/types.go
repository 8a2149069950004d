// Package docker provides a Docker client for container lifecycle management.
// It is the only layer that talks to the runtime's control socket; callers
// address containers by name and treat any conforming runtime as acceptable.
package docker

import (
	"io"
	"time"
)

// =============================================================================
// Container Types
// =============================================================================

// PortBinding defines a published port mapping.
type PortBinding struct {
	ContainerPort int
	HostPort      int
	Protocol      string // "tcp" or "udp"
	HostIP        string // "" for 0.0.0.0
}

// ContainerStatus represents the container status.
type ContainerStatus string

const (
	ContainerStatusCreated    ContainerStatus = "created"
	ContainerStatusRunning    ContainerStatus = "running"
	ContainerStatusPaused     ContainerStatus = "paused"
	ContainerStatusRestarting ContainerStatus = "restarting"
	ContainerStatusRemoving   ContainerStatus = "removing"
	ContainerStatusExited     ContainerStatus = "exited"
	ContainerStatusDead       ContainerStatus = "dead"
)

// ContainerInfo contains information about a container.
type ContainerInfo struct {
	ID        string
	Name      string
	Image     string
	Status    ContainerStatus
	State     string // "running", "exited", "created", etc.
	CreatedAt time.Time
	Ports     []PortBinding
	Labels    map[string]string
}

// Running reports whether the container is currently running.
func (c ContainerInfo) Running() bool {
	return c.Status == ContainerStatusRunning
}

// =============================================================================
// Options
// =============================================================================

// ListOptions defines options for listing containers.
type ListOptions struct {
	All     bool              // Include stopped containers
	Filters map[string]string // e.g., {"name": "sonarr"}
}

// LogOptions defines options for container logs.
type LogOptions struct {
	Follow     bool
	Tail       string // "all" or number
	Since      time.Time
	Timestamps bool
}

// =============================================================================
// Client Interface
// =============================================================================

// Client is the runtime capability surface the rest of the system depends
// on: inventory, per-container lifecycle, image pulls, and liveness.
type Client interface {
	ListContainers(opts ListOptions) ([]ContainerInfo, error)
	InspectContainer(name string) (*ContainerInfo, error)
	StartContainer(name string) error
	StopContainer(name string, timeout *time.Duration) error
	RestartContainer(name string, timeout *time.Duration) error
	ContainerLogs(name string, opts LogOptions) (io.ReadCloser, error)
	PullImage(image string) error
	Ping() error
	Close() error
}
