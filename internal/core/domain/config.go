// Package domain defines the core entities of the appliance: base
// configuration, service selection, installation status, and host hardware
// capabilities. All types here are pure data with validation; I/O lives in
// the shell packages.
package domain

import (
	"errors"
	"fmt"
)

// =============================================================================
// Errors
// =============================================================================

// ErrValidation is the sentinel wrapped by every ValidationError.
var ErrValidation = errors.New("validation failed")

// ValidationError reports a malformed or missing configuration field.
// It is fatal to the operation that raised it and is never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError creates a ValidationError for a field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// =============================================================================
// Base Configuration
// =============================================================================

// VPNConfig holds the VPN gateway settings.
type VPNConfig struct {
	Enabled  bool   `json:"enabled"`
	Provider string `json:"provider"`
	Username string `json:"username"`
	Password string `json:"password"`
	Region   string `json:"region"`
}

// RemoteAccessConfig holds the tailscale remote-access settings.
type RemoteAccessConfig struct {
	Enabled bool   `json:"enabled"`
	AuthKey string `json:"auth_key"`
}

// BaseConfig is the appliance-wide configuration captured by the wizard and
// read by the plan and environment generators.
type BaseConfig struct {
	PUID         int                `json:"puid"`
	PGID         int                `json:"pgid"`
	Timezone     string             `json:"timezone"`
	MediaDir     string             `json:"media_dir"`
	DownloadsDir string             `json:"downloads_dir"`
	DockerDir    string             `json:"docker_dir"`
	VPN          VPNConfig          `json:"vpn"`
	RemoteAccess RemoteAccessConfig `json:"remote_access"`
}

// DefaultBaseConfig returns the out-of-the-box configuration.
func DefaultBaseConfig() BaseConfig {
	return BaseConfig{
		PUID:         1000,
		PGID:         1000,
		Timezone:     "UTC",
		MediaDir:     "/mnt/media",
		DownloadsDir: "/mnt/downloads",
		DockerDir:    "/opt/arrstack/docker",
		VPN: VPNConfig{
			Enabled:  false,
			Provider: "private internet access",
			Region:   "Netherlands",
		},
	}
}

// Validate checks the invariants: non-empty paths, non-negative IDs, and a
// timezone string. VPN fields are only required when the VPN is enabled.
func (c BaseConfig) Validate() error {
	if c.PUID < 0 {
		return NewValidationError("puid", "must be non-negative")
	}
	if c.PGID < 0 {
		return NewValidationError("pgid", "must be non-negative")
	}
	if c.Timezone == "" {
		return NewValidationError("timezone", "is required")
	}
	if c.MediaDir == "" {
		return NewValidationError("media_dir", "is required")
	}
	if c.DownloadsDir == "" {
		return NewValidationError("downloads_dir", "is required")
	}
	if c.DockerDir == "" {
		return NewValidationError("docker_dir", "is required")
	}
	if c.VPN.Enabled && c.VPN.Provider == "" {
		return NewValidationError("vpn.provider", "is required when VPN is enabled")
	}
	return nil
}

// =============================================================================
// Hardware Capabilities
// =============================================================================

// HardwareCaps describes the host's transcoding accelerators. Probed by the
// shell, consumed by the plan generator.
type HardwareCaps struct {
	VAAPI bool `json:"vaapi"`
	V4L2  bool `json:"v4l2"`
	NVDEC bool `json:"nvdec"`
}

// HasTranscoding reports whether any hardware transcoder is present.
func (h HardwareCaps) HasTranscoding() bool {
	return h.VAAPI || h.V4L2 || h.NVDEC
}
