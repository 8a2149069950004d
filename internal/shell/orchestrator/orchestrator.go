// Package orchestrator is the lifecycle controller: it takes a deployment
// plan to durable compose form, applies it through the composition tool, and
// drives per-container and fan-out operations against the runtime.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/arrstack/arrstack/internal/core/catalog"
	"github.com/arrstack/arrstack/internal/core/plan"
	"github.com/arrstack/arrstack/internal/core/status"
	"github.com/arrstack/arrstack/internal/shell/composecli"
	"github.com/arrstack/arrstack/internal/shell/docker"
)

// ComposeFileName is the compose document written under the config dir.
const ComposeFileName = "docker-compose.yml"

// EnvFileName is the companion environment document.
const EnvFileName = ".env"

var stopTimeout = 30 * time.Second

// =============================================================================
// Fan-Out Results
// =============================================================================

// TargetResult is the outcome of one container within a fan-out operation.
type TargetResult struct {
	Name    string `json:"name"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// FanOutResult aggregates a multi-container operation. Status is "success"
// only when zero targets failed, otherwise "partial"; a fan-out never
// collapses into a single opaque failure.
type FanOutResult struct {
	Status  string         `json:"status"`
	Message string         `json:"message"`
	Failed  int            `json:"failed"`
	Results []TargetResult `json:"results"`
}

func summarize(op string, results []TargetResult) *FanOutResult {
	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	out := &FanOutResult{Results: results, Failed: failed}
	if failed == 0 {
		out.Status = "success"
		out.Message = fmt.Sprintf("%s completed for %d containers", op, len(results))
	} else {
		out.Status = "partial"
		out.Message = fmt.Sprintf("%s completed with %d of %d containers failed", op, failed, len(results))
	}
	return out
}

// =============================================================================
// Orchestrator
// =============================================================================

// Orchestrator applies plans and drives container lifecycle operations.
type Orchestrator struct {
	docker    docker.Client
	compose   *composecli.CLI
	catalog   *catalog.Catalog
	logger    *slog.Logger
	configDir string
}

// New creates an orchestrator. configDir is where the compose and env files
// are written; it is created on first apply.
func New(dockerClient docker.Client, compose *composecli.CLI, cat *catalog.Catalog, logger *slog.Logger, configDir string) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if configDir == "" {
		configDir = "/etc/arrstack"
	}
	return &Orchestrator{
		docker:    dockerClient,
		compose:   compose,
		catalog:   cat,
		logger:    logger,
		configDir: configDir,
	}
}

// ConfigDir returns the directory holding the compose and env files.
func (o *Orchestrator) ConfigDir() string {
	return o.configDir
}

// ComposePath returns the well-known compose file path.
func (o *Orchestrator) ComposePath() string {
	return filepath.Join(o.configDir, ComposeFileName)
}

// EnvPath returns the well-known environment file path.
func (o *Orchestrator) EnvPath() string {
	return filepath.Join(o.configDir, EnvFileName)
}

// =============================================================================
// Apply
// =============================================================================

// WritePlan renders the plan and environment to their well-known paths after
// verifying the rendered document loads cleanly. Nothing is written when
// rendering or verification fails.
func (o *Orchestrator) WritePlan(p *plan.DeploymentPlan, envContent string) error {
	composeContent, err := plan.RenderYAML(p)
	if err != nil {
		return err
	}
	if err := plan.ValidateRendered(composeContent); err != nil {
		return err
	}

	if err := os.MkdirAll(o.configDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(o.ComposePath(), []byte(composeContent), 0o644); err != nil {
		return fmt.Errorf("failed to write compose file: %w", err)
	}
	// Env holds VPN credentials; keep it out of other users' reach.
	if err := os.WriteFile(o.EnvPath(), []byte(envContent), 0o600); err != nil {
		return fmt.Errorf("failed to write env file: %w", err)
	}
	return nil
}

// Up brings up the composition currently written at the well-known paths.
func (o *Orchestrator) Up(ctx context.Context) error {
	return o.compose.Up(ctx, o.ComposePath(), o.EnvPath())
}

// Pull fetches every image the written composition references.
func (o *Orchestrator) Pull(ctx context.Context) error {
	return o.compose.Pull(ctx, o.ComposePath(), o.EnvPath())
}

// Apply writes the plan and invokes the composition tool. Re-applying an
// unchanged plan is a runtime-level no-op because the rendered document is
// byte-for-byte reproducible.
func (o *Orchestrator) Apply(ctx context.Context, p *plan.DeploymentPlan, envContent string) error {
	if err := o.WritePlan(p, envContent); err != nil {
		return err
	}
	o.logger.Info("applying deployment plan",
		"containers", len(p.Containers),
		"compose_file", o.ComposePath(),
	)
	return o.Up(ctx)
}

// Down tears down the currently applied composition.
func (o *Orchestrator) Down(ctx context.Context) error {
	return o.compose.Down(ctx, o.ComposePath(), o.EnvPath())
}

// =============================================================================
// Single-Container Operations
// =============================================================================

// Start starts one container by name.
func (o *Orchestrator) Start(ctx context.Context, name string) error {
	o.logger.Info("starting container", "container", name)
	return o.docker.StartContainer(name)
}

// Stop stops one container by name.
func (o *Orchestrator) Stop(ctx context.Context, name string) error {
	o.logger.Info("stopping container", "container", name)
	return o.docker.StopContainer(name, &stopTimeout)
}

// Restart restarts one container by name.
func (o *Orchestrator) Restart(ctx context.Context, name string) error {
	o.logger.Info("restarting container", "container", name)
	return o.docker.RestartContainer(name, &stopTimeout)
}

// Update refreshes one container: pull the catalog image for its service,
// then restart only if it was already running. A stopped container keeps its
// stopped state after the image refresh.
func (o *Orchestrator) Update(ctx context.Context, name string) error {
	info, err := o.docker.InspectContainer(name)
	if err != nil {
		return err
	}

	image := info.Image
	if desc, ok := o.catalog.Get(name); ok {
		image = desc.Image
	}

	o.logger.Info("updating container", "container", name, "image", image)
	if err := o.docker.PullImage(image); err != nil {
		return err
	}

	if !info.Running() {
		o.logger.Info("container not running, image refreshed only", "container", name)
		return nil
	}
	return o.docker.RestartContainer(name, &stopTimeout)
}

// Logs returns the last lines of one container's log stream. The stream is
// read to completion; following is the transport layer's concern.
func (o *Orchestrator) Logs(ctx context.Context, name string, tail int) (string, error) {
	reader, err := o.docker.ContainerLogs(name, docker.LogOptions{
		Tail: fmt.Sprintf("%d", tail),
	})
	if err != nil {
		return "", err
	}
	defer reader.Close()

	buf, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to read container logs: %w", err)
	}
	return string(buf), nil
}

// =============================================================================
// Fan-Out Operations
// =============================================================================

// RestartAll restarts every container in the inventory, reporting per-target
// outcomes.
func (o *Orchestrator) RestartAll(ctx context.Context) (*FanOutResult, error) {
	inventory, err := o.docker.ListContainers(docker.ListOptions{All: true})
	if err != nil {
		return nil, err
	}

	results := make([]TargetResult, 0, len(inventory))
	for _, c := range inventory {
		r := TargetResult{Name: c.Name, Success: true}
		if err := o.docker.RestartContainer(c.Name, &stopTimeout); err != nil {
			r.Success = false
			r.Message = err.Error()
			o.logger.Warn("restart failed", "container", c.Name, "error", err)
		}
		results = append(results, r)
	}
	return summarize("restart", results), nil
}

// UpdateAll refreshes every container in the inventory with the same
// semantics as Update: pull, then restart only the ones that were running.
func (o *Orchestrator) UpdateAll(ctx context.Context) (*FanOutResult, error) {
	inventory, err := o.docker.ListContainers(docker.ListOptions{All: true})
	if err != nil {
		return nil, err
	}

	results := make([]TargetResult, 0, len(inventory))
	for _, c := range inventory {
		r := TargetResult{Name: c.Name, Success: true}
		if err := o.updateOne(c); err != nil {
			r.Success = false
			r.Message = err.Error()
			o.logger.Warn("update failed", "container", c.Name, "error", err)
		}
		results = append(results, r)
	}
	return summarize("update", results), nil
}

func (o *Orchestrator) updateOne(c docker.ContainerInfo) error {
	image := c.Image
	if desc, ok := o.catalog.Get(c.Name); ok {
		image = desc.Image
	}
	if err := o.docker.PullImage(image); err != nil {
		return err
	}
	if !c.Running() {
		return nil
	}
	return o.docker.RestartContainer(c.Name, &stopTimeout)
}

// =============================================================================
// Status
// =============================================================================

// ContainerStatus classifies the live inventory. A runtime query failure
// degrades to the synthetic error entry instead of propagating.
func (o *Orchestrator) ContainerStatus(ctx context.Context) map[string]status.ContainerInfo {
	inventory, err := o.docker.ListContainers(docker.ListOptions{All: true})
	if err != nil {
		o.logger.Warn("container runtime unreachable", "error", err)
		return status.ErrorEntry(err)
	}

	records := make([]status.ContainerRecord, 0, len(inventory))
	for _, c := range inventory {
		rec := status.ContainerRecord{Name: c.Name, State: c.State}
		for _, p := range c.Ports {
			rec.Ports = append(rec.Ports, status.PortBinding{
				ContainerPort: p.ContainerPort,
				HostPort:      p.HostPort,
				Protocol:      p.Protocol,
			})
		}
		records = append(records, rec)
	}
	return status.Classify(records)
}

// IsNotFound reports whether an error identifies a missing container.
func IsNotFound(err error) bool {
	return errors.Is(err, docker.ErrContainerNotFound)
}
