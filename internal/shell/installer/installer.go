// Package installer provides the wizard's stage executors: the concrete
// work behind each installation stage, from the pre-install compatibility
// check through container creation and the final summary.
package installer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/arrstack/arrstack/internal/core/catalog"
	"github.com/arrstack/arrstack/internal/core/domain"
	"github.com/arrstack/arrstack/internal/core/plan"
	"github.com/arrstack/arrstack/internal/core/wizard"
	"github.com/arrstack/arrstack/internal/shell/composecli"
	"github.com/arrstack/arrstack/internal/shell/orchestrator"
	"github.com/arrstack/arrstack/internal/shell/sysinfo"
)

// ConfigStore reads the persisted configuration the stages act on.
type ConfigStore interface {
	GetBaseConfig(ctx context.Context) (domain.BaseConfig, error)
	GetSelection(ctx context.Context) (domain.SelectionState, error)
}

// HostProber is the slice of the host prober the stages need.
type HostProber interface {
	Compatibility(installPath string) sysinfo.Report
	HardwareCaps() domain.HardwareCaps
	DockerInstalled() bool
}

// Summary is the finalization stage's output: what is running and where to
// reach it.
type Summary struct {
	TotalContainers   int               `json:"total"`
	RunningContainers int               `json:"running"`
	StoppedContainers int               `json:"stopped"`
	URLs              map[string]string `json:"urls"`
}

// Installer binds the stage executors to the host, the store, and the
// orchestrator.
type Installer struct {
	store   ConfigStore
	prober  HostProber
	orch    *orchestrator.Orchestrator
	runner  composecli.Runner
	catalog *catalog.Catalog
	logger  *slog.Logger

	// etcRoot is the parent of etc/ used for distro detection; "/" on a
	// real host.
	etcRoot string

	summary *Summary
}

// New creates an installer.
func New(store ConfigStore, prober HostProber, orch *orchestrator.Orchestrator, runner composecli.Runner, cat *catalog.Catalog, logger *slog.Logger) *Installer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Installer{
		store:   store,
		prober:  prober,
		orch:    orch,
		runner:  runner,
		catalog: cat,
		logger:  logger,
		etcRoot: "/",
	}
}

// Executors returns the full stage map for the wizard.
func (i *Installer) Executors() wizard.Executors {
	return wizard.Executors{
		wizard.StagePreCheck:          i.preCheck,
		wizard.StageDependencyInstall: i.dependencyInstall,
		wizard.StageDockerSetup:       i.dockerSetup,
		wizard.StageGenerateCompose:   i.generateCompose,
		wizard.StageServiceSetup:      i.serviceSetup,
		wizard.StageContainerCreation: i.containerCreation,
		wizard.StagePostInstall:       i.postInstall,
		wizard.StageFinalization:      i.finalization,
	}
}

// Summary returns the finalization output, or nil before finalization ran.
func (i *Installer) Summary() *Summary {
	return i.summary
}

// =============================================================================
// Stage: pre_check
// =============================================================================

// preCheck runs the compatibility gates. An under-provisioned host is a
// warning, not a failure; the user chose to install here.
func (i *Installer) preCheck(ctx context.Context, rep wizard.Reporter) error {
	rep.Log("Starting system compatibility check")
	rep.Progress(30)

	cfg, err := i.store.GetBaseConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	report := i.prober.Compatibility(cfg.DockerDir)
	rep.Progress(70)

	for _, check := range report.Checks {
		rep.Log(check.Message)
	}
	if report.DockerInstalled {
		rep.Log("Docker: Installed")
	} else {
		rep.Log("Docker: Not installed (will be installed during setup)")
	}
	if !report.Compatible {
		rep.Log("WARNING: System may not be fully compatible. Continuing anyway.")
	}

	rep.Progress(100)
	rep.Log("System compatibility check completed")
	return nil
}

// =============================================================================
// Stage: dependency_install
// =============================================================================

type distro struct {
	name     string
	update   []string
	install  []string
	packages []string
}

// detectDistro identifies the package manager by release file. An unknown
// distribution skips system package installation rather than failing.
func (i *Installer) detectDistro() *distro {
	etc := filepath.Join(i.etcRoot, "etc")
	if _, err := os.Stat(filepath.Join(etc, "debian_version")); err == nil {
		return &distro{
			name:     "apt",
			update:   []string{"apt", "update"},
			install:  []string{"apt", "install", "-y"},
			packages: []string{"curl", "ca-certificates"},
		}
	}
	if _, err := os.Stat(filepath.Join(etc, "fedora-release")); err == nil {
		return &distro{
			name:     "dnf",
			install:  []string{"dnf", "install", "-y"},
			packages: []string{"curl", "ca-certificates"},
		}
	}
	if _, err := os.Stat(filepath.Join(etc, "arch-release")); err == nil {
		return &distro{
			name:     "pacman",
			install:  []string{"pacman", "-S", "--noconfirm"},
			packages: []string{"curl", "ca-certificates"},
		}
	}
	return nil
}

func (i *Installer) dependencyInstall(ctx context.Context, rep wizard.Reporter) error {
	rep.Log("Installing dependencies")
	rep.Progress(20)

	d := i.detectDistro()
	if d == nil {
		rep.Log("Unable to determine Linux distribution. Skipping system package installation.")
		rep.Progress(100)
		return nil
	}
	rep.Log("Detected package manager: " + d.name)

	if len(d.update) > 0 {
		rep.Log("Running: " + strings.Join(d.update, " "))
		if out, err := i.runner.Run(ctx, d.update[0], d.update[1:]...); err != nil {
			rep.Log(fmt.Sprintf("WARNING: package list update failed: %s", firstLine(out, err)))
		}
	}
	rep.Progress(60)

	args := append(append([]string{}, d.install[1:]...), d.packages...)
	rep.Log("Installing system packages: " + strings.Join(d.packages, ", "))
	if out, err := i.runner.Run(ctx, d.install[0], args...); err != nil {
		return fmt.Errorf("system package installation failed: %s", firstLine(out, err))
	}

	rep.Progress(100)
	rep.Log("Dependency installation completed")
	return nil
}

func firstLine(out []byte, err error) string {
	s := strings.TrimSpace(string(out))
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	if s == "" {
		return err.Error()
	}
	return s
}

// =============================================================================
// Stage: docker_setup
// =============================================================================

const dockerInstallScript = "/tmp/get-docker.sh"

func (i *Installer) dockerSetup(ctx context.Context, rep wizard.Reporter) error {
	rep.Log("Setting up Docker")
	rep.Progress(10)

	if i.prober.DockerInstalled() {
		rep.Log("Docker is already installed")
	} else {
		rep.Log("Docker not installed. Installing Docker...")
		if out, err := i.runner.Run(ctx, "curl", "-fsSL", "https://get.docker.com", "-o", dockerInstallScript); err != nil {
			return fmt.Errorf("failed to download Docker installation script: %s", firstLine(out, err))
		}
		rep.Log("Docker installation script downloaded")
		rep.Progress(40)

		if out, err := i.runner.Run(ctx, "sh", dockerInstallScript); err != nil {
			return fmt.Errorf("Docker installation failed: %s", firstLine(out, err))
		}
		os.Remove(dockerInstallScript)
		rep.Log("Docker installed successfully")
	}
	rep.Progress(70)

	// Make sure the daemon is up; a fresh install may leave it stopped.
	if out, err := i.runner.Run(ctx, "systemctl", "is-active", "docker"); err != nil || strings.TrimSpace(string(out)) != "active" {
		rep.Log("Docker service is not active. Starting Docker service...")
		if out, err := i.runner.Run(ctx, "systemctl", "start", "docker"); err != nil {
			return fmt.Errorf("failed to start Docker service: %s", firstLine(out, err))
		}
		rep.Log("Docker service started")
	}

	rep.Progress(100)
	rep.Log("Docker setup completed")
	return nil
}

// =============================================================================
// Stage: generate_compose
// =============================================================================

func (i *Installer) generateCompose(ctx context.Context, rep wizard.Reporter) error {
	rep.Log("Generating Docker Compose files")
	rep.Progress(20)

	cfg, err := i.store.GetBaseConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	sel, err := i.store.GetSelection(ctx)
	if err != nil {
		return fmt.Errorf("failed to load service selection: %w", err)
	}
	rep.Log(fmt.Sprintf("Planning %d selected services", sel.CountEnabled()))

	p, err := plan.Generate(sel, cfg, i.prober.HardwareCaps(), i.catalog)
	if err != nil {
		return err
	}
	rep.Progress(60)

	env, err := plan.RenderEnvFile(cfg)
	if err != nil {
		return err
	}
	if err := i.orch.WritePlan(p, env); err != nil {
		return err
	}

	rep.Log("Docker Compose file generated successfully")
	rep.Log("Environment file generated successfully")
	rep.Progress(100)
	return nil
}

// =============================================================================
// Stage: service_setup
// =============================================================================

// serviceSetup creates the per-service state directories and the shared
// media and download trees so containers start with writable mounts.
func (i *Installer) serviceSetup(ctx context.Context, rep wizard.Reporter) error {
	rep.Log("Preparing service directories")
	rep.Progress(20)

	cfg, err := i.store.GetBaseConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	sel, err := i.store.GetSelection(ctx)
	if err != nil {
		return fmt.Errorf("failed to load service selection: %w", err)
	}

	dirs := []string{cfg.MediaDir, cfg.DownloadsDir, filepath.Join(cfg.DownloadsDir, "watch"), cfg.DockerDir}
	for _, category := range catalog.Categories() {
		for name := range sel.EnabledInCategory(category) {
			dirs = append(dirs, filepath.Join(cfg.DockerDir, name))
		}
	}
	if cfg.VPN.Enabled {
		dirs = append(dirs, filepath.Join(cfg.DockerDir, catalog.VPNGatewayName))
	}
	if cfg.RemoteAccess.Enabled {
		dirs = append(dirs, filepath.Join(cfg.DockerDir, catalog.TailscaleName))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
		// Ownership matters more than it looks: linuxserver images run as
		// PUID/PGID and fail on root-owned config dirs. Best effort off-root.
		if err := os.Chown(dir, cfg.PUID, cfg.PGID); err != nil {
			rep.Log(fmt.Sprintf("WARNING: could not chown %s: %v", dir, err))
		}
	}

	rep.Progress(100)
	rep.Log(fmt.Sprintf("Prepared %d directories", len(dirs)))
	return nil
}

// =============================================================================
// Stage: container_creation
// =============================================================================

func (i *Installer) containerCreation(ctx context.Context, rep wizard.Reporter) error {
	rep.Log("Pulling container images")
	rep.Progress(20)

	if err := i.orch.Pull(ctx); err != nil {
		return err
	}
	rep.Progress(60)

	rep.Log("Creating Docker containers")
	if err := i.orch.Up(ctx); err != nil {
		return err
	}

	rep.Progress(100)
	rep.Log("Docker containers created successfully")
	return nil
}

// =============================================================================
// Stage: post_install
// =============================================================================

// postInstall records the critical mount points so a boot-time unit can hold
// container startup until storage is attached.
func (i *Installer) postInstall(ctx context.Context, rep wizard.Reporter) error {
	rep.Log("Performing post-installation tasks")
	rep.Progress(30)

	cfg, err := i.store.GetBaseConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	mountsFile := filepath.Join(i.orch.ConfigDir(), "critical-mounts.conf")
	content := cfg.MediaDir + "\n" + cfg.DownloadsDir + "\n"
	if err := os.MkdirAll(i.orch.ConfigDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(mountsFile, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write critical mounts file: %w", err)
	}
	rep.Log("Recorded critical mount points")

	rep.Progress(100)
	rep.Log("Post-installation tasks completed")
	return nil
}

// =============================================================================
// Stage: finalization
// =============================================================================

func (i *Installer) finalization(ctx context.Context, rep wizard.Reporter) error {
	rep.Log("Finalizing installation")
	rep.Progress(40)

	containers := i.orch.ContainerStatus(ctx)
	summary := &Summary{URLs: map[string]string{}}
	for name, info := range containers {
		if info.Status == "error" {
			continue
		}
		summary.TotalContainers++
		if info.Status == "running" {
			summary.RunningContainers++
		} else {
			summary.StoppedContainers++
		}
		if info.URL != "" {
			summary.URLs[name] = info.URL
		}
	}
	i.summary = summary

	rep.Log(fmt.Sprintf("Containers: %d total, %d running, %d stopped",
		summary.TotalContainers, summary.RunningContainers, summary.StoppedContainers))
	rep.Progress(100)
	rep.Log("Installation completed successfully")
	return nil
}
