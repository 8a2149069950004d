// Package sysinfo probes the host: hardware transcoding capability, memory,
// free disk space, and tool availability. Probes read the real filesystem
// and PATH by default; tests redirect the probe roots.
package sysinfo

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"

	"github.com/arrstack/arrstack/internal/core/domain"
)

// =============================================================================
// Prober
// =============================================================================

// Prober inspects the host. The zero value is not usable; call New.
type Prober struct {
	devRoot  string // parent of dev/ for capability probes
	procRoot string // parent of proc/ for meminfo
	lookPath func(string) (string, error)
	statfs   func(string) (freeBytes uint64, err error)
}

// New returns a prober bound to the real host.
func New() *Prober {
	return &Prober{
		devRoot:  "/",
		procRoot: "/",
		lookPath: exec.LookPath,
		statfs:   diskFree,
	}
}

func diskFree(path string) (uint64, error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(path, &st); err != nil {
		return 0, err
	}
	return st.Bavail * uint64(st.Bsize), nil
}

// =============================================================================
// Hardware Capabilities
// =============================================================================

// HardwareCaps probes the transcoding accelerators: a DRI render node for
// VAAPI, the memory-mapped codec device for V4L2, and an NVIDIA device node
// or driver tool for NVDEC.
func (p *Prober) HardwareCaps() domain.HardwareCaps {
	caps := domain.HardwareCaps{}

	if entries, err := os.ReadDir(filepath.Join(p.devRoot, "dev", "dri")); err == nil && len(entries) > 0 {
		caps.VAAPI = true
	}
	if _, err := os.Stat(filepath.Join(p.devRoot, "dev", "video10")); err == nil {
		caps.V4L2 = true
	}
	if _, err := os.Stat(filepath.Join(p.devRoot, "dev", "nvidia0")); err == nil {
		caps.NVDEC = true
	} else if _, err := p.lookPath("nvidia-smi"); err == nil {
		caps.NVDEC = true
	}

	return caps
}

// =============================================================================
// Memory and Disk
// =============================================================================

// MemoryTotalGB reads total system memory from the kernel, in whole
// gigabytes rounded down. Returns 0 when the probe fails.
func (p *Prober) MemoryTotalGB() float64 {
	f, err := os.Open(filepath.Join(p.procRoot, "proc", "meminfo"))
	if err != nil {
		return 0
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "MemTotal:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0
		}
		return float64(kb) / (1024 * 1024)
	}
	return 0
}

// DiskFreeGB reports free space at path in gigabytes. Returns 0 when the
// probe fails.
func (p *Prober) DiskFreeGB(path string) float64 {
	free, err := p.statfs(path)
	if err != nil {
		return 0
	}
	return float64(free) / (1024 * 1024 * 1024)
}

// DockerInstalled reports whether the docker binary is on PATH.
func (p *Prober) DockerInstalled() bool {
	_, err := p.lookPath("docker")
	return err == nil
}

// =============================================================================
// Compatibility Report
// =============================================================================

// Recommended pre-install thresholds.
const (
	MinMemoryGB   = 2
	MinDiskFreeGB = 10
)

// Check is one gate of the compatibility report.
type Check struct {
	Value       float64 `json:"value"`
	Unit        string  `json:"unit"`
	Compatible  bool    `json:"compatible"`
	Recommended float64 `json:"recommended"`
	Message     string  `json:"message"`
}

// Report is the pre-install compatibility summary. Compatible is advisory:
// an incompatible host may still proceed, with a warning.
type Report struct {
	Compatible      bool                `json:"compatible"`
	Architecture    string              `json:"architecture"`
	DockerInstalled bool                `json:"docker_installed"`
	Transcoding     domain.HardwareCaps `json:"transcoding"`
	Checks          map[string]Check    `json:"checks"`
}

// Compatibility runs the pre-install gates against the given install path.
func (p *Prober) Compatibility(installPath string) Report {
	memGB := p.MemoryTotalGB()
	diskGB := p.DiskFreeGB(installPath)
	memOK := memGB >= MinMemoryGB
	diskOK := diskGB >= MinDiskFreeGB

	memMsg := fmt.Sprintf("Memory: %.1fGB", memGB)
	if !memOK {
		memMsg += fmt.Sprintf(" (Recommended: >=%dGB)", MinMemoryGB)
	}
	diskMsg := fmt.Sprintf("Free Disk Space: %.1fGB", diskGB)
	if !diskOK {
		diskMsg += fmt.Sprintf(" (Recommended: >=%dGB)", MinDiskFreeGB)
	}

	return Report{
		Compatible:      memOK && diskOK,
		Architecture:    runtime.GOARCH,
		DockerInstalled: p.DockerInstalled(),
		Transcoding:     p.HardwareCaps(),
		Checks: map[string]Check{
			"memory": {
				Value:       memGB,
				Unit:        "GB",
				Compatible:  memOK,
				Recommended: MinMemoryGB,
				Message:     memMsg,
			},
			"disk_space": {
				Value:       diskGB,
				Unit:        "GB",
				Compatible:  diskOK,
				Recommended: MinDiskFreeGB,
				Message:     diskMsg,
			},
		},
	}
}
