package sysinfo

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeProber(t *testing.T) *Prober {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "dev"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "proc"), 0o755))
	return &Prober{
		devRoot:  root,
		procRoot: root,
		lookPath: func(string) (string, error) { return "", errors.New("not found") },
		statfs:   func(string) (uint64, error) { return 0, errors.New("no statfs") },
	}
}

func writeMeminfo(t *testing.T, p *Prober, totalKB string) {
	t.Helper()
	content := "MemTotal:       " + totalKB + " kB\nMemFree:         1024 kB\n"
	require.NoError(t, os.WriteFile(filepath.Join(p.procRoot, "proc", "meminfo"), []byte(content), 0o644))
}

func TestHardwareCapsNone(t *testing.T) {
	p := fakeProber(t)
	caps := p.HardwareCaps()
	assert.False(t, caps.VAAPI)
	assert.False(t, caps.V4L2)
	assert.False(t, caps.NVDEC)
	assert.False(t, caps.HasTranscoding())
}

func TestHardwareCapsVAAPI(t *testing.T) {
	p := fakeProber(t)
	require.NoError(t, os.MkdirAll(filepath.Join(p.devRoot, "dev", "dri"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(p.devRoot, "dev", "dri", "renderD128"), nil, 0o644))

	caps := p.HardwareCaps()
	assert.True(t, caps.VAAPI)
	assert.True(t, caps.HasTranscoding())
}

func TestHardwareCapsEmptyDriDirectory(t *testing.T) {
	p := fakeProber(t)
	require.NoError(t, os.MkdirAll(filepath.Join(p.devRoot, "dev", "dri"), 0o755))
	assert.False(t, p.HardwareCaps().VAAPI)
}

func TestHardwareCapsV4L2(t *testing.T) {
	p := fakeProber(t)
	require.NoError(t, os.WriteFile(filepath.Join(p.devRoot, "dev", "video10"), nil, 0o644))
	assert.True(t, p.HardwareCaps().V4L2)
}

func TestHardwareCapsNVDECDeviceNode(t *testing.T) {
	p := fakeProber(t)
	require.NoError(t, os.WriteFile(filepath.Join(p.devRoot, "dev", "nvidia0"), nil, 0o644))
	assert.True(t, p.HardwareCaps().NVDEC)
}

func TestHardwareCapsNVDECDriverTool(t *testing.T) {
	p := fakeProber(t)
	p.lookPath = func(name string) (string, error) {
		if name == "nvidia-smi" {
			return "/usr/bin/nvidia-smi", nil
		}
		return "", errors.New("not found")
	}
	assert.True(t, p.HardwareCaps().NVDEC)
}

func TestMemoryTotalGB(t *testing.T) {
	p := fakeProber(t)
	writeMeminfo(t, p, "8388608") // 8 GB
	assert.InDelta(t, 8.0, p.MemoryTotalGB(), 0.01)
}

func TestMemoryTotalGBMissingProc(t *testing.T) {
	p := fakeProber(t)
	assert.Zero(t, p.MemoryTotalGB())
}

func TestDiskFreeGB(t *testing.T) {
	p := fakeProber(t)
	p.statfs = func(string) (uint64, error) { return 50 * 1024 * 1024 * 1024, nil }
	assert.InDelta(t, 50.0, p.DiskFreeGB("/"), 0.01)
}

func TestCompatibilityGates(t *testing.T) {
	p := fakeProber(t)
	writeMeminfo(t, p, "8388608")
	p.statfs = func(string) (uint64, error) { return 100 * 1024 * 1024 * 1024, nil }
	p.lookPath = func(name string) (string, error) {
		if name == "docker" {
			return "/usr/bin/docker", nil
		}
		return "", errors.New("not found")
	}

	report := p.Compatibility("/opt/arrstack")
	assert.True(t, report.Compatible)
	assert.True(t, report.DockerInstalled)
	assert.True(t, report.Checks["memory"].Compatible)
	assert.True(t, report.Checks["disk_space"].Compatible)
}

func TestCompatibilityLowMemory(t *testing.T) {
	p := fakeProber(t)
	writeMeminfo(t, p, "1048576") // 1 GB
	p.statfs = func(string) (uint64, error) { return 100 * 1024 * 1024 * 1024, nil }

	report := p.Compatibility("/opt/arrstack")
	assert.False(t, report.Compatible)
	assert.False(t, report.Checks["memory"].Compatible)
	assert.Contains(t, report.Checks["memory"].Message, "Recommended")
	assert.True(t, report.Checks["disk_space"].Compatible)
}

func TestCompatibilityLowDisk(t *testing.T) {
	p := fakeProber(t)
	writeMeminfo(t, p, "8388608")
	p.statfs = func(string) (uint64, error) { return 5 * 1024 * 1024 * 1024, nil }

	report := p.Compatibility("/opt/arrstack")
	assert.False(t, report.Compatible)
	assert.False(t, report.Checks["disk_space"].Compatible)
}
