// Package composecli invokes the host's composition tool against a rendered
// compose file. The invocation spelling differs between installs ("docker
// compose" plugin vs standalone "docker-compose"); it is probed once and
// cached for the process lifetime.
package composecli

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// ErrCommandFailed marks a composition command that exited non-zero.
var ErrCommandFailed = errors.New("compose command failed")

// CommandError carries the failing invocation and its combined output.
type CommandError struct {
	Args   []string
	Output string
	Err    error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", strings.Join(e.Args, " "), strings.TrimSpace(e.Output))
}

func (e *CommandError) Unwrap() error {
	return ErrCommandFailed
}

// Runner executes a command and returns its combined output. Tests inject a
// fake; production uses ExecRunner.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands through os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// =============================================================================
// Compose CLI
// =============================================================================

// CLI drives the composition tool against one compose file.
type CLI struct {
	runner Runner

	probeOnce sync.Once
	cmd       []string
}

// New creates a CLI using the given runner.
func New(runner Runner) *CLI {
	return &CLI{runner: runner}
}

// Command returns the probed invocation prefix. The plugin form is preferred;
// the standalone binary is a fallback, and the plugin form is assumed when
// neither probe succeeds so a later invocation produces a real error message.
func (c *CLI) Command(ctx context.Context) []string {
	c.probeOnce.Do(func() {
		if _, err := c.runner.Run(ctx, "docker", "compose", "version"); err == nil {
			c.cmd = []string{"docker", "compose"}
			return
		}
		if _, err := c.runner.Run(ctx, "docker-compose", "--version"); err == nil {
			c.cmd = []string{"docker-compose"}
			return
		}
		c.cmd = []string{"docker", "compose"}
	})
	return c.cmd
}

// Up applies a compose file with detached containers.
func (c *CLI) Up(ctx context.Context, composeFile, envFile string) error {
	return c.run(ctx, composeFile, envFile, "up", "-d")
}

// Down tears down the composition described by the file.
func (c *CLI) Down(ctx context.Context, composeFile, envFile string) error {
	return c.run(ctx, composeFile, envFile, "down")
}

// Pull pulls every image the composition references.
func (c *CLI) Pull(ctx context.Context, composeFile, envFile string) error {
	return c.run(ctx, composeFile, envFile, "pull")
}

func (c *CLI) run(ctx context.Context, composeFile, envFile string, verb ...string) error {
	base := c.Command(ctx)
	args := append([]string{}, base[1:]...)
	args = append(args, "-f", composeFile)
	if envFile != "" {
		args = append(args, "--env-file", envFile)
	}
	args = append(args, verb...)

	out, err := c.runner.Run(ctx, base[0], args...)
	if err != nil {
		full := append([]string{base[0]}, args...)
		return &CommandError{Args: full, Output: string(out), Err: err}
	}
	return nil
}
