// Package sandbox implements the OS-level confinement primitive tool
// invocations run under: Seatbelt on darwin, bubblewrap on linux.
//
// Uses a functional-options Config/Option constructor; invocation goes
// straight to OS primitives (Seatbelt/bubblewrap around a single shell
// command) rather than through a pooled container backend.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joweeba/dTOOL/pkg/toolcore"
)

// Config holds executor configuration, built up via Option functions.
type Config struct {
	Mode          toolcore.SandboxMode
	WorkspaceRoot string
	WritableRoots []string
	Timeout       time.Duration
	AllowNetwork  bool
	Shell         string
}

// Option is a functional option for configuring the executor at creation
// time.
type Option func(*Config)

// WithMode sets the sandbox mode.
func WithMode(mode toolcore.SandboxMode) Option {
	return func(c *Config) { c.Mode = mode }
}

// WithWorkspaceRoot sets the workspace root, always readable.
func WithWorkspaceRoot(root string) Option {
	return func(c *Config) { c.WorkspaceRoot = root }
}

// WithWritableRoots sets additional directories writable in WorkspaceWrite
// mode, beyond the workspace root itself.
func WithWritableRoots(roots ...string) Option {
	return func(c *Config) { c.WritableRoots = roots }
}

// WithTimeout sets the per-Execute timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithNetwork allows outbound network access inside the sandbox.
func WithNetwork(allow bool) Option {
	return func(c *Config) { c.AllowNetwork = allow }
}

// WithShell overrides the shell used to interpret commands (default /bin/sh).
func WithShell(shell string) Option {
	return func(c *Config) { c.Shell = shell }
}

// Executor confines shell command execution to a filesystem and network
// policy derived from its Config.
type Executor struct {
	config Config
	logger *slog.Logger
}

// NewExecutor builds an Executor from the given options.
func NewExecutor(opts ...Option) *Executor {
	cfg := Config{
		Mode:    toolcore.SandboxWorkspaceWrite,
		Timeout: 30 * time.Second,
		Shell:   "/bin/sh",
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Executor{config: cfg, logger: slog.Default()}
}

// ErrTimeout is returned (wrapped) when Execute's context deadline elapses.
var ErrTimeout = errors.New("sandbox: execution timed out")

// IsAvailable reports whether this platform's confinement primitive is
// installed: sandbox-exec on darwin, bwrap on linux, never on other
// platforms.
func IsAvailable() bool {
	switch runtime.GOOS {
	case "darwin":
		_, err := exec.LookPath("sandbox-exec")
		return err == nil
	case "linux":
		_, err := exec.LookPath("bwrap")
		return err == nil
	default:
		return false
	}
}

// writableRoots returns the set of directories the command may write to,
// empty in ReadOnly mode and unused (sandbox bypassed) in
// DangerFullAccess mode.
func (e *Executor) writableRoots() []string {
	if e.config.Mode == toolcore.SandboxReadOnly {
		return nil
	}
	roots := make([]string, 0, len(e.config.WritableRoots)+1)
	if e.config.WorkspaceRoot != "" {
		roots = append(roots, e.config.WorkspaceRoot)
	}
	roots = append(roots, e.config.WritableRoots...)
	return roots
}

// Execute runs command under the platform's confinement primitive and
// returns its combined stdout+stderr, exit status, and any wrapper error.
func (e *Executor) Execute(ctx context.Context, command string) (output string, exitStatus int, err error) {
	timeout := e.config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var cmd *exec.Cmd
	switch {
	case e.config.Mode == toolcore.SandboxDangerFullAccess:
		cmd = exec.CommandContext(execCtx, e.shell(), "-c", command)
	case !IsAvailable():
		e.logUnsandboxed()
		cmd = exec.CommandContext(execCtx, e.shell(), "-c", command)
	case runtime.GOOS == "darwin":
		cmd, err = e.darwinCommand(execCtx, command)
	case runtime.GOOS == "linux":
		cmd, err = e.linuxCommand(execCtx, command)
	default:
		e.logUnsandboxed()
		cmd = exec.CommandContext(execCtx, e.shell(), "-c", command)
	}
	if err != nil {
		return "", -1, err
	}

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	runErr := cmd.Run()
	if execCtx.Err() == context.DeadlineExceeded {
		return buf.String(), -1, fmt.Errorf("%w: after %s", ErrTimeout, timeout)
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return buf.String(), exitErr.ExitCode(), nil
		}
		return buf.String(), -1, fmt.Errorf("sandbox: %w", runErr)
	}
	return buf.String(), 0, nil
}

func (e *Executor) shell() string {
	if e.config.Shell != "" {
		return e.config.Shell
	}
	return "/bin/sh"
}

func (e *Executor) logUnsandboxed() {
	primitive := "sandbox-exec"
	if runtime.GOOS == "linux" {
		primitive = "bwrap"
	}
	e.logger.Warn("sandbox primitive unavailable, running unsandboxed",
		"primitive", primitive,
		"consequence", "network unrestricted, filesystem unrestricted",
		"platform", runtime.GOOS,
	)
}

// darwinCommand synthesizes a minimal Seatbelt profile and invokes the
// command under sandbox-exec.
func (e *Executor) darwinCommand(ctx context.Context, command string) (*exec.Cmd, error) {
	profile := e.seatbeltProfile()
	f, err := os.CreateTemp("", "toolcore-sandbox-*.sb")
	if err != nil {
		return nil, fmt.Errorf("sandbox: write seatbelt profile: %w", err)
	}
	if _, err := f.WriteString(profile); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("sandbox: write seatbelt profile: %w", err)
	}
	f.Close()

	args := []string{"-f", f.Name(), "--", e.shell(), "-c", command}
	cmd := exec.CommandContext(ctx, "sandbox-exec", args...)
	// The profile file is only needed for the lifetime of the child process;
	// remove it once the command has been launched and its fd duplicated.
	go func() {
		<-ctx.Done()
		os.Remove(f.Name())
	}()
	return cmd, nil
}

func (e *Executor) seatbeltProfile() string {
	var sb strings.Builder
	sb.WriteString("(version 1)\n(deny default)\n")
	sb.WriteString("(allow process-fork process-exec)\n")
	sb.WriteString("(allow file-read*)\n")
	for _, root := range e.writableRoots() {
		fmt.Fprintf(&sb, "(allow file-write* (subpath %q))\n", root)
	}
	if !e.config.AllowNetwork {
		sb.WriteString("(deny network*)\n")
	} else {
		sb.WriteString("(allow network*)\n")
	}
	return sb.String()
}

// linuxCommand builds a bwrap invocation: the whole filesystem is bind
// mounted read-only, then each writable root is re-bound read-write on top.
func (e *Executor) linuxCommand(ctx context.Context, command string) (*exec.Cmd, error) {
	args := []string{"--ro-bind", "/", "/"}
	for _, root := range e.writableRoots() {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("sandbox: resolve writable root %q: %w", root, err)
		}
		args = append(args, "--bind", abs, abs)
	}
	args = append(args, "--dev", "/dev", "--proc", "/proc")
	if !e.config.AllowNetwork {
		args = append(args, "--unshare-net")
	}
	args = append(args, "--die-with-parent", "--", e.shell(), "-c", command)
	return exec.CommandContext(ctx, "bwrap", args...), nil
}
