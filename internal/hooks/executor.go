// Package hooks runs operator-configured shell commands in response to relay
// events: reporters joining or going idle, rejected samples and shakes.
package hooks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"os/exec"
	"slices"
	"strings"
	"time"
)

// Hook command timeouts are clamped to MinTimeout..MaxTimeout. Zero or
// negative means DefaultTimeout.
const (
	DefaultTimeout = 30 * time.Second
	MinTimeout     = time.Second
	MaxTimeout     = 10 * time.Minute
)

func clampTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultTimeout
	}
	return min(max(d, MinTimeout), MaxTimeout)
}

// maxOutput bounds the output kept from a hook, which ends up in logs.
const maxOutput = 4 << 10

// Result describes one hook run.
type Result struct {
	// Output is trimmed stdout, or stderr when stdout was empty.
	Output   string
	ExitCode int // -1 when the command did not exit normally
	TimedOut bool
	Duration time.Duration
	Err      error
}

// Execute runs command with "sh -c", bounded by timeout. env entries are
// added to the relay's own environment, sorted by key.
func Execute(ctx context.Context, command string, timeout time.Duration, env map[string]string) Result {
	timeout = clampTimeout(timeout)
	hookCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(hookCtx, "sh", "-c", command) //nolint:gosec // hook commands come from server configuration
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Env = append(os.Environ(), hookEnv(env)...)
	// Background children holding the pipes must not keep Run open.
	cmd.WaitDelay = time.Second

	start := time.Now()
	err := cmd.Run()
	res := Result{
		Output:   truncate(strings.TrimSpace(stdout.String())),
		ExitCode: cmd.ProcessState.ExitCode(),
		TimedOut: errors.Is(hookCtx.Err(), context.DeadlineExceeded),
		Duration: time.Since(start),
		Err:      err,
	}
	if res.Output == "" {
		res.Output = truncate(strings.TrimSpace(stderr.String()))
	}
	if res.TimedOut {
		res.Err = fmt.Errorf("hook timed out after %s: %w", timeout, err)
	}
	return res
}

func hookEnv(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for _, k := range slices.Sorted(maps.Keys(env)) {
		out = append(out, k+"="+env[k])
	}
	return out
}

func truncate(s string) string {
	if len(s) <= maxOutput {
		return s
	}
	return s[:maxOutput] + "...(truncated)"
}
