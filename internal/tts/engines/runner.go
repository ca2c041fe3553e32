package engines

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Runner executes a synthesizer process. input is written to the process's
// stdin; the process's stdout is returned.
type Runner interface {
	Run(ctx context.Context, input string, name string, args ...string) ([]byte, error)
	LookPath(file string) (string, error)
}

// Subprocess is the Runner used outside of tests. Each call gets a fresh
// process with stdin configured before start.
type Subprocess struct {
	// Timeout bounds a single call when ctx has no deadline.
	Timeout time.Duration
}

// NewSubprocess returns a Runner that gives every process at most timeout.
func NewSubprocess(timeout time.Duration) *Subprocess {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Subprocess{Timeout: timeout}
}

// Run implements Runner.
func (s *Subprocess) Run(ctx context.Context, input string, name string, args ...string) ([]byte, error) {
	if _, ok := ctx.Deadline(); !ok && s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = strings.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s timed out after %v", name, s.Timeout)
		}
		return nil, ctx.Err()
	}
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s failed: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s failed: %w", name, err)
	}
	return stdout.Bytes(), nil
}

// LookPath implements Runner.
func (s *Subprocess) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}
