package tools

import (
	"bufio"
	"context"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// FdAdapter wraps the `fd` file finder.
type FdAdapter struct {
	Timeout    time.Duration
	MaxResults int
}

// NewFdAdapter builds an adapter with the given per-call timeout and result
// cap.
func NewFdAdapter(timeout time.Duration, maxResults int) *FdAdapter {
	return &FdAdapter{Timeout: timeout, MaxResults: maxResults}
}

// Run invokes fd for needle under root and returns absolute paths, newline
// by newline, joined to root.
func (a *FdAdapter) Run(ctx context.Context, root, needle string) ([]string, error) {
	if err := lookPath("fd"); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()

	args := []string{
		"--type", "f",
		"--hidden",
		"--color", "never",
		"--max-results", strconv.Itoa(a.MaxResults),
		needle, ".",
	}
	cmd := exec.CommandContext(ctx, "fd", args...)
	cmd.Dir = root

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	g := newGuard(cmd)
	defer g.close()

	stderrDone := make(chan string, 1)
	go func() {
		stderrDone <- drainStderr(bufio.NewScanner(stderrPipe))
	}()

	var matches []string
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		matches = append(matches, filepath.Join(root, line))
	}

	waitErr := cmd.Wait()
	g.release()
	stderrText := <-stderrDone

	if ctx.Err() == context.DeadlineExceeded {
		return nil, newTimeoutError("fd")
	}

	if waitErr != nil {
		if policyErr := exitPolicy("fd", waitErr, stderrText); policyErr != nil {
			return nil, policyErr
		}
	}

	return matches, nil
}
