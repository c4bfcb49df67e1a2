package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"
)

// RipgrepMatch is one parsed "match"-typed rg JSON record.
type RipgrepMatch struct {
	Path       string
	LineNumber int
	Lines      string
	RawJSON    string
}

// RipgrepAdapter wraps the `rg` binary. MaxColumns is a first-class,
// configurable field (default 200) rather than a hardcoded constant at some
// call sites.
type RipgrepAdapter struct {
	Timeout        time.Duration
	MaxMatches     int
	ContextBefore  int
	ContextAfter   int
	MaxColumns     int
	Threads        int
}

// NewRipgrepAdapter builds an adapter; threads below 1 are clamped to 1.
func NewRipgrepAdapter(timeout time.Duration, maxMatches, contextBefore, contextAfter, maxColumns, threads int) *RipgrepAdapter {
	if threads < 1 {
		threads = 1
	}
	if maxColumns <= 0 {
		maxColumns = 200
	}
	return &RipgrepAdapter{
		Timeout:       timeout,
		MaxMatches:    maxMatches,
		ContextBefore: contextBefore,
		ContextAfter:  contextAfter,
		MaxColumns:    maxColumns,
		Threads:       threads,
	}
}

// SearchUnion invokes a single rg process carrying every query as a
// repeated -e flag, scoped to paths (or the whole tree when paths is empty).
func (a *RipgrepAdapter) SearchUnion(ctx context.Context, root string, queries []string, paths []string) ([]RipgrepMatch, error) {
	if len(queries) == 0 {
		return nil, nil
	}
	if err := lookPath("rg"); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()

	args := []string{
		"--json", "--line-number", "--column",
		"--threads", strconv.Itoa(a.Threads),
		"--max-columns", strconv.Itoa(a.MaxColumns),
		"--smart-case",
		"--max-count", strconv.Itoa(a.MaxMatches),
	}
	if a.ContextBefore > 0 {
		args = append(args, "--before-context", strconv.Itoa(a.ContextBefore))
	}
	if a.ContextAfter > 0 {
		args = append(args, "--after-context", strconv.Itoa(a.ContextAfter))
	}
	for _, q := range queries {
		args = append(args, "-e", q)
	}

	if len(paths) == 0 {
		args = append(args, ".")
	} else {
		scoped := paths
		if len(scoped) > a.MaxMatches {
			scoped = scoped[:a.MaxMatches]
		}
		for _, p := range scoped {
			args = append(args, relativeTo(root, p))
		}
	}

	cmd := exec.CommandContext(ctx, "rg", args...)
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

	var matches []RipgrepMatch
	capped := false
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if len(matches) >= a.MaxMatches {
			capped = true
			break
		}
		line := scanner.Text()
		var msg RgMessage
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			continue
		}
		if msg.Type != "match" {
			continue
		}
		matches = append(matches, RipgrepMatch{
			Path:       msg.Data.Path.Text,
			LineNumber: msg.Data.LineNumber,
			Lines:      msg.Data.Lines.Text,
			RawJSON:    line,
		})
	}
	if capped {
		g.close()
	}

	waitErr := cmd.Wait()
	g.release()
	stderrText := <-stderrDone

	if ctx.Err() == context.DeadlineExceeded {
		return nil, newTimeoutError("rg")
	}
	if waitErr != nil && !capped {
		if policyErr := exitPolicy("rg", waitErr, stderrText); policyErr != nil {
			return nil, policyErr
		}
	}

	return matches, nil
}

func relativeTo(root, p string) string {
	abs := p
	if !filepath.IsAbs(p) {
		abs = filepath.Join(root, p)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return abs
	}
	return rel
}
