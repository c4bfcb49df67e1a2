package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// AstGrepMatch is one structural match: a (path, 0-based line) pair as
// ast-grep reports it. Callers building the dedup/ast_set key add 1 to Line
// so it can be deduplicated against ripgrep hits on the same line.
type AstGrepMatch struct {
	Path string
	Line int
}

type astGrepMessage struct {
	Path  string `json:"path"`
	Range struct {
		Start struct {
			Line int `json:"line"`
		} `json:"start"`
	} `json:"range"`
}

// AstGrepAdapter wraps the `ast-grep` structural search tool.
type AstGrepAdapter struct {
	Timeout    time.Duration
	MaxMatches int
}

// NewAstGrepAdapter builds an adapter with the given per-call timeout and
// result cap.
func NewAstGrepAdapter(timeout time.Duration, maxMatches int) *AstGrepAdapter {
	return &AstGrepAdapter{Timeout: timeout, MaxMatches: maxMatches}
}

// Pattern builds the tree-sitter identifier-equality pattern used to locate
// a symbol structurally, independent of any one language's declaration
// syntax.
func Pattern(symbol string) string {
	escaped := strings.ReplaceAll(symbol, `"`, `\"`)
	return fmt.Sprintf(`(identifier) @id (#eq? @id "%s")`, escaped)
}

// declarationPatterns returns the declaration-shaped ast-grep patterns worth
// trying for a normalized language token, on top of the generic
// identifier-equality pattern every token gets.
func declarationPatterns(lang, symbol string) []string {
	switch lang {
	case "rust":
		return []string{
			"fn " + symbol + "($$$ARGS)",
			"struct " + symbol,
			"enum " + symbol,
			"trait " + symbol,
		}
	case "ts", "tsx", "js", "jsx":
		return []string{
			"function " + symbol + "($$$ARGS)",
			"const " + symbol + " = $$$BODY",
			"class " + symbol,
			"interface " + symbol,
		}
	case "py":
		return []string{
			"def " + symbol + "($$$ARGS)",
			"class " + symbol,
		}
	case "kt", "kts":
		return []string{
			"fun " + symbol + "($$$ARGS)",
			"class " + symbol,
		}
	case "swift":
		return []string{
			"func " + symbol + "($$$ARGS)",
			"class " + symbol,
			"struct " + symbol,
		}
	default:
		return nil
	}
}

// langPattern pairs one tree-sitter pattern with the language it should run
// under.
type langPattern struct {
	Lang    string
	Pattern string
}

// patternFamily returns the ordered, deduplicated set of (lang, pattern)
// attempts for tokens, defaulting to a single "rust" token when tokens is
// empty.
func patternFamily(tokens []string, symbol string) []langPattern {
	if len(tokens) == 0 {
		tokens = []string{"rust"}
	}
	var out []langPattern
	seen := map[langPattern]bool{}
	add := func(lp langPattern) {
		if seen[lp] {
			return
		}
		seen[lp] = true
		out = append(out, lp)
	}
	for _, tok := range tokens {
		add(langPattern{Lang: tok, Pattern: Pattern(symbol)})
		for _, p := range declarationPatterns(tok, symbol) {
			add(langPattern{Lang: tok, Pattern: p})
		}
	}
	return out
}

// SearchIdentifier runs one ast-grep invocation per pattern in symbol's
// pattern family (one per normalized language token, or "rust" when tokens
// is empty), restricted to paths (or the whole tree when paths is empty).
// Matches are merged across patterns, deduplicated by (path, line), and
// capped at a.MaxMatches. A pattern ast-grep reports as containing an ERROR
// node is recoverable: it is skipped and surfaced in the returned
// *PatternError slice rather than failing the whole call. Output may be a
// top-level JSON array or newline-delimited JSON objects; both are accepted.
func (a *AstGrepAdapter) SearchIdentifier(ctx context.Context, root, symbol string, tokens []string, paths []string) ([]AstGrepMatch, []*PatternError, error) {
	if err := lookPath("ast-grep"); err != nil {
		return nil, nil, err
	}

	seen := map[AstGrepMatch]bool{}
	var matches []AstGrepMatch
	var patternErrs []*PatternError

	for _, attempt := range patternFamily(tokens, symbol) {
		if len(matches) >= a.MaxMatches {
			break
		}
		found, perr, err := a.runPattern(ctx, root, attempt.Lang, attempt.Pattern, paths)
		if err != nil {
			return matches, patternErrs, err
		}
		if perr != nil {
			patternErrs = append(patternErrs, perr)
			continue
		}
		for _, m := range found {
			if len(matches) >= a.MaxMatches {
				break
			}
			if seen[m] {
				continue
			}
			seen[m] = true
			matches = append(matches, m)
		}
	}
	return matches, patternErrs, nil
}

// runPattern runs one ast-grep invocation for a single (lang, pattern) pair.
// A *PatternError return means the pattern itself was rejected as
// ERROR-node-bearing; the caller should skip it and keep trying the rest of
// the family.
func (a *AstGrepAdapter) runPattern(ctx context.Context, root, lang, pattern string, paths []string) ([]AstGrepMatch, *PatternError, error) {
	ctx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()

	args := []string{"--json", "--pattern", pattern, "--lang", lang}
	if len(paths) == 0 {
		args = append(args, ".")
	} else {
		for _, p := range paths {
			args = append(args, relativeTo(root, p))
		}
	}

	cmd := exec.CommandContext(ctx, "ast-grep", args...)
	cmd.Dir = root

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, err
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, err
	}

	g := newGuard(cmd)
	defer g.close()

	stderrDone := make(chan string, 1)
	go func() {
		stderrDone <- drainStderr(bufio.NewScanner(stderrPipe))
	}()

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	var raw strings.Builder
	for scanner.Scan() {
		raw.WriteString(scanner.Text())
		raw.WriteByte('\n')
	}

	waitErr := cmd.Wait()
	g.release()
	stderrText := <-stderrDone

	if ctx.Err() == context.DeadlineExceeded {
		return nil, nil, newTimeoutError("ast-grep")
	}
	if strings.Contains(strings.ToLower(stderrText), "error node") {
		return nil, &PatternError{Pattern: pattern, Lang: lang}, nil
	}
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); !ok || exitErr.ExitCode() != 1 {
			return nil, nil, exitPolicy("ast-grep", waitErr, stderrText)
		}
	}

	text := strings.TrimSpace(raw.String())
	if text == "" {
		return nil, nil, nil
	}

	var matches []AstGrepMatch

	var arr []astGrepMessage
	if err := json.Unmarshal([]byte(text), &arr); err == nil {
		for _, msg := range arr {
			matches = append(matches, AstGrepMatch{Path: msg.Path, Line: msg.Range.Start.Line})
		}
		return matches, nil, nil
	}

	for _, line := range strings.Split(text, "\n") {
		if line == "" {
			continue
		}
		var msg astGrepMessage
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			continue
		}
		matches = append(matches, AstGrepMatch{Path: msg.Path, Line: msg.Range.Start.Line})
	}
	return matches, nil, nil
}
