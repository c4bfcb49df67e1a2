package engine

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// FormatSnippet produces a single-line presentation string from raw,
// possibly multi-line, matched text. Behaviour is dispatched on the
// lowercase extension of path.
func FormatSnippet(repoRoot, path string, line int, raw string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".swift":
		return formatSwiftSnippet(repoRoot, path, raw)
	case ".ts", ".tsx":
		return formatTypeScriptSnippet(raw)
	default:
		return formatDefaultSnippet(raw)
	}
}

func formatDefaultSnippet(raw string) string {
	for _, ln := range splitLines(raw) {
		trimmed := strings.TrimSpace(ln)
		if trimmed == "" {
			continue
		}
		return collapseWhitespace(trimmed)
	}
	return ""
}

var swiftSignatureStarts = []string{
	"func ", "protocol ", "extension ", "struct ", "class ", "actor ",
	"init(", "init ", "enum ",
}

var swiftContinuationStarts = []string{
	")", "async", "throws", "rethrows", "->", "where", "some ",
}

func formatSwiftSnippet(repoRoot, path, raw string) string {
	lines := splitLines(raw)
	trimmedLines := make([]string, 0, len(lines))
	for _, ln := range lines {
		trimmedLines = append(trimmedLines, strings.TrimSpace(ln))
	}

	startIdx := -1
	for i, ln := range trimmedLines {
		if ln == "" {
			continue
		}
		if hasAnyPrefix(ln, swiftSignatureStarts) {
			startIdx = i
			break
		}
	}
	if startIdx < 0 {
		for i, ln := range trimmedLines {
			if ln != "" {
				startIdx = i
				break
			}
		}
	}
	if startIdx < 0 {
		return ""
	}

	signature := trimmedLines[startIdx]
	for i := startIdx + 1; i < len(trimmedLines); i++ {
		ln := trimmedLines[i]
		if ln == "" || !hasAnyPrefix(ln, swiftContinuationStarts) {
			break
		}
		signature += " " + ln
	}

	signature = collapseWhitespace(signature)

	var markers []string
	addMarker := func(m string) {
		for _, existing := range markers {
			if existing == m {
				return
			}
		}
		markers = append(markers, m)
	}

	if strings.Contains(raw, "async") {
		addMarker("[async]")
	}
	if strings.Contains(raw, "await ") {
		addMarker("[await]")
	}
	for _, access := range []string{"public", "internal", "private", "fileprivate", "open"} {
		if strings.HasPrefix(signature, access) || strings.Contains(signature, access) {
			addMarker("[" + access + "]")
			break
		}
	}
	if strings.Contains(signature, "<") && strings.Contains(signature, ">") {
		addMarker("[generic]")
	}

	prefix := ""
	if enclosing := findSwiftEnclosingDecl(repoRoot, path, raw); enclosing != "" {
		prefix = enclosing + " :: "
	}

	for _, attr := range findSwiftAttributes(raw) {
		addMarker(attr)
	}

	out := prefix + signature
	for _, m := range markers {
		out += " " + m
	}
	return out
}

var swiftEnclosingStarts = []string{"extension ", "struct ", "class ", "protocol ", "actor ", "enum "}

// findSwiftEnclosingDecl looks both backward within raw and forward into the
// actual source file for an enclosing type/extension declaration.
func findSwiftEnclosingDecl(repoRoot, path, raw string) string {
	if name := firstEnclosingDeclName(splitLines(raw)); name != "" {
		return name
	}

	full := path
	if repoRoot != "" && !filepath.IsAbs(path) {
		full = filepath.Join(repoRoot, path)
	}
	f, err := os.Open(full)
	if err != nil {
		return ""
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return firstEnclosingDeclName(lines)
}

func firstEnclosingDeclName(lines []string) string {
	for _, ln := range lines {
		trimmed := strings.TrimSpace(ln)
		for _, prefix := range swiftEnclosingStarts {
			if strings.HasPrefix(trimmed, prefix) {
				rest := strings.TrimSpace(trimmed[len(prefix):])
				name := rest
				for i, r := range rest {
					if r == ':' || r == '{' || r == ' ' || r == '<' {
						name = rest[:i]
						break
					}
				}
				if name != "" {
					return name
				}
			}
		}
	}
	return ""
}

func findSwiftAttributes(raw string) []string {
	var out []string
	seen := map[string]bool{}
	for _, ln := range splitLines(raw) {
		trimmed := strings.TrimSpace(ln)
		if !strings.HasPrefix(trimmed, "@") {
			continue
		}
		end := len(trimmed)
		for i := 1; i < len(trimmed); i++ {
			if trimmed[i] == ' ' || trimmed[i] == '(' {
				end = i
				break
			}
		}
		attr := "[" + trimmed[:end] + "]"
		if !seen[attr] {
			seen[attr] = true
			out = append(out, attr)
		}
	}
	return out
}

func formatTypeScriptSnippet(raw string) string {
	var candidates []string
	for _, ln := range splitLines(raw) {
		trimmed := strings.TrimSpace(ln)
		if trimmed == "" || strings.HasPrefix(trimmed, "//") {
			continue
		}
		candidates = append(candidates, trimmed)
	}
	if len(candidates) == 0 {
		return ""
	}

	pick := ""
	for _, c := range candidates {
		if strings.HasPrefix(c, "<") || strings.HasPrefix(c, "</") {
			pick = c
			break
		}
	}
	if pick == "" {
		for _, c := range candidates {
			if strings.Contains(c, "<") && strings.Contains(c, ">") {
				pick = c
				break
			}
		}
	}
	if pick == "" {
		for _, c := range candidates {
			if strings.HasPrefix(c, "export") || strings.HasPrefix(c, "type ") ||
				strings.HasPrefix(c, "interface ") || strings.Contains(c, "=>") {
				pick = c
				break
			}
		}
	}
	if pick == "" {
		pick = candidates[0]
	}

	pick = collapseWhitespace(pick)

	var markers []string
	addMarker := func(m string) {
		for _, existing := range markers {
			if existing == m {
				return
			}
		}
		markers = append(markers, m)
	}

	if strings.Contains(raw, "async") {
		addMarker("[async]")
	}
	if strings.HasPrefix(pick, "use") || strings.Contains(pick, " = use") {
		addMarker("[hook]")
	}
	if strings.Contains(pick, "React.FC") || strings.Contains(pick, "React.FunctionComponent") ||
		strings.Contains(pick, "React.forwardRef") || strings.Contains(pick, "React.memo") {
		addMarker("[component]")
	}
	if strings.Contains(pick, "Promise<") {
		addMarker("[promise]")
	}
	if strings.Contains(pick, "=>") {
		addMarker("[arrow]")
	}
	if strings.Contains(pick, "await ") {
		addMarker("[await]")
	}
	if strings.Contains(pick, "<") && strings.Contains(pick, ">") {
		addMarker("[generic]")
	}
	if strings.Contains(pick, "satisfies ") {
		addMarker("[satisfies]")
	}

	out := pick
	for _, m := range markers {
		out += " " + m
	}
	return out
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func splitLines(s string) []string {
	return strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
