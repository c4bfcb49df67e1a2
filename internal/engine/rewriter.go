package engine

import (
	"strings"
)

// LanguageTokens is an ordered, deduplicated sequence of normalized language
// tags derived from a request's language hint.
type LanguageTokens []string

// NormalizeLanguageHint splits a composite hint on "-+|," (after stripping
// an "auto-" prefix) and expands each piece through the normalization table.
// Tokens are deduplicated and insertion order is preserved.
func NormalizeLanguageHint(hint string) LanguageTokens {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return nil
	}
	hint = strings.TrimPrefix(hint, "auto-")

	pieces := strings.FieldsFunc(hint, func(r rune) bool {
		switch r {
		case '-', '+', '|', ',':
			return true
		default:
			return false
		}
	})

	var out LanguageTokens
	seen := map[string]bool{}
	add := func(tok string) {
		if tok == "" || seen[tok] {
			return
		}
		seen[tok] = true
		out = append(out, tok)
	}

	for _, p := range pieces {
		switch strings.ToLower(strings.TrimSpace(p)) {
		case "typescript", "ts":
			add("ts")
			add("tsx")
		case "tsx":
			add("tsx")
		case "javascript", "js":
			add("js")
			add("jsx")
		case "kotlin", "kt":
			add("kt")
			add("kts")
		case "rust", "rs":
			add("rust")
		case "python", "py":
			add("py")
		case "swift", "swiftui":
			add("swift")
		default:
			// Unrecognized tag: pass through verbatim, lowercased, so a
			// caller-supplied exotic hint still participates in extension
			// filtering and ast-grep's --lang argument.
			add(strings.ToLower(strings.TrimSpace(p)))
		}
	}
	return out
}

// Has reports whether the token set contains lang.
func (l LanguageTokens) Has(lang string) bool {
	for _, t := range l {
		if t == lang {
			return true
		}
	}
	return false
}

// regexMeta is the set of characters the rewriter must escape so a symbol's
// literal characters cannot be interpreted as regex metacharacters
// in any of the rewrites it builds.
const regexMeta = `\.+*?^$()[]{}|`

// EscapeRegex regex-escapes s so rg -e s matches s literally.
func EscapeRegex(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		if strings.ContainsRune(regexMeta, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// QueryRewriter derives the deduplicated list of regex rewrites for a
// symbol, conditioned by language tokens.
type QueryRewriter struct {
	Symbol    string
	Languages LanguageTokens
}

// NewQueryRewriter builds a rewriter for the given trimmed symbol.
func NewQueryRewriter(symbol string, languages LanguageTokens) QueryRewriter {
	return QueryRewriter{Symbol: symbol, Languages: languages}
}

// Build returns the ordered, deduplicated list of regex query strings.
func (r QueryRewriter) Build() []string {
	s := strings.TrimSpace(r.Symbol)
	typeHint := r.typeHint(s)

	queries := []string{
		EscapeRegex(s),
		EscapeRegex(s + " " + typeHint),
		EscapeRegex(s + " error"),
		EscapeRegex(typeHint + "." + s),
	}

	for _, lang := range r.Languages {
		switch lang {
		case "ts", "typescript", "tsx":
			queries = append(queries, escapeAll(typescriptVariants(s))...)
		case "swift":
			queries = append(queries, escapeAll(swiftVariants(s))...)
		case "rust":
			queries = append(queries, escapeAll(rustVariants(s))...)
		}
	}

	return dedupStrings(queries)
}

func escapeAll(raw []string) []string {
	out := make([]string, len(raw))
	for i, v := range raw {
		out[i] = EscapeRegex(v)
	}
	return out
}

// typeHint derives the synthetic "type name" used in a couple of the base
// rewrites.
func (r QueryRewriter) typeHint(s string) string {
	if s == "" {
		return "value"
	}
	if strings.Contains(s, "_") {
		segment := lastSegment(s, "_:.")
		return titleCase(segment)
	}
	if idx := lastUppercaseIndex(s); idx >= 0 {
		return s[idx:]
	}
	return titleCase(s)
}

func lastSegment(s, seps string) string {
	idx := strings.LastIndexAny(s, seps)
	if idx < 0 {
		return s
	}
	return s[idx+1:]
}

func lastUppercaseIndex(s string) int {
	last := -1
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			last = i
		}
	}
	return last
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	if r[0] >= 'a' && r[0] <= 'z' {
		r[0] = r[0] - 'a' + 'A'
	}
	return string(r)
}

func dedupStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func beginsUpper(s string) bool {
	if s == "" {
		return false
	}
	r := []rune(s)[0]
	return r >= 'A' && r <= 'Z'
}

func beginsWith(s, prefix string) bool {
	return strings.HasPrefix(s, prefix)
}

func typescriptVariants(s string) []string {
	if s == "" {
		return nil
	}
	variants := []string{
		s + "<", s + " <", "<" + s, "</" + s,
		s + " extends", "type " + s, "interface " + s,
		"const " + s, "export const " + s,
		"function " + s, "export function " + s,
		s + "(", s + " satisfies", "namespace " + s,
		"export default " + s, s + " props", s + ":",
	}
	if beginsWith(s, "use") {
		variants = append(variants, s+"<{")
	}
	variants = append(variants, "<"+s+" ", "<"+s+" />")
	if beginsUpper(s) {
		variants = append(variants, s+"Props", s+"Component",
			"<"+s+" {...", "React.memo("+s, "React.forwardRef("+s)
	}
	return variants
}

func swiftVariants(s string) []string {
	if s == "" {
		return nil
	}
	variants := []string{
		"func " + s, "func " + s + "(", "func " + s + "<",
		s + " async", "@MainActor func " + s,
		s + "(", "." + s, "self." + s, "await " + s,
	}
	if beginsUpper(s) {
		variants = append(variants, "@"+s, ": "+s, "extension "+s, "where "+s)
	}
	return variants
}

func rustVariants(s string) []string {
	if s == "" {
		return nil
	}
	return []string{
		"fn " + s, "impl " + s, "trait " + s, "pub(crate) " + s,
		s + "::<", "::" + s, "macro_rules! " + s,
	}
}
