package engine

import (
	"strings"
	"testing"
)

func TestNormalizeLanguageHintExpandsAliases(t *testing.T) {
	cases := []struct {
		hint string
		want LanguageTokens
	}{
		{"typescript", LanguageTokens{"ts", "tsx"}},
		{"auto-js", LanguageTokens{"js", "jsx"}},
		{"kotlin,rust", LanguageTokens{"kt", "kts", "rust"}},
		{"", nil},
		{"  ", nil},
		{"cobol", LanguageTokens{"cobol"}},
	}
	for _, c := range cases {
		got := NormalizeLanguageHint(c.hint)
		if len(got) != len(c.want) {
			t.Errorf("NormalizeLanguageHint(%q) = %v, want %v", c.hint, got, c.want)
			continue
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Errorf("NormalizeLanguageHint(%q) = %v, want %v", c.hint, got, c.want)
				break
			}
		}
	}
}

func TestNormalizeLanguageHintDedupsAcrossSeparators(t *testing.T) {
	got := NormalizeLanguageHint("ts|typescript+ts")
	if len(got) != 2 {
		t.Fatalf("expected ts/tsx deduplicated once, got %v", got)
	}
}

func TestEscapeRegexEscapesMetacharacters(t *testing.T) {
	got := EscapeRegex("a.b*c")
	want := `a\.b\*c`
	if got != want {
		t.Errorf("EscapeRegex = %q, want %q", got, want)
	}
}

func TestQueryRewriterBuildDedupsAndEscapes(t *testing.T) {
	r := NewQueryRewriter("fetchUser", LanguageTokens{"ts"})
	got := r.Build()

	if len(got) == 0 {
		t.Fatal("expected at least one rewrite")
	}
	seen := map[string]bool{}
	for _, q := range got {
		if seen[q] {
			t.Errorf("rewrite %q duplicated in output", q)
		}
		seen[q] = true
	}
	if !seen["fetchUser"] {
		t.Errorf("expected the literal escaped symbol among rewrites, got %v", got)
	}
}

func TestQueryRewriterBuildAddsLanguageVariants(t *testing.T) {
	r := NewQueryRewriter("Widget", LanguageTokens{"swift"})
	got := r.Build()

	found := false
	for _, q := range got {
		if strings.Contains(q, "func") || strings.Contains(q, "extension") {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("expected a swift-flavored rewrite among %v", got)
	}
}

func TestTypeHintDerivesFromUnderscoreOrCamelCase(t *testing.T) {
	r := QueryRewriter{}
	cases := map[string]string{
		"user_service": "Service",
		"fetchUser":    "User",
		"widget":       "Widget",
		"":             "value",
	}
	for in, want := range cases {
		if got := r.typeHint(in); got != want {
			t.Errorf("typeHint(%q) = %q, want %q", in, got, want)
		}
	}
}
