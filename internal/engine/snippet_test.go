package engine

import (
	"strings"
	"testing"
)

func TestFormatSnippetDefaultCollapsesWhitespace(t *testing.T) {
	got := FormatSnippet("", "main.go", 1, "\n   func  Foo()   {\n")
	want := "func Foo() {"
	if got != want {
		t.Errorf("FormatSnippet = %q, want %q", got, want)
	}
}

func TestFormatSnippetTypeScriptPrefersJSX(t *testing.T) {
	raw := "const x = 1;\n<Widget prop={x} />"
	got := FormatSnippet("", "widget.tsx", 10, raw)
	if !strings.HasPrefix(got, "<Widget") {
		t.Errorf("FormatSnippet picked %q, want the JSX line preferred", got)
	}
}

func TestFormatSnippetTypeScriptMarksAsyncArrow(t *testing.T) {
	raw := "export const fetchUser = async () => {\n  await call()\n}"
	got := FormatSnippet("", "api.ts", 4, raw)
	if !strings.Contains(got, "[async]") || !strings.Contains(got, "[arrow]") {
		t.Errorf("FormatSnippet = %q, want [async] and [arrow] markers", got)
	}
}

func TestFormatSnippetSwiftJoinsSignatureContinuation(t *testing.T) {
	raw := "func fetchUser(id: String)\n    async throws -> User {\n        return try await api.get(id)\n    }"
	got := FormatSnippet("", "Service.swift", 1, raw)
	if !strings.HasPrefix(got, "func fetchUser(id: String) async throws -> User {") {
		t.Errorf("FormatSnippet = %q, want joined signature+continuation", got)
	}
	if !strings.Contains(got, "[async]") {
		t.Errorf("FormatSnippet = %q, want [async] marker from the raw match", got)
	}
}

func TestFormatSnippetEmptyRawYieldsEmptyString(t *testing.T) {
	if got := FormatSnippet("", "main.go", 1, "   \n  \n"); got != "" {
		t.Errorf("FormatSnippet(blank) = %q, want empty string", got)
	}
}

func TestCollapseWhitespaceJoinsFields(t *testing.T) {
	if got := collapseWhitespace("  a   b\tc  "); got != "a b c" {
		t.Errorf("collapseWhitespace = %q, want %q", got, "a b c")
	}
}
