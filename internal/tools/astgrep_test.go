package tools

import (
	"strings"
	"testing"
)

func TestPatternBuildsIdentityEqualityQuery(t *testing.T) {
	got := Pattern("fetchUser")
	want := `(identifier) @id (#eq? @id "fetchUser")`
	if got != want {
		t.Errorf("Pattern(fetchUser) = %q, want %q", got, want)
	}
}

func TestPatternEscapesQuotes(t *testing.T) {
	got := Pattern(`foo"bar`)
	if !strings.Contains(got, `\"`) {
		t.Errorf("Pattern should escape embedded quotes, got %q", got)
	}
}

func TestPatternFamilyDefaultsToRustWhenTokensEmpty(t *testing.T) {
	got := patternFamily(nil, "fetchUser")
	if len(got) == 0 {
		t.Fatal("expected a non-empty pattern family")
	}
	for _, lp := range got {
		if lp.Lang != "rust" {
			t.Errorf("expected every pattern to default to rust, got lang %q", lp.Lang)
		}
	}
}

func TestPatternFamilyCoversEachTokenWithDeclarationShapes(t *testing.T) {
	got := patternFamily([]string{"rust", "py"}, "run")

	byLang := map[string]int{}
	for _, lp := range got {
		byLang[lp.Lang]++
	}
	if byLang["rust"] < 2 || byLang["py"] < 2 {
		t.Errorf("expected multiple patterns per token, got %+v", byLang)
	}
}

func TestPatternFamilyDedupsIdenticalAttempts(t *testing.T) {
	got := patternFamily([]string{"rust", "rust"}, "run")
	seen := map[langPattern]bool{}
	for _, lp := range got {
		if seen[lp] {
			t.Errorf("duplicate pattern attempt %+v", lp)
		}
		seen[lp] = true
	}
}
