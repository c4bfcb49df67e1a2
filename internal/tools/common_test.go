package tools

import (
	"errors"
	"os/exec"
	"strings"
	"testing"
)

func TestExitPolicyNilErrorIsNil(t *testing.T) {
	if err := exitPolicy("rg", nil, ""); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestExitPolicyNonExitErrorWraps(t *testing.T) {
	underlying := errors.New("exec: not found")
	err := exitPolicy("rg", underlying, "")
	if err == nil || !strings.Contains(err.Error(), "rg") {
		t.Fatalf("expected wrapped error mentioning the tool, got %v", err)
	}
}

func TestExitPolicyExitCodeOneIsSuccess(t *testing.T) {
	cmd := exec.Command("sh", "-c", "exit 1")
	runErr := cmd.Run()

	if err := exitPolicy("rg", runErr, "no matches"); err != nil {
		t.Fatalf("expected exit code 1 to be treated as success, got %v", err)
	}
}

func TestExitPolicyOtherExitCodeCarriesStderr(t *testing.T) {
	cmd := exec.Command("sh", "-c", "exit 2")
	runErr := cmd.Run()

	err := exitPolicy("rg", runErr, "boom")
	if err == nil {
		t.Fatal("expected an error for a non-0/1 exit code")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected captured stderr in the error, got %v", err)
	}
}

func TestTruncateStderrCapsLength(t *testing.T) {
	long := strings.Repeat("x", stderrCaptureLimit+100)
	got := truncateStderr(long)
	if len(got) >= len(long) {
		t.Errorf("expected truncation, got length %d", len(got))
	}
	if !strings.HasSuffix(got, "... (truncated)") {
		t.Errorf("expected truncation marker, got %q", got[len(got)-30:])
	}
}

func TestIsTimeoutDistinguishesTimeoutErrors(t *testing.T) {
	if !IsTimeout(newTimeoutError("rg")) {
		t.Error("expected newTimeoutError to be recognized as a timeout")
	}
	if IsTimeout(errors.New("some other failure")) {
		t.Error("expected a plain error not to be recognized as a timeout")
	}
}

func TestPatternErrorMessage(t *testing.T) {
	err := &PatternError{Pattern: "$X.foo()", Lang: "go"}
	if !strings.Contains(err.Error(), "go") || !strings.Contains(err.Error(), "$X.foo()") {
		t.Errorf("PatternError.Error() = %q, want it to mention lang and pattern", err.Error())
	}
}
