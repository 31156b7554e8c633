package passphrase

import (
	"errors"
	"strings"
	"testing"
)

func TestSourcePrefersEnvironment(t *testing.T) {
	t.Setenv("LAUNCHPAD_TEST_PASS", "from-env")
	src := NewSource("LAUNCHPAD_TEST_PASS", "")
	src.prompt = func(string) (string, error) {
		t.Fatalf("prompt must not be used when the variable is set")
		return "", nil
	}
	got, err := src.Get()
	if err != nil || got != "from-env" {
		t.Fatalf("unexpected result %q, %v", got, err)
	}
}

func TestSourceRejectsBlankEnvironment(t *testing.T) {
	t.Setenv("LAUNCHPAD_TEST_PASS", "   ")
	if _, err := NewSource("LAUNCHPAD_TEST_PASS", "").Get(); err == nil {
		t.Fatalf("expected blank passphrase to be rejected")
	}
}

func TestSourcePromptsOnceAndCaches(t *testing.T) {
	src := NewSource("", "admin keystore passphrase")
	calls := 0
	src.prompt = func(label string) (string, error) {
		calls++
		if label != "admin keystore passphrase" {
			t.Fatalf("unexpected label %q", label)
		}
		return "typed", nil
	}
	for i := 0; i < 2; i++ {
		got, err := src.Get()
		if err != nil || got != "typed" {
			t.Fatalf("unexpected result %q, %v", got, err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected a single prompt, got %d", calls)
	}
}

func TestSourcePromptFailureNamesVariable(t *testing.T) {
	src := NewSource("LAUNCHPAD_UNSET_PASS", "")
	src.prompt = func(string) (string, error) { return "", errNoTerminal }
	_, err := src.Get()
	if err == nil || !strings.Contains(err.Error(), "LAUNCHPAD_UNSET_PASS") || !errors.Is(err, errNoTerminal) {
		t.Fatalf("unexpected error %v", err)
	}
}
