package passphrase

import (
	"errors"
	"testing"
)

func scripted(entries ...string) func(string) (string, error) {
	return func(string) (string, error) {
		if len(entries) == 0 {
			return "", ErrNoInput
		}
		next := entries[0]
		entries = entries[1:]
		return next, nil
	}
}

func TestSourcePrefersEnvironment(t *testing.T) {
	t.Setenv("LOANCTL_TEST_PASS", "hunter2")
	src := NewSource("LOANCTL_TEST_PASS")
	got, err := src.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "hunter2" {
		t.Fatalf("unexpected passphrase %q", got)
	}
	t.Setenv("LOANCTL_TEST_PASS", "changed")
	if again, _ := src.Get(); again != "hunter2" {
		t.Fatalf("expected cached passphrase, got %q", again)
	}
}

func TestSourceRejectsBlankEnvironment(t *testing.T) {
	t.Setenv("LOANCTL_TEST_PASS", "   ")
	if _, err := NewSource("LOANCTL_TEST_PASS").Get(); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestConfirmedSourceRequiresMatchingEntries(t *testing.T) {
	src := NewConfirmedSource("")
	src.readTerm = scripted("correct horse", "correct horse")
	if got, err := src.Get(); err != nil || got != "correct horse" {
		t.Fatalf("unexpected result %q, %v", got, err)
	}

	mismatch := NewConfirmedSource("")
	mismatch.readTerm = scripted("correct horse", "battery staple")
	if _, err := mismatch.Get(); !errors.Is(err, ErrMismatch) {
		t.Fatalf("expected ErrMismatch, got %v", err)
	}

	blank := NewSource("")
	blank.readTerm = scripted(" ")
	if _, err := blank.Get(); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestSourceFallsBackToPrompt(t *testing.T) {
	src := NewSource("LOANCTL_UNSET_PASS")
	src.lookupEnv = func(string) (string, bool) { return "", false }
	src.readTerm = scripted("from terminal")
	if got, err := src.Get(); err != nil || got != "from terminal" {
		t.Fatalf("unexpected result %q, %v", got, err)
	}
}
