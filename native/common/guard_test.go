package common

import (
	"errors"
	"testing"
)

func TestGuard(t *testing.T) {
	if err := Guard(nil, "loans"); err != nil {
		t.Fatalf("nil view should not block: %v", err)
	}
	pauses := NewPauses(" Loans ")
	if err := Guard(pauses, "loans"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected paused error, got %v", err)
	}
	if err := Guard(pauses, "vault"); err != nil {
		t.Fatalf("unrelated module blocked: %v", err)
	}
	pauses.Set("loans", false)
	if err := Guard(pauses, "loans"); err != nil {
		t.Fatalf("unpaused module blocked: %v", err)
	}
}
