// ABOUTME: Tests for the error taxonomy
// ABOUTME: Kind matching, cause unwrapping and wrap idempotence
package stream

import (
	"errors"
	"strings"
	"testing"
)

func TestWrapMatchesKindAndCause(t *testing.T) {
	cause := errors.New("socket reset")
	err := Wrap(ErrConnection, "write frame", cause)

	if !errors.Is(err, ErrConnection) {
		t.Error("expected error to match ErrConnection")
	}
	if !errors.Is(err, cause) {
		t.Error("expected error to match its cause")
	}
	if errors.Is(err, ErrDriver) {
		t.Error("did not expect error to match ErrDriver")
	}
	if !strings.Contains(err.Error(), "write frame") || !strings.Contains(err.Error(), "socket reset") {
		t.Errorf("unexpected message: %s", err)
	}
}

func TestWrapKeepsExistingKind(t *testing.T) {
	inner := Wrap(ErrDeviceUnavailable, "open", nil)
	outer := Wrap(ErrDriver, "open capture", inner)

	if outer != inner {
		t.Fatalf("expected existing kind to be preserved, got %v", outer)
	}
	if KindOf(outer) != ErrDeviceUnavailable {
		t.Errorf("expected ErrDeviceUnavailable, got %v", KindOf(outer))
	}
}

func TestKindOfUnclassified(t *testing.T) {
	if KindOf(errors.New("plain")) != nil {
		t.Error("expected no kind for a plain error")
	}
	if KindOf(nil) != nil {
		t.Error("expected no kind for nil")
	}
}

func TestErrorAs(t *testing.T) {
	err := Wrap(ErrDriver, "read frame", errors.New("underrun"))
	var se *Error
	if !errors.As(err, &se) {
		t.Fatal("expected *Error")
	}
	if se.Op != "read frame" {
		t.Errorf("expected op 'read frame', got %q", se.Op)
	}
}
