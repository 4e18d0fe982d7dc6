package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsMatchesCode(t *testing.T) {
	err := fmt.Errorf("submit answer: %w", Conflict(CodeAlreadySolved, "solved"))

	if !errors.Is(err, ErrAlreadySolved) {
		t.Error("expected errors.Is to match ErrAlreadySolved")
	}
	if errors.Is(err, ErrAlreadyAttempted) {
		t.Error("ErrAlreadyAttempted should not match")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{Validation("bad date"), KindValidation},
		{NotFound("task"), KindNotFound},
		{ErrStaleQuestion, KindConflict},
		{Storage("begin tx", errors.New("disk I/O")), KindStorage},
		{errors.New("plain"), KindUnknown},
		{fmt.Errorf("wrapped: %w", NotFound("child")), KindNotFound},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestStorageUnwrap(t *testing.T) {
	cause := errors.New("database is locked")
	err := Storage("approve task", cause)
	if !errors.Is(err, cause) {
		t.Error("storage error should unwrap to its cause")
	}
	if CodeOf(err) != CodeStorage {
		t.Errorf("code = %q, want %q", CodeOf(err), CodeStorage)
	}
}

func TestErrorString(t *testing.T) {
	if got := NotFound("assignment").Error(); got != "not_found: assignment not found" {
		t.Errorf("Error() = %q", got)
	}
}
