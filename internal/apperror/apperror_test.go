package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindUnauthorized, http.StatusUnauthorized},
		{KindInvalidTarget, http.StatusBadRequest},
		{KindValidation, http.StatusBadRequest},
		{KindNotFound, http.StatusNotFound},
		{KindInvariantViolation, http.StatusConflict},
		{KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := tt.kind.Status(); got != tt.want {
			t.Errorf("%s.Status() = %d, want %d", tt.kind, got, tt.want)
		}
	}
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("remove user: %w", Unauthorized("You are not an admin of group."))
	if !Is(err, KindUnauthorized) {
		t.Fatalf("expected wrapped error to be unauthorized, got %s", KindOf(err))
	}
	if got := PublicMessage(err); got != "You are not an admin of group." {
		t.Errorf("PublicMessage = %q", got)
	}
}

func TestInternalHidesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Internal(cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected cause to be reachable with errors.Is")
	}
	if got := PublicMessage(err); got != "internal server error" {
		t.Errorf("PublicMessage = %q", got)
	}
	if KindOf(cause) != KindInternal {
		t.Errorf("unclassified errors must be internal")
	}
}
