package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppErrorError(t *testing.T) {
	err := New("QUEUE_FULL", "queue is full", http.StatusConflict)
	if err.Error() != "queue is full" {
		t.Fatalf("unexpected message: %q", err.Error())
	}

	wrapped := err.WithInternal(errors.New("boom"))
	if wrapped.Error() != "queue is full: boom" {
		t.Fatalf("unexpected wrapped message: %q", wrapped.Error())
	}
	if wrapped == err {
		t.Fatal("WithInternal must not mutate the original error")
	}
}

func TestFromErrorRecognisesAppError(t *testing.T) {
	inner := ErrTemplateNotApproved.WithInternal(errors.New("db says no"))
	chained := fmt.Errorf("schedule invites: %w", inner)

	got := FromError(chained)
	if got.Code != ErrTemplateNotApproved.Code {
		t.Fatalf("expected code %q, got %q", ErrTemplateNotApproved.Code, got.Code)
	}
	if got.StatusCode != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", got.StatusCode)
	}
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	got := FromError(errors.New("plain"))
	if got.Code != ErrInternalServer.Code {
		t.Fatalf("expected internal error code, got %q", got.Code)
	}
	if !errors.Is(got, got.Internal) {
		t.Fatal("internal error should unwrap")
	}
}

func TestFromErrorNil(t *testing.T) {
	if FromError(nil) != nil {
		t.Fatal("expected nil for nil input")
	}
}
