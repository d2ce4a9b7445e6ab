package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestTransportError_StatusMessage(t *testing.T) {
	err := &TransportError{Op: "launch", StatusCode: 503}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("Error() = %q, want status code in message", err.Error())
	}
}

func TestTransportError_UnwrapAndTimeout(t *testing.T) {
	err := &TransportError{Op: "stop", Err: fmt.Errorf("do request: %w", context.DeadlineExceeded)}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("errors.Is should see context.DeadlineExceeded through TransportError")
	}
	if !err.Timeout() {
		t.Error("Timeout() = false, want true")
	}

	plain := &TransportError{Op: "stop", Err: errors.New("connection refused")}
	if plain.Timeout() {
		t.Error("Timeout() = true for non-timeout error")
	}
}

func TestStoreError_As(t *testing.T) {
	var wrapped error = fmt.Errorf("open: %w", &StoreError{Op: "open_session", Err: errors.New("boom")})

	var storeErr *StoreError
	if !errors.As(wrapped, &storeErr) {
		t.Fatal("errors.As should find StoreError")
	}
	if storeErr.Op != "open_session" {
		t.Errorf("Op = %q, want open_session", storeErr.Op)
	}
}

func TestNewInvalidTransitionError(t *testing.T) {
	apiErr := NewInvalidTransitionError(&StateError{Phase: "Idle", Event: "SubmitRating"})
	if apiErr.Code != ErrCodeInvalidTransition {
		t.Errorf("Code = %q, want %q", apiErr.Code, ErrCodeInvalidTransition)
	}
	if !strings.Contains(apiErr.Message, "Idle") {
		t.Errorf("Message = %q, want phase name", apiErr.Message)
	}
}

func TestIsValidRating(t *testing.T) {
	tests := []struct {
		rating int
		want   bool
	}{
		{0, false},
		{1, true},
		{3, true},
		{5, true},
		{6, false},
		{-1, false},
	}
	for _, tt := range tests {
		if got := IsValidRating(tt.rating); got != tt.want {
			t.Errorf("IsValidRating(%d) = %v, want %v", tt.rating, got, tt.want)
		}
	}
}

func TestPlannedDurationMinutes(t *testing.T) {
	tests := []struct {
		seconds int
		want    int
	}{
		{480, 8},
		{481, 9},
		{59, 1},
		{0, 0},
	}
	for _, tt := range tests {
		if got := PlannedDurationMinutes(tt.seconds); got != tt.want {
			t.Errorf("PlannedDurationMinutes(%d) = %d, want %d", tt.seconds, got, tt.want)
		}
	}
}

func TestGameRef_PlannedSeconds(t *testing.T) {
	g := GameRef{Title: "Elven Assassin"}
	if got := g.PlannedSeconds(8); got != 480 {
		t.Errorf("PlannedSeconds(8) = %d, want 480", got)
	}

	g.TimerOverrideSeconds = 300
	if got := g.PlannedSeconds(8); got != 300 {
		t.Errorf("PlannedSeconds with override = %d, want 300", got)
	}
}
