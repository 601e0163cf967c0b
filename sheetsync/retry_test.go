package sheetsync

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), slog.Default(), 3, time.Millisecond, "op",
		func(context.Context) error {
			attempts++
			if attempts < 3 {
				return &RemoteError{Op: "op", Status: 500, Cause: errors.New("boom")}
			}
			return nil
		})
	if err != nil {
		t.Fatal(err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestWithRetry_GivesUpAfterMaxRetries(t *testing.T) {
	attempts := 0
	failure := &RemoteError{Op: "op", Status: 503, Cause: errors.New("down")}
	err := withRetry(context.Background(), slog.Default(), 2, time.Millisecond, "op",
		func(context.Context) error {
			attempts++
			return failure
		})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3 (initial + 2 retries)", attempts)
	}
}

func TestWithRetry_AuthErrorNotRetried(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), slog.Default(), 3, time.Millisecond, "op",
		func(context.Context) error {
			attempts++
			return &AuthError{Op: "op", Cause: errors.New("token revoked")}
		})
	var ae *AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("got %v, want AuthError", err)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
}

func TestWithRetry_ClientErrorNotRetried(t *testing.T) {
	attempts := 0
	withRetry(context.Background(), slog.Default(), 3, time.Millisecond, "op",
		func(context.Context) error {
			attempts++
			return &RemoteError{Op: "op", Status: 404, Cause: errors.New("missing")}
		})
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
}

func TestWithRetry_StopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := withRetry(ctx, slog.Default(), 5, time.Millisecond, "op",
		func(context.Context) error {
			attempts++
			cancel()
			return &RemoteError{Op: "op", Status: 500, Cause: errors.New("boom")}
		})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
}

func TestRetryable_Classification(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&RemoteError{Status: 500}, true},
		{&RemoteError{Status: 503}, true},
		{&RemoteError{Status: 429}, true},
		{&RemoteError{Status: 0}, true},
		{&RemoteError{Status: 404}, false},
		{&RemoteError{Status: 400}, false},
		{&AuthError{Cause: errors.New("bad token")}, false},
		{errors.New("plain transport error"), true},
	}
	for _, tt := range tests {
		if got := retryable(tt.err); got != tt.want {
			t.Errorf("retryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
