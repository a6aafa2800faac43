package oauth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCallbackResolvesOnce(t *testing.T) {
	cb := NewCallback()

	cb.Resolve("workwidget://oauth/callback?code=1")
	cb.Resolve("workwidget://oauth/callback?code=2")
	cb.Cancel()

	got, err := cb.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if got != "workwidget://oauth/callback?code=1" {
		t.Errorf("redirect = %q, want the first resolution", got)
	}
}

func TestCallbackCancelWinsWhenFirst(t *testing.T) {
	cb := NewCallback()
	cb.Cancel()
	cb.Resolve("workwidget://oauth/callback?code=1")

	_, err := cb.Wait(context.Background())
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
}

func TestCallbackWaitHonorsContext(t *testing.T) {
	cb := NewCallback()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := cb.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
}
