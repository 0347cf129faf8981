package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestPerMinutePacing(t *testing.T) {
	// 60/min is one token per second; the second request must wait.
	l := PerMinute(60)

	if !l.Allow() {
		t.Fatal("first request should pass immediately")
	}
	if l.Allow() {
		t.Error("second immediate request should be paced")
	}
}

func TestDisabledLimiterNeverBlocks(t *testing.T) {
	l := PerMinute(0)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := 0; i < 1000; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("Wait %d: %v", i, err)
		}
	}
}

func TestWaitHonoursContext(t *testing.T) {
	l := PerMinute(1)
	_ = l.Allow() // drain the single burst token

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); err == nil {
		t.Error("Wait should fail once the context expires")
	}
}
