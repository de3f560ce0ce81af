package util

import (
	"testing"
	"time"
)

func TestZeroTimerReportsNothing(t *testing.T) {
	var timer Timer
	if got := timer.Elapsed(); got != 0 {
		t.Fatalf("expected 0 got %s", got)
	}
	if got := timer.ElapsedMs(); got != 0 {
		t.Fatalf("expected 0 got %d", got)
	}
}

func TestTimerMeasuresSinceStart(t *testing.T) {
	timer := Timer{start: time.Now().Add(-1500 * time.Millisecond)}
	if got := timer.ElapsedMs(); got < 1500 {
		t.Fatalf("expected at least 1500ms got %d", got)
	}
	if got := timer.Elapsed(); got < 1500*time.Millisecond {
		t.Fatalf("expected at least 1.5s got %s", got)
	}
}
