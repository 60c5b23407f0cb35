package main

import (
	"testing"
	"time"
)

// Turbo mode ignores wall-clock pacing and hands back a fixed chunk,
// capped by whatever maxCycles the caller passes.
func TestSchedulerTurboIgnoresPacing(t *testing.T) {
	s := NewScheduler(1_000_000)
	s.SetTurbo(true)

	if got := s.Budget(0); got != turboCyclesPerCall {
		t.Fatalf("turbo budget = %d, want %d", got, turboCyclesPerCall)
	}
	if got := s.Budget(100); got != 100 {
		t.Fatalf("turbo budget capped by maxCycles = %d, want 100", got)
	}
}

// Without turbo, Budget paces cycles to elapsed wall-clock time at the
// configured frequency (§4.2).
func TestSchedulerPacesToElapsedTime(t *testing.T) {
	s := NewScheduler(1_000_000)
	s.lastTick = time.Now().Add(-100 * time.Millisecond)

	got := s.Budget(0)
	// ~100ms at 1MHz is ~100,000 cycles; allow slack for scheduling jitter.
	if got < 50_000 || got > 300_000 {
		t.Fatalf("budget after 100ms at 1MHz = %d, want roughly 100000", got)
	}
}

// A long host stall doesn't produce an unbounded catch-up burst: pending
// cycles are capped at one fifth of a second's worth.
func TestSchedulerCapsBacklogAfterStall(t *testing.T) {
	s := NewScheduler(1_000_000)
	s.lastTick = time.Now().Add(-10 * time.Second)

	got := s.Budget(0)
	cap := int64(1_000_000) / backlogCapFraction
	if got > cap {
		t.Fatalf("budget after a 10s stall = %d, want capped at %d", got, cap)
	}
}

func TestSchedulerReset(t *testing.T) {
	s := NewScheduler(1_000_000)
	s.lastTick = time.Now().Add(-10 * time.Second)
	s.Budget(0) // accumulate pendingCycles
	s.Reset()
	if s.pendingCycles != 0 {
		t.Fatalf("pendingCycles after reset = %d, want 0", s.pendingCycles)
	}
}

func TestSchedulerSetTargetHzIgnoresNonPositive(t *testing.T) {
	s := NewScheduler(1_000_000)
	s.SetTargetHz(0)
	if s.targetHz != 1_000_000 {
		t.Fatalf("targetHz = %d, want unchanged at 1000000", s.targetHz)
	}
	s.SetTargetHz(-5)
	if s.targetHz != 1_000_000 {
		t.Fatalf("targetHz = %d, want unchanged at 1000000", s.targetHz)
	}
	s.SetTargetHz(2_000_000)
	if s.targetHz != 2_000_000 {
		t.Fatalf("targetHz = %d, want 2000000", s.targetHz)
	}
}
