package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type countingRunner struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *countingRunner) Run(_ context.Context, trigger string) error {
	if trigger != "schedule" {
		return errors.New("unexpected trigger")
	}
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	return r.err
}

func (r *countingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestSchedulerRunsImmediatelyAndOnTicks(t *testing.T) {
	runner := &countingRunner{}
	s := New(runner, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()
	s.Start(ctx)

	if got := runner.count(); got < 2 {
		t.Fatalf("expected the immediate run plus at least one tick, got %d", got)
	}
}

func TestSchedulerSurvivesFailedRuns(t *testing.T) {
	runner := &countingRunner{err: errors.New("source down")}
	s := New(runner, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 35*time.Millisecond)
	defer cancel()
	s.Start(ctx)

	if got := runner.count(); got < 2 {
		t.Fatalf("a failed run must not stop the ticker, got %d runs", got)
	}
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	runner := &countingRunner{}
	s := New(runner, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on context cancel")
	}
}
