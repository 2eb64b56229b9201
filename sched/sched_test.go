package sched

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunnerTicksUntilCancelled(t *testing.T) {
	t.Parallel()

	var ticks atomic.Int64
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		Runner{Name: "test", Interval: 5 * time.Millisecond}.Start(ctx, func(context.Context) error {
			ticks.Add(1)
			return nil
		})
	}()

	deadline := time.After(2 * time.Second)
	for ticks.Load() < 3 {
		select {
		case <-deadline:
			t.Fatal("runner never ticked")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop on cancel")
	}
}

func TestRunnerSurvivesErrors(t *testing.T) {
	t.Parallel()

	var ticks atomic.Int64
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		Runner{Name: "flaky", Interval: 5 * time.Millisecond}.Start(ctx, func(context.Context) error {
			ticks.Add(1)
			return errors.New("transient")
		})
	}()

	deadline := time.After(2 * time.Second)
	for ticks.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("runner stopped after an error")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	<-done
}

func TestRunnerRefusesZeroInterval(t *testing.T) {
	t.Parallel()

	// Must return immediately instead of burning a goroutine.
	Runner{Name: "noop"}.Start(context.Background(), func(context.Context) error {
		t.Fatal("must not run")
		return nil
	})
}
