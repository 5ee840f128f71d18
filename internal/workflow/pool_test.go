package workflow

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRespectsConcurrencyLimit(t *testing.T) {
	pool := NewPool(3)

	var current, peak int64
	var mu sync.Mutex

	tasks := make([]func(), 10)
	for i := range tasks {
		tasks[i] = func() {
			n := atomic.AddInt64(&current, 1)
			mu.Lock()
			if n > peak {
				peak = n
			}
			mu.Unlock()
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt64(&current, -1)
		}
	}

	pool.Run(context.Background(), tasks)

	if peak > 3 {
		t.Errorf("expected at most 3 concurrent tasks, observed %d", peak)
	}
}

func TestPoolRunsAllTasks(t *testing.T) {
	pool := NewPool(2)

	var done int64
	tasks := make([]func(), 7)
	for i := range tasks {
		tasks[i] = func() { atomic.AddInt64(&done, 1) }
	}

	pool.Run(context.Background(), tasks)

	if done != 7 {
		t.Errorf("expected 7 completed tasks, got %d", done)
	}
}

func TestPoolIsReusable(t *testing.T) {
	pool := NewPool(2)

	var done int64
	task := func() { atomic.AddInt64(&done, 1) }

	pool.Run(context.Background(), []func(){task, task})
	pool.Run(context.Background(), []func(){task, task, task})

	if done != 5 {
		t.Errorf("expected 5 completed tasks across runs, got %d", done)
	}
}

func TestPoolStopsSubmittingOnCancel(t *testing.T) {
	pool := NewPool(1)

	ctx, cancel := context.WithCancel(context.Background())

	var done int64
	tasks := []func(){
		func() {
			atomic.AddInt64(&done, 1)
			cancel()
			time.Sleep(10 * time.Millisecond)
		},
		func() { atomic.AddInt64(&done, 1) },
		func() { atomic.AddInt64(&done, 1) },
	}

	pool.Run(ctx, tasks)

	if done != 1 {
		t.Errorf("expected only the first task to run after cancel, got %d", done)
	}
}

func TestPoolMinimumOneWorker(t *testing.T) {
	pool := NewPool(0)
	if pool.MaxWorkers() != 1 {
		t.Errorf("expected pool to clamp to 1 worker, got %d", pool.MaxWorkers())
	}
}
