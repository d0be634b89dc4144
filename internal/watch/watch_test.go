package watch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestWatcherRunsRefreshOnSchedule(t *testing.T) {
	w := New("@every 100ms")
	var calls int32
	w.SetRefreshFunction(func(_ context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	if err := w.Start(); err != nil {
		t.Fatalf("Start: %+v", err)
	}
	defer w.Stop()

	if !w.IsRunning() {
		t.Fatal("watcher must report running")
	}

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt32(&calls) == 0 {
		select {
		case <-deadline:
			t.Fatal("refresh never ran")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestWatcherWithoutRefreshFunction(t *testing.T) {
	w := New("@every 1s")
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %+v", err)
	}
	defer w.Stop()
	if w.IsRunning() {
		t.Fatal("watcher without refresh function must stay idle")
	}
}

func TestWatcherRejectsBadSpec(t *testing.T) {
	w := New("not a cron spec")
	w.SetRefreshFunction(func(_ context.Context) error { return nil })
	if err := w.Start(); err == nil {
		t.Fatal("expected error for invalid cron spec")
	}
}
