package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/eris-support/triage-service/internal/events"
)

func TestPool_DeliversAsynchronously(t *testing.T) {
	pool := NewPool(2, 16, zap.NewNop())
	pool.Start()

	var mu sync.Mutex
	var got []string
	handler := pool.Wrap(func(_ context.Context, e events.Event) error {
		mu.Lock()
		got = append(got, e.TicketID)
		mu.Unlock()
		return errors.New("ignored")
	})

	for _, id := range []string{"1", "2", "3"} {
		if err := handler(context.Background(), events.Event{Type: events.EventTicketCreated, TicketID: id}); err != nil {
			t.Fatalf("wrapped handler returned %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	pool.Stop(ctx)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 3 {
		t.Errorf("delivered %d events, want 3", len(got))
	}
}

func TestPool_DropsWhenFullAndAfterStop(t *testing.T) {
	pool := NewPool(1, 1, zap.NewNop())
	var calls atomic.Int32
	handler := pool.Wrap(func(context.Context, events.Event) error {
		calls.Add(1)
		return nil
	})

	// Not started, so the single slot fills and the rest are dropped.
	for i := 0; i < 5; i++ {
		_ = handler(context.Background(), events.Event{Type: events.EventTicketCreated})
	}
	pool.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	pool.Stop(ctx)

	if n := calls.Load(); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
	if err := handler(context.Background(), events.Event{}); err != nil {
		t.Errorf("handler after stop: %v", err)
	}
}

type fakeSnapshotter struct {
	degraded atomic.Bool
	saves    atomic.Int32
	recovers atomic.Int32
}

func (f *fakeSnapshotter) SaveSnapshot(context.Context) error {
	f.saves.Add(1)
	return nil
}

func (f *fakeSnapshotter) Degraded() bool { return f.degraded.Load() }

func (f *fakeSnapshotter) Recover(context.Context) (bool, error) {
	f.recovers.Add(1)
	f.degraded.Store(false)
	return true, nil
}

func TestStartSnapshotScheduler(t *testing.T) {
	if _, err := StartSnapshotScheduler("not a schedule", &fakeSnapshotter{}, zap.NewNop()); err == nil {
		t.Error("invalid schedule accepted")
	}

	snap := &fakeSnapshotter{}
	c, err := StartSnapshotScheduler("@every 1s", snap, zap.NewNop())
	if err != nil {
		t.Fatalf("StartSnapshotScheduler: %v", err)
	}
	time.Sleep(1500 * time.Millisecond)
	<-c.Stop().Done()
	if snap.saves.Load() == 0 {
		t.Error("snapshot never refreshed")
	}
}

func TestStartSnapshotScheduler_RecoversDegradedStore(t *testing.T) {
	snap := &fakeSnapshotter{}
	snap.degraded.Store(true)
	c, err := StartSnapshotScheduler("@every 1s", snap, zap.NewNop())
	if err != nil {
		t.Fatalf("StartSnapshotScheduler: %v", err)
	}
	time.Sleep(2500 * time.Millisecond)
	<-c.Stop().Done()

	if snap.recovers.Load() != 1 {
		t.Errorf("recovers = %d, want 1", snap.recovers.Load())
	}
	if snap.saves.Load() == 0 {
		t.Error("snapshot not refreshed after recovery")
	}
}
