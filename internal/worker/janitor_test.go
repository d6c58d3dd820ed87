package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type mockEvicter struct {
	calls atomic.Int32
	err   error
}

func (m *mockEvicter) Evict(ctx context.Context) (int, error) {
	m.calls.Add(1)
	return 2, m.err
}

type mockCleaner struct {
	calls atomic.Int32
}

func (m *mockCleaner) CleanupOldEvents(ctx context.Context) error {
	m.calls.Add(1)
	return nil
}

func TestJanitor_RunOnce(t *testing.T) {
	ev := &mockEvicter{}
	cl := &mockCleaner{}
	j := NewJanitor(time.Hour, ev, cl, testLogger())

	j.RunOnce(context.Background())

	if ev.calls.Load() != 1 || cl.calls.Load() != 1 {
		t.Errorf("evict=%d cleanup=%d, want 1 each", ev.calls.Load(), cl.calls.Load())
	}
}

func TestJanitor_EvictErrorStillCleansEvents(t *testing.T) {
	ev := &mockEvicter{err: errors.New("redis down")}
	cl := &mockCleaner{}
	j := NewJanitor(time.Hour, ev, cl, testLogger())

	j.RunOnce(context.Background())

	if cl.calls.Load() != 1 {
		t.Error("event cleanup should run after an eviction error")
	}
}

func TestJanitor_StartRunsImmediatelyAndPeriodically(t *testing.T) {
	ev := &mockEvicter{}
	j := NewJanitor(10*time.Millisecond, ev, nil, testLogger())

	j.Start(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for ev.calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	j.Stop()

	if n := ev.calls.Load(); n < 3 {
		t.Errorf("evict calls = %d, want at least 3", n)
	}

	after := ev.calls.Load()
	time.Sleep(30 * time.Millisecond)
	if ev.calls.Load() != after {
		t.Error("janitor kept running after Stop")
	}
}

func TestNewJanitor_DefaultInterval(t *testing.T) {
	j := NewJanitor(0, &mockEvicter{}, nil, testLogger())
	if j.interval != time.Hour {
		t.Errorf("interval = %v, want 1h", j.interval)
	}
}
