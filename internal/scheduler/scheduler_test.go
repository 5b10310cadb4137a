package scheduler

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type mockProcessor struct {
	mu     sync.Mutex
	sweeps int
}

func (m *mockProcessor) ProcessPending(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweeps++
	return nil
}

func (m *mockProcessor) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweeps
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestRunSweepsImmediatelyAndOnTick(t *testing.T) {
	proc := &mockProcessor{}
	s := New(proc, testLogger())
	s.SetTickInterval(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 110*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	// One immediate sweep plus several ticks.
	if got := proc.count(); got < 3 {
		t.Errorf("sweeps = %d, want at least 3", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	proc := &mockProcessor{}
	s := New(proc, testLogger())
	s.SetTickInterval(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Run(ctx)

	got := proc.count()
	time.Sleep(30 * time.Millisecond)
	if proc.count() != got {
		t.Error("scheduler kept sweeping after cancel")
	}
}

func TestOfflineGateSkipsSweeps(t *testing.T) {
	proc := &mockProcessor{}
	s := New(proc, testLogger())
	s.SetTickInterval(10 * time.Millisecond)
	s.SetOnlineCheck(func() bool { return false })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	if got := proc.count(); got != 0 {
		t.Errorf("sweeps = %d, want 0 while offline", got)
	}
}

func TestOnlineGateRecovery(t *testing.T) {
	proc := &mockProcessor{}
	s := New(proc, testLogger())
	s.SetTickInterval(10 * time.Millisecond)

	var mu sync.Mutex
	online := false
	s.SetOnlineCheck(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return online
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	go func() {
		time.Sleep(40 * time.Millisecond)
		mu.Lock()
		online = true
		mu.Unlock()
	}()
	s.Run(ctx)

	if got := proc.count(); got == 0 {
		t.Error("expected sweeps to resume once online")
	}
}
