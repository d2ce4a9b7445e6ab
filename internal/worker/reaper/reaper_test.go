package reaper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type mockCloser struct {
	mu      sync.Mutex
	calls   int
	cutoffs []time.Time
	closed  int64
	err     error
}

func (m *mockCloser) CloseStaleBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.cutoffs = append(m.cutoffs, cutoff)
	return m.closed, m.err
}

func (m *mockCloser) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockCounter struct {
	total int64
	calls int
}

func (m *mockCounter) RecordStaleSessionsClosed(count int64) {
	m.total += count
	m.calls++
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func TestNewJob_DefaultStaleAfter(t *testing.T) {
	var buf bytes.Buffer
	job := NewJob(&mockCloser{}, nil, 0, newTestLogger(&buf))

	if job.StaleAfter != DefaultStaleAfter {
		t.Errorf("StaleAfter = %v, want %v", job.StaleAfter, DefaultStaleAfter)
	}
}

func TestJob_RunOnce_UsesCutoff(t *testing.T) {
	var buf bytes.Buffer
	closer := &mockCloser{closed: 2}
	counter := &mockCounter{}
	job := NewJob(closer, counter, 3*time.Hour, newTestLogger(&buf))

	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return now }

	n, err := job.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if n != 2 {
		t.Errorf("closed = %d, want 2", n)
	}
	want := now.Add(-3 * time.Hour)
	if len(closer.cutoffs) != 1 || !closer.cutoffs[0].Equal(want) {
		t.Errorf("cutoffs = %v, want [%v]", closer.cutoffs, want)
	}
	if counter.total != 2 {
		t.Errorf("recorded = %d, want 2", counter.total)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log: %v", err)
	}
	if entry["closed_count"] != float64(2) {
		t.Errorf("closed_count = %v, want 2", entry["closed_count"])
	}
}

func TestJob_RunOnce_NothingToClose(t *testing.T) {
	var buf bytes.Buffer
	counter := &mockCounter{}
	job := NewJob(&mockCloser{}, counter, time.Hour, newTestLogger(&buf))

	n, err := job.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if n != 0 {
		t.Errorf("closed = %d, want 0", n)
	}
	if counter.calls != 0 {
		t.Errorf("counter should not be touched, calls = %d", counter.calls)
	}
}

func TestJob_RunOnce_Error(t *testing.T) {
	var buf bytes.Buffer
	dbErr := errors.New("connection reset")
	job := NewJob(&mockCloser{err: dbErr}, &mockCounter{}, time.Hour, newTestLogger(&buf))

	_, err := job.RunOnce(context.Background())
	if !errors.Is(err, dbErr) {
		t.Fatalf("RunOnce() error = %v, want wrapped %v", err, dbErr)
	}
	if !strings.Contains(buf.String(), `"level":"ERROR"`) {
		t.Errorf("expected error log, got %s", buf.String())
	}
}

func TestJob_Start_RunsImmediatelyAndStopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	closer := &mockCloser{}
	job := NewJob(closer, nil, time.Hour, newTestLogger(&buf))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, 10*time.Millisecond)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for closer.callCount() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("calls = %d, want >= 2", closer.callCount())
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
