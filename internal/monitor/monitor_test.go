package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeReader struct {
	mu    sync.Mutex
	reads int
	err   error
}

func (f *fakeReader) ReadStatus() (map[string]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.err != nil {
		return nil, f.err
	}
	return map[string]float64{"temperature": float64(f.reads)}, nil
}

func (f *fakeReader) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

type fakeBusy struct {
	busy bool
	err  error
}

func (f fakeBusy) IsBlocked() (bool, error) { return f.busy, f.err }

type fakeSink struct {
	mu       sync.Mutex
	readings []map[string]float64
	failures int
}

func (f *fakeSink) ObserveStatus(status map[string]float64, _ time.Time) {
	f.mu.Lock()
	f.readings = append(f.readings, status)
	f.mu.Unlock()
}

func (f *fakeSink) StatusReadFailed() {
	f.mu.Lock()
	f.failures++
	f.mu.Unlock()
}

type fakePruner struct {
	mu        sync.Mutex
	calls     int
	retention time.Duration
}

func (f *fakePruner) Prune(_ context.Context, olderThan time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.retention = olderThan
	return 3, nil
}

func TestNew(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New() without reader should fail")
	}
	if _, err := New(Config{Reader: &fakeReader{}, Interval: -time.Second}); err == nil {
		t.Error("New() with negative interval should fail")
	}
	m, err := New(Config{Reader: &fakeReader{}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if m.cfg.Interval != DefaultInterval {
		t.Errorf("interval = %v, want default", m.cfg.Interval)
	}
}

func TestPoll(t *testing.T) {
	tests := []struct {
		name         string
		busy         BusyChecker
		readErr      error
		wantOK       bool
		wantReads    int
		wantFailures int
	}{
		{name: "idle", busy: fakeBusy{}, wantOK: true, wantReads: 1},
		{name: "no busy checker", wantOK: true, wantReads: 1},
		{name: "busy skips read", busy: fakeBusy{busy: true}},
		{name: "busy check error still reads", busy: fakeBusy{err: errors.New("missing flag")}, wantOK: true, wantReads: 1},
		{name: "read error", readErr: errors.New("malformed"), wantReads: 1, wantFailures: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := &fakeReader{err: tt.readErr}
			sink := &fakeSink{}
			m, err := New(Config{Reader: reader, Busy: tt.busy, Sinks: []Sink{sink}})
			if err != nil {
				t.Fatal(err)
			}

			if got := m.Poll(context.Background()); got != tt.wantOK {
				t.Errorf("Poll() = %v, want %v", got, tt.wantOK)
			}
			if reader.count() != tt.wantReads {
				t.Errorf("reads = %d, want %d", reader.count(), tt.wantReads)
			}
			if tt.wantOK && len(sink.readings) != 1 {
				t.Errorf("sink readings = %d, want 1", len(sink.readings))
			}
			if sink.failures != tt.wantFailures {
				t.Errorf("failures = %d, want %d", sink.failures, tt.wantFailures)
			}
		})
	}
}

func TestLast(t *testing.T) {
	m, _ := New(Config{Reader: &fakeReader{}})
	fixed := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	if status, _ := m.Last(); status != nil {
		t.Errorf("Last() before read = %v", status)
	}
	m.Poll(context.Background())

	status, at := m.Last()
	if status["temperature"] != 1 || !at.Equal(fixed) {
		t.Errorf("Last() = %v at %v", status, at)
	}
	status["temperature"] = 99
	if again, _ := m.Last(); again["temperature"] != 1 {
		t.Error("Last() should return a copy")
	}
}

func TestRun_TicksRefreshAndPrune(t *testing.T) {
	reader := &fakeReader{}
	pruner := &fakePruner{}
	sinkCalls := make(chan struct{}, 100)
	m, err := New(Config{
		Reader:     reader,
		Interval:   10 * time.Millisecond,
		Pruner:     pruner,
		Retention:  time.Hour,
		PruneEvery: 2,
		Sinks: []Sink{SinkFunc(func(map[string]float64, time.Time) {
			sinkCalls <- struct{}{}
		})},
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	m.Refresh()
	m.Refresh()
	deadline := time.After(5 * time.Second)
	for received := 0; received < 4; received++ {
		select {
		case <-sinkCalls:
		case <-deadline:
			t.Fatalf("only %d readings delivered", received)
		}
	}
	time.Sleep(30 * time.Millisecond)
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	pruner.mu.Lock()
	defer pruner.mu.Unlock()
	if pruner.calls == 0 || pruner.retention != time.Hour {
		t.Errorf("pruner calls = %d retention = %v", pruner.calls, pruner.retention)
	}
}
