package channel

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s) error = %v", name, err)
	}
}

func readFile(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("ReadFile(%s) error = %v", name, err)
	}
	return string(data)
}

func newTestChannel(t *testing.T, dir string, timeout time.Duration) *Channel {
	t.Helper()
	ch, err := New(Config{Dir: dir, PollInterval: 5 * time.Millisecond, Timeout: timeout})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return ch
}

// fakeController answers the protocol the way the external controller
// does: it clears the new-command flag, reports busy for a while, writes a
// return record and goes back to idle.
type fakeController struct {
	dir  string
	busy time.Duration

	mu       sync.Mutex
	received []string
}

func (f *fakeController) run(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		data, err := os.ReadFile(filepath.Join(f.dir, CommandFile))
		if err != nil || !strings.HasPrefix(string(data), "1,") {
			continue
		}
		f.mu.Lock()
		f.received = append(f.received, string(data))
		f.mu.Unlock()

		cleared := "0" + strings.TrimPrefix(string(data), "1")
		_ = WriteFileAtomic(filepath.Join(f.dir, ResponseFile), []byte("0,busy\n"))
		_ = WriteFileAtomic(filepath.Join(f.dir, CommandFile), []byte(cleared))
		time.Sleep(f.busy)
		_ = WriteFileAtomic(filepath.Join(f.dir, ReturnFile), []byte("0.0000125,0.00002,end\n"))
		_ = WriteFileAtomic(filepath.Join(f.dir, ResponseFile), []byte("1,idle\n"))
	}
}

func (f *fakeController) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.received...)
}

type recordingObserver struct {
	mu     sync.Mutex
	events []string
	last   Command
	err    error
}

func (r *recordingObserver) CommandPosted(cmd Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "posted:"+cmd.Name)
}

func (r *recordingObserver) CommandStarted(cmd Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "started:"+cmd.Name)
}

func (r *recordingObserver) CommandCompleted(cmd Command, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "completed:"+cmd.Name)
	r.last = cmd
	r.err = err
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error for missing directory")
	}
	if _, err := New(Config{Dir: t.TempDir(), Timeout: -time.Second}); err == nil {
		t.Error("expected error for negative timeout")
	}
	ch, err := New(Config{Simulation: true})
	if err != nil {
		t.Fatalf("New(simulation) error = %v", err)
	}
	if ch.cfg.PollInterval != DefaultPollInterval {
		t.Errorf("PollInterval = %v, want %v", ch.cfg.PollInterval, DefaultPollInterval)
	}
}

func TestChannel_Flags(t *testing.T) {
	tests := []struct {
		name        string
		response    string
		command     string
		wantIdle    bool
		wantNew     bool
		wantBlocked bool
		wantState   State
	}{
		{"idle without command", "1,idle\n", "0,wait\nend\n", true, false, false, StateIdle},
		{"idle with pending command", "1,idle\n", "1,wait\n5,end\n", true, true, true, StatePosted},
		{"busy without command", "0,busy\n", "0,wait\n5,end\n", false, false, true, StateExecuting},
		{"busy with pending command", "0,busy\n", "1,wait\n5,end\n", false, true, true, StateExecuting},
		{"bare flags", "1", "0", true, false, false, StateIdle},
		{"windows line endings", "1\r\n", "0,wait\r\n,end\r\n", true, false, false, StateIdle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, ResponseFile, tt.response)
			writeFile(t, dir, CommandFile, tt.command)
			ch := newTestChannel(t, dir, 0)

			idle, err := ch.IsIdle()
			if err != nil || idle != tt.wantIdle {
				t.Errorf("IsIdle() = %v, %v; want %v", idle, err, tt.wantIdle)
			}
			pending, err := ch.HasNewCommand()
			if err != nil || pending != tt.wantNew {
				t.Errorf("HasNewCommand() = %v, %v; want %v", pending, err, tt.wantNew)
			}
			blocked, err := ch.IsBlocked()
			if err != nil || blocked != tt.wantBlocked {
				t.Errorf("IsBlocked() = %v, %v; want %v", blocked, err, tt.wantBlocked)
			}
			if blocked != (!idle || pending) {
				t.Errorf("IsBlocked() = %v disagrees with !idle || new", blocked)
			}
			state, err := ch.State()
			if err != nil || state != tt.wantState {
				t.Errorf("State() = %v, %v; want %v", state, err, tt.wantState)
			}
		})
	}
}

func TestChannel_FlagErrors(t *testing.T) {
	dir := t.TempDir()
	ch := newTestChannel(t, dir, 0)

	if _, err := ch.IsIdle(); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("IsIdle() on missing file error = %v, want os.ErrNotExist", err)
	}

	writeFile(t, dir, ResponseFile, "\n")
	if _, err := ch.IsIdle(); !errors.Is(err, ErrMalformedFile) {
		t.Errorf("IsIdle() on empty file error = %v, want ErrMalformedFile", err)
	}
}

func TestChannel_ReadValues(t *testing.T) {
	dir := t.TempDir()
	ch := newTestChannel(t, dir, 0)

	writeFile(t, dir, StatusFile, "293.15,288.15,101325,0,295.0,41.2,end\n")
	status, err := ch.ReadStatus()
	if err != nil {
		t.Fatalf("ReadStatus() error = %v", err)
	}
	want := []string{"293.15", "288.15", "101325", "0", "295.0", "41.2"}
	if strings.Join(status, "|") != strings.Join(want, "|") {
		t.Errorf("ReadStatus() = %v, want %v", status, want)
	}

	writeFile(t, dir, ReturnFile, "end\n")
	ret, err := ch.ReadReturn()
	if err != nil {
		t.Fatalf("ReadReturn() error = %v", err)
	}
	if len(ret) != 0 {
		t.Errorf("ReadReturn() = %v, want empty", ret)
	}

	writeFile(t, dir, ReturnFile, "0.1,0.2\n")
	if _, err := ch.ReadReturn(); !errors.Is(err, ErrMalformedFile) {
		t.Errorf("ReadReturn() without sentinel error = %v, want ErrMalformedFile", err)
	}
}

func TestChannel_ExecuteSimulation(t *testing.T) {
	dir := t.TempDir()
	ch, err := New(Config{Dir: dir, Simulation: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	obs := &recordingObserver{}
	ch.AddObserver(obs)

	start := time.Now()
	err = ch.Execute(context.Background(), "transfer_liquid",
		Arg{Name: "Source Zone", Value: "RACKR:1"},
		Arg{Name: "Destination Zone", Value: "ISYNTH:1"},
		Arg{Name: "Volume", Value: 2.5, Unit: "mL"},
	)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed >= DefaultPollInterval {
		t.Errorf("simulated Execute took %v", elapsed)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("simulation wrote %d files", len(entries))
	}
	if !obs.last.Simulated || obs.last.ID == "" {
		t.Errorf("observer got %+v, want simulated command with id", obs.last)
	}
	if state, _ := ch.State(); state != StateSimulated {
		t.Errorf("State() = %v, want simulated", state)
	}
}

func TestChannel_ExecuteRejectsInvalidArguments(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ResponseFile, "1\n")
	writeFile(t, dir, CommandFile, "0\n")
	ch := newTestChannel(t, dir, 50*time.Millisecond)

	tests := []struct {
		name string
		cmd  string
		args []Arg
	}{
		{"empty name", "", nil},
		{"comma in name", "set,drawer", nil},
		{"comma in value", "set_drawer", []Arg{{Name: "Zone", Value: "ISYNTH:1,ISYNTH:2"}}},
		{"newline in value", "set_drawer", []Arg{{Name: "Zone", Value: "ISYNTH:1\n"}}},
		{"NaN value", "transfer_liquid", []Arg{{Name: "Volume", Value: math.NaN()}}},
		{"infinite value", "transfer_liquid", []Arg{{Name: "Volume", Value: math.Inf(1)}}},
		{"negative infinite float32", "set_vacuum", []Arg{{Name: "Pressure", Value: float32(math.Inf(-1))}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ch.Execute(context.Background(), tt.cmd, tt.args...)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("Execute() error = %v, want ErrInvalidArgument", err)
			}
			if got := readFile(t, dir, CommandFile); got != "0\n" {
				t.Errorf("command file changed to %q", got)
			}
		})
	}
}

func TestChannel_ExecuteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ResponseFile, "1,idle\n")
	writeFile(t, dir, CommandFile, "0,none\nend\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fake := &fakeController{dir: dir, busy: 30 * time.Millisecond}
	go fake.run(ctx)

	ch := newTestChannel(t, dir, 5*time.Second)
	obs := &recordingObserver{}
	ch.AddObserver(obs)

	err := ch.Execute(ctx, "transfer_solid",
		Arg{Name: "Source Zone", Value: "SOLID:1"},
		Arg{Name: "Destination Zone", Value: "ISYNTH:1;ISYNTH:2"},
		Arg{Name: "Mass", Value: 12.5, Unit: "mg"},
		Arg{Name: "Auto Dispense Activated", Value: false},
	)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	got := fake.commands()
	if len(got) != 1 {
		t.Fatalf("controller received %d commands, want 1", len(got))
	}
	want := "1,transfer_solid\nSOLID:1,ISYNTH:1;ISYNTH:2,12.5,0,end\n"
	if got[0] != want {
		t.Errorf("command file = %q, want %q", got[0], want)
	}

	blocked, err := ch.IsBlocked()
	if err != nil || blocked {
		t.Errorf("IsBlocked() after Execute = %v, %v", blocked, err)
	}

	values, err := ch.ReadReturn()
	if err != nil {
		t.Fatalf("ReadReturn() error = %v", err)
	}
	if strings.Join(values, ",") != "0.0000125,0.00002" {
		t.Errorf("ReadReturn() = %v", values)
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	events := strings.Join(obs.events, " ")
	if events != "posted:transfer_solid started:transfer_solid completed:transfer_solid" {
		t.Errorf("observer events = %q", events)
	}
	if obs.err != nil || obs.last.Duration <= 0 || obs.last.StartedAt.IsZero() {
		t.Errorf("completed command = %+v, err %v", obs.last, obs.err)
	}
}

func TestChannel_ExecuteSerialises(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ResponseFile, "1\n")
	writeFile(t, dir, CommandFile, "0\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fake := &fakeController{dir: dir, busy: 10 * time.Millisecond}
	go fake.run(ctx)

	ch := newTestChannel(t, dir, 5*time.Second)

	var wg sync.WaitGroup
	errs := make(chan error, 3)
	for _, name := range []string{"unmount_all", "wait", "stop_manager"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			errs <- ch.Execute(ctx, name)
		}(name)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
	}

	if got := len(fake.commands()); got != 3 {
		t.Errorf("controller received %d commands, want 3", got)
	}
	for _, c := range fake.commands() {
		if !strings.HasSuffix(c, "\n,end\n") {
			t.Errorf("argument-less command = %q, want empty argument record", c)
		}
	}
}

func TestChannel_ExecuteTimeout(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ResponseFile, "0\n")
	writeFile(t, dir, CommandFile, "0\n")
	ch := newTestChannel(t, dir, 40*time.Millisecond)

	err := ch.Execute(context.Background(), "wait", Arg{Name: "Time", Value: 1, Unit: "s"})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Execute() error = %v, want ErrTimeout", err)
	}
	if got := readFile(t, dir, CommandFile); got != "0\n" {
		t.Errorf("command written while controller busy: %q", got)
	}
}

func TestChannel_ExecuteTimeoutAfterPosting(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ResponseFile, "1\n")
	writeFile(t, dir, CommandFile, "0\n")
	ch := newTestChannel(t, dir, 40*time.Millisecond)
	obs := &recordingObserver{}
	ch.AddObserver(obs)

	err := ch.Execute(context.Background(), "wait", Arg{Name: "Time", Value: 1, Unit: "s"})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Execute() error = %v, want ErrTimeout", err)
	}
	if got := readFile(t, dir, CommandFile); got != "1,wait\n1,end\n" {
		t.Errorf("command file = %q", got)
	}
	if !errors.Is(obs.err, ErrTimeout) {
		t.Errorf("observer error = %v, want ErrTimeout", obs.err)
	}
}

func TestChannel_ExecuteCancelled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ResponseFile, "0\n")
	writeFile(t, dir, CommandFile, "0\n")
	ch := newTestChannel(t, dir, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := ch.Execute(ctx, "unmount_all")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Execute() error = %v, want context.DeadlineExceeded", err)
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("cancellation must not be reported as channel timeout")
	}
}

func TestArg_Wire(t *testing.T) {
	tests := []struct {
		value any
		want  string
	}{
		{"RACKR:1", "RACKR:1"},
		{true, "1"},
		{false, "0"},
		{3, "3"},
		{int64(-4), "-4"},
		{2.5, "2.5"},
		{10.0, "10"},
		{0.01, "0.01"},
		{float32(0.1), "0.1"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := (Arg{Value: tt.value}).Wire(); got != tt.want {
			t.Errorf("Wire(%v) = %q, want %q", tt.value, got, tt.want)
		}
	}

	a := Arg{Name: "Volume", Value: 2.5, Unit: "mL"}
	if a.String() != "Volume=2.5 mL" {
		t.Errorf("String() = %q", a.String())
	}
}
