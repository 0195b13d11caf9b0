package emulator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/chemspyd-core/internal/channel"
)

func startEmulator(t *testing.T) (*Emulator, *channel.Channel) {
	t.Helper()
	dir := t.TempDir()

	emu, err := New(Config{Dir: dir, PollInterval: 2 * time.Millisecond, ExecutionTime: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := emu.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(emu.Stop)

	ch, err := channel.New(channel.Config{Dir: dir, PollInterval: 2 * time.Millisecond, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("channel.New() error = %v", err)
	}
	return emu, ch
}

func TestNew_RequiresDir(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestEmulator_InitLeavesChannelIdle(t *testing.T) {
	_, ch := startEmulator(t)

	state, err := ch.State()
	if err != nil {
		t.Fatalf("State() error = %v", err)
	}
	if state != channel.StateIdle {
		t.Errorf("State() = %v, want idle", state)
	}

	status, err := ch.ReadStatus()
	if err != nil {
		t.Fatalf("ReadStatus() error = %v", err)
	}
	if len(status) != 6 {
		t.Errorf("ReadStatus() = %v, want 6 values", status)
	}
}

func TestEmulator_SetpointsReachStatus(t *testing.T) {
	emu, ch := startEmulator(t)
	ctx := context.Background()

	commands := []struct {
		name string
		args []channel.Arg
	}{
		{"set_temperature", []channel.Arg{{Value: "ISYNTH"}, {Value: "on"}, {Value: 60}, {Value: 0}}},
		{"set_stir", []channel.Arg{{Value: "ISYNTH"}, {Value: "on"}, {Value: 600}}},
		{"set_vacuum", []channel.Arg{{Value: "ISYNTH"}, {Value: "on"}, {Value: 200}}},
		{"set_reflux", []channel.Arg{{Value: "ISYNTH"}, {Value: "off"}, {Value: 0}}},
	}
	for _, c := range commands {
		if err := ch.Execute(ctx, c.name, c.args...); err != nil {
			t.Fatalf("Execute(%s) error = %v", c.name, err)
		}
	}

	got := emu.Status()
	if got.TemperatureK != 333.15 || got.StirRPM != 600 || got.VacuumPa != 20000 || got.RefluxK != AmbientKelvin {
		t.Errorf("Status() = %+v", got)
	}

	status, err := ch.ReadStatus()
	if err != nil {
		t.Fatalf("ReadStatus() error = %v", err)
	}
	if status[0] != "333.15" || status[3] != "600" {
		t.Errorf("status.csv = %v", status)
	}

	received := emu.Received()
	if len(received) != len(commands) {
		t.Fatalf("Received() has %d commands, want %d", len(received), len(commands))
	}
	if received[1].Name != "set_stir" || strings.Join(received[1].Args, ",") != "ISYNTH,on,600" {
		t.Errorf("second command = %+v", received[1])
	}
}

func TestEmulator_ReturnValues(t *testing.T) {
	_, ch := startEmulator(t)
	ctx := context.Background()

	err := ch.Execute(ctx, "transfer_solid",
		channel.Arg{Value: "SOLID:1"},
		channel.Arg{Value: "ISYNTH:1;ISYNTH:2"},
		channel.Arg{Value: 12.5},
	)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	ret, err := ch.ReadReturn()
	if err != nil {
		t.Fatalf("ReadReturn() error = %v", err)
	}
	if strings.Join(ret, ",") != "1.25e-05,1.25e-05" {
		t.Errorf("return.csv = %v", ret)
	}

	if err := ch.Execute(ctx, "unmount_all"); err != nil {
		t.Fatalf("Execute(unmount_all) error = %v", err)
	}
	ret, err = ch.ReadReturn()
	if err != nil {
		t.Fatalf("ReadReturn() error = %v", err)
	}
	if len(ret) != 0 {
		t.Errorf("return after unmount_all = %v, want empty", ret)
	}
}

func TestEmulator_CustomHandler(t *testing.T) {
	emu, ch := startEmulator(t)
	emu.Handle("measure_level", func(args []string, _ *Status) ([]string, error) {
		return []string{"3.5"}, nil
	})

	if err := ch.Execute(context.Background(), "measure_level", channel.Arg{Value: "RACKL:1"}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	ret, err := ch.ReadReturn()
	if err != nil {
		t.Fatalf("ReadReturn() error = %v", err)
	}
	if len(ret) != 1 || ret[0] != "3.5" {
		t.Errorf("return.csv = %v", ret)
	}
}

func TestHandlers_RejectBadArguments(t *testing.T) {
	s := AmbientStatus()
	if _, err := setStir([]string{"ISYNTH"}, &s); err == nil {
		t.Error("set_stir with one argument should fail")
	}
	if _, err := setTemperature([]string{"ISYNTH", "on", "hot"}, &s); err == nil {
		t.Error("set_temperature with non-numeric setpoint should fail")
	}
	if _, err := transferSolid([]string{"SOLID:1", "ISYNTH:1", "x"}, &s); err == nil {
		t.Error("transfer_solid with non-numeric mass should fail")
	}
	if _, err := measureLevel(nil, &s); err == nil {
		t.Error("measure_level without zone should fail")
	}
	if s != AmbientStatus() {
		t.Errorf("rejected commands changed status: %+v", s)
	}
}

func TestEmulator_StopIsIdempotent(t *testing.T) {
	emu, err := New(Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	emu.Stop()
	if err := emu.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	emu.Stop()
	emu.Stop()

	if err := emu.SetStatus(Status{StirRPM: 100}); err != nil {
		t.Errorf("SetStatus() error = %v", err)
	}
	if emu.Status().StirRPM != 100 {
		t.Errorf("Status().StirRPM = %v, want 100", emu.Status().StirRPM)
	}
}
