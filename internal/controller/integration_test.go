package controller

import (
	"context"
	"testing"
	"time"

	"github.com/nerrad567/chemspyd-core/internal/channel"
	"github.com/nerrad567/chemspyd-core/internal/emulator"
)

// TestController_AgainstEmulator drives the whole stack through the command
// files: controller, channel and the in-process emulator.
func TestController_AgainstEmulator(t *testing.T) {
	dir := t.TempDir()

	emu, err := emulator.New(emulator.Config{Dir: dir, PollInterval: 2 * time.Millisecond, ExecutionTime: 5 * time.Millisecond})
	if err != nil {
		t.Fatalf("emulator.New() error = %v", err)
	}
	if err := emu.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(emu.Stop)

	ch, err := channel.New(channel.Config{Dir: dir, PollInterval: 2 * time.Millisecond, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("channel.New() error = %v", err)
	}
	c, err := New(Config{Registry: newTestRegistry(t), Executor: ch})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	if err := c.SetTemperature(ctx, "ISYNTH:1", On, 60, 0); err != nil {
		t.Fatalf("SetTemperature() error = %v", err)
	}
	if err := c.SetVacuum(ctx, "ISYNTH:1", On, 200); err != nil {
		t.Fatalf("SetVacuum() error = %v", err)
	}
	status, err := c.ReadStatus()
	if err != nil {
		t.Fatalf("ReadStatus() error = %v", err)
	}
	if status[StatusTemperature] != 60 {
		t.Errorf("temperature = %v, want 60", status[StatusTemperature])
	}
	if status[StatusVacuum] != 200 {
		t.Errorf("vacuum = %v, want 200", status[StatusVacuum])
	}
	if status[StatusReflux] != 20 {
		t.Errorf("reflux = %v, want ambient 20", status[StatusReflux])
	}

	masses, err := c.TransferSolid(ctx, NewSolidTransfer("SOLID:2", "ISYNTH:1;ISYNTH:2", 12.5))
	if err != nil {
		t.Fatalf("TransferSolid() error = %v", err)
	}
	if len(masses) != 2 || masses[0] != 12.5 || masses[1] != 12.5 {
		t.Errorf("masses = %v, want [12.5 12.5]", masses)
	}

	got := emu.Received()
	if len(got) != 3 {
		t.Fatalf("emulator received %d commands, want 3", len(got))
	}
	if got[2].Name != "transfer_solid" || got[2].Args[1] != "ISYNTH:1;ISYNTH:2" {
		t.Errorf("last command = %+v", got[2])
	}
}
