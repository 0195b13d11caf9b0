// Package channel implements the file-based command channel to the external
// hardware controller.
//
// The controller and this process share one directory holding four
// comma-delimited files, each overwritten (never appended) by its writer:
//
//	command.csv   written here:    1,<command>\n<arg1>,...,<argN>,end
//	response.csv  controller:      <idle 0|1>,...
//	status.csv    controller:      <telemetry values>,end
//	return.csv    controller:      <result values>,end
//
// # State Machine
//
//	IDLE (idle=1,new=0) → write command → POSTED (idle=1,new=1)
//	  → controller accepts → EXECUTING (idle=0)
//	  → controller finishes → IDLE
//
// Execute blocks through the whole cycle, so the physical operation is
// complete when it returns. Config.Timeout bounds each wait phase (zero
// waits forever) and the context cancels any of them.
//
// # Simulation
//
// With Config.Simulation set, Execute validates and logs the command and
// returns immediately. No file is touched.
//
// # Usage
//
//	ch, err := channel.New(channel.Config{Dir: "/srv/chemspeed", Timeout: 10 * time.Minute})
//	if err != nil {
//	    return err
//	}
//	ch.SetLogger(logger)
//
//	err = ch.Execute(ctx, "wait", channel.Arg{Name: "Time", Value: 30, Unit: "s"})
package channel
