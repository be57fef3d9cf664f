package vm

import (
	"fmt"
	"log/slog"
)

// faultStackDepth is how many top-of-stack cells a Fault captures, per
// bsp/esp32c6/runtime/main/panic_handler.cpp's handle_panic (which logs
// "first 4 values ... (N more)").
const faultStackDepth = 4

// Fault is the information captured when an executing word returns an
// error: the error itself plus enough interpreter state to diagnose it
// without a debugger attached. Grounded on
// original_source/bsp/esp32c6/runtime/main/panic_handler.{hpp,cpp}.
type Fault struct {
	Err      error
	PC       uint32
	WordIdx  int
	DSDepth  int
	RSDepth  int
	DSTop    []Cell // top-first, up to faultStackDepth cells
	TaskID   int
	TaskLive bool // whether a real task (not the VM's own base context) faulted
}

func (f Fault) String() string {
	return fmt.Sprintf("v4 fault: %v (word=%d pc=%d ds_depth=%d rs_depth=%d ds_top=%v task=%d)",
		f.Err, f.WordIdx, f.PC, f.DSDepth, f.RSDepth, f.DSTop, f.TaskID)
}

// PanicHandler is called once per fault. The core itself never halts or
// resets anything -- that policy belongs entirely to the handler, same
// division of labor as panic_handler_init registering a callback the
// vm_wrapper invokes.
type PanicHandler func(Fault)

// NewSlogPanicHandler returns a PanicHandler that logs each Fault as a
// structured error record. It's the host-side stand-in for the board
// handler's LED-blink-and-halt behavior, which has no meaning off
// actual hardware and is explicitly out of scope here.
func NewSlogPanicHandler(logger *slog.Logger) PanicHandler {
	return func(f Fault) {
		logger.Error("vm fault",
			slog.String("error", f.Err.Error()),
			slog.Int("word", f.WordIdx),
			slog.Uint64("pc", uint64(f.PC)),
			slog.Int("ds_depth", f.DSDepth),
			slog.Int("rs_depth", f.RSDepth),
			slog.Any("ds_top", f.DSTop),
			slog.Int("task", f.TaskID),
			slog.Bool("task_live", f.TaskLive),
		)
	}
}

// captureFault builds a Fault from the VM's current state at the point
// err was returned from interpreting wordIdx at pc.
func (vm *VM) captureFault(err error, wordIdx int, pc uint32) Fault {
	return Fault{
		Err:      err,
		PC:       pc,
		WordIdx:  wordIdx,
		DSDepth:  vm.ds.Depth(),
		RSDepth:  vm.rs.Depth(),
		DSTop:    vm.ds.Snapshot(faultStackDepth),
		TaskID:   vm.Self(),
		TaskLive: vm.sched.tasks[vm.sched.current].State != TaskDead,
	}
}

// reportFault invokes the registered handler, if any. If none is
// registered the fault simply propagates to the caller as an error
// (spec.md §7's "no handler registered" case) -- it is never swallowed.
func (vm *VM) reportFault(f Fault) {
	if vm.panicHandler != nil {
		vm.panicHandler(f)
	}
}
