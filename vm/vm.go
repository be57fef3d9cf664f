// Package vm implements a small stack-based bytecode interpreter and a
// cooperative/preemptive task scheduler sized for 32-bit
// microcontrollers: a 256-word dictionary, a 20-opcode instruction set
// with no memory-access opcodes (all memory access is a facade call,
// never bytecode), an 8-slot task table, and a 16-message ring queue.
//
// Grounded on the teacher's forth package (github.com/unixdj/forego)
// for its VM-as-a-struct shape and opcode-dispatch idiom, and on
// original_source's v4_vm_t/v4_vm.h C API for the facade's exact method
// set and semantics.
package vm

import (
	"github.com/google/uuid"
)

// Config configures a new VM. Arena and its MMIO windows are entirely
// optional -- a VM with no memory-mapped region still runs words and
// schedules tasks; MemRead32/MemWrite32 just return ErrOutOfBounds.
type Config struct {
	Arena        *Arena
	Platform     Platform
	PanicHandler PanicHandler
}

// VM is the facade original_source exposes as v4_vm_t plus its
// v4_scheduler_t and v4_msg_queue_t companions, collapsed into one Go
// value. Its zero value is not usable; construct with New.
type VM struct {
	id uuid.UUID

	dict  *dictionary
	arena *Arena

	baseDS *Stack
	baseRS *Stack
	ds     *Stack // currently live data stack (base, or a task's own)
	rs     *Stack // currently live return stack

	sched scheduler
	msgq  msgQueue

	platform     Platform
	panicHandler PanicHandler
}

// New constructs a VM. A nil cfg.Platform defaults to NewStdPlatform().
func New(cfg Config) *VM {
	platform := cfg.Platform
	if platform == nil {
		platform = NewStdPlatform()
	}
	baseDS := NewStack(256)
	baseRS := NewStack(64)
	vm := &VM{
		id:           uuid.New(),
		dict:         newDictionary(),
		arena:        cfg.Arena,
		baseDS:       baseDS,
		baseRS:       baseRS,
		ds:           baseDS,
		rs:           baseRS,
		platform:     platform,
		panicHandler: cfg.PanicHandler,
	}
	return vm
}

// ID uniquely identifies this VM instance, useful for correlating log
// lines across multiple VMs hosted in one process (e.g. tests that
// create many VMs). Not part of original_source's C API,
// which has no equivalent of a process-wide unique handle; supplements
// it the way a Go service typically tags long-lived resources.
func (vm *VM) ID() uuid.UUID {
	return vm.id
}

// Reset clears both base stacks, every task slot, and the message
// queue, returning the VM to an idle state. The dictionary and the
// arena's contents are left untouched: registering words is a separate,
// comparatively expensive step original_source's v4_vm_reset does not
// repeat on every reset, and a caller resetting between runs of the
// same program expects its words to still be there.
func (vm *VM) Reset() {
	vm.baseDS.Clear()
	vm.baseRS.Clear()
	vm.ds = vm.baseDS
	vm.rs = vm.baseRS
	vm.sched = scheduler{}
	vm.msgq = msgQueue{}
}

// RegisterWord adds a named (or anonymous, if name == "") word to the
// dictionary and returns its stable index.
func (vm *VM) RegisterWord(name string, code []byte) (int, error) {
	return vm.dict.register(name, code)
}

// FindWord returns the index of the first-registered word with the
// given name.
func (vm *VM) FindWord(name string) (int, error) {
	return vm.dict.findByName(name)
}

// WordCount reports how many words are registered.
func (vm *VM) WordCount() int {
	return vm.dict.count()
}

// Exec interprets the word at wordIdx from offset 0 to completion (RET,
// fall-through, or fault) on whichever stacks are currently live. A
// TASK_YIELD/TASK_SLEEP encountered while no task owns the live stacks
// (i.e. a direct, non-scheduler-driven call) performs its scheduling
// side effect and transparently resumes the same bytecode stream --
// Exec's contract is a single flat run, exactly like
// original_source's v4_vm_exec.
func (vm *VM) Exec(wordIdx int) error {
	word, err := vm.dict.at(wordIdx)
	if err != nil {
		return err
	}
	return vm.execRawTracked(word.Code, wordIdx)
}

// ExecRaw interprets a caller-supplied bytecode slice directly, without
// requiring it to be registered in the dictionary. Same suspend-and-
// resume-inline contract as Exec.
func (vm *VM) ExecRaw(code []byte) error {
	return vm.execRawTracked(code, -1)
}

func (vm *VM) execRawTracked(code []byte, wordIdx int) error {
	pc := uint32(0)
	for {
		newPC, status, err := vm.interpret(code, pc)
		if err != nil {
			vm.reportFault(vm.captureFault(err, wordIdx, newPC))
			return err
		}
		if status == stepReturned {
			return nil
		}
		pc = newPC // stepSuspended: scheduler already ran; keep going
	}
}

// DSPush pushes a cell onto the currently live data stack.
func (vm *VM) DSPush(c Cell) error { return vm.ds.Push(c) }

// DSPop pops a cell off the currently live data stack.
func (vm *VM) DSPop() (Cell, error) { return vm.ds.Pop() }

// DSPeek reads the cell at the given depth from the top without
// removing it.
func (vm *VM) DSPeek(fromTop int) (Cell, error) { return vm.ds.Peek(fromTop) }

// DSDepth reports how many cells are on the currently live data stack.
func (vm *VM) DSDepth() int { return vm.ds.Depth() }

// RSDepth reports how many cells are on the currently live return
// stack.
func (vm *VM) RSDepth() int { return vm.rs.Depth() }

// MemRead32 loads a little-endian 32-bit word from the configured
// arena. Returns ErrOutOfBounds if no arena was configured.
func (vm *VM) MemRead32(addr uint32) (uint32, error) {
	if vm.arena == nil {
		return 0, ErrOutOfBounds
	}
	return vm.arena.Read32(addr)
}

// MemWrite32 stores a little-endian 32-bit word into the configured
// arena. Returns ErrOutOfBounds if no arena was configured.
func (vm *VM) MemWrite32(addr uint32, val uint32) error {
	if vm.arena == nil {
		return ErrOutOfBounds
	}
	return vm.arena.Write32(addr, val)
}
