package vm

// scheduler holds the fixed task table and round-robin bookkeeping.
// Grounded on original_source/kernel/include/v4/task.h's
// v4_scheduler_t and kernel/src/scheduler.c's selection/switch logic.
type scheduler struct {
	tasks           [MaxTasks]tcb
	current         int
	taskCount       int
	tickCount       uint32
	contextSwitches uint32
	preemptions     uint32
}

// selectNext implements the priority-then-round-robin candidate search
// from scheduler.c's v4_task_select_next: among READY or already-
// RUNNING tasks, the highest Priority wins; ties favor the lowest slot
// index strictly greater than current, wrapping around to the lowest
// index overall if none is greater. BLOCKED tasks whose wake deadline
// has passed are promoted to READY first. Returns ok=false ("no
// candidate") when every task is DEAD or still BLOCKED.
func (vm *VM) selectNext() (int, bool) {
	sc := &vm.sched
	now := vm.platform.NowMS()
	for i := range sc.tasks {
		t := &sc.tasks[i]
		if t.State == TaskBlocked && int32(now-t.WakeDeadline) >= 0 {
			t.State = TaskReady
		}
	}

	best := -1
	bestPriority := -1
	for offset := 1; offset <= MaxTasks; offset++ {
		i := (sc.current + offset) % MaxTasks
		t := &sc.tasks[i]
		if t.State != TaskReady && t.State != TaskRunning {
			continue
		}
		if int(t.Priority) > bestPriority {
			bestPriority = int(t.Priority)
			best = i
		}
	}
	if best < 0 {
		return sc.current, false
	}
	return best, true
}

// schedule runs one scheduling pass: demote a Running current task to
// Ready, pick the next candidate, and -- if it differs from current --
// swap the live interpreter stacks to point at its owned buffers. Must
// run inside a critical section (spec.md §5).
func (vm *VM) schedule() {
	vm.platform.CriticalEnter()
	defer vm.platform.CriticalExit()

	sc := &vm.sched
	sc.tickCount++
	cur := &sc.tasks[sc.current]
	if cur.State == TaskRunning {
		cur.State = TaskReady
	}

	nextIdx, ok := vm.selectNext()
	if !ok {
		return
	}

	next := &sc.tasks[nextIdx]
	if nextIdx == sc.current {
		vm.ds = next.ds
		vm.rs = next.rs
		next.State = TaskRunning
		return
	}

	if cur.State == TaskRunning || cur.State == TaskReady {
		sc.preemptions++
	}
	vm.ds = next.ds
	vm.rs = next.rs
	next.State = TaskRunning
	next.ExecCount++
	sc.current = nextIdx
	sc.contextSwitches++
}

// SpawnTask creates a task running word wordIdx from offset 0, with its
// own data/return stacks of the given sizes (bounded by the stack caps
// spec.md §3 sets: 256 cells of data stack, 64 of return stack). It
// returns the new task's id. Grounded on
// original_source/kernel/src/task.c's v4_task_spawn.
func (vm *VM) SpawnTask(wordIdx int, priority uint8, dsSize, rsSize int) (int, error) {
	if dsSize <= 0 || dsSize > 256 || rsSize <= 0 || rsSize > 64 {
		return 0, ErrInvalidArg
	}
	if _, err := vm.dict.at(wordIdx); err != nil {
		return 0, ErrInvalidArg
	}

	vm.platform.CriticalEnter()
	defer vm.platform.CriticalExit()

	slot := -1
	for i := range vm.sched.tasks {
		if vm.sched.tasks[i].State == TaskDead {
			slot = i
			break
		}
	}
	if slot < 0 {
		return 0, ErrTaskLimit
	}

	t := &vm.sched.tasks[slot]
	*t = tcb{
		WordIdx:  wordIdx,
		ds:       NewStack(dsSize),
		rs:       NewStack(rsSize),
		State:    TaskReady,
		Priority: priority,
	}
	vm.sched.taskCount++
	return slot, nil
}

// Yield voluntarily gives up the remainder of the current task's turn,
// inviting the scheduler to pick another READY task of equal or higher
// priority. Also the facade-level equivalent of the TASK_YIELD opcode.
func (vm *VM) Yield() error {
	vm.schedule()
	return nil
}

// Sleep blocks the current task until at least ms milliseconds have
// elapsed, then invokes the scheduler. The deadline is set
// unconditionally, even for ms == 0, as original_source's v4_task_sleep
// does; with ms == 0 the deadline is already due in the selection pass
// Sleep itself triggers, so the task is Ready again at once and Sleep(0)
// behaves like Yield.
// A Dead "current" slot (the default when no task has ever been
// spawned, e.g. a direct Exec/ExecRaw call) has nothing to block --
// Sleep degrades to the same graceful schedule()-and-return path Yield
// takes in that situation, rather than erroring, so a TASK_SLEEP
// encountered outside a task context resumes the same bytecode stream
// exactly like TASK_YIELD does.
func (vm *VM) Sleep(ms uint32) error {
	vm.platform.CriticalEnter()
	idx := vm.sched.current
	t := &vm.sched.tasks[idx]
	if t.State == TaskDead {
		vm.platform.CriticalExit()
		vm.schedule()
		return nil
	}
	t.WakeDeadline = vm.platform.NowMS() + ms
	t.State = TaskBlocked
	vm.platform.CriticalExit()

	vm.schedule()
	return nil
}

// ExitTask tears down the current task: releases its stacks, marks it
// Dead, and reschedules. Grounded on
// original_source/kernel/src/task.c's v4_task_exit.
func (vm *VM) ExitTask() error {
	vm.platform.CriticalEnter()
	idx := vm.sched.current
	t := &vm.sched.tasks[idx]
	if t.State == TaskDead {
		vm.platform.CriticalExit()
		return ErrTaskInvalidID
	}
	t.State = TaskDead
	t.ds = nil
	t.rs = nil
	vm.sched.taskCount--
	vm.platform.CriticalExit()

	vm.schedule()
	return nil
}

// Self reports the currently scheduled task's id.
func (vm *VM) Self() int {
	return vm.sched.current
}

// TaskCount reports the number of non-Dead tasks.
func (vm *VM) TaskCount() int {
	return vm.sched.taskCount
}

// TaskState reports a task slot's current lifecycle stage.
func (vm *VM) TaskState(id int) (TaskState, error) {
	if id < 0 || id >= MaxTasks {
		return TaskDead, ErrTaskInvalidID
	}
	return vm.sched.tasks[id].State, nil
}

// runTaskTurn interprets the current task's word starting from its
// saved program counter until it suspends (TASK_YIELD/TASK_SLEEP,
// already handled by schedule() by the time interpret returns), faults,
// or returns/falls off the end -- which this treats as the task having
// finished its work and exits it automatically, mirroring a thread
// function returning.
func (vm *VM) runTaskTurn() error {
	sc := &vm.sched
	idx := sc.current
	t := &sc.tasks[idx]
	if t.State != TaskRunning {
		return nil
	}
	word, err := vm.dict.at(t.WordIdx)
	if err != nil {
		return err
	}

	newPC, status, err := vm.interpret(word.Code, t.PC)
	if err != nil {
		vm.reportFault(vm.captureFault(err, t.WordIdx, newPC))
		t.State = TaskDead
		t.ds = nil
		t.rs = nil
		sc.taskCount--
		vm.schedule()
		return err
	}
	if status == stepSuspended {
		t.PC = newPC
		return nil
	}
	return vm.ExitTask()
}

// RunScheduler drives the task system turn by turn until no task is
// Running or Ready, or maxTurns is exhausted (0 means unbounded).
// Supplemental driver, not present in the minimal original_source
// vm_exec.c (which interprets a single flat byte range); grounded on
// the round-robin super-loop pattern described for the TCB's saved
// program counter in spec.md §3 and bsp/.../main.cpp's scheduling loop.
func (vm *VM) RunScheduler(maxTurns int) error {
	for turns := 0; maxTurns == 0 || turns < maxTurns; turns++ {
		if vm.sched.tasks[vm.sched.current].State != TaskRunning {
			vm.schedule()
		}
		if vm.sched.tasks[vm.sched.current].State != TaskRunning {
			return nil // nothing runnable
		}
		if err := vm.runTaskTurn(); err != nil {
			return err
		}
	}
	return nil
}
