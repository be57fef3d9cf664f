package vm

// TaskState is a TCB's lifecycle stage. Grounded on
// original_source/kernel/include/v4/task.h's v4_task_state_t.
type TaskState uint8

const (
	TaskDead TaskState = iota
	TaskReady
	TaskRunning
	TaskBlocked
)

func (s TaskState) String() string {
	switch s {
	case TaskDead:
		return "dead"
	case TaskReady:
		return "ready"
	case TaskRunning:
		return "running"
	case TaskBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// MaxTasks is the scheduler's fixed slot count (spec.md §5).
const MaxTasks = 8

// tcb is one task control block. A Dead tcb has released its ds/rs
// buffers and is eligible for reuse by SpawnTask. Grounded on
// original_source/kernel/include/v4/task.h's v4_task_t, minus the
// fields (ds_base/rs_base as raw pointers, ds_size/rs_size as separate
// ints) that collapse into a single owned *Stack in this port.
type tcb struct {
	WordIdx      int
	PC           uint32
	ds           *Stack
	rs           *Stack
	State        TaskState
	Priority     uint8
	WakeDeadline uint32
	ExecCount    uint16
}
