package vm

// MsgBroadcast, used as a message's destination, means "deliverable to
// any receiving task, whatever its id"; a receiver's type filter still
// applies.
const MsgBroadcast = 0xFF

// MaxMessages is the queue's fixed ring capacity (spec.md §6).
const MaxMessages = 16

// Message is one queued item. Grounded on
// original_source/kernel/include/v4/task.h's v4_message_t.
type Message struct {
	Src  int
	Dst  int
	Type uint8
	Data Cell
}

// msgQueue is a fixed-capacity FIFO ring with destructive, filtered
// receive. Grounded on original_source/kernel/src/message.c.
type msgQueue struct {
	slots [MaxMessages]Message
	count int
}

func (q *msgQueue) full() bool {
	return q.count >= MaxMessages
}

// send appends a message to the tail of the ring. src is supplied by
// the caller (Send passes vm.Self(), the current slot index, also for
// sends made while no task is active).
func (q *msgQueue) send(src, dst int, msgType uint8, data Cell) error {
	if q.full() {
		return ErrMsgQueueFull
	}
	q.slots[q.count] = Message{Src: src, Dst: dst, Type: msgType, Data: data}
	q.count++
	return nil
}

// receive scans for the first message matching dst (or addressed to it
// via MsgBroadcast) and, if msgType >= 0, also matching that type, then
// removes it with shift-compaction so FIFO order is preserved among the
// remaining matches.
func (q *msgQueue) receive(dst int, msgType int) (Message, bool) {
	for i := 0; i < q.count; i++ {
		m := q.slots[i]
		if m.Dst != dst && m.Dst != MsgBroadcast {
			continue
		}
		if msgType >= 0 && int(m.Type) != msgType {
			continue
		}
		copy(q.slots[i:q.count-1], q.slots[i+1:q.count])
		q.count--
		return m, true
	}
	return Message{}, false
}

// Send enqueues a message on behalf of the currently scheduled task
// (or the host, when no task is active). Returns ErrMsgQueueFull if the
// ring is at capacity.
func (vm *VM) Send(dst int, msgType uint8, data Cell) error {
	vm.platform.CriticalEnter()
	defer vm.platform.CriticalExit()
	return vm.msgq.send(vm.Self(), dst, msgType, data)
}

// Receive returns the oldest queued message addressed to the currently
// scheduled task (or broadcast), optionally filtered by msgType (pass
// -1 to match any type). There is no caller-suppliable destination --
// spec.md §4.4/§6 define receive(type, blocking, timeout_ms) with the
// destination always implicit (the calling task, or broadcast), never a
// task id the caller names, so a task can never read another task's
// mail. If none is queued and block is true, it yields repeatedly
// (polling, per spec.md §6) until one arrives or timeoutMS elapses (0
// means wait forever); if block is false it returns ErrNoMessage
// immediately on an empty match.
func (vm *VM) Receive(msgType int, block bool, timeoutMS uint32) (Message, error) {
	dst := vm.Self()
	deadline := vm.platform.NowMS() + timeoutMS
	for {
		vm.platform.CriticalEnter()
		m, ok := vm.msgq.receive(dst, msgType)
		vm.platform.CriticalExit()
		if ok {
			return m, nil
		}
		if !block {
			return Message{}, ErrNoMessage
		}
		if timeoutMS != 0 && int32(vm.platform.NowMS()-deadline) >= 0 {
			return Message{}, ErrNoMessage
		}
		if err := vm.Yield(); err != nil {
			return Message{}, err
		}
	}
}

// PendingMessages reports how many messages currently sit in the ring.
func (vm *VM) PendingMessages() int {
	return vm.msgq.count
}
