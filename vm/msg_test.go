package vm

import (
	"errors"
	"testing"
)

func TestSendReceiveFIFO(t *testing.T) {
	vm := newTestVM()
	if err := vm.Send(vm.Self(), 10, 100); err != nil {
		t.Fatal(err)
	}
	if err := vm.Send(vm.Self(), 10, 200); err != nil {
		t.Fatal(err)
	}
	m, err := vm.Receive(-1, false, 0)
	if err != nil || m.Data != 100 {
		t.Fatalf("first Receive = (%+v, %v), want data 100", m, err)
	}
	m, err = vm.Receive(-1, false, 0)
	if err != nil || m.Data != 200 {
		t.Fatalf("second Receive = (%+v, %v), want data 200", m, err)
	}
}

func TestReceiveFiltersByTypeAndDest(t *testing.T) {
	vm := newTestVM()
	vm.Send(1, 5, 1)
	vm.Send(2, 6, 2)
	vm.Send(1, 6, 3)

	vm.sched.current = 1
	m, err := vm.Receive(6, false, 0)
	if err != nil || m.Data != 3 {
		t.Fatalf("filtered Receive = (%+v, %v), want data 3", m, err)
	}
}

func TestReceiveBroadcast(t *testing.T) {
	vm := newTestVM()
	vm.Send(MsgBroadcast, 1, 42)
	m, err := vm.Receive(-1, false, 0)
	if err != nil || m.Data != 42 {
		t.Fatalf("Receive of broadcast = (%+v, %v), want data 42", m, err)
	}
}

func TestReceiveEmptyNonBlocking(t *testing.T) {
	vm := newTestVM()
	if _, err := vm.Receive(-1, false, 0); !errors.Is(err, ErrNoMessage) {
		t.Fatalf("Receive on empty queue = %v, want ErrNoMessage", err)
	}
}

func TestSendQueueFull(t *testing.T) {
	vm := newTestVM()
	for i := 0; i < MaxMessages; i++ {
		if err := vm.Send(1, 0, Cell(i)); err != nil {
			t.Fatalf("Send #%d: %v", i, err)
		}
	}
	if err := vm.Send(1, 0, 99); !errors.Is(err, ErrMsgQueueFull) {
		t.Fatalf("Send beyond capacity = %v, want ErrMsgQueueFull", err)
	}
}

func TestReceiveBlockingReturnsQueuedMessageImmediately(t *testing.T) {
	vm := newTestVM()
	vm.Send(vm.Self(), 0, 7)
	m, err := vm.Receive(-1, true, 1000)
	if err != nil || m.Data != 7 {
		t.Fatalf("blocking Receive of an already-queued message = (%+v, %v), want data 7", m, err)
	}
}

// TestReceiveBlockingTimesOut exercises the blocking-receive deadline
// boundary (spec.md §8 scenario 5). It uses a TickingFakePlatform, whose
// clock advances on every critical-section entry, so Receive's internal
// yield-and-retry poll loop actually crosses the deadline instead of
// spinning forever against a frozen fake clock.
func TestReceiveBlockingTimesOut(t *testing.T) {
	vm := New(Config{Platform: NewTickingFakePlatform()})
	if _, err := vm.Receive(-1, true, 5); !errors.Is(err, ErrNoMessage) {
		t.Fatalf("blocking Receive past deadline = %v, want ErrNoMessage", err)
	}
}

func TestReceiveCompactionPreservesOrder(t *testing.T) {
	vm := newTestVM()
	vm.Send(1, 0, 1)
	vm.Send(2, 0, 2)
	vm.Send(1, 0, 3)

	vm.sched.current = 2
	m, err := vm.Receive(-1, false, 0)
	if err != nil || m.Data != 2 {
		t.Fatalf("Receive dest 2 = (%+v, %v), want data 2", m, err)
	}
	vm.sched.current = 1
	m, err = vm.Receive(-1, false, 0)
	if err != nil || m.Data != 1 {
		t.Fatalf("Receive dest 1 after compaction = (%+v, %v), want data 1", m, err)
	}
}
