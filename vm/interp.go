package vm

import "encoding/binary"

// stepStatus reports why interpret() returned.
type stepStatus int

const (
	// stepReturned means the bytecode hit RET or fell off the end of
	// the slice with no preceding RET (both are OK per spec.md §4.2).
	stepReturned stepStatus = iota
	// stepSuspended means TASK_YIELD or TASK_SLEEP was executed. The
	// scheduler has already run; newPC is where to resume this same
	// bytecode slice's interpretation on a later turn.
	stepSuspended
)

// interpret runs code starting at pc until RET, fall-through, a fault,
// or a task-suspension point. It operates on vm.ds/vm.rs, whichever
// stacks are currently live (the VM's own base stacks, or a task's
// owned stacks -- see sched.go). Grounded opcode-for-opcode on
// original_source/kernel/src/vm_exec.c; restyled as a byte-dispatch
// loop in the teacher's step() shape (forth/vm.go's step()/Run()).
func (vm *VM) interpret(code []byte, pc uint32) (newPC uint32, status stepStatus, err error) {
	for {
		if pc >= uint32(len(code)) {
			return pc, stepReturned, nil
		}
		op := Op(code[pc])
		pc++

		switch op {
		case OpLit:
			if pc+4 > uint32(len(code)) {
				return pc, stepReturned, ErrInvalidOpcode
			}
			v := int32(binary.LittleEndian.Uint32(code[pc:]))
			pc += 4
			if err := vm.ds.Push(v); err != nil {
				return pc, stepReturned, err
			}

		case OpLit0:
			if err := vm.ds.Push(0); err != nil {
				return pc, stepReturned, err
			}

		case OpLit1:
			if err := vm.ds.Push(1); err != nil {
				return pc, stepReturned, err
			}

		case OpDup:
			if err := vm.ds.Dup(); err != nil {
				return pc, stepReturned, err
			}

		case OpDrop:
			if _, err := vm.ds.Pop(); err != nil {
				return pc, stepReturned, err
			}

		case OpSwap:
			if err := vm.ds.Swap(); err != nil {
				return pc, stepReturned, err
			}

		case OpOver:
			if err := vm.ds.Over(); err != nil {
				return pc, stepReturned, err
			}

		case OpAdd:
			if err := vm.binOp(func(b, a Cell) Cell { return b + a }); err != nil {
				return pc, stepReturned, err
			}

		case OpSub:
			if err := vm.binOp(func(b, a Cell) Cell { return b - a }); err != nil {
				return pc, stepReturned, err
			}

		case OpMul:
			if err := vm.binOp(func(b, a Cell) Cell { return b * a }); err != nil {
				return pc, stepReturned, err
			}

		case OpDiv:
			a, err := vm.ds.Pop()
			if err != nil {
				return pc, stepReturned, err
			}
			b, err := vm.ds.Pop()
			if err != nil {
				return pc, stepReturned, err
			}
			if a == 0 {
				return pc, stepReturned, ErrDivByZero
			}
			if err := vm.ds.Push(b / a); err != nil { // truncating toward zero, per spec.md §4.2
				return pc, stepReturned, err
			}

		case OpEq:
			if err := vm.binOp(func(b, a Cell) Cell { return forthBool(b == a) }); err != nil {
				return pc, stepReturned, err
			}

		case OpLt:
			if err := vm.binOp(func(b, a Cell) Cell { return forthBool(b < a) }); err != nil {
				return pc, stepReturned, err
			}

		case OpJmp:
			target, err := vm.branchTarget(code, pc)
			if err != nil {
				return pc, stepReturned, err
			}
			pc = target

		case OpJz:
			if pc+2 > uint32(len(code)) {
				return pc, stepReturned, ErrInvalidOpcode
			}
			cond, err := vm.ds.Pop()
			if err != nil {
				return pc, stepReturned, err
			}
			if cond == 0 {
				target, err := vm.branchTarget(code, pc)
				if err != nil {
					return pc, stepReturned, err
				}
				pc = target
			} else {
				pc += 2
			}

		case OpRet:
			return pc, stepReturned, nil

		case OpTor:
			v, err := vm.ds.Pop()
			if err != nil {
				return pc, stepReturned, err
			}
			if err := vm.rs.Push(v); err != nil {
				return pc, stepReturned, err
			}

		case OpFromR:
			v, err := vm.rs.Pop()
			if err != nil {
				return pc, stepReturned, err
			}
			if err := vm.ds.Push(v); err != nil {
				return pc, stepReturned, err
			}

		case OpTaskYield:
			if err := vm.Yield(); err != nil {
				return pc, stepReturned, err
			}
			return pc, stepSuspended, nil

		case OpTaskSleep:
			ms, err := vm.ds.Pop()
			if err != nil {
				return pc, stepReturned, err
			}
			if err := vm.Sleep(uint32(ms)); err != nil {
				return pc, stepReturned, err
			}
			return pc, stepSuspended, nil

		default:
			return pc, stepReturned, ErrInvalidOpcode
		}
	}
}

// binOp pops two cells (a = top, b = second), applies op(b, a), and
// pushes the result -- the common shape behind ADD/SUB/MUL/EQ/LT.
func (vm *VM) binOp(op func(b, a Cell) Cell) error {
	a, err := vm.ds.Pop()
	if err != nil {
		return err
	}
	b, err := vm.ds.Pop()
	if err != nil {
		return err
	}
	return vm.ds.Push(op(b, a))
}

// branchTarget reads the 16-bit signed offset that follows a JMP/JZ
// opcode byte at pc and resolves it to an absolute index within code.
// The offset is measured from the byte following the immediate (per
// spec.md §4.2); the target must land within [0, len(code)].
func (vm *VM) branchTarget(code []byte, pc uint32) (uint32, error) {
	if pc+2 > uint32(len(code)) {
		return 0, ErrInvalidOpcode
	}
	offset := int16(binary.LittleEndian.Uint16(code[pc:]))
	base := int64(pc) + 2
	target := base + int64(offset)
	if target < 0 || target > int64(len(code)) {
		return 0, ErrOutOfBounds
	}
	return uint32(target), nil
}
