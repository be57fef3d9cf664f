package vm

import (
	"encoding/binary"
	"errors"
	"testing"
)

func lit(v int32) []byte {
	b := make([]byte, 5)
	b[0] = byte(OpLit)
	binary.LittleEndian.PutUint32(b[1:], uint32(v))
	return b
}

func jump(op Op, offset int16) []byte {
	b := make([]byte, 3)
	b[0] = byte(op)
	binary.LittleEndian.PutUint16(b[1:], uint16(offset))
	return b
}

func asm(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func newTestVM() *VM {
	return New(Config{Platform: NewFakePlatform()})
}

func TestExecRawArithmetic(t *testing.T) {
	vm := newTestVM()
	// (3 + 4) * 2 == 14
	code := asm(lit(3), lit(4), []byte{byte(OpAdd)}, lit(2), []byte{byte(OpMul)})
	if err := vm.ExecRaw(code); err != nil {
		t.Fatal(err)
	}
	got, err := vm.DSPop()
	if err != nil || got != 14 {
		t.Fatalf("result = (%d, %v), want (14, nil)", got, err)
	}
}

func TestExecRawDivByZero(t *testing.T) {
	vm := newTestVM()
	code := asm(lit(1), lit(0), []byte{byte(OpDiv)})
	if err := vm.ExecRaw(code); !errors.Is(err, ErrDivByZero) {
		t.Fatalf("ExecRaw = %v, want ErrDivByZero", err)
	}
}

func TestExecRawStackUnderflowFault(t *testing.T) {
	vm := newTestVM()
	if err := vm.ExecRaw([]byte{byte(OpAdd)}); !errors.Is(err, ErrStackUnderflow) {
		t.Fatalf("ExecRaw = %v, want ErrStackUnderflow", err)
	}
}

func TestExecRawInvalidOpcode(t *testing.T) {
	vm := newTestVM()
	if err := vm.ExecRaw([]byte{0xff}); !errors.Is(err, ErrInvalidOpcode) {
		t.Fatalf("ExecRaw = %v, want ErrInvalidOpcode", err)
	}
}

func TestExecRawJzLoop(t *testing.T) {
	vm := newTestVM()
	// counts down from 3 to 0 via: LIT n; [loop: DUP JZ done; LIT1 SUB JMP loop]; done: RET
	// encode manually to keep offsets obvious.
	var code []byte
	code = append(code, lit(3)...)
	loopStart := len(code)
	code = append(code, byte(OpDup))
	jzPos := len(code)
	code = append(code, jump(OpJz, 0)...) // patched below
	code = append(code, byte(OpLit1))
	code = append(code, byte(OpSub))
	jmpPos := len(code)
	code = append(code, jump(OpJmp, 0)...) // patched below
	doneAt := len(code)
	code = append(code, byte(OpRet))

	// JZ offset is measured from the byte after its own 2-byte immediate.
	binary.LittleEndian.PutUint16(code[jzPos+1:], uint16(int16(doneAt-(jzPos+3))))
	binary.LittleEndian.PutUint16(code[jmpPos+1:], uint16(int16(loopStart-(jmpPos+3))))

	if err := vm.ExecRaw(code); err != nil {
		t.Fatalf("ExecRaw: %v", err)
	}
	got, err := vm.DSPop()
	if err != nil || got != 0 {
		t.Fatalf("result = (%d, %v), want (0, nil)", got, err)
	}
}

func TestExecRawReturnStack(t *testing.T) {
	vm := newTestVM()
	code := asm(lit(5), []byte{byte(OpTor)}, lit(6), []byte{byte(OpFromR), byte(OpAdd)})
	if err := vm.ExecRaw(code); err != nil {
		t.Fatal(err)
	}
	got, err := vm.DSPop()
	if err != nil || got != 11 {
		t.Fatalf("result = (%d, %v), want (11, nil)", got, err)
	}
}

func TestDisassembleOp(t *testing.T) {
	if got := DisassembleOp(byte(OpAdd)); got != "ADD" {
		t.Fatalf("DisassembleOp(OpAdd) = %q, want ADD", got)
	}
	if got := DisassembleOp(0xff); got != "" {
		t.Fatalf("DisassembleOp(0xff) = %q, want empty", got)
	}
}
