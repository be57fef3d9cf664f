package vm

// MMIOWindow names an arena-addressable region whose loads and stores
// have external side effects (a peripheral register range). The core
// does not special-case reads or writes that land inside one -- it is
// still an ordinary bounds-and-alignment-checked arena access -- this
// table exists purely so callers can look up (Arena.WindowAt) which
// named device a given address belongs to.
type MMIOWindow struct {
	Name string
	Addr uint32
	Size uint32
}

// Arena is the linear byte memory the VM facade exposes for 32-bit
// load/store, borrowed from the caller for the VM's lifetime (the core
// never allocates or frees it). Grounded on original_source's
// read_i32_le/v4_vm_mem_read32/v4_vm_mem_write32 in kernel/src/vm.c,
// which enforce exactly this pair of checks.
type Arena struct {
	bytes   []byte
	windows []MMIOWindow
}

// NewArena wraps a caller-owned byte slice. windows may be nil.
func NewArena(bytes []byte, windows []MMIOWindow) *Arena {
	return &Arena{bytes: bytes, windows: append([]MMIOWindow(nil), windows...)}
}

// Size reports the arena's length in bytes.
func (a *Arena) Size() uint32 {
	return uint32(len(a.bytes))
}

// WindowAt returns the MMIO window containing addr, if any.
func (a *Arena) WindowAt(addr uint32) (MMIOWindow, bool) {
	for _, w := range a.windows {
		if addr >= w.Addr && addr < w.Addr+w.Size {
			return w, true
		}
	}
	return MMIOWindow{}, false
}

func (a *Arena) check32(addr uint32) error {
	if addr%4 != 0 {
		return ErrUnaligned
	}
	if uint64(addr)+4 > uint64(len(a.bytes)) {
		return ErrOutOfBounds
	}
	return nil
}

// Read32 loads a little-endian 32-bit word. addr must be 4-aligned and
// the full word must lie within the arena.
func (a *Arena) Read32(addr uint32) (uint32, error) {
	if err := a.check32(addr); err != nil {
		return 0, err
	}
	b := a.bytes[addr : addr+4]
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

// Write32 stores a little-endian 32-bit word. addr must be 4-aligned
// and the full word must lie within the arena.
func (a *Arena) Write32(addr uint32, val uint32) error {
	if err := a.check32(addr); err != nil {
		return err
	}
	b := a.bytes[addr : addr+4]
	b[0] = byte(val)
	b[1] = byte(val >> 8)
	b[2] = byte(val >> 16)
	b[3] = byte(val >> 24)
	return nil
}
