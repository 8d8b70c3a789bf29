// Package trace decodes the binary instruction-block traces written by the
// emulator plugin.
//
// A trace is an unbounded sequence of little-endian records:
//
//	address:u64 | declared_count:u16 | payload_len:u16 | payload:[payload_len]u8
//
// Bit 63 of the address marks blocks fetched in kernel context.
package trace

import "fmt"

// KernelBit is the address bit that tags kernel-context blocks.
const KernelBit = uint64(1) << 63

// HeaderSize is the size of the fixed record prefix.
const HeaderSize = 8 + 2 + 2

// Record is one fetched instruction block.
type Record struct {
	Address uint64 // raw address, privilege bit included
	Kernel  bool   // bit 63 of Address
	Count   uint16 // instruction count declared by the emulator
	Payload []byte
}

// NewRecord builds a record for the block at pc. The privilege bit is folded
// into the stored address.
func NewRecord(pc uint64, kernel bool, count uint16, payload []byte) Record {
	addr := pc &^ KernelBit
	if kernel {
		addr |= KernelBit
	}
	return Record{Address: addr, Kernel: kernel, Count: count, Payload: payload}
}

// PC returns the block address with the privilege bit masked out. Use it for
// display only.
func (r Record) PC() uint64 {
	return r.Address &^ KernelBit
}

// IsUser reports whether the block was fetched in user context.
func (r Record) IsUser() bool {
	return !r.Kernel
}

// Size is the encoded size of the record in bytes.
func (r Record) Size() int {
	return HeaderSize + len(r.Payload)
}

func (r Record) String() string {
	mode := "user"
	if r.Kernel {
		mode = "kernel"
	}
	return fmt.Sprintf("%#x %s count=%d len=%d", r.PC(), mode, r.Count, len(r.Payload))
}
