// Package disasm defines the decoded-instruction shape shared by the
// architecture adapters and the classifiers, and the adapters themselves.
package disasm

import (
	"errors"
	"fmt"
	"slices"

	"tracestat/internal/arch"
)

// Kind is the syntactic class of an operand.
type Kind int

const (
	Other Kind = iota
	Register
	Memory
	Immediate
)

func (k Kind) String() string {
	switch k {
	case Register:
		return "reg"
	case Memory:
		return "mem"
	case Immediate:
		return "imm"
	default:
		return "other"
	}
}

// Access is the direction in which an operand is accessed, when the decoder
// knows it.
type Access int

const (
	AccessUnknown Access = iota
	ReadOnly
	WriteOnly
	ReadWrite
)

func (a Access) String() string {
	switch a {
	case ReadOnly:
		return "r"
	case WriteOnly:
		return "w"
	case ReadWrite:
		return "rw"
	default:
		return "?"
	}
}

// Operand is one decoded operand.
type Operand struct {
	Kind   Kind
	Access Access
	Text   string
}

// Inst is a decoded instruction.
type Inst struct {
	VA       uint64 // address the block was fetched from plus offset
	Mnemonic string // lower case
	Len      int    // encoded length in bytes
	Raw      []byte
	Text     string   // full rendering, lower case
	Groups   []string // semantic group names, sorted
	Operands []Operand
}

// HasGroup reports whether the instruction carries group g.
func (i Inst) HasGroup(g string) bool {
	_, found := slices.BinarySearch(i.Groups, g)
	return found
}

// HasMemoryOperand reports whether any operand is a memory reference.
func (i Inst) HasMemoryOperand() bool {
	for _, op := range i.Operands {
		if op.Kind == Memory {
			return true
		}
	}
	return false
}

func (i Inst) String() string {
	return fmt.Sprintf("%#x: %s", i.VA, i.Text)
}

// Stream is a linear sequence of instructions.
type Stream []Inst

// Decoder turns a fetched block into instructions.
type Decoder interface {
	Arch() arch.Arch
	// Decode disassembles block, fetched at pc. A non-nil error is always a
	// *Warning; the returned stream holds whatever was decoded.
	Decode(pc uint64, block []byte) (Stream, error)
}

// New returns the decoder for a.
func New(a arch.Arch) Decoder {
	if a == arch.X86_64 {
		return &X86Decoder{}
	}
	return &ARM64Decoder{}
}

var (
	// ErrEmptyDisassembly means no instruction could be decoded from a
	// non-empty block.
	ErrEmptyDisassembly = errors.New("empty disassembly")
	// ErrPartialDisassembly means decoding stopped before the end of the
	// block.
	ErrPartialDisassembly = errors.New("partial disassembly")
)

// Warning reports a non-fatal decoding problem.
type Warning struct {
	Kind   error // ErrEmptyDisassembly or ErrPartialDisassembly
	Offset int   // offset in the block where decoding failed
	Bytes  []byte
	Cause  error
}

func (w *Warning) Error() string {
	return fmt.Sprintf("%v at block offset %d (% x): %v", w.Kind, w.Offset, w.Bytes, w.Cause)
}

func (w *Warning) Unwrap() []error {
	return []error{w.Kind, w.Cause}
}

func sortGroups(groups []string) []string {
	slices.Sort(groups)
	return slices.Compact(groups)
}
