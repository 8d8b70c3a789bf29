package trace

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"tracestat/internal/arch"
)

// Writer encodes records in the trace format. It is used to cut sample
// traces and to build fixtures.
type Writer struct {
	w    io.Writer
	arch arch.Arch
	hdr  [HeaderSize]byte
}

// NewWriter returns a Writer emitting records for the given architecture.
func NewWriter(w io.Writer, a arch.Arch) *Writer {
	return &Writer{w: w, arch: a}
}

// Write encodes rec. Records that a Reader for the same architecture would
// reject are refused.
func (w *Writer) Write(rec Record) error {
	if len(rec.Payload) > math.MaxUint16 {
		return fmt.Errorf("payload of %d bytes does not fit a record", len(rec.Payload))
	}
	if insn := w.arch.InsnSize(); insn != 0 && len(rec.Payload) != int(rec.Count)*insn {
		return fmt.Errorf("%w: %d instructions with %d payload bytes", ErrLengthMismatch, rec.Count, len(rec.Payload))
	}
	addr := rec.Address
	if rec.Kernel {
		addr |= KernelBit
	}
	binary.LittleEndian.PutUint64(w.hdr[0:8], addr)
	binary.LittleEndian.PutUint16(w.hdr[8:10], rec.Count)
	binary.LittleEndian.PutUint16(w.hdr[10:12], uint16(len(rec.Payload)))
	if _, err := w.w.Write(w.hdr[:]); err != nil {
		return fmt.Errorf("write record header: %w", err)
	}
	if _, err := w.w.Write(rec.Payload); err != nil {
		return fmt.Errorf("write record payload: %w", err)
	}
	return nil
}
