package trace

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"tracestat/internal/arch"
)

// Reader yields records one at a time. It holds at most one payload in
// memory and never looks ahead past the current record.
type Reader struct {
	r    io.Reader
	arch arch.Arch
	off  int64
	hdr  [HeaderSize]byte
	err  error
}

// NewReader returns a Reader decoding records for the given architecture.
// Callers should pass a buffered reader; Reader issues small reads.
func NewReader(r io.Reader, a arch.Arch) *Reader {
	return &Reader{r: r, arch: a}
}

// Offset returns the byte offset of the next record.
func (r *Reader) Offset() int64 {
	return r.off
}

// Next decodes the next record. It returns io.EOF when the stream ends on a
// record boundary and a *DecodeError otherwise. After the first error every
// call returns the same error.
func (r *Reader) Next() (Record, error) {
	if r.err != nil {
		return Record{}, r.err
	}
	rec, err := r.next()
	if err != nil {
		r.err = err
		return Record{}, err
	}
	return rec, nil
}

func (r *Reader) next() (Record, error) {
	start := r.off
	n, err := io.ReadFull(r.r, r.hdr[:])
	r.off += int64(n)
	switch {
	case err == io.EOF:
		return Record{}, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return Record{}, &DecodeError{Offset: start, Err: ErrTruncated,
			Detail: fmt.Sprintf("header: read %d of %d bytes", n, HeaderSize)}
	case err != nil:
		return Record{}, fmt.Errorf("failed to read trace at offset %#x: %w", start, err)
	}

	addr := binary.LittleEndian.Uint64(r.hdr[0:8])
	count := binary.LittleEndian.Uint16(r.hdr[8:10])
	size := int(binary.LittleEndian.Uint16(r.hdr[10:12]))

	if insn := r.arch.InsnSize(); insn != 0 && size != int(count)*insn {
		return Record{}, &DecodeError{Offset: start, Err: ErrLengthMismatch,
			Detail: fmt.Sprintf("%d instructions declared with %d payload bytes, want %d", count, size, int(count)*insn)}
	}

	payload := make([]byte, size)
	n, err = io.ReadFull(r.r, payload)
	r.off += int64(n)
	if err != nil {
		if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
			return Record{}, &DecodeError{Offset: start, Err: ErrTruncated,
				Detail: fmt.Sprintf("payload: read %d of %d bytes", n, size)}
		}
		return Record{}, fmt.Errorf("failed to read trace at offset %#x: %w", start, err)
	}

	return Record{
		Address: addr,
		Kernel:  addr&KernelBit != 0,
		Count:   count,
		Payload: payload,
	}, nil
}
