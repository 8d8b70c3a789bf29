package trace

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncated means the stream ended in the middle of a record.
	ErrTruncated = errors.New("truncated record")
	// ErrLengthMismatch means a fixed-width record declared a payload length
	// that disagrees with its instruction count. The stream cannot be
	// resynchronized after this.
	ErrLengthMismatch = errors.New("declared length mismatch")
)

// DecodeError locates a fatal decoding failure in the stream.
type DecodeError struct {
	Offset int64 // byte offset of the record header
	Err    error
	Detail string
}

func (e *DecodeError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("trace offset %#x: %v", e.Offset, e.Err)
	}
	return fmt.Sprintf("trace offset %#x: %v: %s", e.Offset, e.Err, e.Detail)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
