package trace

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"tracestat/internal/arch"
)

func TestRecordRoundTrip(t *testing.T) {
	payload := []byte{0x1f, 0x20, 0x03, 0xd5, 0xc0, 0x03, 0x5f, 0xd6}

	var buf bytes.Buffer
	w := NewWriter(&buf, arch.AArch64)
	if err := w.Write(Record{Address: 0x8000000000000010, Count: 2, Payload: payload}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	r := NewReader(&buf, arch.AArch64)
	rec, err := r.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if !rec.Kernel {
		t.Error("expected kernel record")
	}
	if rec.Count != 2 {
		t.Errorf("Count = %d, want 2", rec.Count)
	}
	if !bytes.Equal(rec.Payload, payload) {
		t.Errorf("Payload = %x, want %x", rec.Payload, payload)
	}
	if rec.Address != 0x8000000000000010 {
		t.Errorf("Address = %#x, stored address must keep the privilege bit", rec.Address)
	}
	if rec.PC() != 0x10 {
		t.Errorf("PC() = %#x, want 0x10", rec.PC())
	}

	if _, err := r.Next(); err != io.EOF {
		t.Errorf("expected io.EOF after last record, got %v", err)
	}
}

func TestNewRecordPrivilegeBit(t *testing.T) {
	tests := []struct {
		name   string
		pc     uint64
		kernel bool
		want   uint64
	}{
		{"user", 0x4000, false, 0x4000},
		{"kernel", 0x4000, true, 0x8000000000004000},
		{"user clears stray bit", 0x8000000000004000, false, 0x4000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := NewRecord(tt.pc, tt.kernel, 0, nil)
			if rec.Address != tt.want {
				t.Errorf("Address = %#x, want %#x", rec.Address, tt.want)
			}
			if rec.IsUser() == tt.kernel {
				t.Errorf("IsUser() = %v with kernel=%v", rec.IsUser(), tt.kernel)
			}
		})
	}
}

func TestFixedWidthLengthMismatch(t *testing.T) {
	var buf bytes.Buffer
	// declared_count=3, payload_len=11
	buf.Write([]byte{0x00, 0x10, 0, 0, 0, 0, 0, 0, 3, 0, 11, 0})
	buf.Write(make([]byte, 11))

	_, err := NewReader(&buf, arch.AArch64).Next()
	if !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("expected ErrLengthMismatch, got %v", err)
	}
	var de *DecodeError
	if !errors.As(err, &de) || de.Offset != 0 {
		t.Errorf("expected DecodeError at offset 0, got %v", err)
	}
}

func TestVariableWidthCountIsAdvisory(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, arch.X86_64)
	rec := NewRecord(0x401000, false, 5, []byte{0x90, 0xc3})
	if err := w.Write(rec); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	got, err := NewReader(&buf, arch.X86_64).Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if got.Count != 5 || len(got.Payload) != 2 {
		t.Errorf("got count=%d len=%d, want count=5 len=2", got.Count, len(got.Payload))
	}
	if got.Kernel {
		t.Error("expected user record")
	}
}

func TestTruncated(t *testing.T) {
	var full bytes.Buffer
	w := NewWriter(&full, arch.X86_64)
	if err := w.Write(NewRecord(0x1000, false, 1, []byte{0x90})); err != nil {
		t.Fatal(err)
	}
	if err := w.Write(NewRecord(0x2000, false, 2, []byte{0x48, 0x89, 0xe5})); err != nil {
		t.Fatal(err)
	}
	data := full.Bytes()
	second := int64(HeaderSize + 1)

	tests := []struct {
		name string
		cut  int
	}{
		{"inside header", int(second) + 5},
		{"inside payload", len(data) - 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(bytes.NewReader(data[:tt.cut]), arch.X86_64)
			if _, err := r.Next(); err != nil {
				t.Fatalf("first record failed: %v", err)
			}
			_, err := r.Next()
			if !errors.Is(err, ErrTruncated) {
				t.Fatalf("expected ErrTruncated, got %v", err)
			}
			var de *DecodeError
			if !errors.As(err, &de) || de.Offset != second {
				t.Errorf("expected offset %d, got %v", second, err)
			}
			if _, again := r.Next(); !errors.Is(again, ErrTruncated) {
				t.Errorf("reader must stay failed, got %v", again)
			}
		})
	}
}

func TestWriterRejectsBadFixedRecord(t *testing.T) {
	w := NewWriter(io.Discard, arch.AArch64)
	err := w.Write(NewRecord(0, false, 3, make([]byte, 11)))
	if !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("expected ErrLengthMismatch, got %v", err)
	}
}

func TestReaderOffset(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, arch.AArch64)
	for i := 0; i < 3; i++ {
		if err := w.Write(NewRecord(uint64(i)*4, false, 1, []byte{0x1f, 0x20, 0x03, 0xd5})); err != nil {
			t.Fatal(err)
		}
	}
	r := NewReader(&buf, arch.AArch64)
	for i := 0; i < 3; i++ {
		if r.Offset() != int64(i*(HeaderSize+4)) {
			t.Errorf("record %d offset = %d", i, r.Offset())
		}
		if _, err := r.Next(); err != nil {
			t.Fatal(err)
		}
	}
}
