package trace

import (
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/snappy"
	"github.com/ulikunitz/xz"

	"tracestat/internal/arch"
)

func sampleTrace(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := NewWriter(&buf, arch.X86_64)
	for i := 0; i < 4; i++ {
		if err := w.Write(NewRecord(0x401000+uint64(i), i%2 == 1, 1, []byte{0x90})); err != nil {
			t.Fatal(err)
		}
	}
	return buf.Bytes()
}

func TestOpenCompression(t *testing.T) {
	raw := sampleTrace(t)

	tests := []struct {
		name     string
		want     Compression
		compress func(io.Writer) io.WriteCloser
	}{
		{"raw", None, nil},
		{"gzip", Gzip, func(w io.Writer) io.WriteCloser { return gzip.NewWriter(w) }},
		{"snappy", Snappy, func(w io.Writer) io.WriteCloser { return snappy.NewBufferedWriter(w) }},
		{"xz", XZ, func(w io.Writer) io.WriteCloser {
			xw, err := xz.NewWriter(w)
			if err != nil {
				t.Fatalf("xz writer: %v", err)
			}
			return xw
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if tt.compress == nil {
				buf.Write(raw)
			} else {
				cw := tt.compress(&buf)
				if _, err := cw.Write(raw); err != nil {
					t.Fatal(err)
				}
				if err := cw.Close(); err != nil {
					t.Fatal(err)
				}
			}

			path := filepath.Join(t.TempDir(), "trace.bin")
			if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
				t.Fatal(err)
			}

			f, err := Open(path)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			defer f.Close()

			if f.Compression != tt.want {
				t.Errorf("Compression = %s, want %s", f.Compression, tt.want)
			}

			r := NewReader(f, arch.X86_64)
			n := 0
			for {
				_, err := r.Next()
				if err == io.EOF {
					break
				}
				if err != nil {
					t.Fatalf("Next failed: %v", err)
				}
				n++
			}
			if n != 4 {
				t.Errorf("read %d records, want 4", n)
			}
		})
	}
}

func TestOpenEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.bin")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	if _, err := NewReader(f, arch.AArch64).Next(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}
