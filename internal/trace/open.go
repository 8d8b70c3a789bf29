package trace

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/golang/snappy"
	"github.com/ulikunitz/xz"
)

// Compression identifies how a trace file is stored on disk.
type Compression string

const (
	None   Compression = "none"
	Gzip   Compression = "gzip"
	XZ     Compression = "xz"
	Snappy Compression = "snappy"
)

var (
	gzipMagic   = []byte{0x1f, 0x8b}
	xzMagic     = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	snappyMagic = []byte{0xff, 0x06, 0x00, 0x00, 's', 'N', 'a', 'P', 'p', 'Y'}
)

const readBufferSize = 1 << 20

// File is an opened trace, transparently decompressed.
type File struct {
	io.Reader
	Path        string
	Compression Compression
	closers     []io.Closer
}

// Open opens the trace at path and sniffs its compression from the first
// bytes.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace: %w", err)
	}
	tf, err := NewFile(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open trace %s: %w", path, err)
	}
	tf.Path = path
	tf.closers = append(tf.closers, f)
	return tf, nil
}

// NewFile wraps r, detecting gzip, xz and framed snappy streams. The returned
// File does not close r.
func NewFile(r io.Reader) (*File, error) {
	br := bufio.NewReaderSize(r, readBufferSize)
	head, err := br.Peek(len(snappyMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("sniff compression: %w", err)
	}

	tf := &File{Compression: None}
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		tf.Compression = Gzip
		tf.Reader = bufio.NewReaderSize(zr, readBufferSize)
		tf.closers = append(tf.closers, zr)
	case bytes.HasPrefix(head, xzMagic):
		xr, err := xz.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("xz: %w", err)
		}
		tf.Compression = XZ
		tf.Reader = bufio.NewReaderSize(xr, readBufferSize)
	case bytes.HasPrefix(head, snappyMagic):
		tf.Compression = Snappy
		tf.Reader = bufio.NewReaderSize(snappy.NewReader(br), readBufferSize)
	default:
		tf.Reader = br
	}
	return tf, nil
}

// Close releases the decompressor and the underlying file.
func (f *File) Close() error {
	var errs []error
	for _, c := range f.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
