package elfx

import (
	"bytes"
	"os"
	"runtime"
	"testing"
)

func openSelf(t *testing.T, bias uint64) *Image {
	t.Helper()
	if runtime.GOOS != "linux" {
		t.Skip("ELF images only on linux")
	}
	exe, err := os.Executable()
	if err != nil {
		t.Fatal(err)
	}
	im, err := Open(exe, bias)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { im.Close() })
	return im
}

func TestLookup(t *testing.T) {
	for _, bias := range []uint64{0, 0x10000} {
		im := openSelf(t, bias)
		if len(im.Syms) == 0 {
			t.Skip("test binary carries no symbols")
		}
		addr, ok := im.FindFunctionByName("main.main")
		if !ok {
			t.Fatal("main.main not found")
		}

		tests := []struct {
			va   uint64
			want string
		}{
			{addr, "main.main"},
			{addr + 4, "main.main+0x4"},
		}
		for _, tt := range tests {
			if got := im.Symbolize(tt.va); got != tt.want {
				t.Errorf("bias %#x: Symbolize(%#x) = %q, want %q", bias, tt.va, got, tt.want)
			}
		}
		if !im.InText(addr) {
			t.Errorf("bias %#x: main.main not in text", bias)
		}
		if got := im.Symbolize(bias); got != "" {
			t.Errorf("bias %#x: address 0 symbolized as %q", bias, got)
		}
	}
}

func TestSliceVA(t *testing.T) {
	im := openSelf(t, 0)
	addr, ok := im.FindFunctionByName("main.main")
	if !ok {
		t.Skip("main.main not found")
	}
	b, ok := im.SliceVA(addr, 4)
	if !ok || len(b) != 4 {
		t.Fatalf("SliceVA = %v, %v", b, ok)
	}
	off, _ := im.VA2Off(addr)
	if !bytes.Equal(b, im.All[off:off+4]) {
		t.Error("SliceVA does not match the mapped file")
	}
	if _, ok := im.SliceVA(1<<62, 4); ok {
		t.Error("unmapped address resolved")
	}
}

func TestDemangle(t *testing.T) {
	im := &Image{demangled: make(map[string]string)}
	tests := []struct {
		in, want string
	}{
		{"_ZN3foo3barEv", "foo::bar()"},
		{"main.main", "main.main"},
		{"memcpy", "memcpy"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := im.Demangle(tt.in); got != tt.want {
				t.Errorf("Demangle(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if _, ok := im.demangled[tt.in]; !ok {
				t.Error("result not cached")
			}
		})
	}
}
