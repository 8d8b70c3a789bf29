// Package elfx opens ELF images so trace addresses can be mapped back to
// symbols and file bytes.
package elfx

import (
	"debug/elf"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"syscall"

	"github.com/ianlancetaylor/demangle"
)

type Image struct {
	Path  string
	File  *elf.File
	All   []byte
	Loads []Seg
	Text  Section
	Syms  []Symbol // sorted by Addr
	Bias  uint64   // added to every image address
	f     *os.File

	mu        sync.Mutex
	demangled map[string]string
}

type Seg struct {
	Vaddr, Off, Filesz uint64
	Flags              elf.ProgFlag
}

type Section struct {
	Name          string
	VA, Off, Size uint64
}

type Symbol struct {
	Name  string
	Addr  uint64
	Size  uint64
	IsPLT bool
}

// Open maps the image at path. bias is the load address of a position
// independent image and 0 otherwise.
func Open(path string, bias uint64) (*Image, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open elf: %w", err)
	}

	of, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open file: %w", err)
	}

	fi, err := of.Stat()
	if err != nil {
		of.Close()
		f.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}

	all, err := syscall.Mmap(int(of.Fd()), 0, int(fi.Size()), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		of.Close()
		f.Close()
		return nil, fmt.Errorf("mmap file: %w", err)
	}

	im := &Image{Path: path, File: f, All: all, Bias: bias, f: of, demangled: make(map[string]string)}
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		im.Loads = append(im.Loads, Seg{
			Vaddr:  p.Vaddr,
			Off:    p.Off,
			Filesz: p.Filesz,
			Flags:  p.Flags,
		})
	}

	if s := f.Section(".text"); s != nil {
		im.Text = Section{s.Name, s.Addr, s.Offset, s.Size}
	} else {
		for _, l := range im.Loads {
			if l.Flags&elf.PF_X != 0 && l.Filesz > 0 {
				im.Text = Section{"LOAD(exec)", l.Vaddr, l.Off, l.Filesz}
				break
			}
		}
	}

	im.loadSymbols()
	return im, nil
}

// Close unmaps the memory and closes the underlying files.
func (im *Image) Close() error {
	var err1, err2 error
	if im.All != nil {
		err1 = syscall.Munmap(im.All)
		im.All = nil
	}
	if im.f != nil {
		err2 = im.f.Close()
		im.f = nil
	}
	if im.File != nil {
		err3 := im.File.Close()
		if err3 != nil && err2 == nil {
			err2 = err3
		}
		im.File = nil
	}
	if err1 != nil {
		return err1
	}
	return err2
}

// VA2Off translates a runtime address into a file offset using PT_LOAD
// segments. It returns false if the address is unmapped.
func (im *Image) VA2Off(va uint64) (uint64, bool) {
	va -= im.Bias
	for _, l := range im.Loads {
		if va >= l.Vaddr && va < l.Vaddr+l.Filesz {
			return l.Off + (va - l.Vaddr), true
		}
	}
	return 0, false
}

// SliceVA returns the mapped bytes for the runtime range [va, va+size).
func (im *Image) SliceVA(va uint64, size uint64) ([]byte, bool) {
	off, ok := im.VA2Off(va)
	if !ok {
		return nil, false
	}
	if size == 0 {
		return []byte{}, true
	}
	end := off + size
	if end > uint64(len(im.All)) {
		return nil, false
	}
	return im.All[off:end], true
}

// InText reports whether the runtime address va lies in the text section.
func (im *Image) InText(va uint64) bool {
	va -= im.Bias
	return va >= im.Text.VA && va < im.Text.VA+im.Text.Size
}

// loadSymbols collects function symbols from .symtab and .dynsym.
func (im *Image) loadSymbols() {
	seen := make(map[uint64]bool)
	add := func(syms []elf.Symbol) {
		for _, sym := range syms {
			if sym.Value == 0 || elf.ST_TYPE(sym.Info) != elf.STT_FUNC || seen[sym.Value] {
				continue
			}
			seen[sym.Value] = true
			im.Syms = append(im.Syms, Symbol{
				Name:  sym.Name,
				Addr:  sym.Value,
				Size:  sym.Size,
				IsPLT: strings.HasSuffix(sym.Name, "@plt"),
			})
		}
	}

	// Static symbols first; stripped binaries still carry .dynsym
	if syms, err := im.File.Symbols(); err == nil {
		add(syms)
	}
	if syms, err := im.File.DynamicSymbols(); err == nil {
		add(syms)
	}
	sort.Slice(im.Syms, func(i, j int) bool { return im.Syms[i].Addr < im.Syms[j].Addr })
}

// Lookup returns the function containing the runtime address va and the
// offset of va into it. Symbols without a size cover everything up to the
// next symbol.
func (im *Image) Lookup(va uint64) (Symbol, uint64, bool) {
	addr := va - im.Bias
	i := sort.Search(len(im.Syms), func(i int) bool { return im.Syms[i].Addr > addr }) - 1
	if i < 0 {
		return Symbol{}, 0, false
	}
	sym := im.Syms[i]
	if sym.Size != 0 && addr >= sym.Addr+sym.Size {
		return Symbol{}, 0, false
	}
	return sym, addr - sym.Addr, true
}

// FindFunctionByName returns the runtime address of the named function.
func (im *Image) FindFunctionByName(name string) (uint64, bool) {
	for _, sym := range im.Syms {
		if sym.Name == name {
			return sym.Addr + im.Bias, true
		}
	}
	return 0, false
}

// Demangle returns the demangled form of name, caching results.
func (im *Image) Demangle(name string) string {
	im.mu.Lock()
	defer im.mu.Unlock()
	if d, ok := im.demangled[name]; ok {
		return d
	}
	d := demangle.Filter(name, demangle.NoClones)
	im.demangled[name] = d
	return d
}

// Symbolize renders va as name+0xoff, or "" when no symbol covers it.
func (im *Image) Symbolize(va uint64) string {
	sym, off, ok := im.Lookup(va)
	if !ok {
		return ""
	}
	name := im.Demangle(sym.Name)
	if off == 0 {
		return name
	}
	return fmt.Sprintf("%s+%#x", name, off)
}
