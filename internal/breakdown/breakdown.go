// Package breakdown aggregates classified instructions into counters split
// by privilege level, per category and per display mnemonic.
package breakdown

import (
	"fmt"

	"tracestat/internal/classify"
)

// Sides of every split counter.
const (
	User   = 0
	Kernel = 1
)

// MaxLength is the largest histogram bucket. Longer encodings (x86 allows
// up to 15 bytes) are counted in it.
const MaxLength = 12

// Split is a counter kept separately for user and kernel instructions.
type Split [2]uint64

// Sum returns the user plus kernel count.
func (s Split) Sum() uint64 { return s[User] + s[Kernel] }

func (s *Split) add(o Split) {
	s[User] += o[User]
	s[Kernel] += o[Kernel]
}

// Breakdown is one counter bucket.
type Breakdown struct {
	Total  uint64 `json:"total"`
	User   uint64 `json:"user"`
	Kernel uint64 `json:"kernel"`

	Loads  Split `json:"loads"`
	Stores Split `json:"stores"`

	Branch     Split `json:"branch"`
	Memory     Split `json:"memory"`
	FP         Split `json:"fp"`
	Crypto     Split `json:"crypto"`
	Privileged Split `json:"privileged"`

	BothLoadStore Split `json:"both_load_store"`
	MemoryBranch  Split `json:"memory_branch"`
	MultiMemory   Split `json:"multi_memory"`

	// Lengths[side][n] counts instructions encoded in n bytes.
	Lengths [2][MaxLength + 1]uint64 `json:"lengths"`
}

// Fold adds f, observed repeat times in a row.
func (b *Breakdown) Fold(f classify.Facts, repeat uint64) {
	if repeat == 0 {
		return
	}
	side := f.Side()
	b.Total += repeat
	if side == User {
		b.User += repeat
	} else {
		b.Kernel += repeat
	}

	b.Lengths[side][bucket(f.Length)] += repeat
	b.Loads[side] += uint64(f.Loads) * repeat
	b.Stores[side] += uint64(f.Stores) * repeat

	count := func(s *Split, flag bool) {
		if flag {
			s[side] += repeat
		}
	}
	count(&b.Branch, f.Branch)
	count(&b.Memory, f.Memory)
	count(&b.FP, f.FP)
	count(&b.Crypto, f.Crypto)
	count(&b.Privileged, f.Privileged)
	count(&b.BothLoadStore, f.BothLoadStore)
	count(&b.MemoryBranch, f.MemoryAccess && f.Branch)
	count(&b.MultiMemory, f.MultiMemoryAccess)
}

func bucket(n int) int {
	switch {
	case n < 0:
		return 0
	case n > MaxLength:
		return MaxLength
	}
	return n
}

// Merge adds every counter of o to b.
func (b *Breakdown) Merge(o *Breakdown) {
	b.Total += o.Total
	b.User += o.User
	b.Kernel += o.Kernel
	for _, p := range []struct{ dst, src *Split }{
		{&b.Loads, &o.Loads},
		{&b.Stores, &o.Stores},
		{&b.Branch, &o.Branch},
		{&b.Memory, &o.Memory},
		{&b.FP, &o.FP},
		{&b.Crypto, &o.Crypto},
		{&b.Privileged, &o.Privileged},
		{&b.BothLoadStore, &o.BothLoadStore},
		{&b.MemoryBranch, &o.MemoryBranch},
		{&b.MultiMemory, &o.MultiMemory},
	} {
		p.dst.add(*p.src)
	}
	for side := range b.Lengths {
		for n := range b.Lengths[side] {
			b.Lengths[side][n] += o.Lengths[side][n]
		}
	}
}

// Side returns the instruction count on one side.
func (b *Breakdown) Side(side int) uint64 {
	if side == User {
		return b.User
	}
	return b.Kernel
}

// Check verifies that the total is the sum of both sides and that no flag
// counter exceeds the instruction count of its side.
func (b *Breakdown) Check() error {
	if b.Total != b.User+b.Kernel {
		return fmt.Errorf("total %d != user %d + kernel %d", b.Total, b.User, b.Kernel)
	}
	flags := map[string]Split{
		"branch":          b.Branch,
		"memory":          b.Memory,
		"fp":              b.FP,
		"crypto":          b.Crypto,
		"privileged":      b.Privileged,
		"both_load_store": b.BothLoadStore,
		"memory_branch":   b.MemoryBranch,
		"multi_memory":    b.MultiMemory,
	}
	for side := User; side <= Kernel; side++ {
		n := b.Side(side)
		for name, s := range flags {
			if s[side] > n {
				return fmt.Errorf("%s count %d exceeds %d instructions on side %d", name, s[side], n, side)
			}
		}
		var hist uint64
		for _, c := range b.Lengths[side] {
			hist += c
		}
		if hist != n {
			return fmt.Errorf("length histogram sums to %d, want %d on side %d", hist, n, side)
		}
	}
	return nil
}
