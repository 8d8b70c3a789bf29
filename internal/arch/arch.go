// Package arch names the instruction set architectures a trace can be
// recorded for.
package arch

import "strings"

// Arch is an instruction set architecture.
type Arch int

const (
	AArch64 Arch = iota
	X86_64
)

// Parse maps a command line selector to an architecture. Only "x86" (and
// its common spellings) selects x86-64; every other value selects AArch64.
func Parse(s string) Arch {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x86", "x86_64", "x86-64", "amd64":
		return X86_64
	default:
		return AArch64
	}
}

// InsnSize returns the fixed instruction size in bytes, or 0 when the
// encoding is variable length.
func (a Arch) InsnSize() int {
	if a == AArch64 {
		return 4
	}
	return 0
}

// MaxInsnSize is the longest legal encoding.
func (a Arch) MaxInsnSize() int {
	if a == AArch64 {
		return 4
	}
	return 15
}

func (a Arch) String() string {
	switch a {
	case AArch64:
		return "arm64"
	case X86_64:
		return "x86_64"
	default:
		return "unknown"
	}
}
