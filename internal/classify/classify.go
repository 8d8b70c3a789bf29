// Package classify turns decoded instructions into Facts: category, memory
// accesses, behavioural flags and the display mnemonic used for aggregation.
package classify

import (
	"tracestat/internal/arch"
	"tracestat/internal/disasm"
)

// Classifier is a pure function from a decoded instruction to its Facts.
// Instructions outside the rule tables yield an *Error.
type Classifier interface {
	Arch() arch.Arch
	Classify(inst disasm.Inst, user bool) (Facts, error)
}

// New returns the classifier for a.
func New(a arch.Arch) Classifier {
	if a == arch.X86_64 {
		return NewX86()
	}
	return NewARM64()
}

// Stream classifies every instruction of s. It stops at the first error.
func Stream(c Classifier, s disasm.Stream, user bool) ([]Facts, error) {
	out := make([]Facts, 0, len(s))
	for _, inst := range s {
		f, err := c.Classify(inst, user)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func unclassifiable(a arch.Arch, inst disasm.Inst, reason string) error {
	return &Error{Arch: a, VA: inst.VA, Text: inst.Text, Reason: reason}
}
