package classify

import (
	"strings"

	"tracestat/internal/disasm"
)

// MatchKind selects how a MnemonicRule compares its pattern.
type MatchKind int

const (
	Exact MatchKind = iota
	Prefix
	Contains
)

// MnemonicRule maps a mnemonic pattern to an access count.
type MnemonicRule struct {
	Match   MatchKind
	Pattern string
	Loads   int
	Stores  int
}

// Matches reports whether mnemonic m satisfies the rule.
func (r MnemonicRule) Matches(m string) bool {
	switch r.Match {
	case Prefix:
		return strings.HasPrefix(m, r.Pattern)
	case Contains:
		return strings.Contains(m, r.Pattern)
	default:
		return m == r.Pattern
	}
}

// RuleTable is an ordered list of rules; the first match wins.
type RuleTable []MnemonicRule

// Lookup returns the first rule matching m.
func (t RuleTable) Lookup(m string) (MnemonicRule, bool) {
	for _, r := range t {
		if r.Matches(m) {
			return r, true
		}
	}
	return MnemonicRule{}, false
}

// Has reports whether any rule matches m.
func (t RuleTable) Has(m string) bool {
	_, ok := t.Lookup(m)
	return ok
}

func exact(patterns ...string) RuleTable {
	t := make(RuleTable, len(patterns))
	for i, p := range patterns {
		t[i] = MnemonicRule{Match: Exact, Pattern: p}
	}
	return t
}

// GroupTable holds the group names, per architecture, that drive category
// assignment.
type GroupTable struct {
	Privileged    []string
	Crypto        []string
	FloatingPoint []string
	SIMD          []string
	Branch        []string
	Other         []string

	// Memory lists the mnemonics filed under Memory.
	Memory RuleTable
}

type signals struct {
	hit  [numCategories]bool
	fp   bool // scalar floating point group
	simd bool
}

func anyGroup(inst disasm.Inst, names []string) bool {
	for _, g := range names {
		if inst.HasGroup(g) {
			return true
		}
	}
	return false
}

func (t *GroupTable) signals(inst disasm.Inst) signals {
	var s signals
	s.fp = anyGroup(inst, t.FloatingPoint)
	s.simd = anyGroup(inst, t.SIMD)
	s.hit[Privileged] = anyGroup(inst, t.Privileged)
	s.hit[Crypto] = anyGroup(inst, t.Crypto)
	s.hit[FloatingPoint] = s.fp || s.simd
	s.hit[Branch] = anyGroup(inst, t.Branch)
	s.hit[Memory] = t.Memory.Has(inst.Mnemonic)
	s.hit[Other] = anyGroup(inst, t.Other)
	s.hit[Logic] = true
	return s
}

// category returns the first category, in precedence order, whose
// predicate holds.
func (s signals) category() Category {
	for c, hit := range s.hit {
		if hit {
			return Category(c)
		}
	}
	return Logic
}

// facts fills everything but the access counts and the display mnemonic.
func (s signals) facts(inst disasm.Inst, user bool) Facts {
	return Facts{
		Category:   s.category(),
		User:       user,
		Length:     inst.Len,
		Branch:     s.hit[Branch],
		Privileged: s.hit[Privileged],
		Memory:     s.hit[Memory],
		FP:         s.hit[FloatingPoint],
		Crypto:     s.hit[Crypto],
		Mnemonic:   inst.Mnemonic,
	}
}
