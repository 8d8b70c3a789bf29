package classify

import (
	"fmt"
	"strings"

	"tracestat/internal/arch"
	"tracestat/internal/disasm"
)

var x86Groups = GroupTable{
	Privileged:    []string{"privilege"},
	Crypto:        []string{"adx", "aes", "pclmul", "sha"},
	FloatingPoint: []string{"fpu"},
	SIMD:          []string{"mmx", "sse1", "sse2", "sse3", "ssse3", "sse41", "sse42"},
	Branch:        []string{"jump", "ret", "branch_relative", "call"},
	Other:         []string{"not64bitmode", "fsgsbase", "int"},
	Memory: append(RuleTable{
		{Match: Contains, Pattern: "mov"},
		{Match: Prefix, Pattern: "ins"},
		{Match: Prefix, Pattern: "stos"},
		{Match: Exact, Pattern: "leave"},
	}, x86StackRules...),
}

// Stack operations carry no explicit memory operand.
var x86StackRules = RuleTable{
	{Match: Exact, Pattern: "push", Stores: 1},
	{Match: Exact, Pattern: "pushf", Stores: 1},
	{Match: Exact, Pattern: "pushfd", Stores: 1},
	{Match: Exact, Pattern: "pushfq", Stores: 1},
	{Match: Exact, Pattern: "pusha", Stores: 1},
	{Match: Exact, Pattern: "pushad", Stores: 1},
	{Match: Exact, Pattern: "pop", Loads: 1},
	{Match: Exact, Pattern: "popf", Loads: 1},
	{Match: Exact, Pattern: "popfd", Loads: 1},
	{Match: Exact, Pattern: "popfq", Loads: 1},
	{Match: Exact, Pattern: "popa", Loads: 1},
	{Match: Exact, Pattern: "popad", Loads: 1},
}

// Consulted before the access direction of a pointer operand.
var x86PointerOverrides = RuleTable{
	{Match: Exact, Pattern: "test", Loads: 1},
	{Match: Exact, Pattern: "leave", Loads: 1},
	{Match: Prefix, Pattern: "outs", Stores: 1},
}

// Applied once per instruction when a pointer operand has no access
// direction.
var x86UnknownAccessRules = RuleTable{
	{Match: Exact, Pattern: "movsb", Loads: 1, Stores: 1},
	{Match: Exact, Pattern: "movsw", Loads: 1, Stores: 1},
	{Match: Exact, Pattern: "movsd", Loads: 1, Stores: 1},
	{Match: Exact, Pattern: "movsq", Loads: 1, Stores: 1},
	{Match: Exact, Pattern: "insb", Loads: 1, Stores: 1},
	{Match: Exact, Pattern: "insw", Loads: 1, Stores: 1},
	{Match: Exact, Pattern: "insd", Loads: 1, Stores: 1},
	{Match: Exact, Pattern: "movzx", Loads: 1, Stores: 1},
	{Match: Prefix, Pattern: "cvtsi2s", Loads: 1},
	{Match: Exact, Pattern: "palignr", Loads: 1},
	{Match: Prefix, Pattern: "outs", Stores: 1},
}

// Memory operands rendered without a pointer marker.
var x86BareMemoryRules = RuleTable{
	{Match: Prefix, Pattern: "lea", Loads: 1},
	{Match: Exact, Pattern: "sgdt", Stores: 1},
}

// X86 classifies x86-64 instructions.
type X86 struct {
	groups *GroupTable
}

// NewX86 returns an x86-64 classifier using the built-in tables.
func NewX86() *X86 {
	return &X86{groups: &x86Groups}
}

func (c *X86) Arch() arch.Arch { return arch.X86_64 }

func (c *X86) Classify(inst disasm.Inst, user bool) (Facts, error) {
	if inst.Len < 1 || inst.Len > arch.X86_64.MaxInsnSize() {
		return Facts{}, unclassifiable(arch.X86_64, inst, fmt.Sprintf("encoded length %d", inst.Len))
	}
	loads, stores, err := x86Accesses(inst)
	if err != nil {
		return Facts{}, err
	}

	s := c.groups.signals(inst)
	f := s.facts(inst, user)
	f.setAccesses(loads, stores)
	if s.simd {
		f.Mnemonic = "simd " + inst.Mnemonic
	}
	if s.fp {
		f.Mnemonic = "fp " + inst.Mnemonic
	}
	return f, nil
}

func x86Accesses(inst disasm.Inst) (loads, stores int, err error) {
	m := inst.Mnemonic
	if r, ok := x86StackRules.Lookup(m); ok {
		return r.Loads, r.Stores, nil
	}

	pointer := strings.Contains(inst.Text, "ptr")
	var memory, unknown bool
	for _, op := range inst.Operands {
		if op.Kind != disasm.Memory {
			continue
		}
		memory = true
		if !pointer {
			r, ok := x86BareMemoryRules.Lookup(m)
			if !ok {
				return 0, 0, unclassifiable(arch.X86_64, inst, "memory operand without pointer rendering")
			}
			loads += r.Loads
			stores += r.Stores
			continue
		}
		if r, ok := x86PointerOverrides.Lookup(m); ok {
			loads += r.Loads
			stores += r.Stores
			continue
		}
		switch op.Access {
		case disasm.ReadOnly:
			loads++
		case disasm.WriteOnly:
			stores++
		case disasm.ReadWrite:
			loads++
			stores++
		default:
			unknown = true
		}
	}
	if unknown {
		r, ok := x86UnknownAccessRules.Lookup(m)
		if !ok {
			return 0, 0, unclassifiable(arch.X86_64, inst, "memory operand with unknown access direction")
		}
		loads += r.Loads
		stores += r.Stores
	}

	switch n := loads + stores; {
	case pointer && n == 0:
		return 0, 0, unclassifiable(arch.X86_64, inst, "pointer operand with no memory access")
	case memory && n == 0:
		return 0, 0, unclassifiable(arch.X86_64, inst, "memory operand with no memory access")
	case !memory && n > 0:
		return 0, 0, unclassifiable(arch.X86_64, inst, "memory access without memory operand")
	}
	return loads, stores, nil
}
