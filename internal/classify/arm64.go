package classify

import (
	"fmt"
	"log/slog"
	"strings"

	"tracestat/internal/arch"
	"tracestat/internal/disasm"
)

// Order matters: stp before st, ldp before ld.
var arm64MemoryRules = RuleTable{
	{Match: Prefix, Pattern: "stp", Stores: 2},
	{Match: Prefix, Pattern: "st", Stores: 1},
	{Match: Prefix, Pattern: "ldp", Loads: 2},
	{Match: Prefix, Pattern: "ld", Loads: 1},
	{Match: Prefix, Pattern: "cas", Loads: 1, Stores: 1},
	{Match: Prefix, Pattern: "swp", Loads: 1, Stores: 1},
	{Match: Prefix, Pattern: "prfm", Loads: 1},
	{Match: Prefix, Pattern: "prfum", Loads: 1},
}

var arm64Groups = GroupTable{
	Privileged:    []string{"privilege"},
	Crypto:        []string{"crypto"},
	FloatingPoint: []string{"fparmv8"},
	SIMD:          []string{"neon"},
	Branch:        []string{"return", "branch_relative", "call", "jump"},
	Other:         []string{"pointer"},
	Memory:        arm64MemoryRules,
}

// Scanned in order; the last token found in the rendering is the element
// width.
var simdWidthTokens = []string{"b", "b", "h", "h", "s", "s", "d"}

// ARM64 classifies AArch64 instructions.
type ARM64 struct {
	groups *GroupTable
	logger *slog.Logger
}

// NewARM64 returns an AArch64 classifier using the built-in tables. Micro-op
// estimates are logged at debug level through slog.Default.
func NewARM64() *ARM64 {
	return &ARM64{groups: &arm64Groups}
}

// WithLogger sets the logger receiving micro-op estimates.
func (c *ARM64) WithLogger(l *slog.Logger) *ARM64 {
	c.logger = l
	return c
}

func (c *ARM64) Arch() arch.Arch { return arch.AArch64 }

func (c *ARM64) Classify(inst disasm.Inst, user bool) (Facts, error) {
	if inst.Len != arch.AArch64.InsnSize() {
		return Facts{}, unclassifiable(arch.AArch64, inst, fmt.Sprintf("encoded length %d", inst.Len))
	}

	var loads, stores int
	r, ok := arm64MemoryRules.Lookup(inst.Mnemonic)
	switch {
	case ok:
		loads, stores = r.Loads, r.Stores
	case inst.HasMemoryOperand():
		return Facts{}, unclassifiable(arch.AArch64, inst, "memory operand not covered by load/store rules")
	}

	s := c.groups.signals(inst)
	f := s.facts(inst, user)
	f.setAccesses(loads, stores)

	if u := EstimateUops(inst, s.hit[Memory], c.log()); u.Total() > 0 {
		c.log().Debug("extra micro-ops", "inst", inst.String(), "uops", u.Total(), "kinds", u.String())
	}

	if s.simd {
		w, ok := simdWidth(inst.Text)
		if !ok {
			return Facts{}, unclassifiable(arch.AArch64, inst, "simd element width not found")
		}
		f.Mnemonic = "simd " + inst.Mnemonic + "." + w
	}
	if s.fp {
		f.Mnemonic = "fp " + inst.Mnemonic
	}
	return f, nil
}

func (c *ARM64) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.Default()
}

func simdWidth(text string) (string, bool) {
	var width string
	for _, tok := range simdWidthTokens {
		if strings.Contains(text, tok) {
			width = tok
		}
	}
	return width, width != ""
}
