package classify

import (
	"log/slog"
	"regexp"
	"strings"

	"tracestat/internal/disasm"
)

var (
	preIndexRe   = regexp.MustCompile(`\[.*\]!`)
	postIndexRe  = regexp.MustCompile(`\[.*\],.*[#xrw]`)
	bitmaskImmRe = regexp.MustCompile(`(and|orr|ands|tst|eor).*#0x`)
	shiftRe      = regexp.MustCompile(`(ror|lsr|asr|lsl)`)
)

var shiftNames = []string{"ror", "lsr", "asr", "lsl"}

// Uops counts the extra micro-operations an AArch64 instruction is expected
// to crack into. It is diagnostic only.
type Uops struct {
	PreIndex   int
	PostIndex  int
	Shifted    int // shifted-register operands
	BitmaskImm int // logical immediates decoded through DecodeBitMasks
	Bitfield   int // bfm family
}

func (u Uops) Total() int {
	return u.PreIndex + u.PostIndex + u.Shifted + u.BitmaskImm + u.Bitfield
}

func (u Uops) String() string {
	var parts []string
	add := func(name string, n int) {
		if n > 0 {
			parts = append(parts, name)
		}
	}
	add("preidx", u.PreIndex)
	add("postidx", u.PostIndex)
	add("shift", u.Shifted)
	add("bitmask", u.BitmaskImm)
	add("bfm", u.Bitfield)
	return strings.Join(parts, ",")
}

// EstimateUops inspects the rendering of inst. Memory instructions are
// checked for writeback addressing, everything else for shifted operands
// and bitmask immediates. A shift that the operand scan misses is logged as
// a warning to l.
func EstimateUops(inst disasm.Inst, memory bool, l *slog.Logger) Uops {
	var u Uops
	text := strings.ToLower(inst.Text)
	if memory {
		switch {
		case preIndexRe.MatchString(text):
			u.PreIndex++
		case postIndexRe.MatchString(text):
			u.PostIndex++
		}
		return u
	}

	isShift := false
	for _, s := range shiftNames {
		if strings.Contains(inst.Mnemonic, s) {
			isShift = true
		}
	}
	if !isShift {
		operands := strings.ReplaceAll(strings.TrimPrefix(text, inst.Mnemonic), " ", "")
		for _, s := range shiftNames {
			if strings.Contains(operands, s) {
				u.Shifted++
			}
		}
		if u.Shifted == 0 && shiftRe.MatchString(text) && l != nil {
			l.Warn("shift without extra micro-op", "inst", inst.String())
		}
	}
	if bitmaskImmRe.MatchString(text) {
		u.BitmaskImm++
	}
	if strings.Contains(inst.Mnemonic, "bfm") {
		u.Bitfield++
	}
	return u
}
