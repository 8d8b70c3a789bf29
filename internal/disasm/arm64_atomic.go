package disasm

import (
	"fmt"
	"strings"
)

// Armv8.1 LSE atomics, which arm64asm does not decode.
var (
	lseSizeSuffix = [4]string{"b", "h", "", ""}
	lseOrdering   = [4]string{"", "l", "a", "al"} // indexed by A<<1 | R
	lseOps        = [8]string{"add", "clr", "eor", "set", "smax", "smin", "umax", "umin"}
)

func lseReg(n uint32, x bool) string {
	switch {
	case n == 31 && x:
		return "xzr"
	case n == 31:
		return "wzr"
	case x:
		return fmt.Sprintf("x%d", n)
	default:
		return fmt.Sprintf("w%d", n)
	}
}

func lseBase(n uint32) string {
	if n == 31 {
		return "[sp]"
	}
	return fmt.Sprintf("[x%d]", n)
}

// decodeARM64Atomic decodes the CAS, CASP, SWP, LD<op>, ST<op> and LDAPR
// encodings.
func decodeARM64Atomic(w uint32, va uint64, raw []byte) (Inst, bool) {
	size := w >> 30
	rs := w >> 16 & 31
	rn := w >> 5 & 31
	rt := w & 31
	x := size == 3

	var mnemonic string
	var regs []string
	switch {
	case w&0x3fa07c00 == 0x08a07c00: // cas
		order := lseOrdering[(w>>22&1)<<1|w>>15&1]
		mnemonic = "cas" + order + lseSizeSuffix[size]
		regs = []string{lseReg(rs, x), lseReg(rt, x)}

	case w&0xbfa07c00 == 0x08207c00: // casp
		if rs&1 != 0 || rt&1 != 0 {
			return Inst{}, false
		}
		x = w>>30&1 == 1
		mnemonic = "casp" + lseOrdering[(w>>22&1)<<1|w>>15&1]
		regs = []string{lseReg(rs, x), lseReg(rs+1, x), lseReg(rt, x), lseReg(rt+1, x)}

	case w&0x3f200c00 == 0x38200000:
		a, r := w>>23&1, w>>22&1
		o3, opc := w>>15&1, w>>12&7
		switch {
		case o3 == 0 && a == 0 && rt == 31:
			mnemonic = "st" + lseOps[opc] + lseOrdering[r] + lseSizeSuffix[size]
			regs = []string{lseReg(rs, x)}
		case o3 == 0:
			mnemonic = "ld" + lseOps[opc] + lseOrdering[a<<1|r] + lseSizeSuffix[size]
			regs = []string{lseReg(rs, x), lseReg(rt, x)}
		case opc == 0:
			mnemonic = "swp" + lseOrdering[a<<1|r] + lseSizeSuffix[size]
			regs = []string{lseReg(rs, x), lseReg(rt, x)}
		case opc == 4 && a == 1 && r == 0 && rs == 31:
			mnemonic = "ldapr" + lseSizeSuffix[size]
			regs = []string{lseReg(rt, x)}
		default:
			return Inst{}, false
		}

	default:
		return Inst{}, false
	}

	out := Inst{VA: va, Mnemonic: mnemonic, Len: 4, Raw: raw}
	for _, r := range regs {
		out.Operands = append(out.Operands, Operand{Kind: Register, Text: r})
	}
	out.Operands = append(out.Operands, Operand{Kind: Memory, Text: lseBase(rn)})

	texts := make([]string, len(out.Operands))
	for i, op := range out.Operands {
		texts[i] = op.Text
	}
	out.Text = mnemonic + " " + strings.Join(texts, ", ")
	out.Groups = arm64Groups(mnemonic, false, false)
	return out, true
}
