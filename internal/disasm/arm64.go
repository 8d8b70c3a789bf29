package disasm

import (
	"encoding/binary"
	"io"
	"slices"
	"strings"

	"golang.org/x/arch/arm64/arm64asm"

	"tracestat/internal/arch"
)

// ARM64Decoder decodes AArch64 code one 4-byte word at a time with arm64asm.
type ARM64Decoder struct{}

func (d *ARM64Decoder) Arch() arch.Arch { return arch.AArch64 }

// Decode disassembles every word of the block. Words arm64asm cannot decode
// are skipped and reported; a trailing partial word is reported as well.
func (d *ARM64Decoder) Decode(pc uint64, block []byte) (Stream, error) {
	out := make(Stream, 0, len(block)/4)
	var warn *Warning
	for off := 0; off < len(block); off += 4 {
		if len(block)-off < 4 {
			warn = firstWarning(warn, &Warning{Offset: off, Bytes: block[off:], Cause: io.ErrUnexpectedEOF})
			break
		}
		word := block[off : off+4]
		inst, err := arm64asm.Decode(word)
		if err != nil {
			w := binary.LittleEndian.Uint32(word)
			if name, ok := arm64PACReturns[w]; ok {
				out = append(out, namedARM64(name, pc+uint64(off), word))
				continue
			}
			if ext, ok := decodeARM64Atomic(w, pc+uint64(off), word); ok {
				out = append(out, ext)
				continue
			}
			warn = firstWarning(warn, &Warning{Offset: off, Bytes: word, Cause: err})
			continue
		}
		out = append(out, convertARM64(inst, pc+uint64(off), word))
	}
	if warn != nil {
		warn.Kind = ErrPartialDisassembly
		if len(out) == 0 {
			warn.Kind = ErrEmptyDisassembly
		}
		return out, warn
	}
	return out, nil
}

func firstWarning(cur, w *Warning) *Warning {
	if cur != nil {
		return cur
	}
	return w
}

func convertARM64(inst arm64asm.Inst, va uint64, raw []byte) Inst {
	word := binary.LittleEndian.Uint32(raw)
	text := strings.ToLower(arm64asm.GNUSyntax(inst))
	if inst.Op == arm64asm.HINT {
		if h, ok := inst.Args[0].(arm64asm.Imm_hint); ok && arm64HintNames[h] != "" {
			return namedARM64(arm64HintNames[h], va, raw)
		}
	}
	mnemonic := text
	if i := strings.IndexByte(text, ' '); i >= 0 {
		mnemonic = text[:i]
	}
	out := Inst{
		VA:       va,
		Mnemonic: mnemonic,
		Len:      4,
		Raw:      raw,
		Text:     text,
	}

	var vector, fpReg bool
	for _, a := range inst.Args {
		if a == nil {
			break
		}
		op := Operand{Text: strings.ToLower(a.String())}
		switch a.(type) {
		case arm64asm.MemImmediate, arm64asm.MemExtend:
			op.Kind = Memory
		case arm64asm.RegisterWithArrangement, arm64asm.RegisterWithArrangementAndIndex:
			op.Kind = Register
			vector = true
		case arm64asm.Reg, arm64asm.RegSP:
			op.Kind = Register
			if isSIMDRegister(op.Text) {
				fpReg = true
			}
		case arm64asm.Imm, arm64asm.Imm64, arm64asm.ImmShift, arm64asm.PCRel:
			op.Kind = Immediate
		}
		out.Operands = append(out.Operands, op)
	}

	out.Groups = arm64Groups(mnemonic, vector, fpReg)
	if (inst.Op == arm64asm.MSR || inst.Op == arm64asm.MRS) && arm64SystemPrivileged(word) {
		out.Groups = sortGroups(append(out.Groups, "privilege"))
	}
	return out
}

// arm64SystemPrivileged reports whether an MSR or MRS needs EL1 or above.
// arm64asm prints system registers by encoding (s3_0_c2_c0_0), so the
// decision is made on op1: only op1 == 3 is reachable from EL0, except the
// DAIF mask, which needs SCTLR_EL1.UMA.
func arm64SystemPrivileged(w uint32) bool {
	op1 := w >> 16 & 7
	crn := w >> 12 & 0xf
	crm := w >> 8 & 0xf
	op2 := w >> 5 & 7
	if op1 != 3 {
		return true
	}
	if w&0xfff8f01f == 0xd500401f { // msr <pstatefield>, #imm
		return op2 == 6 || op2 == 7 // daifset, daifclr
	}
	return crn == 4 && crm == 2 && op2 == 1 // daif
}

// arm64HintNames names the hint-space instructions arm64asm prints as
// "hint #imm".
var arm64HintNames = map[arm64asm.Imm_hint]string{
	0x07: "xpaclri",
	0x08: "pacia1716",
	0x0a: "pacib1716",
	0x0c: "autia1716",
	0x0e: "autib1716",
	0x18: "paciaz",
	0x19: "paciasp",
	0x1a: "pacibz",
	0x1b: "pacibsp",
	0x1c: "autiaz",
	0x1d: "autiasp",
	0x1e: "autibz",
	0x1f: "autibsp",
	0x20: "bti",
	0x22: "bti c",
	0x24: "bti j",
	0x26: "bti jc",
}

// arm64PACReturns are the authenticated returns arm64asm does not decode.
var arm64PACReturns = map[uint32]string{
	0xd65f0bff: "retaa",
	0xd65f0fff: "retab",
	0xd69f0bff: "eretaa",
	0xd69f0fff: "eretab",
}

// namedARM64 builds an operand-less instruction.
func namedARM64(text string, va uint64, raw []byte) Inst {
	mnemonic, _, _ := strings.Cut(text, " ")
	return Inst{
		VA:       va,
		Mnemonic: mnemonic,
		Len:      4,
		Raw:      raw,
		Text:     text,
		Groups:   arm64Groups(mnemonic, false, false),
	}
}

// isSIMDRegister matches b0..b31, h, s, d, q and v register names.
func isSIMDRegister(name string) bool {
	if len(name) < 2 || !strings.ContainsRune("bhsdqv", rune(name[0])) {
		return false
	}
	return name[1] >= '0' && name[1] <= '9'
}

var (
	arm64Privileged = []string{"eret", "hvc", "smc", "tlbi", "at", "wfi", "sys", "sysl", "dcps1", "dcps2", "dcps3", "drps", "eretaa", "eretab"}
	arm64Crypto     = []string{"aes", "sha1", "sha256", "sha512", "sha3", "sm3", "sm4", "eor3", "bcax", "rax1", "xar", "pmull"}
	arm64Pointer    = []string{"pac", "aut", "xpac", "retaa", "retab", "braa", "brab", "blraa", "blrab", "eretaa", "eretab"}
	arm64FPScalar   = []string{"scvtf", "ucvtf"}
)

func arm64Groups(m string, vector, fpReg bool) []string {
	var g []string
	switch {
	case m == "bl":
		g = append(g, "call", "branch_relative")
	case m == "blr" || strings.HasPrefix(m, "blra"):
		g = append(g, "call")
	case m == "br" || strings.HasPrefix(m, "bra"):
		g = append(g, "jump")
	case strings.HasPrefix(m, "ret"):
		g = append(g, "return")
	case m == "b", strings.HasPrefix(m, "b."),
		m == "cbz", m == "cbnz", m == "tbz", m == "tbnz":
		g = append(g, "jump", "branch_relative")
	}

	if slices.Contains(arm64Privileged, m) {
		g = append(g, "privilege")
	}
	if hasPrefix(arm64Crypto, m) {
		g = append(g, "crypto")
	}
	if hasPrefix(arm64Pointer, m) {
		g = append(g, "pointer")
	}

	memory := strings.HasPrefix(m, "ld") || strings.HasPrefix(m, "st")
	if strings.HasPrefix(m, "f") || slices.Contains(arm64FPScalar, m) || (fpReg && !memory && !vector) {
		g = append(g, "fparmv8")
	}
	if vector {
		g = append(g, "neon")
	}
	return sortGroups(g)
}
