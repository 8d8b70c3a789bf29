package disasm

import (
	"errors"
	"slices"
	"strings"

	"golang.org/x/arch/x86/x86asm"

	"tracestat/internal/arch"
)

// X86Decoder decodes 64-bit x86 code with x86asm. Groups and operand access
// directions are synthesised from mnemonic tables since x86asm reports
// neither.
type X86Decoder struct{}

func (d *X86Decoder) Arch() arch.Arch { return arch.X86_64 }

var (
	// errVectorExtension marks VEX, EVEX and XOP encodings, which x86asm
	// does not know and would otherwise misread as legacy instructions.
	errVectorExtension = errors.New("vex/evex/xop encoding not supported")
	errNoInstruction   = errors.New("no instruction after prefix bytes")
)

// Decode disassembles the block until its end or the first undecodable byte.
func (d *X86Decoder) Decode(pc uint64, block []byte) (Stream, error) {
	var out Stream
	for off := 0; off < len(block); {
		src := block[off:]
		if inst, ok := x86Fixed(src, pc+uint64(off)); ok {
			out = append(out, inst)
			off += inst.Len
			continue
		}

		var inst x86asm.Inst
		var err error
		if x86VectorEncoded(src) {
			err = errVectorExtension
		} else if inst, err = x86asm.Decode(src, 64); err == nil && (inst.Op == 0 || inst.Len == 0) {
			// x86asm hands back a lone prefix byte for truncated or
			// invalid encodings
			err = errNoInstruction
		}
		if err != nil {
			kind := ErrPartialDisassembly
			if len(out) == 0 {
				kind = ErrEmptyDisassembly
			}
			return out, &Warning{Kind: kind, Offset: off, Bytes: head(src, 15), Cause: err}
		}
		out = append(out, convertX86(inst, pc+uint64(off), src[:inst.Len]))
		off += inst.Len
	}
	return out, nil
}

// x86Fixed recognizes encodings x86asm predates.
func x86Fixed(src []byte, va uint64) (Inst, bool) {
	if len(src) < 4 || src[0] != 0xf3 || src[1] != 0x0f || src[2] != 0x1e {
		return Inst{}, false
	}
	var m string
	switch src[3] {
	case 0xfa:
		m = "endbr64"
	case 0xfb:
		m = "endbr32"
	default:
		return Inst{}, false
	}
	return Inst{VA: va, Mnemonic: m, Len: 4, Raw: src[:4], Text: m}, true
}

func isLegacyPrefix(b byte) bool {
	switch b {
	case 0x26, 0x2e, 0x36, 0x3e, 0x64, 0x65, 0x66, 0x67, 0xf0, 0xf2, 0xf3:
		return true
	}
	return false
}

// x86VectorEncoded reports whether src starts, after legacy prefixes, with a
// VEX (c4, c5), EVEX (62) or XOP (8f with a map select) escape. In 64-bit
// mode these bytes never start LES, LDS or BOUND.
func x86VectorEncoded(src []byte) bool {
	i := 0
	for i < len(src) && isLegacyPrefix(src[i]) {
		i++
	}
	if i >= len(src) {
		return false
	}
	switch src[i] {
	case 0xc4, 0xc5, 0x62:
		return true
	case 0x8f:
		return i+1 < len(src) && (src[i+1]>>3)&7 != 0
	}
	return false
}

func head(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}

// convertX86 keys access and group inference on the x86asm op name, which
// keeps movsd (string) apart from movsd (sse2). The reported mnemonic is the
// one the rendered text shows.
func convertX86(inst x86asm.Inst, va uint64, raw []byte) Inst {
	mnemonic := strings.ToLower(inst.Op.String())
	text := strings.ToLower(x86asm.IntelSyntax(inst, va, nil))
	out := Inst{
		VA:       va,
		Mnemonic: x86TextMnemonic(text, mnemonic),
		Len:      inst.Len,
		Raw:      raw,
		Text:     text,
	}

	nargs := 0
	for _, a := range inst.Args {
		if a == nil {
			break
		}
		nargs++
	}

	var hasXMM, hasMMX, hasRel, hasCtl bool
	for i, a := range inst.Args[:nargs] {
		op := Operand{Text: strings.ToLower(a.String())}
		switch a := a.(type) {
		case x86asm.Reg:
			op.Kind = Register
			switch {
			case a >= x86asm.X0 && a <= x86asm.X15:
				hasXMM = true
			case a >= x86asm.M0 && a <= x86asm.M7:
				hasMMX = true
			case a >= x86asm.CR0 && a <= x86asm.CR15, a >= x86asm.DR0 && a <= x86asm.DR15:
				hasCtl = true
			}
		case x86asm.Mem:
			op.Kind = Memory
			op.Access = x86MemAccess(mnemonic, i, nargs)
		case x86asm.Imm:
			op.Kind = Immediate
		case x86asm.Rel:
			op.Kind = Immediate
			hasRel = true
		}
		out.Operands = append(out.Operands, op)
	}

	if out.HasMemoryOperand() && !strings.Contains(out.Text, "ptr") {
		out.Text = x86ExplicitText(out.Mnemonic, out.Operands)
	}
	out.Groups = x86Groups(mnemonic, hasXMM, hasMMX, hasRel, hasCtl)
	return out
}

var x86TextPrefixes = []string{
	"lock", "rep", "repe", "repz", "repn", "repne", "repnz", "bnd", "xacquire", "xrelease",
	"hint-taken", "hint-not-taken", "addr16", "addr32", "data16", "data32",
}

// x86TextMnemonic returns the first token of text that is not a prefix.
func x86TextMnemonic(text, fallback string) string {
	for _, tok := range strings.Fields(text) {
		if slices.Contains(x86TextPrefixes, tok) || strings.HasPrefix(tok, "rex") {
			continue
		}
		return tok
	}
	return fallback
}

// x86ExplicitText renders every operand, including the implicit string
// operands that Intel syntax omits (insb, outsb, xlatb).
func x86ExplicitText(mnemonic string, ops []Operand) string {
	var b strings.Builder
	b.WriteString(mnemonic)
	for i, op := range ops {
		if i == 0 {
			b.WriteByte(' ')
		} else {
			b.WriteString(", ")
		}
		if op.Kind == Memory {
			b.WriteString("ptr ")
		}
		b.WriteString(op.Text)
	}
	return b.String()
}

// Memory-operand access inference. Families whose access the decoder cannot
// pin down are reported as unknown and left to the classifier's fallback
// rules.
var (
	x86UnknownAccess = []string{
		"movsb", "movsw", "movsd", "movsq",
		"insb", "insw", "insd",
		"outsb", "outsw", "outsd",
		"movzx", "cvtsi2ss", "cvtsi2sd", "palignr",
	}
	x86WriteDestPrefixes = []string{
		"mov", "set", "stos", "fst", "fist", "fnst", "fbstp", "fxsave", "xsave",
		"sgdt", "sidt", "sldt", "str", "smsw", "stmxcsr", "extractps", "pextr",
	}
	x86ReadDest = []string{
		"cmp", "cmpsb", "cmpsw", "cmpsd", "cmpsq", "test", "bt", "comiss", "comisd", "ucomiss", "ucomisd", "ptest",
		"call", "lcall", "jmp", "ljmp", "push", "nop",
	}
	x86ReadWriteSingle = []string{"inc", "dec", "neg", "not", "cmpxchg8b", "cmpxchg16b"}
)

func x86MemAccess(mnemonic string, idx, nargs int) Access {
	if slices.Contains(x86UnknownAccess, mnemonic) {
		return AccessUnknown
	}
	if idx > 0 {
		return ReadOnly
	}
	switch {
	case slices.Contains(x86ReadDest, mnemonic):
		return ReadOnly
	case hasPrefix(x86WriteDestPrefixes, mnemonic):
		return WriteOnly
	case slices.Contains(x86ReadWriteSingle, mnemonic):
		return ReadWrite
	case nargs == 1:
		return ReadOnly
	default:
		return ReadWrite
	}
}

var (
	x86Privileged = []string{
		"hlt", "lgdt", "lidt", "lldt", "ltr", "lmsw", "clts", "invd", "wbinvd", "invlpg",
		"rdmsr", "wrmsr", "rdpmc", "sysret", "sysexit", "swapgs", "iret", "iretd", "iretq",
		"in", "out", "insb", "insw", "insd", "outsb", "outsw", "outsd", "cli", "sti", "xsetbv",
	}
	x86Interrupts = []string{"int", "int3", "into", "syscall", "sysenter"}
	x86SSE1       = []string{"ldmxcsr", "stmxcsr", "sfence", "cvtss2si", "cvttss2si"}
	x86SSE2       = []string{"cvtsd2si", "cvttsd2si", "lfence", "mfence"}
	x86SSE3       = []string{"addsubps", "addsubpd", "haddps", "haddpd", "hsubps", "hsubpd", "lddqu", "movddup", "movshdup", "movsldup"}
	x86SSSE3      = []string{"pshufb", "phaddw", "phaddd", "phaddsw", "phsubw", "phsubd", "phsubsw", "pmaddubsw", "pmulhrsw", "psignb", "psignw", "psignd", "pabsb", "pabsw", "pabsd", "palignr"}
	x86SSE41      = []string{"ptest", "insertps", "extractps", "pextrb", "pextrd", "pextrq", "pinsrb", "pinsrd", "pinsrq", "pmuldq", "pmulld", "pcmpeqq", "packusdw", "mpsadbw", "phminposuw", "dpps", "dppd", "pminsb", "pminsd", "pminuw", "pminud", "pmaxsb", "pmaxsd", "pmaxuw", "pmaxud", "movntdqa"}
	x86SSE41Pfx   = []string{"pmovzx", "pmovsx", "round", "blend", "pblend"}
	x86SSE42      = []string{"pcmpestri", "pcmpestrm", "pcmpistri", "pcmpistrm", "pcmpgtq", "crc32"}
	x86Not64      = []string{"aaa", "aad", "aam", "aas", "daa", "das", "pusha", "popa", "bound", "les", "lds"}
	x86FSGSBase   = []string{"rdfsbase", "rdgsbase", "wrfsbase", "wrgsbase"}
)

func x86Groups(m string, hasXMM, hasMMX, hasRel, hasCtl bool) []string {
	var g []string
	switch {
	case m == "call" || m == "lcall":
		g = append(g, "call")
	case m == "jmp" || m == "ljmp":
		g = append(g, "jump")
	case m == "ret" || m == "lret":
		g = append(g, "ret")
	case strings.HasPrefix(m, "iret"):
		g = append(g, "iret")
	case strings.HasPrefix(m, "j"), strings.HasPrefix(m, "loop"):
		g = append(g, "jump", "branch_relative")
	}
	if hasRel {
		g = append(g, "branch_relative")
	}

	if slices.Contains(x86Privileged, m) || (m == "mov" && hasCtl) {
		g = append(g, "privilege")
	}
	if slices.Contains(x86Interrupts, m) {
		g = append(g, "int")
	}

	switch {
	case strings.HasPrefix(m, "aes"):
		g = append(g, "aes")
	case m == "pclmulqdq":
		g = append(g, "pclmul")
	case m == "adcx" || m == "adox":
		g = append(g, "adx")
	case strings.HasPrefix(m, "sha1") || strings.HasPrefix(m, "sha256"):
		g = append(g, "sha")
	}

	if strings.HasPrefix(m, "f") && !strings.HasPrefix(m, "fxsave") && !strings.HasPrefix(m, "fxrstor") {
		g = append(g, "fpu")
	}
	if hasMMX || m == "emms" {
		g = append(g, "mmx")
	}

	switch {
	case slices.Contains(x86SSE42, m):
		g = append(g, "sse42")
	case slices.Contains(x86SSE41, m) || (hasXMM && hasPrefix(x86SSE41Pfx, m)):
		g = append(g, "sse41")
	case slices.Contains(x86SSSE3, m):
		g = append(g, "ssse3")
	case slices.Contains(x86SSE3, m):
		g = append(g, "sse3")
	case slices.Contains(x86SSE1, m):
		g = append(g, "sse1")
	case slices.Contains(x86SSE2, m):
		g = append(g, "sse2")
	case hasXMM && (strings.HasSuffix(m, "ps") || strings.HasSuffix(m, "ss")):
		g = append(g, "sse1")
	case hasXMM:
		g = append(g, "sse2")
	}

	if slices.Contains(x86Not64, m) {
		g = append(g, "not64bitmode")
	}
	if slices.Contains(x86FSGSBase, m) {
		g = append(g, "fsgsbase")
	}
	return sortGroups(g)
}

func hasPrefix(prefixes []string, s string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
