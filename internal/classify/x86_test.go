package classify

import (
	"errors"
	"testing"

	"tracestat/internal/disasm"
)

func mem(access disasm.Access) disasm.Operand {
	return disasm.Operand{Kind: disasm.Memory, Access: access, Text: "[rax]"}
}

func reg(name string) disasm.Operand {
	return disasm.Operand{Kind: disasm.Register, Access: disasm.ReadOnly, Text: name}
}

func x86Inst(mnemonic, text string, groups []string, ops ...disasm.Operand) disasm.Inst {
	return disasm.Inst{VA: 0x1000, Mnemonic: mnemonic, Len: 3, Text: text, Groups: groups, Operands: ops}
}

func TestX86PushPop(t *testing.T) {
	c := NewX86()
	tests := []struct {
		name          string
		inst          disasm.Inst
		loads, stores int
	}{
		{"push no operands", x86Inst("push", "push rbp", nil), 0, 1},
		{"pop no operands", x86Inst("pop", "pop rbp", nil), 1, 0},
		{"push with memory operand", x86Inst("push", "push qword ptr [rax]", nil, mem(disasm.ReadOnly)), 0, 1},
		{"pop with register operand", x86Inst("pop", "pop rbx", nil, reg("rbx")), 1, 0},
		{"pushfq", x86Inst("pushfq", "pushfq", nil), 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := c.Classify(tt.inst, true)
			if err != nil {
				t.Fatalf("Classify failed: %v", err)
			}
			if f.Loads != tt.loads || f.Stores != tt.stores {
				t.Errorf("loads/stores = %d/%d, want %d/%d", f.Loads, f.Stores, tt.loads, tt.stores)
			}
			if f.Category != Memory {
				t.Errorf("Category = %v, want MEM", f.Category)
			}
			if err := f.Check(); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestX86PopcntIsNotStackOp(t *testing.T) {
	f, err := NewX86().Classify(x86Inst("popcnt", "popcnt rax, rbx", nil, reg("rax"), reg("rbx")), true)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if f.MemoryAccess || f.Category != Logic {
		t.Errorf("popcnt classified as %v with %d/%d accesses", f.Category, f.Loads, f.Stores)
	}
}

func TestX86MemoryAccesses(t *testing.T) {
	tests := []struct {
		name          string
		inst          disasm.Inst
		loads, stores int
	}{
		{"load", x86Inst("mov", "mov rax, qword ptr [rbx]", nil, reg("rax"), mem(disasm.ReadOnly)), 1, 0},
		{"store", x86Inst("mov", "mov qword ptr [rbx], rax", nil, mem(disasm.WriteOnly), reg("rax")), 0, 1},
		{"read modify write", x86Inst("add", "add qword ptr [rbx], rax", nil, mem(disasm.ReadWrite), reg("rax")), 1, 1},
		{"test override", x86Inst("test", "test byte ptr [rax], 1", nil, mem(disasm.ReadWrite)), 1, 0},
		{"outs override", x86Inst("outsb", "outsb dx, byte ptr [rsi]", nil, mem(disasm.ReadOnly)), 0, 1},
		{"movsb fallback once", x86Inst("movsb", "movsb byte ptr [rdi], byte ptr [rsi]", nil,
			mem(disasm.AccessUnknown), mem(disasm.AccessUnknown)), 1, 1},
		{"insb fallback", x86Inst("insb", "insb ptr [rdi], dx", nil, mem(disasm.AccessUnknown), reg("dx")), 1, 1},
		{"movzx fallback", x86Inst("movzx", "movzx eax, byte ptr [rbx]", nil, reg("eax"), mem(disasm.AccessUnknown)), 1, 1},
		{"cvtsi2sd fallback", x86Inst("cvtsi2sd", "cvtsi2sd xmm0, dword ptr [rbx]", []string{"sse2"},
			reg("xmm0"), mem(disasm.AccessUnknown)), 1, 0},
		{"palignr fallback", x86Inst("palignr", "palignr xmm0, xmmword ptr [rbx], 4", []string{"ssse3"},
			reg("xmm0"), mem(disasm.AccessUnknown)), 1, 0},
		{"lea without pointer", x86Inst("lea", "lea rax, [rbx+8]", nil, reg("rax"), mem(disasm.AccessUnknown)), 1, 0},
		{"sgdt without pointer", x86Inst("sgdt", "sgdt [rax]", []string{"privilege"}, mem(disasm.AccessUnknown)), 0, 1},
		{"no memory", x86Inst("add", "add rax, rbx", nil, reg("rax"), reg("rbx")), 0, 0},
	}
	c := NewX86()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := c.Classify(tt.inst, false)
			if err != nil {
				t.Fatalf("Classify failed: %v", err)
			}
			if f.Loads != tt.loads || f.Stores != tt.stores {
				t.Errorf("loads/stores = %d/%d, want %d/%d", f.Loads, f.Stores, tt.loads, tt.stores)
			}
			if err := f.Check(); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestX86Unclassifiable(t *testing.T) {
	tests := []struct {
		name string
		inst disasm.Inst
	}{
		{"unknown access without fallback", x86Inst("xadd", "xadd qword ptr [rbx], rax", nil, mem(disasm.AccessUnknown), reg("rax"))},
		{"bare memory operand", x86Inst("mov", "mov rax, [rbx]", nil, reg("rax"), mem(disasm.ReadOnly))},
		{"pointer without access", x86Inst("nop", "nop word ptr [rax]", nil)},
		{"zero length", disasm.Inst{Mnemonic: "nop", Text: "nop"}},
		{"too long", disasm.Inst{Mnemonic: "nop", Text: "nop", Len: 16}},
	}
	c := NewX86()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Classify(tt.inst, true)
			if !errors.Is(err, ErrUnclassifiable) {
				t.Fatalf("expected ErrUnclassifiable, got %v", err)
			}
			var ce *Error
			if !errors.As(err, &ce) || ce.Text != tt.inst.Text {
				t.Errorf("error does not carry the instruction: %v", err)
			}
		})
	}
}

func TestX86Categories(t *testing.T) {
	tests := []struct {
		name     string
		inst     disasm.Inst
		want     Category
		mnemonic string
	}{
		{"privileged beats crypto", x86Inst("aesenc", "aesenc xmm0, xmm1", []string{"aes", "privilege", "sse2"}), Privileged, "simd aesenc"},
		{"crypto beats simd", x86Inst("aesenc", "aesenc xmm0, xmm1", []string{"aes", "sse2"}), Crypto, "simd aesenc"},
		{"fpu", x86Inst("fadd", "fadd st0, st1", []string{"fpu"}), FloatingPoint, "fp fadd"},
		{"sse", x86Inst("addps", "addps xmm0, xmm1", []string{"sse1"}), FloatingPoint, "simd addps"},
		{"fp wins display", x86Inst("fxch", "fxch st1", []string{"fpu", "mmx"}), FloatingPoint, "fp fxch"},
		{"indirect call", x86Inst("call", "call qword ptr [rax]", []string{"call"}, mem(disasm.ReadOnly)), Branch, "call"},
		{"memory by mnemonic", x86Inst("cmovne", "cmovne rax, rbx", nil), Memory, "cmovne"},
		{"other", x86Inst("rdfsbase", "rdfsbase rax", []string{"fsgsbase"}), Other, "rdfsbase"},
		{"logic", x86Inst("xor", "xor eax, eax", nil), Logic, "xor"},
	}
	c := NewX86()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := c.Classify(tt.inst, true)
			if err != nil {
				t.Fatalf("Classify failed: %v", err)
			}
			if f.Category != tt.want {
				t.Errorf("Category = %v, want %v", f.Category, tt.want)
			}
			if f.Mnemonic != tt.mnemonic {
				t.Errorf("Mnemonic = %q, want %q", f.Mnemonic, tt.mnemonic)
			}
		})
	}
}

func TestX86FlagsAreIndependentOfCategory(t *testing.T) {
	f, err := NewX86().Classify(x86Inst("call", "call qword ptr [rax]", []string{"call"}, mem(disasm.ReadOnly)), false)
	if err != nil {
		t.Fatal(err)
	}
	if !f.Branch || !f.MemoryAccess || f.User {
		t.Errorf("unexpected flags %+v", f)
	}
	if f.Length != 3 || f.Side() != 1 {
		t.Errorf("Length = %d, Side = %d", f.Length, f.Side())
	}
}

func TestX86DecodedStream(t *testing.T) {
	// push rbp; mov qword ptr [rbx], rax; insb; ret
	code := []byte{0x55, 0x48, 0x89, 0x03, 0x6c, 0xc3}
	insts, err := disasm.New(NewX86().Arch()).Decode(0x1000, code)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	facts, err := Stream(NewX86(), insts, true)
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	want := []struct {
		cat           Category
		loads, stores int
	}{
		{Memory, 0, 1},
		{Memory, 0, 1},
		{Privileged, 1, 1},
		{Branch, 0, 0},
	}
	if len(facts) != len(want) {
		t.Fatalf("got %d facts, want %d", len(facts), len(want))
	}
	for i, w := range want {
		f := facts[i]
		if f.Category != w.cat || f.Loads != w.loads || f.Stores != w.stores {
			t.Errorf("%s: got %v %d/%d, want %v %d/%d", insts[i].Text, f.Category, f.Loads, f.Stores, w.cat, w.loads, w.stores)
		}
	}
}

func TestX86DecodedScalarConvertAndCompareExchange(t *testing.T) {
	tests := []struct {
		name          string
		code          []byte
		cat           Category
		mnemonic      string
		loads, stores int
	}{
		{"cvttss2si eax, [rdi]", []byte{0xf3, 0x0f, 0x2c, 0x07}, FloatingPoint, "simd cvttss2si", 1, 0},
		{"cmpxchg8b [rdi]", []byte{0x0f, 0xc7, 0x0f}, Logic, "cmpxchg8b", 1, 1},
		{"lock cmpxchg16b [rdi]", []byte{0xf0, 0x48, 0x0f, 0xc7, 0x0f}, Logic, "cmpxchg16b", 1, 1},
		{"setz al", []byte{0x0f, 0x94, 0xc0}, Logic, "setz", 0, 0},
	}

	c := NewX86()
	d := disasm.New(c.Arch())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			insts, err := d.Decode(0x1000, tt.code)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			facts, err := Stream(c, insts, true)
			if err != nil {
				t.Fatalf("Stream failed: %v", err)
			}
			if len(facts) != 1 {
				t.Fatalf("got %d facts, want 1", len(facts))
			}
			f := facts[0]
			if f.Category != tt.cat || f.Mnemonic != tt.mnemonic || f.Loads != tt.loads || f.Stores != tt.stores {
				t.Errorf("%s: got %v %q %d/%d, want %v %q %d/%d", insts[0].Text,
					f.Category, f.Mnemonic, f.Loads, f.Stores, tt.cat, tt.mnemonic, tt.loads, tt.stores)
			}
		})
	}
}
