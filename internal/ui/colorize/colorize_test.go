package colorize

import (
	"strings"
	"testing"

	"tracestat/internal/arch"
)

func TestInstructionDisabled(t *testing.T) {
	t.Setenv("TRACESTAT_NO_COLOR", "1")
	got, err := Instruction(arch.X86_64, "mov qword ptr [rbx], rax")
	if err != nil {
		t.Fatal(err)
	}
	if got != "mov qword ptr [rbx], rax" {
		t.Errorf("Instruction = %q, want the input unchanged", got)
	}
}

func TestInstructionHighlights(t *testing.T) {
	t.Setenv("TRACESTAT_NO_COLOR", "")
	for _, a := range []arch.Arch{arch.AArch64, arch.X86_64} {
		got := MustInstruction(a, "add x0, x1, #0x10")
		if !strings.Contains(got, "\x1b[") {
			t.Errorf("%v: no escape sequences in %q", a, got)
		}
		if strings.HasSuffix(got, "\n") {
			t.Errorf("%v: trailing newline", a)
		}
	}
	if style().Name != "tracestat-dark" {
		t.Errorf("style = %q", style().Name)
	}
}
