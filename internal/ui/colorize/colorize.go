// Package colorize highlights rendered instructions for terminal output.
package colorize

import (
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"

	"tracestat/internal/arch"
)

// Disabled reports whether TRACESTAT_NO_COLOR is set.
func Disabled() bool {
	return os.Getenv("TRACESTAT_NO_COLOR") != ""
}

// lexerFor returns an assembly lexer for a, trying the closest syntax first.
func lexerFor(a arch.Arch) chroma.Lexer {
	candidates := []string{"armasm", "gas", "nasm"}
	if a == arch.X86_64 {
		candidates = []string{"nasm", "gas"}
	}
	for _, name := range candidates {
		if lexer := lexers.Get(name); lexer != nil {
			return chroma.Coalesce(lexer)
		}
	}
	return nil
}

func style() *chroma.Style {
	for _, name := range []string{"tracestat-dark", "dracula", "monokai"} {
		if s := styles.Get(name); s != nil {
			return s
		}
	}
	return styles.Fallback
}

func formatter() chroma.Formatter {
	for _, name := range []string{"terminal16m", "terminal256"} {
		if f := formatters.Get(name); f != nil {
			return f
		}
	}
	return formatters.Fallback
}

// Instruction highlights one rendered instruction. It returns text
// unchanged when colours are disabled or no lexer is available.
func Instruction(a arch.Arch, text string) (string, error) {
	if Disabled() {
		return text, nil
	}
	lexer := lexerFor(a)
	if lexer == nil {
		return text, nil
	}

	iterator, err := lexer.Tokenise(nil, text)
	if err != nil {
		return text, err
	}
	var buf strings.Builder
	if err := formatter().Format(&buf, style(), iterator); err != nil {
		return text, err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// MustInstruction is Instruction with errors mapped to the plain text.
func MustInstruction(a arch.Arch, text string) string {
	out, err := Instruction(a, text)
	if err != nil {
		return text
	}
	return out
}
