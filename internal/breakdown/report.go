package breakdown

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"tracestat/internal/classify"
)

// label pads category names to a common width.
func label(c classify.Category) string {
	return fmt.Sprintf("%-6s", c.String())
}

func (b *Breakdown) statsTotal() string {
	return fmt.Sprintf("tot  ,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d,",
		b.Total,
		b.Loads.Sum(),
		b.Stores.Sum(),
		b.Branch.Sum(),
		b.Memory.Sum(),
		b.FP.Sum(),
		b.Crypto.Sum(),
		b.Privileged.Sum(),
		b.BothLoadStore.Sum(),
		b.MemoryBranch.Sum(),
		b.MultiMemory.Sum(),
	)
}

func (b *Breakdown) statsSide(side int) string {
	name := "user"
	if side == Kernel {
		name = "os   "
	}
	return fmt.Sprintf("%s,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d,",
		name,
		b.Side(side),
		b.Loads[side],
		b.Stores[side],
		b.Branch[side],
		b.Memory[side],
		b.FP[side],
		b.Crypto[side],
		b.Privileged[side],
		b.BothLoadStore[side],
		b.MemoryBranch[side],
		b.MultiMemory[side],
	)
}

func (b *Breakdown) stats() string {
	return b.statsTotal() + b.statsSide(User) + b.statsSide(Kernel)
}

func (b *Breakdown) byteDist(side int) string {
	var sb strings.Builder
	if side == User {
		sb.WriteString("user")
	} else {
		sb.WriteString("os  ")
	}
	for n := 1; n <= MaxLength; n++ {
		fmt.Fprintf(&sb, ",%d", b.Lengths[side][n])
	}
	sb.WriteByte(',')
	return sb.String()
}

// Report writes the text report: one line per populated category, then the
// per-mnemonic lines of every category in precedence order, and, when
// byteHistogram is set, the per-mnemonic length histograms. Mnemonics are
// sorted so the output is deterministic.
func (t *Table) Report(w io.Writer, byteHistogram bool) error {
	bw := bufio.NewWriter(w)

	bw.WriteString("Groups:\n")
	for _, c := range t.Populated() {
		fmt.Fprintf(bw, "%q,%s\n", label(c), t.categories[c].stats())
	}

	bw.WriteString("Stats:\n")
	for _, c := range classify.Categories() {
		fmt.Fprintf(bw, "%s:\n", label(c))
		for _, m := range t.Mnemonics(c) {
			fmt.Fprintf(bw, "%q,%s\n", m, t.mnemonics[c][m].stats())
		}
	}

	if byteHistogram {
		bw.WriteString("ByteDist:\n")
		for _, c := range classify.Categories() {
			fmt.Fprintf(bw, "%s:\n", label(c))
			for _, m := range t.Mnemonics(c) {
				b := t.mnemonics[c][m]
				fmt.Fprintf(bw, "%q,%s%s\n", m, b.byteDist(User), b.byteDist(Kernel))
			}
		}
	}
	return bw.Flush()
}

// String returns the report without length histograms.
func (t *Table) String() string {
	var sb strings.Builder
	_ = t.Report(&sb, false)
	return sb.String()
}
