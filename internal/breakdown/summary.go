package breakdown

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"

	"tracestat/internal/classify"
)

// Summary renders a short markdown overview of t: the share of every
// category and its most frequent mnemonics.
func Summary(t *Table, top int) string {
	var sb strings.Builder
	total := t.Total()

	sb.WriteString("# Instruction breakdown\n\n")
	fmt.Fprintf(&sb, "%s instructions, %s user, %s kernel.\n\n",
		humanize.Comma(int64(total.Total)),
		humanize.Comma(int64(total.User)),
		humanize.Comma(int64(total.Kernel)))
	if total.Total == 0 {
		return sb.String()
	}
	fmt.Fprintf(&sb, "%s loads, %s stores.\n\n",
		humanize.Comma(int64(total.Loads.Sum())),
		humanize.Comma(int64(total.Stores.Sum())))

	sb.WriteString("| Category | Count | Share | User | Kernel | Loads | Stores |\n")
	sb.WriteString("|---|---:|---:|---:|---:|---:|---:|\n")
	for _, c := range t.Populated() {
		b := t.categories[c]
		fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s | %s | %s |\n",
			c,
			humanize.Comma(int64(b.Total)),
			percent(b.Total, total.Total),
			humanize.Comma(int64(b.User)),
			humanize.Comma(int64(b.Kernel)),
			humanize.Comma(int64(b.Loads.Sum())),
			humanize.Comma(int64(b.Stores.Sum())))
	}

	for _, c := range t.Populated() {
		fmt.Fprintf(&sb, "\n## %s\n\n", c)
		for _, m := range t.top(c, top) {
			b := t.mnemonics[c][m]
			fmt.Fprintf(&sb, "- `%s` %s (%s)\n", m, humanize.Comma(int64(b.Total)), percent(b.Total, total.Total))
		}
	}
	return sb.String()
}

func percent(n, d uint64) string {
	if d == 0 {
		return "0%"
	}
	return humanize.FtoaWithDigits(float64(n)*100/float64(d), 2) + "%"
}

// top returns up to n mnemonics of c ordered by descending count, ties
// broken by name.
func (t *Table) top(c classify.Category, n int) []string {
	names := t.Mnemonics(c)
	counts := t.mnemonics[c]
	slices.SortStableFunc(names, func(a, b string) int {
		return cmp.Compare(counts[b].Total, counts[a].Total)
	})
	if n > 0 && len(names) > n {
		names = names[:n]
	}
	return names
}
