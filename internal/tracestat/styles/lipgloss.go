package styles

import (
	"github.com/charmbracelet/lipgloss/v2"
)

// Styles used by the inspect command.
var (
	RecordHeader = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	Address      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	Kernel       = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	User         = lipgloss.NewStyle().Foreground(lipgloss.Color("114"))
	Category     = lipgloss.NewStyle().Foreground(lipgloss.Color("141")).Width(7)
	Warning      = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// Plain drops every style, for output that is not a terminal.
func Plain() {
	for _, s := range []*lipgloss.Style{&RecordHeader, &Address, &Kernel, &User, &Warning} {
		*s = lipgloss.NewStyle()
	}
	Category = lipgloss.NewStyle().Width(7)
}
