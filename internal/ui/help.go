package ui

import (
	"strings"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
)

// CommandHelp is one row of the help table.
type CommandHelp struct {
	Name        string
	Aliases     []string
	Args        string
	Description string
}

// HelpTable renders the command reference.
func HelpTable(rows []CommandHelp) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(dimColor)).
		Headers("COMMAND", "ALIASES", "DESCRIPTION").
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return s.Foreground(highlightColor).Bold(true)
			}
			if col == 0 {
				return s.Bold(true)
			}
			return s
		})

	for _, r := range rows {
		usage := r.Name
		if r.Args != "" {
			usage += " " + r.Args
		}
		t.Row(usage, strings.Join(r.Aliases, ", "), r.Description)
	}

	return t.String() + "\n" + timeStyle.Render("Any other text is sent to the open chat.")
}
