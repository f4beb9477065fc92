package ui

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/danhigham/tgterm/internal/domain"
)

var (
	pillStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#FF5FAF")).
			Foreground(lipgloss.Color("#FFFFFF")).
			Bold(true).
			Padding(0, 1)
	labelStyle = lipgloss.NewStyle().Foreground(dimColor).Width(10)
)

// AccountSummary renders the logged-in account and the open chat.
func AccountSummary(acc domain.Account, chatTitle string) string {
	var b strings.Builder
	b.WriteString(pillStyle.Render(acc.Label()))
	b.WriteString("\n")

	row := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(label), value)
	}
	row("ID", fmt.Sprintf("%d", acc.ID))
	row("Phone", acc.Phone)
	if acc.Username != "" {
		row("Username", "@"+acc.Username)
	}
	if chatTitle == "" {
		chatTitle = "none"
	}
	row("Open chat", chatTitle)
	return strings.TrimRight(b.String(), "\n")
}

// Prompt is the interactive prompt, naming the open chat if there is one.
func Prompt(chatTitle string) string {
	if chatTitle == "" {
		return "tgterm> "
	}
	return chatTitle + "> "
}
