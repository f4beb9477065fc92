package ui

import (
	"fmt"
	"io"
	"os"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
)

// secretModel is a one-field form with masked echo.
type secretModel struct {
	input     textinput.Model
	submitted bool
	cancelled bool
}

func newSecretModel(prompt string) secretModel {
	ti := textinput.New()
	ti.Prompt = prompt
	ti.EchoMode = textinput.EchoPassword
	ti.EchoCharacter = '•'
	ti.Focus()
	return secretModel{input: ti}
}

func (m secretModel) Init() tea.Cmd {
	return nil
}

func (m secretModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyPressMsg); ok {
		switch key.String() {
		case "enter":
			m.submitted = true
			return m, tea.Quit
		case "ctrl+c", "ctrl+d", "esc":
			m.cancelled = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m secretModel) View() tea.View {
	if m.submitted || m.cancelled {
		return tea.NewView("")
	}
	return tea.NewView(m.input.View())
}

func readSecret(in *os.File, out io.Writer, prompt string) (string, error) {
	p := tea.NewProgram(newSecretModel(prompt), tea.WithInput(in), tea.WithOutput(out))
	final, err := p.Run()
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	m, ok := final.(secretModel)
	if !ok || m.cancelled {
		return "", ErrCancelled
	}
	return m.input.Value(), nil
}
