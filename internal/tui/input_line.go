package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
)

// prompt is a one-line text input whose value becomes a message on enter.
type prompt struct {
	title  string
	input  textinput.Model
	submit func(value string) tea.Msg
}

func newPrompt(title, value string, submit func(string) tea.Msg) *prompt {
	in := textinput.New()
	in.Prompt = ""
	in.CharLimit = 200
	in.SetValue(value)
	in.CursorEnd()
	in.Focus()
	return &prompt{title: title, input: in, submit: submit}
}

func (p *prompt) view(width int) string {
	title := lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Render(p.title + ":")
	titleW := xansi.StringWidth(title)
	return title + " " + renderInputLine(width-titleW-1, p.input.View())
}

func renderInputLine(bodyW int, inputView string) string {
	if bodyW < 10 {
		bodyW = 10
	}

	// Inputs always render as a single visual line.
	inputView = strings.ReplaceAll(inputView, "\n", " ")
	inputView = strings.ReplaceAll(inputView, "\r", " ")

	line := lipgloss.PlaceHorizontal(
		bodyW,
		lipgloss.Left,
		" "+inputView+" ",
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceBackground(colorInputBg),
	)
	if xansi.StringWidth(line) > bodyW {
		// Terminate ANSI styling so the cut does not bleed.
		line = xansi.Cut(line, 0, bodyW) + "\x1b[0m"
	}
	return line
}
