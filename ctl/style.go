package ctl

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles used throughout the console UI.
var (
	styleStatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Bold(true)

	styleInputPrompt = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))

	styleSent = lipgloss.NewStyle().
			Foreground(lipgloss.Color("34"))

	styleResponse = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	styleResult = lipgloss.NewStyle().
			Bold(true)

	styleSystem = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	styleError = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	styleLatency = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// lineKind identifies the type of an output line for styling.
type lineKind int

const (
	kindResponse lineKind = iota
	kindResult
	kindError
	kindSystem
)

// classifyResponse maps a wire response onto a display kind by its tag.
func classifyResponse(resp string) lineKind {
	switch {
	case strings.HasPrefix(resp, "ERROR:"),
		strings.HasPrefix(resp, "[ERROR:"),
		strings.Contains(resp, "_ERR:"),
		strings.Contains(resp, ":ERROR:"):
		return kindError
	case resp == "PONG",
		strings.HasPrefix(resp, "[IS_BEHIND_TARGET_OK:"):
		return kindResult
	default:
		return kindResponse
	}
}

// renderLineKind applies the style for a given lineKind.
func renderLineKind(line string, kind lineKind) string {
	switch kind {
	case kindResult:
		return styleResult.Render(line)
	case kindError:
		return styleError.Render(line)
	case kindSystem:
		return styleSystem.Render(line)
	default:
		return styleResponse.Render(line)
	}
}

// styledSystemMsg renders a system message in gray with brackets.
func styledSystemMsg(text string) string {
	return styleSystem.Render("[" + text + "]")
}
