package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// surface renders segments onto one background color. Lipgloss resets
// attributes after each styled segment, so plain spaces between segments
// would otherwise fall back to the terminal background.
// See: https://github.com/charmbracelet/lipgloss/discussions/78
type surface struct {
	fill lipgloss.Style
}

func newSurface(color string) surface {
	return surface{fill: lipgloss.NewStyle().Background(lipgloss.Color(color))}
}

// text styles s word by word so the gaps between words keep the fill.
func (s surface) text(text string, style lipgloss.Style) string {
	if text == "" {
		return ""
	}
	words := strings.Split(text, " ")
	styled := style.Inherit(s.fill)
	for i, w := range words {
		if w != "" {
			words[i] = styled.Render(w)
		}
	}
	return strings.Join(words, s.fill.Render(" "))
}

// line joins rendered parts with a filled separator. A positive width pads
// the line to that width.
func (s surface) line(parts []string, sep string, width int) string {
	joined := strings.Join(parts, s.fill.Render(sep))
	if width <= 0 {
		return joined
	}
	return s.fill.Width(width).Render(joined)
}
