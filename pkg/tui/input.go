package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
)

// editLine applies a key to a single-line input buffer. It reports whether
// the key was consumed as an edit.
func editLine(buf string, key tea.KeyMsg) (string, bool) {
	switch key.Type {
	case tea.KeyRunes:
		return buf + string(key.Runes), true
	case tea.KeySpace:
		return buf + " ", true
	case tea.KeyBackspace:
		if buf == "" {
			return buf, true
		}
		r := []rune(buf)
		return string(r[:len(r)-1]), true
	case tea.KeyCtrlU:
		return "", true
	}
	return buf, false
}

// renderSearchBar renders the query prompt with a "/" prefix and a cursor.
func renderSearchBar(query string, width int) string {
	if width <= 0 {
		return ""
	}
	return fit("/"+query+"_", width)
}

// renderField renders a labelled form field. Secret fields are masked.
func renderField(label, value string, secret, focused bool, width int) string {
	if secret {
		value = strings.Repeat("•", len([]rune(value)))
	}
	line := label + ": " + value
	if focused {
		return selectedStyle.Render(fit("> "+line+"_", width))
	}
	return fit("  "+line, width)
}

// fit truncates s to width cells and pads it to exactly width.
func fit(s string, width int) string {
	if width <= 0 {
		return ""
	}
	s = ansi.Truncate(s, width, "…")
	if pad := width - ansi.StringWidth(s); pad > 0 {
		s += strings.Repeat(" ", pad)
	}
	return s
}
