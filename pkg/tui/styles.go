package tui

import (
	"github.com/charmbracelet/lipgloss"

	"gitlab.com/tinyland/lab/research-pulse/pkg/toast"
)

// Palette.
const (
	colorAccent = lipgloss.Color("#7C3AED") // purple
	colorDim    = lipgloss.Color("#6B7280") // gray
	colorGood   = lipgloss.Color("#10B981")
	colorBad    = lipgloss.Color("#EF4444")
	colorWarn   = lipgloss.Color("#F59E0B")
	colorInfo   = lipgloss.Color("#64B5F6")
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	dimStyle      = lipgloss.NewStyle().Foreground(colorDim)
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	upStyle       = lipgloss.NewStyle().Foreground(colorGood)
	downStyle     = lipgloss.NewStyle().Foreground(colorBad)
	errorStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorBad)
	bannerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(colorBad).Padding(0, 1)
	sparkStyle    = lipgloss.NewStyle().Foreground(colorInfo)
)

// toastStyle colors a toast by kind.
func toastStyle(k toast.Kind) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(lipgloss.Color("#111827"))
	switch k {
	case toast.Success:
		return base.Background(colorGood)
	case toast.Error:
		return base.Background(colorBad)
	case toast.Warning:
		return base.Background(colorWarn)
	default:
		return base.Background(colorInfo)
	}
}

// changeStyle colors a price change by sign.
func changeStyle(change float64) lipgloss.Style {
	if change < 0 {
		return downStyle
	}
	return upStyle
}
