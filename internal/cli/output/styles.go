package output

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette used across commands.
var (
	colorAccent  = lipgloss.AdaptiveColor{Light: "#1D4ED8", Dark: "#60A5FA"}
	colorSuccess = lipgloss.AdaptiveColor{Light: "#15803D", Dark: "#4ADE80"}
	colorWarning = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FBBF24"}
	colorError   = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
)

// Styles holds the lipgloss styles used for text output.
type Styles struct {
	Header1 lipgloss.Style
	Header2 lipgloss.Style
	Muted   lipgloss.Style
	Key     lipgloss.Style
	Path    lipgloss.Style

	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style

	StatusSuccess lipgloss.Style
	StatusFailed  lipgloss.Style
	StatusRunning lipgloss.Style
	StatusSkipped lipgloss.Style
}

// NewStyles builds the style set on top of a lipgloss renderer so color
// support follows the destination writer.
func NewStyles(r *lipgloss.Renderer) *Styles {
	return &Styles{
		Header1: r.NewStyle().Bold(true).Foreground(colorAccent).Underline(true),
		Header2: r.NewStyle().Bold(true).Foreground(colorAccent),
		Muted:   r.NewStyle().Foreground(colorMuted),
		Key:     r.NewStyle().Foreground(colorMuted).Width(18),
		Path:    r.NewStyle().Foreground(colorAccent),

		Success: r.NewStyle().Foreground(colorSuccess),
		Warning: r.NewStyle().Foreground(colorWarning),
		Error:   r.NewStyle().Foreground(colorError).Bold(true),

		StatusSuccess: r.NewStyle().Foreground(colorSuccess).SetString("✓"),
		StatusFailed:  r.NewStyle().Foreground(colorError).SetString("✗"),
		StatusRunning: r.NewStyle().Foreground(colorWarning).SetString("●"),
		StatusSkipped: r.NewStyle().Foreground(colorMuted).SetString("-"),
	}
}
