// Package cli provides terminal UI helpers for the vexo CLI.
package cli

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color scheme for terminal output.
type Theme struct {
	Primary lipgloss.Color // Main accent color
	Accent  lipgloss.Color // Secondary highlight (scores, numbers)
	Dim     lipgloss.Color // Dimmed/help text color
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Accent:  lipgloss.Color("#ffd75f"),
	Dim:     lipgloss.Color("#6e7681"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Title  lipgloss.Style
	Chosen lipgloss.Style
	Score  lipgloss.Style
	Dim    lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary).Padding(0, 1),
		Chosen: lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Score:  lipgloss.NewStyle().Foreground(t.Accent),
		Dim:    lipgloss.NewStyle().Foreground(t.Dim),
	}
}

// FormatTrackDuration renders a track length as m:ss.
func FormatTrackDuration(d time.Duration) string {
	secs := int(d.Round(time.Second).Seconds())
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
