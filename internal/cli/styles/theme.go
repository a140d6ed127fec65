// Package styles provides the lipgloss styles used by the command line.
package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette holds the base colors a Theme is built from.
type Palette struct {
	Text    string
	Muted   string
	Accent  string
	Error   string
	Warning string
}

// DefaultDarkPalette returns hardcoded dark theme colors.
func DefaultDarkPalette() Palette {
	return Palette{
		Text:    "#ffffff",
		Muted:   "#909090",
		Accent:  "#4ade80",
		Error:   "#ef4444",
		Warning: "#f59e0b",
	}
}

// Theme holds lipgloss colors and styles.
type Theme struct {
	Text    lipgloss.Color
	Muted   lipgloss.Color
	Accent  lipgloss.Color
	Error   lipgloss.Color
	Warning lipgloss.Color

	Normal       lipgloss.Style
	Subtle       lipgloss.Style
	Highlight    lipgloss.Style
	ErrorStyle   lipgloss.Style
	WarningStyle lipgloss.Style

	// Channel renders the channel tag in front of a message.
	Channel lipgloss.Style
	Key     lipgloss.Style
}

// NewTheme creates a Theme from the dark palette.
func NewTheme() *Theme {
	return NewThemeFromPalette(DefaultDarkPalette())
}

// NewThemeFromPalette creates a Theme from p.
func NewThemeFromPalette(p Palette) *Theme {
	t := &Theme{
		Text:    lipgloss.Color(p.Text),
		Muted:   lipgloss.Color(p.Muted),
		Accent:  lipgloss.Color(p.Accent),
		Error:   lipgloss.Color(p.Error),
		Warning: lipgloss.Color(p.Warning),
	}
	t.buildStyles()
	return t
}

func (t *Theme) buildStyles() {
	t.Normal = lipgloss.NewStyle().
		Foreground(t.Text)

	t.Subtle = lipgloss.NewStyle().
		Foreground(t.Muted)

	t.Highlight = lipgloss.NewStyle().
		Foreground(t.Accent).
		Bold(true)

	t.ErrorStyle = lipgloss.NewStyle().
		Foreground(t.Error)

	t.WarningStyle = lipgloss.NewStyle().
		Foreground(t.Warning)

	t.Channel = lipgloss.NewStyle().
		Foreground(t.Accent).
		Bold(true)

	t.Key = lipgloss.NewStyle().
		Foreground(t.Muted).
		Width(keyWidth)
}
