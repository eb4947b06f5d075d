// Package ui provides the visual styling for the etude terminal app,
// with light/dark mode support.
package ui

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette. Light mode leans on warm paper tones, dark mode on a
// dim stand-light look.
var (
	// Light Mode Colors (Default)
	LightBackground = lipgloss.Color("#fdf6e3") // Warm paper
	LightForeground = lipgloss.Color("#073642") // Ink
	LightPrimary    = lipgloss.Color("#268bd2") // Blue
	LightAccent     = lipgloss.Color("#b58900") // Amber
	LightSecondary  = lipgloss.Color("#eee8d5")
	LightMuted      = lipgloss.Color("#93a1a1")
	LightBorder     = lipgloss.Color("#d9cfae")
	LightCard       = lipgloss.Color("#ffffff")

	// Dark Mode Colors
	DarkBackground = lipgloss.Color("#1c1b17")
	DarkForeground = lipgloss.Color("#e8e3d3")
	DarkPrimary    = lipgloss.Color("#b58900") // Amber (flipped)
	DarkAccent     = lipgloss.Color("#268bd2") // Blue (flipped)
	DarkSecondary  = lipgloss.Color("#2a2921")
	DarkMuted      = lipgloss.Color("#6e6a5e")
	DarkBorder     = lipgloss.Color("#3a382e")
	DarkCard       = lipgloss.Color("#252419")

	// Semantic Colors (same in both modes)
	Destructive = lipgloss.Color("#dc322f") // Red
	Success     = lipgloss.Color("#859900") // Green
	Warning     = lipgloss.Color("#cb4b16") // Orange
	Info        = lipgloss.Color("#268bd2") // Blue
	Violet      = lipgloss.Color("#6c71c4") // Snooze
)

// Theme holds the current color scheme
type Theme struct {
	Background lipgloss.Color
	Foreground lipgloss.Color
	Primary    lipgloss.Color
	Accent     lipgloss.Color
	Secondary  lipgloss.Color
	Muted      lipgloss.Color
	Border     lipgloss.Color
	Card       lipgloss.Color
	IsDark     bool
}

// LightTheme returns the light mode theme
func LightTheme() Theme {
	return Theme{
		Background: LightBackground,
		Foreground: LightForeground,
		Primary:    LightPrimary,
		Accent:     LightAccent,
		Secondary:  LightSecondary,
		Muted:      LightMuted,
		Border:     LightBorder,
		Card:       LightCard,
		IsDark:     false,
	}
}

// DarkTheme returns the dark mode theme
func DarkTheme() Theme {
	return Theme{
		Background: DarkBackground,
		Foreground: DarkForeground,
		Primary:    DarkPrimary,
		Accent:     DarkAccent,
		Secondary:  DarkSecondary,
		Muted:      DarkMuted,
		Border:     DarkBorder,
		Card:       DarkCard,
		IsDark:     true,
	}
}

// DetectTheme auto-detects based on terminal or returns dark mode
func DetectTheme() Theme {
	// Check for common dark mode indicators
	colorTerm := os.Getenv("COLORFGBG")
	if colorTerm != "" {
		// Format is usually "foreground;background"
		parts := strings.Split(colorTerm, ";")
		if len(parts) == 2 {
			// Standard ANSI colors: 0-6 and 8 are widely used for dark
			// backgrounds, 7 and up for light ones.
			if bgIdx, err := strconv.Atoi(parts[1]); err == nil {
				if bgIdx == 7 || bgIdx >= 9 {
					return LightTheme()
				}
				return DarkTheme()
			}
		}
	}

	// Check for explicit preference
	switch os.Getenv("ETUDE_THEME") {
	case "light":
		return LightTheme()
	case "dark":
		return DarkTheme()
	}

	// Terminals default to dark far more often than light
	return DarkTheme()
}

// Styles holds all the styled components
type Styles struct {
	Theme Theme

	// Layout
	App    lipgloss.Style
	Header lipgloss.Style
	Footer lipgloss.Style

	// Text
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Body     lipgloss.Style
	Muted    lipgloss.Style
	Bold     lipgloss.Style

	// Sheet display
	Sheet       lipgloss.Style
	SheetFailed lipgloss.Style
	StatusLine  lipgloss.Style
	KeyHint     lipgloss.Style

	// Status
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style

	// Components
	Spinner lipgloss.Style
	Divider lipgloss.Style
	Badge   lipgloss.Style
}

// NewStyles creates a new Styles instance with the given theme
func NewStyles(theme Theme) Styles {
	return Styles{
		Theme: theme,

		// Layout styles
		App: lipgloss.NewStyle().
			Foreground(theme.Foreground),

		Header: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Padding(0, 1).
			Bold(true),

		Footer: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Padding(0, 1),

		// Text styles
		Title: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true).
			MarginBottom(1),

		Subtitle: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Italic(true),

		Body: lipgloss.NewStyle().
			Foreground(theme.Foreground),

		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted),

		Bold: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			Bold(true),

		// Sheet display styles
		Sheet: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border),

		SheetFailed: lipgloss.NewStyle().
			Foreground(Destructive).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Destructive),

		StatusLine: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Padding(0, 1),

		KeyHint: lipgloss.NewStyle().
			Foreground(theme.Accent),

		// Status styles
		Success: lipgloss.NewStyle().
			Foreground(Success).
			Bold(true),

		Error: lipgloss.NewStyle().
			Foreground(Destructive).
			Bold(true),

		Warning: lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true),

		Info: lipgloss.NewStyle().
			Foreground(Info),

		// Component styles
		Spinner: lipgloss.NewStyle().
			Foreground(theme.Accent),

		Divider: lipgloss.NewStyle().
			Foreground(theme.Border),

		Badge: lipgloss.NewStyle().
			Background(theme.Accent).
			Foreground(lipgloss.Color("#ffffff")).
			Padding(0, 1).
			Bold(true),
	}
}

// DefaultStyles returns styles with the detected theme
func DefaultStyles() Styles {
	return NewStyles(DetectTheme())
}

// RatingColor maps a practice rating to its display color.
func RatingColor(rating string) lipgloss.Color {
	switch rating {
	case "easy":
		return Success
	case "medium":
		return Info
	case "hard":
		return Warning
	case "snooze":
		return Violet
	default:
		return Destructive
	}
}

// RatingBadge renders a colored badge for a practice rating.
func (s Styles) RatingBadge(rating string) string {
	return lipgloss.NewStyle().
		Foreground(RatingColor(rating)).
		Bold(true).
		Render(rating)
}

// CategoryLabel renders a colored label for a recommendation category.
func (s Styles) CategoryLabel(category string) string {
	var c lipgloss.Color
	switch category {
	case "proficient":
		c = Success
	case "challenging":
		c = Warning
	default: // unlearned
		c = Info
	}
	return lipgloss.NewStyle().Foreground(c).Render(category)
}

// RenderDivider returns a horizontal divider
func (s Styles) RenderDivider(width int) string {
	if width <= 0 {
		return ""
	}
	return s.Divider.Render(strings.Repeat("─", width))
}
