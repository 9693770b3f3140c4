package cli

import (
	"github.com/charmbracelet/lipgloss"

	"kgquery/internal/query"
)

// Color styles for consistent output
var (
	// Status indicators
	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	InfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86"))

	// Query kinds
	ReadStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	WriteStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("213"))

	DestructiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("208")).
				Bold(true)

	// UI elements
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Underline(true).
			Foreground(lipgloss.Color("99"))

	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	CodeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("228"))

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			MarginLeft(2)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// FormatSuccess formats a success message
func FormatSuccess(msg string) string {
	return SuccessStyle.Render("✅ " + msg)
}

// FormatError formats an error message
func FormatError(msg string) string {
	return ErrorStyle.Render("❌ " + msg)
}

// FormatWarning formats a warning message
func FormatWarning(msg string) string {
	return WarningStyle.Render("⚠️  " + msg)
}

// FormatInfo formats an info message
func FormatInfo(msg string) string {
	return InfoStyle.Render("ℹ️  " + msg)
}

// FormatKind renders a query kind with its color
func FormatKind(kind query.Kind) string {
	switch kind {
	case query.Read:
		return ReadStyle.Render(kind.String())
	case query.Construct, query.Insert:
		return WriteStyle.Render(kind.String())
	case query.Destructive:
		return DestructiveStyle.Render(kind.String())
	default:
		return DimStyle.Render(kind.String())
	}
}
