// Package ui holds the terminal presentation of the storefront CLI.
package ui

import (
	"github.com/charmbracelet/lipgloss"

	"storefront/internal/domain"
)

// Brand colors.
var (
	Green       = lipgloss.Color("#16a34a")
	Emerald     = lipgloss.Color("#059669")
	Slate       = lipgloss.Color("#1e293b")
	Muted       = lipgloss.Color("#94a3b8")
	Light       = lipgloss.Color("#f8fafc")
	Dark        = lipgloss.Color("#0f172a")
	Destructive = lipgloss.Color("#e53935")
	Warning     = lipgloss.Color("#f59e0b")
	Info        = lipgloss.Color("#2563eb")
)

// Styles holds the styled components for one theme.
type Styles struct {
	Dark bool

	Header  lipgloss.Style
	Title   lipgloss.Style
	Muted   lipgloss.Style
	Bold    lipgloss.Style
	Price   lipgloss.Style
	Strike  lipgloss.Style
	Badge   lipgloss.Style
	Synced  lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Box     lipgloss.Style
}

// NewStyles returns the styles for the stored UI theme.
func NewStyles(theme domain.Theme) Styles {
	dark := theme == domain.ThemeDark
	fg := Slate
	if dark {
		fg = Light
	}
	return Styles{
		Dark: dark,
		Header: lipgloss.NewStyle().
			Background(Green).
			Foreground(lipgloss.Color("#ffffff")).
			Padding(0, 2).
			Bold(true),
		Title:   lipgloss.NewStyle().Foreground(fg).Bold(true),
		Muted:   lipgloss.NewStyle().Foreground(Muted),
		Bold:    lipgloss.NewStyle().Bold(true),
		Price:   lipgloss.NewStyle().Foreground(Emerald).Bold(true),
		Strike:  lipgloss.NewStyle().Foreground(Muted).Strikethrough(true),
		Badge:   lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff")).Background(Destructive).Padding(0, 1),
		Synced:  lipgloss.NewStyle().Foreground(Green).Bold(true),
		Success: lipgloss.NewStyle().Foreground(Green),
		Error:   lipgloss.NewStyle().Foreground(Destructive).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(Warning),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Muted).
			Padding(0, 1),
	}
}

// StatusStyle colors an order status the way the order screens do.
func (s Styles) StatusStyle(st domain.OrderStatus) lipgloss.Style {
	switch st {
	case domain.StatusPending:
		return lipgloss.NewStyle().Foreground(Warning).Bold(true)
	case domain.StatusAccepted, domain.StatusShipped:
		return lipgloss.NewStyle().Foreground(Info).Bold(true)
	case domain.StatusDelivered:
		return lipgloss.NewStyle().Foreground(Green).Bold(true)
	case domain.StatusCanceled:
		return lipgloss.NewStyle().Foreground(Destructive).Bold(true)
	}
	return s.Muted
}
