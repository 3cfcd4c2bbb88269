// Package watch implements the hookbox system watch TUI: a live dashboard
// over the stats, readiness and activity endpoints.
package watch

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/hookbox/internal/webhook"
)

// palette names the colours the dashboard draws with.
type palette struct {
	ok, info, warn, bad      lipgloss.Color
	accent, frame, text      lipgloss.Color
	muted, faint             lipgloss.Color
	selectFg, selectBg, rule lipgloss.Color
}

var defaultPalette = palette{
	ok:       "#98C379",
	info:     "#61AFEF",
	warn:     "#E5C07B",
	bad:      "#E06C75",
	accent:   "#C678DD",
	frame:    "#5C6370",
	text:     "#ABB2BF",
	muted:    "#7F848E",
	faint:    "#3E4451",
	selectFg: "229",
	selectBg: "57",
	rule:     "240",
}

// Theme holds the rendered styles for every dashboard element.
type Theme struct {
	Created  lipgloss.Style
	Dup      lipgloss.Style
	Conflict lipgloss.Style
	Rejected lipgloss.Style

	Border    lipgloss.Style
	Title     lipgloss.Style
	Dim       lipgloss.Style
	Highlight lipgloss.Style

	TickerActive   lipgloss.Style
	TickerInactive lipgloss.Style

	p palette
}

func NewDefaultTheme() Theme {
	return newTheme(defaultPalette)
}

func newTheme(p palette) Theme {
	fg := func(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }
	return Theme{
		Created:        fg(p.ok),
		Dup:            fg(p.info),
		Conflict:       fg(p.warn).Bold(true),
		Rejected:       fg(p.bad),
		Border:         lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(p.frame),
		Title:          fg(p.accent).Bold(true).Padding(0, 1),
		Dim:            fg(p.muted),
		Highlight:      fg(p.warn),
		TickerActive:   fg(p.ok),
		TickerInactive: fg(p.faint),
		p:              p,
	}
}

// ForEvent picks the style for an activity event type.
func (t Theme) ForEvent(eventType string) lipgloss.Style {
	switch eventType {
	case webhook.EventMessageCreated:
		return t.Created
	case webhook.EventMessageDuplicate:
		return t.Dup
	case webhook.EventMessageConflict:
		return t.Conflict
	case webhook.EventRejected:
		return t.Rejected
	}
	return t.Dim
}

// Panel draws a titled, bordered box width columns wide.
func (t Theme) Panel(width int, title string, body ...string) string {
	rows := append([]string{t.Title.Render(title)}, body...)
	return t.Border.Width(width - 4).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// TableStyles styles the sender table.
func (t Theme) TableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		Foreground(t.p.text).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(t.p.rule).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.Foreground(t.p.selectFg).Background(t.p.selectBg).Bold(false)
	return s
}
