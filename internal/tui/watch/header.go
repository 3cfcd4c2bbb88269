package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/hookbox/internal/message"
)

// HealthState tracks readiness polling and stream connectivity.
type HealthState struct {
	Ready     bool
	Reason    string
	Connected bool
	LastCheck time.Time
}

func renderHeader(health HealthState, stats message.Stats, ticker Ticker, pulse Pulse, theme Theme, width int, now time.Time) string {
	innerWidth := width - 4

	statusText := theme.Created.Render("READY")
	switch {
	case !health.Connected:
		statusText = theme.Rejected.Render("CONNECTING")
	case !health.Ready:
		statusText = theme.Conflict.Render("NOT READY")
		if health.Reason != "" {
			statusText += theme.Dim.Render(" (" + health.Reason + ")")
		}
	}

	lastEventStr := "never"
	if !pulse.LastEvent().IsZero() {
		lastEventStr = fmt.Sprintf("%s ago", now.Sub(pulse.LastEvent()).Round(time.Second))
	}

	clock := theme.Dim.Render(now.Format("15:04:05"))
	titleText := fmt.Sprintf(" HOOKBOX WATCH %s", theme.Highlight.Render(ticker.Current()))
	pad := max(innerWidth-lipgloss.Width(titleText)-lipgloss.Width(clock)-4, 1)
	titleLine := titleText + strings.Repeat(" ", pad) + clock + " "

	statsLine := fmt.Sprintf(" %s  Messages: %d  Senders: %d  Range: %s",
		statusText,
		stats.TotalMessages,
		stats.SendersCount,
		formatRange(stats.FirstMessageTS, stats.LastMessageTS),
	)

	activityLine := fmt.Sprintf(" Last webhook: %s %s", lastEventStr, pulse.Render(theme))

	content := lipgloss.JoinVertical(lipgloss.Left, titleLine, statsLine, activityLine)
	return theme.Border.Width(innerWidth).Render(content)
}

func formatRange(first, last *string) string {
	if first == nil || last == nil {
		return "-"
	}
	return *first + " .. " + *last
}
