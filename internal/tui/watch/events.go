package watch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/hookbox/internal/events"
)

const visibleEvents = 10

func renderEventStream(eventLog []events.Event, theme Theme, width int) string {
	if len(eventLog) == 0 {
		return theme.Panel(width, "ACTIVITY", theme.Dim.Render("  Waiting for webhooks..."))
	}

	lines := make([]string, 0, visibleEvents)
	for _, e := range eventLog[:min(len(eventLog), visibleEvents)] {
		lines = append(lines, formatEvent(e, theme))
	}
	return theme.Panel(width, "ACTIVITY", lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n")))
}

func formatEvent(e events.Event, theme Theme) string {
	return fmt.Sprintf("%s %s %s",
		theme.Dim.Render(e.At.Format("15:04:05")),
		theme.ForEvent(e.Type).Render(fmt.Sprintf("%-18s", e.Type)),
		describeEvent(e))
}

// describeEvent summarises an activity payload on one line.
func describeEvent(e events.Event) string {
	var data struct {
		MessageID string `json:"message_id"`
		Result    string `json:"result"`
		RequestID string `json:"request_id"`
	}
	if err := json.Unmarshal(e.Data, &data); err != nil || (data.MessageID == "" && data.Result == "") {
		raw := string(e.Data)
		if len(raw) > 60 {
			raw = raw[:60] + "..."
		}
		return raw
	}

	var parts []string
	if data.MessageID != "" {
		parts = append(parts, data.MessageID)
	}
	if data.Result != "" {
		parts = append(parts, data.Result)
	}
	if len(data.RequestID) >= 8 {
		parts = append(parts, "["+data.RequestID[:8]+"]")
	}
	return strings.Join(parts, " ")
}
