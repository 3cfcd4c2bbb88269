package watch

import (
	"strconv"

	"github.com/charmbracelet/bubbles/table"

	"github.com/mattjoyce/hookbox/internal/message"
)

func newSenderTable(theme Theme) table.Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "#", Width: 3},
			{Title: "Sender", Width: 20},
			{Title: "Messages", Width: 10},
			{Title: "Share", Width: 7},
		}),
		table.WithFocused(true),
		table.WithHeight(message.TopSenders),
	)
	t.SetStyles(theme.TableStyles())
	return t
}

// senderRows renders the top-senders ranking as table rows.
func senderRows(stats message.Stats) []table.Row {
	rows := make([]table.Row, 0, len(stats.MessagesPerSender))
	for i, s := range stats.MessagesPerSender {
		share := "-"
		if stats.TotalMessages > 0 {
			share = strconv.Itoa(s.Count*100/stats.TotalMessages) + "%"
		}
		rows = append(rows, table.Row{strconv.Itoa(i + 1), s.From, strconv.Itoa(s.Count), share})
	}
	return rows
}

func renderSenders(t table.Model, theme Theme, width int) string {
	return theme.Panel(width, "TOP SENDERS", t.View())
}
