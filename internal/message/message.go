// Package message holds the webhook message model and its SQL store.
package message

import "time"

const (
	DefaultLimit = 50
	MaxLimit     = 100
	TopSenders   = 10
)

// Message is one accepted webhook delivery. Rows are written once and never
// updated.
type Message struct {
	MessageID string  `db:"message_id" json:"message_id"`
	From      string  `db:"from_msisdn" json:"from"`
	To        string  `db:"to_msisdn" json:"to"`
	Timestamp string  `db:"ts" json:"ts"`
	Text      *string `db:"text" json:"text"`

	// CreatedAt is assigned by the store on insert.
	CreatedAt time.Time `db:"-" json:"-"`
}

// ListFilter selects and pages messages. Empty string filters are ignored.
type ListFilter struct {
	Limit    int
	Offset   int
	From     string
	Since    string
	Contains string
}

// Normalize clamps Limit to [1, MaxLimit] and Offset to >= 0.
// A zero Limit means DefaultLimit.
func (f ListFilter) Normalize() ListFilter {
	switch {
	case f.Limit == 0:
		f.Limit = DefaultLimit
	case f.Limit < 1:
		f.Limit = 1
	case f.Limit > MaxLimit:
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Page is one slice of a filtered listing. Total counts every row matching
// the filter regardless of Limit and Offset.
type Page struct {
	Data   []Message `json:"data"`
	Total  int       `json:"total"`
	Limit  int       `json:"limit"`
	Offset int       `json:"offset"`
}

// SenderCount is one entry of the top-senders ranking.
type SenderCount struct {
	From  string `db:"from_msisdn" json:"from"`
	Count int    `db:"count" json:"count"`
}

// Stats summarises the whole store. The timestamp bounds are nil when empty.
type Stats struct {
	TotalMessages     int           `json:"total_messages"`
	SendersCount      int           `json:"senders_count"`
	MessagesPerSender []SenderCount `json:"messages_per_sender"`
	FirstMessageTS    *string       `json:"first_message_ts"`
	LastMessageTS     *string       `json:"last_message_ts"`
}
