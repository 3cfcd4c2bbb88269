package message

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned by PayloadDigest for an unknown message_id.
var ErrNotFound = errors.New("message not found")

// Store persists messages in the single "messages" table. It works against
// both SQLite and Postgres; placeholders are rebound per driver.
type Store struct {
	db       *sqlx.DB
	postgres bool
	now      func() time.Time
}

// NewStore wraps an open, migrated database.
func NewStore(db *sqlx.DB) *Store {
	return &Store{
		db:       db,
		postgres: db.DriverName() == "postgres",
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Insert stores m unless a row with the same message_id exists. It reports
// whether this call created the row. A duplicate is not an error and never
// modifies the existing row.
func (s *Store) Insert(ctx context.Context, m Message) (bool, error) {
	if m.MessageID == "" {
		return false, fmt.Errorf("insert message: message_id is empty")
	}

	createdAt := s.now()
	q := s.db.Rebind(`INSERT INTO messages
  (message_id, from_msisdn, to_msisdn, ts, text, created_at, payload_digest)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (message_id) DO NOTHING`)

	res, err := s.db.ExecContext(ctx, q,
		m.MessageID, m.From, m.To, m.Timestamp, m.Text,
		createdAt.Format(time.RFC3339Nano), Digest(m),
	)
	if err != nil {
		return false, fmt.Errorf("insert message %q: %w", m.MessageID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert message %q: rows affected: %w", m.MessageID, err)
	}
	return n == 1, nil
}

// PayloadDigest returns the stored digest for messageID.
func (s *Store) PayloadDigest(ctx context.Context, messageID string) (string, error) {
	var digest string
	q := s.db.Rebind(`SELECT payload_digest FROM messages WHERE message_id = ?`)
	if err := s.db.GetContext(ctx, &digest, q, messageID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("load digest for %q: %w", messageID, err)
	}
	return digest, nil
}

// List returns the page of messages matching f, ordered by (ts, message_id).
func (s *Store) List(ctx context.Context, f ListFilter) (Page, error) {
	f = f.Normalize()
	where, args := s.where(f)

	var total int
	countQ := s.db.Rebind(`SELECT COUNT(*) FROM messages` + where)
	if err := s.db.GetContext(ctx, &total, countQ, args...); err != nil {
		return Page{}, fmt.Errorf("count messages: %w", err)
	}

	data := []Message{}
	listQ := s.db.Rebind(`SELECT message_id, from_msisdn, to_msisdn, ts, text FROM messages` +
		where + ` ORDER BY ts ASC, message_id ASC LIMIT ? OFFSET ?`)
	pageArgs := append(append([]any{}, args...), f.Limit, f.Offset)
	if err := s.db.SelectContext(ctx, &data, listQ, pageArgs...); err != nil {
		return Page{}, fmt.Errorf("list messages: %w", err)
	}

	return Page{Data: data, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

// where builds the conjunctive filter clause. Since compares lexically, which
// matches chronological order for timestamps sharing the profile suffix.
// Contains is a case-sensitive substring match.
func (s *Store) where(f ListFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if f.From != "" {
		clauses = append(clauses, "from_msisdn = ?")
		args = append(args, f.From)
	}
	if f.Since != "" {
		clauses = append(clauses, "ts >= ?")
		args = append(args, f.Since)
	}
	if f.Contains != "" {
		if s.postgres {
			clauses = append(clauses, "strpos(text, ?) > 0")
		} else {
			clauses = append(clauses, "instr(text, ?) > 0")
		}
		args = append(args, f.Contains)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

type summaryRow struct {
	Total   int            `db:"total"`
	Senders int            `db:"senders"`
	FirstTS sql.NullString `db:"first_ts"`
	LastTS  sql.NullString `db:"last_ts"`
}

// Stats aggregates over the whole table.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var row summaryRow
	if err := s.db.GetContext(ctx, &row, `SELECT
  COUNT(*) AS total,
  COUNT(DISTINCT from_msisdn) AS senders,
  MIN(ts) AS first_ts,
  MAX(ts) AS last_ts
FROM messages`); err != nil {
		return Stats{}, fmt.Errorf("summarise messages: %w", err)
	}

	top := []SenderCount{}
	q := s.db.Rebind(`SELECT from_msisdn, COUNT(*) AS count
FROM messages
GROUP BY from_msisdn
ORDER BY count DESC, from_msisdn ASC
LIMIT ?`)
	if err := s.db.SelectContext(ctx, &top, q, TopSenders); err != nil {
		return Stats{}, fmt.Errorf("rank senders: %w", err)
	}

	stats := Stats{
		TotalMessages:     row.Total,
		SendersCount:      row.Senders,
		MessagesPerSender: top,
	}
	if row.FirstTS.Valid {
		stats.FirstMessageTS = &row.FirstTS.String
	}
	if row.LastTS.Valid {
		stats.LastMessageTS = &row.LastTS.String
	}
	return stats, nil
}

// HealthCheck reports whether the database answers a trivial query.
func (s *Store) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var one int
	return s.db.GetContext(ctx, &one, `SELECT 1`) == nil
}

// Maintain refreshes planner statistics. It is safe to run while serving.
func (s *Store) Maintain(ctx context.Context) error {
	stmt := `PRAGMA optimize;`
	if s.postgres {
		stmt = `ANALYZE messages`
	}
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("maintain store: %w", err)
	}
	return nil
}
