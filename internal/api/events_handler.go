package api

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/mattjoyce/hookbox/internal/events"
)

var (
	keepAliveInterval = 15 * time.Second
	// reconnectDelay is advertised to clients as the SSE retry field.
	reconnectDelay = 3 * time.Second
)

// sseStream frames hub events onto a flushed response. It remembers the
// last id written so a replayed event is never sent twice.
type sseStream struct {
	w      http.ResponseWriter
	flush  http.Flusher
	lastID int64
	buf    bytes.Buffer
}

func (s *sseStream) send(ev events.Event) error {
	if ev.ID <= s.lastID {
		return nil
	}
	s.buf.Reset()
	s.buf.WriteString("id: ")
	s.buf.WriteString(strconv.FormatInt(ev.ID, 10))
	s.buf.WriteByte('\n')
	if ev.Type != "" {
		s.buf.WriteString("event: ")
		s.buf.WriteString(ev.Type)
		s.buf.WriteByte('\n')
	}
	s.buf.WriteString("data: ")
	s.buf.Write(ev.Data)
	s.buf.WriteString("\n\n")
	if _, err := s.w.Write(s.buf.Bytes()); err != nil {
		return err
	}
	s.lastID = ev.ID
	return nil
}

func (s *sseStream) raw(line string) error {
	_, err := s.w.Write([]byte(line + "\n\n"))
	return err
}

// handleEvents serves GET /events. Clients resume with Last-Event-ID.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	live, unsubscribe := s.events.Subscribe()
	defer unsubscribe()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	stream := &sseStream{w: w, flush: flusher, lastID: parseLastEventID(r.Header.Get("Last-Event-ID"))}
	if err := stream.raw("retry: " + strconv.FormatInt(reconnectDelay.Milliseconds(), 10)); err != nil {
		return
	}
	// The subscription is already open, so anything published during the
	// replay arrives on live and is skipped by id.
	for _, ev := range s.events.SnapshotSince(stream.lastID) {
		if err := stream.send(ev); err != nil {
			return
		}
	}
	flusher.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		var err error
		select {
		case <-r.Context().Done():
			return
		case <-s.streamsDone:
			return
		case ev, open := <-live:
			if !open {
				return
			}
			err = stream.send(ev)
		case <-ticker.C:
			err = stream.raw(": keep-alive")
		}
		if err != nil {
			return
		}
		flusher.Flush()
	}
}

// parseLastEventID treats anything but a non-negative integer as "from the start".
func parseLastEventID(v string) int64 {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
