package watch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/hookbox/internal/events"
	"github.com/mattjoyce/hookbox/internal/message"
)

func strPtr(s string) *string { return &s }

func sampleStats() message.Stats {
	return message.Stats{
		TotalMessages: 3,
		SendersCount:  2,
		MessagesPerSender: []message.SenderCount{
			{From: "+919876543210", Count: 2},
			{From: "+911234567890", Count: 1},
		},
		FirstMessageTS: strPtr("2025-01-15T09:00:00Z"),
		LastMessageTS:  strPtr("2025-01-15T11:00:00Z"),
	}
}

func TestReadSSE(t *testing.T) {
	stream := strings.Join([]string{
		"id: 4",
		"event: message.created",
		`data: {"message_id":"m1","result":"created"}`,
		"",
		": keep-alive",
		"",
		"id: 5",
		"event: webhook.rejected",
		`data: {"result":"invalid_signature"}`,
		"",
	}, "\n")

	ch := make(chan events.Event, 4)
	last := readSSE(strings.NewReader(stream), 2, ch)
	close(ch)

	if last != 5 {
		t.Fatalf("last id = %d, want 5", last)
	}
	var got []events.Event
	for e := range ch {
		got = append(got, e)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if got[0].Type != "message.created" || got[0].ID != 4 {
		t.Errorf("first event = %+v", got[0])
	}
	if string(got[1].Data) != `{"result":"invalid_signature"}` {
		t.Errorf("second data = %s", got[1].Data)
	}
}

func TestClient(t *testing.T) {
	var sawAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawAuth = r.Header.Get("Authorization")
		switch r.URL.Path {
		case "/stats":
			_ = json.NewEncoder(w).Encode(sampleStats())
		case "/health/ready":
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"not ready","reason":"store unavailable"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "reader")
	ctx := context.Background()

	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalMessages != 3 || len(stats.MessagesPerSender) != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if sawAuth != "Bearer reader" {
		t.Errorf("Authorization = %q", sawAuth)
	}

	ok, reason, err := c.Ready(ctx)
	if err != nil {
		t.Fatalf("Ready: %v", err)
	}
	if ok || reason != "store unavailable" {
		t.Errorf("Ready = %v %q", ok, reason)
	}

	if _, err := c.Stream(ctx, 0, make(chan events.Event, 1)); err == nil {
		t.Error("expected error for missing /events")
	}
}

func TestClient_StreamResumes(t *testing.T) {
	var lastEventID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastEventID = r.Header.Get("Last-Event-ID")
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("id: 8\nevent: message.duplicate\ndata: {\"message_id\":\"m1\"}\n\n"))
	}))
	defer srv.Close()

	ch := make(chan events.Event, 1)
	last, err := NewClient(srv.URL, "").Stream(context.Background(), 7, ch)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if lastEventID != "7" {
		t.Errorf("Last-Event-ID = %q", lastEventID)
	}
	if last != 8 {
		t.Errorf("last = %d", last)
	}
	if e := <-ch; e.Type != "message.duplicate" {
		t.Errorf("event = %+v", e)
	}
}

func TestModel_Update(t *testing.T) {
	m := New(NewClient("http://127.0.0.1:0", ""))
	fixed := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = next.(Model)

	next, _ = m.Update(statsMsg{stats: sampleStats()})
	m = next.(Model)
	next, _ = m.Update(readyMsg{Ready: true})
	m = next.(Model)

	for i, typ := range []string{"message.created", "message.duplicate", "webhook.rejected"} {
		next, _ = m.Update(eventMsg(events.Event{
			ID:   int64(i + 1),
			Type: typ,
			At:   fixed,
			Data: json.RawMessage(`{"message_id":"m1","result":"created"}`),
		}))
		m = next.(Model)
	}

	if m.lastID != 3 {
		t.Errorf("lastID = %d", m.lastID)
	}
	if m.eventLog[0].Type != "webhook.rejected" {
		t.Errorf("newest event should be first, got %s", m.eventLog[0].Type)
	}
	if !m.health.Connected || !m.health.Ready {
		t.Errorf("health = %+v", m.health)
	}

	view := m.View()
	for _, want := range []string{"HOOKBOX WATCH", "READY", "Messages: 3", "+919876543210", "1 created", "1 rejected"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	next, _ = m.Update(sseDisconnectedMsg{lastID: 9})
	m = next.(Model)
	if m.health.Connected || m.lastID != 9 {
		t.Errorf("after disconnect: connected=%v lastID=%d", m.health.Connected, m.lastID)
	}
	if !strings.Contains(m.View(), "CONNECTING") {
		t.Error("view should show CONNECTING after disconnect")
	}
}

// deadClient points at a port nothing listens on, so every fetch fails fast.
func deadClient(t *testing.T) *Client {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return NewClient(url, "")
}

func TestModel_PollChainsDoNotMultiply(t *testing.T) {
	m := New(deadClient(t))
	m.pollEvery = time.Millisecond

	// A failed stats fetch schedules exactly one retry of the stats fetch.
	next, cmd := m.Update(pollErrMsg{gen: 0, kind: pollStats, err: context.DeadlineExceeded})
	m = next.(Model)
	if cmd == nil {
		t.Fatal("failed fetch should be retried")
	}
	retry, ok := cmd().(pollErrMsg)
	if !ok {
		t.Fatalf("retry should be a single stats fetch, got %T", cmd())
	}
	if retry.kind != pollStats || retry.gen != 0 {
		t.Errorf("retry = %+v", retry)
	}
	if m.lastError == "" {
		t.Error("fetch error should be shown")
	}

	next, cmd = m.Update(pollErrMsg{gen: 0, kind: pollReady, err: context.DeadlineExceeded})
	m = next.(Model)
	if got, ok := cmd().(pollErrMsg); !ok || got.kind != pollReady {
		t.Errorf("ready retry = %T %+v", got, got)
	}

	// A manual refresh fetches both once under a new generation.
	next, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	m = next.(Model)
	if m.pollGen != 1 {
		t.Fatalf("pollGen = %d, want 1", m.pollGen)
	}
	batch, ok := cmd().(tea.BatchMsg)
	if !ok || len(batch) != 2 {
		t.Fatalf("refresh should batch two fetches, got %T", cmd())
	}

	// The superseded chains end at their next result.
	for _, msg := range []tea.Msg{
		pollErrMsg{gen: 0, kind: pollStats, err: context.Canceled},
		pollErrMsg{gen: 0, kind: pollReady, err: context.Canceled},
		statsMsg{gen: 0, stats: sampleStats()},
		readyMsg{gen: 0, Ready: true},
	} {
		next, cmd = m.Update(msg)
		m = next.(Model)
		if cmd != nil {
			t.Errorf("%T from an old generation should not reschedule", msg)
		}
	}
	if m.stats.TotalMessages != 3 {
		t.Error("late results are still applied")
	}

	// The current generation keeps polling.
	if _, cmd = m.Update(statsMsg{gen: 1, stats: sampleStats()}); cmd == nil {
		t.Error("current generation should schedule its next fetch")
	}
}

func TestModel_Quit(t *testing.T) {
	m := New(NewClient("http://127.0.0.1:0", ""))
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected tea.QuitMsg")
	}
}

func TestSenderRows(t *testing.T) {
	rows := senderRows(sampleStats())
	if len(rows) != 2 {
		t.Fatalf("rows = %d", len(rows))
	}
	if rows[0][1] != "+919876543210" || rows[0][2] != "2" || rows[0][3] != "66%" {
		t.Errorf("first row = %v", rows[0])
	}
}

func TestDescribeEvent(t *testing.T) {
	e := events.Event{Data: json.RawMessage(`{"message_id":"m1","result":"duplicate","request_id":"0123456789abcdef"}`)}
	if got := describeEvent(e); got != "m1 duplicate [01234567]" {
		t.Errorf("describeEvent = %q", got)
	}

	raw := events.Event{Data: json.RawMessage(`{"other":true}`)}
	if got := describeEvent(raw); got != `{"other":true}` {
		t.Errorf("describeEvent fallback = %q", got)
	}
}

func TestPulseDecay(t *testing.T) {
	var p Pulse
	start := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	p.OnEvent(start)
	if p.dots != pulseDots {
		t.Fatalf("dots = %d", p.dots)
	}
	p.Decay(start.Add(5 * time.Second))
	if p.dots != 3 {
		t.Errorf("after 5s dots = %d, want 3", p.dots)
	}
	p.Decay(start.Add(time.Minute))
	if p.dots != 0 {
		t.Errorf("after 1m dots = %d, want 0", p.dots)
	}
}
