package watch

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/hookbox/internal/events"
	"github.com/mattjoyce/hookbox/internal/message"
)

// --- Message types ---

type eventMsg events.Event

// pollKind names one of the two periodic fetches.
type pollKind int

const (
	pollStats pollKind = iota
	pollReady
)

// Poll results carry the generation of the chain that produced them. Only
// results of the current generation schedule the next fetch, so at most one
// chain per kind is ever alive.
type statsMsg struct {
	gen   int
	stats message.Stats
}

type readyMsg struct {
	gen    int
	Ready  bool
	Reason string
}

type pollErrMsg struct {
	gen  int
	kind pollKind
	err  error
}

type tickMsg time.Time

type sseDisconnectedMsg struct{ lastID int64 }
type reconnectMsg struct{}

// Client talks to a running hookbox server.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	stream  *http.Client
}

// NewClient creates a client for baseURL. token is sent as a bearer
// credential when non-empty.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 2 * time.Second},
		stream:  &http.Client{},
	}
}

func (c *Client) newRequest(ctx context.Context, path string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// Stats fetches GET /stats.
func (c *Client) Stats(ctx context.Context) (message.Stats, error) {
	var s message.Stats
	req, err := c.newRequest(ctx, "/stats")
	if err != nil {
		return s, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return s, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return s, fmt.Errorf("GET /stats: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return s, fmt.Errorf("decode stats: %w", err)
	}
	return s, nil
}

// Ready fetches GET /health/ready. A 503 is a valid answer, not an error.
func (c *Client) Ready(ctx context.Context) (bool, string, error) {
	req, err := c.newRequest(ctx, "/health/ready")
	if err != nil {
		return false, "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false, "", err
	}
	defer resp.Body.Close()

	var body struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	switch resp.StatusCode {
	case http.StatusOK:
		return true, "", nil
	case http.StatusServiceUnavailable:
		return false, body.Reason, nil
	default:
		return false, "", fmt.Errorf("GET /health/ready: %s", resp.Status)
	}
}

// Stream reads GET /events into ch until the connection drops, resuming
// after lastID. It returns the last event id seen.
func (c *Client) Stream(ctx context.Context, lastID int64, ch chan<- events.Event) (int64, error) {
	req, err := c.newRequest(ctx, "/events")
	if err != nil {
		return lastID, err
	}
	if lastID > 0 {
		req.Header.Set("Last-Event-ID", strconv.FormatInt(lastID, 10))
	}
	resp, err := c.stream.Do(req)
	if err != nil {
		return lastID, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return lastID, fmt.Errorf("GET /events: %s", resp.Status)
	}
	return readSSE(resp.Body, lastID, ch), nil
}

// readSSE parses an event stream. Comment lines (keep-alives) are skipped.
func readSSE(r io.Reader, lastID int64, ch chan<- events.Event) int64 {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var cur events.Event
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if len(cur.Data) > 0 {
				cur.At = time.Now()
				ch <- cur
				if cur.ID > lastID {
					lastID = cur.ID
				}
			}
			cur = events.Event{}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "id: "):
			if id, err := strconv.ParseInt(line[4:], 10, 64); err == nil {
				cur.ID = id
			}
		case strings.HasPrefix(line, "event: "):
			cur.Type = line[7:]
		case strings.HasPrefix(line, "data: "):
			cur.Data = json.RawMessage(line[6:])
		}
	}
	return lastID
}

// --- Commands ---

func subscribeToEvents(c *Client, lastID int64, ch chan<- events.Event) tea.Cmd {
	return func() tea.Msg {
		last, _ := c.Stream(context.Background(), lastID, ch)
		return sseDisconnectedMsg{lastID: last}
	}
}

// receiveNextEvent waits for the next event from the channel.
func receiveNextEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-ch)
	}
}

func fetchStats(c *Client, gen int) tea.Cmd {
	return func() tea.Msg {
		st, err := c.Stats(context.Background())
		if err != nil {
			return pollErrMsg{gen: gen, kind: pollStats, err: err}
		}
		return statsMsg{gen: gen, stats: st}
	}
}

func fetchReady(c *Client, gen int) tea.Cmd {
	return func() tea.Msg {
		ok, reason, err := c.Ready(context.Background())
		if err != nil {
			return pollErrMsg{gen: gen, kind: pollReady, err: err}
		}
		return readyMsg{gen: gen, Ready: ok, Reason: reason}
	}
}
