package api

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/hookbox/internal/events"
	hlog "github.com/mattjoyce/hookbox/internal/log"
	"github.com/mattjoyce/hookbox/internal/metrics"
)

func TestStart_ShutdownEndsEventStreams(t *testing.T) {
	hub := events.NewHub(8)
	s := New(Config{Listen: "127.0.0.1:0", ShutdownTimeout: 3 * time.Second},
		&fakeStore{healthy: true}, nil, metrics.New(), hub, nil, hlog.New(io.Discard, "ERROR"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool { return s.Addr() != "" }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + s.Addr() + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	began := time.Now()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled, "shutdown with a connected stream should be clean")
		assert.Less(t, time.Since(began), time.Second)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
	assert.Equal(t, 0, hub.Subscribers())

	// The stream ends rather than hanging.
	rest, _ := io.ReadAll(bufio.NewReader(resp.Body))
	assert.True(t, strings.HasPrefix(string(rest), "retry:"), "body = %q", rest)
}

func TestStart_ListenError(t *testing.T) {
	s := New(Config{Listen: "256.0.0.1:bad"}, &fakeStore{}, nil, nil, nil, nil, hlog.New(io.Discard, "ERROR"))
	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen on")
	assert.Empty(t, s.Addr())
}
