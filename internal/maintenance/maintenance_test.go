package maintenance

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hlog "github.com/mattjoyce/hookbox/internal/log"
)

type countingStore struct {
	calls atomic.Int64
	err   error
}

func (s *countingStore) Maintain(ctx context.Context) error {
	s.calls.Add(1)
	return s.err
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, time.Hour, nil)
	assert.Error(t, err)

	_, err = New(&countingStore{}, -time.Second, nil)
	assert.Error(t, err)

	r, err := New(&countingStore{}, 0, nil)
	require.NoError(t, err)
	assert.False(t, r.Enabled())
}

func TestRunOnce(t *testing.T) {
	var logs bytes.Buffer
	store := &countingStore{}
	r, err := New(store, time.Hour, hlog.New(&logs, "INFO"))
	require.NoError(t, err)

	require.NoError(t, r.RunOnce(context.Background()))
	assert.Equal(t, int64(1), r.Runs())
	assert.Equal(t, int64(0), r.Failures())
	assert.Contains(t, logs.String(), `"message":"maintenance complete"`)

	store.err = errors.New("database is locked")
	assert.Error(t, r.RunOnce(context.Background()))
	assert.Equal(t, int64(2), r.Runs())
	assert.Equal(t, int64(1), r.Failures())
	assert.Contains(t, logs.String(), `"level":"WARN"`)
}

func TestRun_Schedules(t *testing.T) {
	store := &countingStore{}
	r, err := New(store, 20*time.Millisecond, hlog.New(&bytes.Buffer{}, "ERROR"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return store.calls.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_FailuresKeepSchedule(t *testing.T) {
	store := &countingStore{err: errors.New("boom")}
	r, err := New(store, 20*time.Millisecond, hlog.New(&bytes.Buffer{}, "ERROR"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	require.Eventually(t, func() bool { return r.Failures() >= 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestRun_Disabled(t *testing.T) {
	store := &countingStore{}
	r, err := New(store, 0, hlog.New(&bytes.Buffer{}, "ERROR"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.NoError(t, r.Run(ctx))
	assert.Equal(t, int64(0), store.calls.Load())
}
