package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonathan/deal-tracker/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	calls   atomic.Int32
	block   chan struct{}
	started chan struct{}
	err     error
}

func (r *stubRunner) Run(ctx context.Context, _ pipeline.RunOptions) (*pipeline.CycleReport, error) {
	r.calls.Add(1)
	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.block != nil {
		<-r.block
	}
	return &pipeline.CycleReport{CycleID: "c1"}, r.err
}

func TestNew_InvalidSchedule(t *testing.T) {
	_, err := New("not a schedule", &stubRunner{}, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cron schedule")

	_, err = New("@every 1h", nil, nil, nil)
	assert.Error(t, err)
}

func TestRunNow(t *testing.T) {
	t.Run("runs a cycle", func(t *testing.T) {
		r := &stubRunner{}
		s, err := New("0 */4 * * *", r, nil, nil)
		require.NoError(t, err)

		report, err := s.RunNow(context.Background(), TriggerManual, nil)
		require.NoError(t, err)
		assert.Equal(t, "c1", report.CycleID)
		assert.Equal(t, int32(1), r.calls.Load())
	})

	t.Run("returns runner error with report", func(t *testing.T) {
		r := &stubRunner{err: errors.New("scrape: boom")}
		s, err := New("@hourly", r, nil, nil)
		require.NoError(t, err)

		report, err := s.RunNow(context.Background(), TriggerManual, nil)
		assert.EqualError(t, err, "scrape: boom")
		assert.NotNil(t, report)
	})

	t.Run("options error aborts before running", func(t *testing.T) {
		r := &stubRunner{}
		s, err := New("@hourly", r, func() (pipeline.RunOptions, error) {
			return pipeline.RunOptions{}, errors.New("feeds.yaml: no such file")
		}, nil)
		require.NoError(t, err)

		_, err = s.RunNow(context.Background(), TriggerManual, nil)
		assert.ErrorContains(t, err, "failed to prepare cycle")
		assert.Equal(t, int32(0), r.calls.Load())
	})

	t.Run("overlapping cycles are skipped", func(t *testing.T) {
		r := &stubRunner{block: make(chan struct{}), started: make(chan struct{}, 1)}
		s, err := New("@hourly", r, nil, nil)
		require.NoError(t, err)

		done := make(chan error, 1)
		go func() {
			_, err := s.RunNow(context.Background(), TriggerCron, nil)
			done <- err
		}()
		<-r.started

		_, err = s.RunNow(context.Background(), TriggerManual, nil)
		assert.ErrorIs(t, err, ErrCycleRunning)

		close(r.block)
		require.NoError(t, <-done)
		assert.Equal(t, int32(1), r.calls.Load())
	})
}

func TestRun_FiresAndStops(t *testing.T) {
	r := &stubRunner{}
	s, err := New("@every 1s", r, nil, nil)
	require.NoError(t, err)
	assert.True(t, s.Next().IsZero())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	assert.Eventually(t, func() bool { return r.calls.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
