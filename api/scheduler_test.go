package api

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heyjack/giftpool/engine"
	"github.com/heyjack/giftpool/engine/store"
)

// stubRunner returns a fixed report and optionally blocks until released.
type stubRunner struct {
	report  engine.RunReport
	err     error
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (r *stubRunner) Run(ctx context.Context, opts engine.RunOptions) (*engine.RunReport, error) {
	r.calls.Add(1)
	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	report := r.report
	return &report, r.err
}

func TestScheduler_RunNowRecordsRun(t *testing.T) {
	history := store.NewMemory()
	runner := &stubRunner{report: engine.RunReport{EventsCreated: 1, EmailsSent: 4}}
	s := NewScheduler(runner, history, "0 6 * * *", time.UTC, nil)

	record, err := s.RunNow(context.Background(), TriggerManual, engine.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, "completed", record.Status)
	assert.Equal(t, TriggerManual, record.Trigger)
	assert.Equal(t, 4, record.Report.EmailsSent)

	runs, err := history.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, record.ID, runs[0].ID)
}

func TestScheduler_FatalRunIsRecordedAsFailed(t *testing.T) {
	history := store.NewMemory()
	boom := errors.New("members unreadable")
	runner := &stubRunner{err: boom}
	s := NewScheduler(runner, history, "0 6 * * *", time.UTC, nil)

	record, err := s.RunNow(context.Background(), TriggerSchedule, engine.RunOptions{})
	assert.ErrorIs(t, err, boom)
	require.NotNil(t, record)
	assert.Equal(t, "failed", record.Status)
	assert.Equal(t, boom.Error(), record.Error)

	runs, _ := history.ListRuns(context.Background(), 1)
	require.Len(t, runs, 1)
	assert.Equal(t, "failed", runs[0].Status)
}

func TestScheduler_RejectsOverlappingRuns(t *testing.T) {
	// GIVEN: A run in progress
	// WHEN: Another trigger arrives
	// THEN: It is refused with ErrRunInProgress and the runner is called once

	runner := &stubRunner{started: make(chan struct{}), release: make(chan struct{})}
	s := NewScheduler(runner, store.NewMemory(), "0 6 * * *", time.UTC, nil)

	done := make(chan error, 1)
	go func() {
		_, err := s.RunNow(context.Background(), TriggerManual, engine.RunOptions{})
		done <- err
	}()
	<-runner.started
	assert.True(t, s.Running())

	_, err := s.RunNow(context.Background(), TriggerManual, engine.RunOptions{})
	assert.ErrorIs(t, err, engine.ErrRunInProgress)

	close(runner.release)
	require.NoError(t, <-done)
	assert.False(t, s.Running())
	assert.Equal(t, int32(1), runner.calls.Load())
}

func TestScheduler_LastFallsBackToHistory(t *testing.T) {
	// GIVEN: A run recorded by a previous process
	// WHEN: A fresh scheduler is asked for the last run
	// THEN: It reads it from the history

	history := store.NewMemory()
	require.NoError(t, history.SaveRun(context.Background(), engine.RunRecord{ID: "older", Status: "completed"}))
	require.NoError(t, history.SaveRun(context.Background(), engine.RunRecord{ID: "newer", Status: "completed"}))

	s := NewScheduler(&stubRunner{}, history, "0 6 * * *", time.UTC, nil)
	last, err := s.Last(context.Background())
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "newer", last.ID)
}

func TestScheduler_LastEmpty(t *testing.T) {
	s := NewScheduler(&stubRunner{}, store.NewMemory(), "0 6 * * *", time.UTC, nil)

	last, err := s.Last(context.Background())
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestScheduler_StartAndStop(t *testing.T) {
	loc, err := time.LoadLocation("America/Argentina/Buenos_Aires")
	require.NoError(t, err)

	s := NewScheduler(&stubRunner{}, store.NewMemory(), "0 6 * * *", loc, nil)
	assert.True(t, s.NextRun().IsZero())

	require.NoError(t, s.Start())
	next := s.NextRun().In(loc)
	assert.Equal(t, 6, next.Hour())
	assert.Equal(t, 0, next.Minute())

	select {
	case <-s.Stop().Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	s := NewScheduler(&stubRunner{}, store.NewMemory(), "every morning", time.UTC, nil)
	assert.Error(t, s.Start())
}
