package analysis

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chris/mergen/internal/db"
	"github.com/chris/mergen/internal/logging"
	"github.com/chris/mergen/internal/redact"
)

func opener(t *testing.T, path string, opens *atomic.Int32) OpenFunc {
	t.Helper()
	return func() (StoreHandle, error) {
		opens.Add(1)
		return db.NewForTesting(path)
	}
}

func TestScheduler_RunOnceOpensFreshStore(t *testing.T) {
	// Given: a database with commands and a scheduler pointing at it
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := db.NewForTesting(path)
	require.NoError(t, err)
	seed(t, store, 2)
	require.NoError(t, store.Close())

	var opens atomic.Int32
	fake := &fakeSummarizer{report: "r"}
	s := NewScheduler(opener(t, path, &opens), fake, redact.New(), testConfig(), logging.Discard())

	var seen []Result
	s.OnResult = func(r Result) { seen = append(seen, r) }

	// When: running twice
	first := s.RunOnce(context.Background())
	second := s.RunOnce(context.Background())

	// Then: every run used its own handle and the second found nothing new
	assert.Equal(t, int32(2), opens.Load())
	assert.Equal(t, OutcomeUpdated, first.Outcome)
	assert.Equal(t, int64(2), first.Watermark)
	assert.Equal(t, OutcomeNoNewData, second.Outcome)
	assert.Len(t, seen, 2)
}

func TestScheduler_OpenFailureIsReported(t *testing.T) {
	boom := errors.New("boom")
	s := NewScheduler(func() (StoreHandle, error) { return nil, boom }, &fakeSummarizer{}, redact.New(), testConfig(), logging.Discard())

	res := s.RunOnce(context.Background())
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, boom)
}

func TestScheduler_StartRejectsInvalidSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.RefreshSchedule = "not a schedule"
	var opens atomic.Int32
	s := NewScheduler(opener(t, filepath.Join(t.TempDir(), "h.db"), &opens), &fakeSummarizer{}, redact.New(), cfg, logging.Discard())

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid refresh schedule")
	assert.True(t, s.Next().IsZero())
}

func TestScheduler_UpdateReschedules(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var opens atomic.Int32
	s := NewScheduler(opener(t, filepath.Join(t.TempDir(), "h.db"), &opens), &fakeSummarizer{}, redact.New(), testConfig(), logging.Discard())
	require.NoError(t, s.Start(ctx))
	defer s.Stop()

	require.Eventually(t, func() bool { return !s.Next().IsZero() }, 2*time.Second, 10*time.Millisecond)
	before := s.Next()
	assert.WithinDuration(t, time.Now().Add(6*time.Hour), before, time.Minute)

	// An invalid schedule keeps the old job
	bad := testConfig()
	bad.RefreshSchedule = "nope"
	require.Error(t, s.Update(ctx, bad, nil))

	good := testConfig()
	good.RefreshSchedule = "@every 1h"
	require.NoError(t, s.Update(ctx, good, nil))

	require.Eventually(t, func() bool {
		next := s.Next()
		return !next.IsZero() && next.Before(before)
	}, 2*time.Second, 10*time.Millisecond)
	assert.WithinDuration(t, time.Now().Add(time.Hour), s.Next(), time.Minute)
}

func TestScheduler_RunsOnSchedule(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for a cron tick")
	}

	path := filepath.Join(t.TempDir(), "history.db")
	store, err := db.NewForTesting(path)
	require.NoError(t, err)
	seed(t, store, 1)
	require.NoError(t, store.Close())

	cfg := testConfig()
	cfg.RefreshSchedule = "@every 1s"

	var opens atomic.Int32
	s := NewScheduler(opener(t, path, &opens), &fakeSummarizer{report: "r"}, redact.New(), cfg, logging.Discard())
	results := make(chan Result, 4)
	s.OnResult = func(r Result) { results <- r }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))

	select {
	case res := <-results:
		assert.Equal(t, OutcomeUpdated, res.Outcome)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled refresh did not run")
	}
}
