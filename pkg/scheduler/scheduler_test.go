package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RunNowTracksStatus(t *testing.T) {
	s, err := NewScheduler()
	require.NoError(t, err)

	var calls atomic.Int32

	require.NoError(t, s.AddInterval("ok", time.Hour, func(context.Context) error {
		calls.Add(1)
		return nil
	}))
	require.NoError(t, s.AddInterval("bad", time.Hour, func(context.Context) error {
		return errors.New("boom")
	}))

	s.Start()
	defer func() { _ = s.Stop() }()

	require.NoError(t, s.RunNow("ok"))
	require.NoError(t, s.RunNow("bad"))

	require.Eventually(t, func() bool {
		infos := s.GetJobInfos()
		return len(infos) == 2 && infos[0].Runs >= 1 && infos[1].Runs >= 1
	}, 2*time.Second, 10*time.Millisecond)

	infos := s.GetJobInfos()
	assert.Equal(t, "bad", infos[0].Name)
	assert.Equal(t, StatusError, infos[0].Status)
	assert.Equal(t, "boom", infos[0].Error)
	assert.Equal(t, "ok", infos[1].Name)
	assert.Equal(t, StatusScheduled, infos[1].Status)
	assert.False(t, infos[1].LastSuccess.IsZero())
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestScheduler_DuplicateName(t *testing.T) {
	s, err := NewScheduler()
	require.NoError(t, err)

	noop := func(context.Context) error { return nil }

	require.NoError(t, s.AddCron("sweep", "*/1 * * * *", noop))
	require.Error(t, s.AddCron("sweep", "*/1 * * * *", noop))

	require.NoError(t, s.RemoveJobByName("sweep"))
	require.Error(t, s.RemoveJobByName("sweep"))
}

func TestScheduler_PanicBecomesError(t *testing.T) {
	s, err := NewScheduler()
	require.NoError(t, err)

	require.NoError(t, s.AddInterval("panic", time.Hour, func(context.Context) error {
		panic("oops")
	}))

	s.Start()
	defer func() { _ = s.Stop() }()

	require.NoError(t, s.RunNow("panic"))

	require.Eventually(t, func() bool {
		infos := s.GetJobInfos()
		return len(infos) == 1 && infos[0].Status == StatusError
	}, 2*time.Second, 10*time.Millisecond)
}
