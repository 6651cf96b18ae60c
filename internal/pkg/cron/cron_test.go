package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statusOf(s *Scheduler, name string) ListItem {
	for _, item := range s.List() {
		if item.Name == name {
			return item
		}
	}
	return ListItem{}
}

func TestRunRecordsOutcome(t *testing.T) {
	s := New(nil)
	s.Register(Job{Name: "ok", Interval: time.Hour, Fn: func(context.Context) error { return nil }})
	s.Register(Job{Name: "bad", Interval: time.Hour, Fn: func(context.Context) error { return errors.New("upstream down") }})

	require.NoError(t, s.Run(context.Background(), "ok"))
	require.NoError(t, s.Run(context.Background(), "bad"))
	assert.Error(t, s.Run(context.Background(), "missing"))

	assert.Eventually(t, func() bool { return statusOf(s, "ok").Status == StatusFulfill }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return statusOf(s, "bad").Status == StatusReject }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "upstream down", statusOf(s, "bad").Message)

	items := s.List()
	require.Len(t, items, 2)
	assert.Equal(t, "bad", items[0].Name)
}

func TestStartRunsOnIntervalAndStops(t *testing.T) {
	var calls atomic.Int32
	s := New(nil)
	s.Register(Job{Name: "tick", Interval: 10 * time.Millisecond, Fn: func(context.Context) error {
		calls.Add(1)
		return nil
	}})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
}

func TestExecuteSkipsOverlappingRun(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	s := New(nil)
	s.Register(Job{Name: "slow", Interval: time.Hour, Fn: func(context.Context) error {
		calls.Add(1)
		<-release
		return nil
	}})

	require.NoError(t, s.Run(context.Background(), "slow"))
	assert.Eventually(t, func() bool { return statusOf(s, "slow").Status == StatusRunning }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Run(context.Background(), "slow"))
	time.Sleep(20 * time.Millisecond)
	close(release)

	assert.Eventually(t, func() bool { return statusOf(s, "slow").Status == StatusFulfill }, time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 1, calls.Load())
}
