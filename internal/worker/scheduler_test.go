package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestScheduler_RejectsBadExpression(t *testing.T) {
	s := NewScheduler(time.UTC, zap.NewNop())
	err := s.Add("sync", "every hour please", func(context.Context) error { return nil })
	assert.Error(t, err)
}

func TestScheduler_RunsAndStops(t *testing.T) {
	s := NewScheduler(time.UTC, zap.NewNop())

	var runs atomic.Int32
	cancelled := make(chan struct{})
	require.NoError(t, s.Add("sync", "@every 1s", func(ctx context.Context) error {
		if runs.Add(1) == 1 {
			<-ctx.Done()
			close(cancelled)
		}
		return nil
	}))

	s.Start()
	require.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
	s.Stop()

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("running task was not cancelled on stop")
	}
	// the first run was still blocked, so later ticks were skipped
	assert.Equal(t, int32(1), runs.Load())
}
