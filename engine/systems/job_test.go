package systems

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJobSystemRejectsBadSizes(t *testing.T) {
	_, err := NewJobSystem(0, 1)
	assert.ErrorIs(t, err, ErrNoWorkers)

	_, err = NewJobSystem(1, -1)
	assert.ErrorIs(t, err, ErrNegativeChannelSize)
}

func TestJobSystemRunsCallbacks(t *testing.T) {
	js, err := NewJobSystem(2, 4)
	require.NoError(t, err)

	var completed, failed, done atomic.Int32
	var wg sync.WaitGroup
	wg.Add(2)
	require.NoError(t, js.Submit(JobTask{
		Name:                 "ok",
		OnStart:              func() error { return nil },
		OnComplete:           func() { completed.Add(1) },
		OnCompletionCallback: func() { done.Add(1); wg.Done() },
	}))
	boom := errors.New("boom")
	require.NoError(t, js.Submit(JobTask{
		Name:    "fails",
		OnStart: func() error { return boom },
		OnFailure: func(err error) {
			assert.ErrorIs(t, err, boom)
			failed.Add(1)
		},
		OnCompletionCallback: func() { done.Add(1); wg.Done() },
	}))
	wg.Wait()

	assert.Equal(t, int32(1), completed.Load())
	assert.Equal(t, int32(1), failed.Load())
	assert.Equal(t, int32(2), done.Load())
	require.NoError(t, js.Shutdown())
}

func TestJobSystemRefusesWorkAfterShutdown(t *testing.T) {
	js, err := NewJobSystem(1, 1)
	require.NoError(t, err)
	require.NoError(t, js.Shutdown())
	require.NoError(t, js.Shutdown())

	assert.ErrorIs(t, js.Submit(JobTask{OnStart: func() error { return nil }}), ErrJobSystemClosed)
	assert.False(t, js.TrySubmit(JobTask{OnStart: func() error { return nil }}))
}
