package testbed

import (
	"context"
	"testing"

	"github.com/spaghettifunk/anima-exec/engine"
	"github.com/spaghettifunk/anima-exec/engine/renderer/execution"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runFrames(t *testing.T, frames uint64) (*engine.Engine, *execution.TraceDevice) {
	t.Helper()
	device := execution.NewTraceDevice()
	queue := execution.NewTraceQueue(execution.QueueFamilyIndex(0), true)
	tg := NewTestGame(&engine.ApplicationConfig{
		Name:     "testbed",
		LogLevel: "error",
		Frames:   frames,
		Device:   device,
		Queue:    queue,
	})
	e, err := engine.New(tg.Game)
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	require.NoError(t, e.Run(context.Background()))
	require.NoError(t, e.Shutdown())
	return e, device
}

func TestTestbedRunsHeadless(t *testing.T) {
	e, device := runFrames(t, 3)

	m := e.Metrics()
	assert.EqualValues(t, 3, m.Submissions)
	assert.EqualValues(t, 3, m.RenderPasses)
	assert.NotZero(t, m.Barriers)
	assert.NotZero(t, m.LayoutTransitions)
	assert.Equal(t, engine.EngineStageShutdown, e.Stage())
	assert.NotEmpty(t, device.CommandBuffers())
}

func TestTestbedFirstFrameRecording(t *testing.T) {
	device := execution.NewTraceDevice()
	// Fences stay unsignaled until Complete, so the trace is not recycled
	// before it is inspected.
	queue := execution.NewTraceQueue(execution.QueueFamilyIndex(0), false)
	tg := NewTestGame(&engine.ApplicationConfig{
		Name:     "testbed",
		LogLevel: "error",
		Frames:   1,
		Device:   device,
		Queue:    queue,
	})
	e, err := engine.New(tg.Game)
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	require.NoError(t, e.Run(context.Background()))
	t.Cleanup(func() {
		queue.Complete(-1)
		require.NoError(t, e.Shutdown())
	})

	submitted := queue.Submitted()
	require.Len(t, submitted, 1)
	tcb := submitted[0]
	assert.Equal(t, 1, tcb.Count(execution.TraceCopyBuffer))
	assert.Equal(t, 1, tcb.Count(execution.TraceCopyBufferToImage))
	assert.Equal(t, 1, tcb.Count(execution.TraceBeginRenderPass))
	assert.Equal(t, 1, tcb.Count(execution.TraceNextSubpass))
	assert.Equal(t, 2, tcb.Count(execution.TraceDraw))
	assert.Equal(t, 2, tcb.Count(execution.TraceDispatch))

	// Nothing is synchronized inside the pass.
	calls := tcb.Calls()
	begin, end := tcb.Index(execution.TraceBeginRenderPass), tcb.Index(execution.TraceEndRenderPass)
	require.Less(t, begin, end)
	for _, c := range calls[begin:end] {
		assert.NotEqual(t, execution.TracePipelineBarrier, c.Op)
	}
}
