package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandBufferLifecycle(t *testing.T) {
	tcb := NewTraceCommandBuffer("lifecycle")
	cb := NewCommandBuffer("lifecycle", tcb)
	assert.Equal(t, COMMAND_BUFFER_STATE_IDLE, cb.State)

	require.NoError(t, cb.Begin())
	assert.Panics(t, func() { _ = cb.Begin() })
	require.NoError(t, cb.End())
	cb.MarkSubmitted()
	assert.Panics(t, func() { _ = cb.Reset() })
	cb.MarkCompleted()
	require.NoError(t, cb.Reset())
	assert.Equal(t, COMMAND_BUFFER_STATE_IDLE, cb.State)
	assert.Empty(t, tcb.Calls())
}

func TestDebugLabelsMustBeBalanced(t *testing.T) {
	thread, tcb := newTestThread(t, true)
	ctx := thread.Context()

	thread.PushDebugLabel("frame")
	thread.InsertDebugLabel("marker", DebugColor{1, 0, 0, 1})
	assert.Equal(t, 1, ctx.LabelDepth())
	assert.Panics(t, func() { _ = ctx.End() })

	thread.PopDebugLabel()
	assert.Panics(t, func() { thread.PopDebugLabel() })
	assert.Equal(t, []TraceOp{TraceBegin, TraceBeginDebugLabel, TraceInsertDebugLabel, TraceEndDebugLabel}, tcb.Ops())
}

func TestEndWithBalancedLabels(t *testing.T) {
	tcb := NewTraceCommandBuffer("balanced")
	cb := NewCommandBuffer("balanced", tcb)
	require.NoError(t, cb.Begin())
	ctx := NewExecutionContext(ExecutionContextInfo{Name: "balanced", CommandBuffer: cb})

	ctx.PushDebugLabelColor("pass", DebugColor{0, 1, 0, 1})
	ctx.PopDebugLabel()
	require.NoError(t, ctx.End())
	assert.Equal(t, COMMAND_BUFFER_STATE_RECORDING_ENDED, cb.State)
}

func TestNodeLabelsWrapExecution(t *testing.T) {
	tcb := NewTraceCommandBuffer("labels")
	cb := NewCommandBuffer("labels", tcb)
	require.NoError(t, cb.Begin())
	ctx := NewExecutionContext(ExecutionContextInfo{Name: "labels", CommandBuffer: cb})
	thread := NewExecutionThread(ExecutionThreadInfo{Context: ctx, LabelNodes: true})

	thread.RecordExecutable(marker(NewExecutionNodePool(), "work"))
	calls := tcb.Calls()
	require.Len(t, calls, 4)
	assert.Equal(t, TraceBeginDebugLabel, calls[1].Op)
	assert.Equal(t, "work", calls[1].Name)
	assert.Equal(t, TraceInsertDebugLabel, calls[2].Op)
	assert.Equal(t, TraceEndDebugLabel, calls[3].Op)
}

func TestAbandonReleasesNodes(t *testing.T) {
	thread, _ := newTestThread(t, true)
	var node *ExecutionNode
	exe := marker(NewExecutionNodePool(), "work")
	thread.RecordExecutable(func(rc *RecordContext) *ExecutionNode {
		node = exe(rc)
		return node
	})
	require.True(t, node.InUse())

	thread.Context().Abandon()
	assert.False(t, node.InUse())
}

func TestDescriptorSetsBindLazily(t *testing.T) {
	thread, tcb := newTestThread(t, true)
	ubo := newTestBuffer("ubo", 64)
	frame := NewDescriptorSet("frame", "set-0",
		BufferUsage(ubo, BufferRange{}, State(AccessUniformRead, StageComputeShader, LayoutUndefined)))
	cs := computePipeline(1)

	thread.Record(NewFillBuffer("init", ubo, BufferRange{}, 0))
	thread.Record(NewDispatch("a", cs, [3]uint32{1, 1, 1}, []SetBinding{{Index: 0, Set: frame}}))
	thread.Record(NewDispatch("b", cs, [3]uint32{1, 1, 1}, []SetBinding{{Index: 0, Set: frame}}))

	assert.Equal(t, 1, tcb.Count(TraceBindDescriptorSets))
	assert.Equal(t, 2, tcb.Count(TraceDispatch))
	batches := tcb.Barriers()
	require.Len(t, batches, 1, "only the fill needs to be made visible to the uniform read")
	assert.Same(t, ubo, batches[0].Buffers[0].Buffer)
	assert.Equal(t, AccessUniformRead, batches[0].Buffers[0].Dst.Access)
}

func TestBoundSetsManagerBindsContiguousRanges(t *testing.T) {
	tcb := NewTraceCommandBuffer("sets")
	m := NewBoundSetsManager(PipelineGraphics)
	layout := &PipelineLayout{Handle: "layout", SetCount: 4}
	s0, s1, s3 := NewDescriptorSet("s0", 0), NewDescriptorSet("s1", 1), NewDescriptorSet("s3", 3)

	m.Bind(0, s0)
	m.Bind(1, s1)
	m.Bind(3, s3)
	m.Record(tcb, layout)

	calls := tcb.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, uint32(0), calls[0].FirstSet)
	assert.Equal(t, []*DescriptorSet{s0, s1}, calls[0].Sets)
	assert.Equal(t, uint32(3), calls[1].FirstSet)
	assert.Equal(t, []*DescriptorSet{s3}, calls[1].Sets)

	m.Bind(1, s1)
	m.Record(tcb, layout)
	assert.Len(t, tcb.Calls(), 2, "rebinding the same set is a no-op")

	m.Record(tcb, &PipelineLayout{Handle: "other", SetCount: 4})
	assert.Len(t, tcb.Calls(), 4, "a new layout rebinds everything")
}

func TestRecordContextBindPoints(t *testing.T) {
	rc := NewRecordContext()
	set := NewDescriptorSet("shared", "set")
	rc.BindSet(2, set, BindGraphics|BindCompute)

	assert.True(t, rc.BoundSets(PipelineGraphics).IsBound(2, set))
	assert.True(t, rc.BoundSets(PipelineCompute).IsBound(2, set))
	assert.False(t, rc.BoundSets(PipelineRayTracing).IsBound(2, set))
	assert.Nil(t, rc.BoundSets(PipelineCompute).Get(7))

	rc.Reset()
	assert.False(t, rc.BoundSets(PipelineGraphics).IsBound(2, set))
}
