package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferSetStateSplitsAndCoalesces(t *testing.T) {
	b := newTestBuffer("vertices", 100)
	written := DoubleState{Write: State(AccessTransferWrite, StageTransfer, LayoutUndefined)}
	initial := InitialState(LayoutUndefined, QueueFamilyIgnored)

	b.SetState(0, BufferRange{Begin: 10, Len: 10}, written)
	states := b.GetState(0, b.Full())
	require.Len(t, states, 3)
	assert.Equal(t, StateInRange[uint64]{Range: BufferRange{Begin: 0, Len: 10}, State: initial}, states[0])
	assert.Equal(t, StateInRange[uint64]{Range: BufferRange{Begin: 10, Len: 10}, State: written}, states[1])
	assert.Equal(t, StateInRange[uint64]{Range: BufferRange{Begin: 20, Len: 80}, State: initial}, states[2])

	b.SetState(0, BufferRange{Begin: 0, Len: 10}, written)
	b.SetState(0, BufferRange{Begin: 20}, written)
	states = b.GetState(0, b.Full())
	require.Len(t, states, 1)
	assert.Equal(t, b.Full(), states[0].Range)
	assert.Equal(t, written, states[0].State)
}

func TestBufferGetStateClipsToQuery(t *testing.T) {
	b := newTestBuffer("uniforms", 100)
	written := DoubleState{Write: State(AccessShaderWrite, StageComputeShader, LayoutUndefined)}
	b.SetState(0, BufferRange{Begin: 10, Len: 40}, written)

	states := b.GetState(0, BufferRange{Begin: 30, Len: 40})
	require.Len(t, states, 2)
	assert.Equal(t, BufferRange{Begin: 30, Len: 20}, states[0].Range)
	assert.Equal(t, written, states[0].State)
	assert.Equal(t, BufferRange{Begin: 50, Len: 20}, states[1].Range)
}

func TestBufferGenerationsAreIndependent(t *testing.T) {
	b := newTestBuffer("particles", 64)
	written := DoubleState{Write: State(AccessShaderWrite, StageComputeShader, LayoutUndefined)}
	b.SetState(1, b.Full(), written)

	assert.Equal(t, InitialState(LayoutUndefined, QueueFamilyIgnored), b.GetState(0, b.Full())[0].State)
	assert.Equal(t, written, b.GetState(1, b.Full())[0].State)
	assert.Panics(t, func() { b.GetState(DefaultGenerations, b.Full()) })
}

func TestImageStateIsTrackedPerMipAndLayer(t *testing.T) {
	img := newTestImage("shadow", 3, 4)
	sampled := DoubleState{
		Write:    State(AccessTransferWrite, StageTransfer, LayoutShaderReadOnlyOptimal),
		ReadOnly: State(AccessShaderRead, StageFragmentShader, LayoutShaderReadOnlyOptimal),
	}
	img.SetState(0, ImageRange{Mips: Range[uint32]{Begin: 1, Len: 1}, Layers: Range[uint32]{Begin: 1, Len: 2}}, sampled)

	states := img.GetState(0, img.Full())
	require.Len(t, states, 5)
	assert.Equal(t, Range[uint32]{Begin: 0, Len: 4}, states[0].Range.Layers)
	assert.Equal(t, uint32(1), states[2].Range.Mips.Begin)
	assert.Equal(t, Range[uint32]{Begin: 1, Len: 2}, states[2].Range.Layers)
	assert.Equal(t, sampled, states[2].State)
	assert.Equal(t, LayoutUndefined, states[4].State.Layout())
}

func TestDoubleStateApply(t *testing.T) {
	write := State(AccessTransferWrite, StageTransfer, LayoutTransferDstOptimal)
	readVS := State(AccessShaderRead, StageVertexShader, LayoutTransferDstOptimal)
	readFS := State(AccessShaderRead, StageFragmentShader, LayoutTransferDstOptimal)

	s := InitialState(LayoutUndefined, QueueFamilyIgnored).Apply(write, true)
	assert.Equal(t, write, s.Write)
	assert.Equal(t, ResourceState{Layout: LayoutTransferDstOptimal}, s.ReadOnly)

	s = s.Apply(readVS, true).Apply(readFS, true)
	assert.Equal(t, write, s.Write)
	assert.Equal(t, StageVertexShader|StageFragmentShader, s.ReadOnly.Stage)

	sampled := State(AccessShaderRead, StageFragmentShader, LayoutShaderReadOnlyOptimal)
	s = s.Apply(sampled, true)
	assert.Equal(t, LayoutShaderReadOnlyOptimal, s.Layout())
	assert.Equal(t, AccessNone, s.Write.Access)
	assert.Equal(t, StageFragmentShader, s.Write.Stage)
	assert.Equal(t, sampled, s.ReadOnly)
}

func TestPackedStateRoundTrip(t *testing.T) {
	s := ResourceState{
		Access: AccessColorAttachmentRead | AccessColorAttachmentWrite,
		Stage:  StageColorAttachmentOutput,
		Layout: LayoutPresentSrc,
		Queue:  QueueFamilyIndex(2),
	}
	assert.Equal(t, s, s.pack().unpack())
}
