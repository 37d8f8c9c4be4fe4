package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	transferWrite := State(AccessTransferWrite, StageTransfer, LayoutTransferDstOptimal)
	written := InitialState(LayoutUndefined, QueueFamilyIgnored).Apply(transferWrite, true)
	sampled := State(AccessShaderRead, StageFragmentShader, LayoutShaderReadOnlyOptimal)
	readable := DoubleState{
		Write:    State(AccessShaderWrite, StageComputeShader, LayoutGeneral),
		ReadOnly: State(AccessShaderRead, StageComputeShader, LayoutGeneral),
	}

	tests := []struct {
		name    string
		prev    DoubleState
		next    ResourceState
		isImage bool
		want    Hazard
		src     ResourceState
	}{
		{
			name: "first write",
			prev: InitialState(LayoutUndefined, QueueFamilyIgnored),
			next: State(AccessTransferWrite, StageTransfer, LayoutUndefined),
			want: HazardNone,
		},
		{
			name: "first read",
			prev: InitialState(LayoutUndefined, QueueFamilyIgnored),
			next: State(AccessShaderRead, StageComputeShader, LayoutUndefined),
			want: HazardNone,
		},
		{
			name: "read after write",
			prev: DoubleState{Write: State(AccessTransferWrite, StageTransfer, LayoutUndefined)},
			next: State(AccessShaderRead, StageComputeShader, LayoutUndefined),
			want: HazardReadAfterWrite,
			src:  State(AccessTransferWrite, StageTransfer, LayoutUndefined),
		},
		{
			name: "write after write",
			prev: DoubleState{Write: State(AccessTransferWrite, StageTransfer, LayoutUndefined)},
			next: State(AccessShaderWrite, StageComputeShader, LayoutUndefined),
			want: HazardWriteAfterWrite,
			src:  State(AccessTransferWrite, StageTransfer, LayoutUndefined),
		},
		{
			name:    "write after read",
			prev:    readable,
			next:    State(AccessShaderWrite, StageComputeShader, LayoutGeneral),
			isImage: true,
			want:    HazardWriteAfterRead,
			src:     State(AccessShaderWrite|AccessShaderRead, StageComputeShader, LayoutGeneral),
		},
		{
			name:    "read already visible",
			prev:    readable,
			next:    State(AccessShaderRead, StageComputeShader, LayoutGeneral),
			isImage: true,
			want:    HazardNone,
			src:     State(AccessShaderWrite, StageComputeShader, LayoutGeneral),
		},
		{
			name:    "layout transition",
			prev:    written,
			next:    sampled,
			isImage: true,
			want:    HazardLayoutTransition,
			src:     transferWrite,
		},
		{
			name: "queue ownership transfer",
			prev: DoubleState{
				Write:    ResourceState{Access: AccessShaderWrite, Stage: StageComputeShader, Queue: QueueFamilyIndex(0)},
				ReadOnly: ResourceState{Queue: QueueFamilyIndex(0)},
			},
			next: State(AccessShaderRead, StageFragmentShader, LayoutUndefined).WithQueue(QueueFamilyIndex(1)),
			want: HazardQueueTransfer,
			src:  ResourceState{Access: AccessShaderWrite, Stage: StageComputeShader, Queue: QueueFamilyIndex(0)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hazard, src := Classify(tt.prev, tt.next, tt.isImage)
			assert.Equal(t, tt.want, hazard, hazard.String())
			if tt.want != HazardNone {
				assert.Equal(t, tt.src, src)
			}
		})
	}
}

func TestIdenticalReadsEmitOneBarrier(t *testing.T) {
	thread, tcb := newTestThread(t, true)
	pool := NewExecutionNodePool()
	b := newTestBuffer("storage", 128)
	read := State(AccessShaderRead, StageComputeShader, LayoutUndefined)

	thread.RecordExecutable(marker(pool, "fill", BufferUsage(b, BufferRange{}, State(AccessShaderWrite, StageComputeShader, LayoutUndefined))))
	thread.RecordExecutable(marker(pool, "read-1", BufferUsage(b, BufferRange{}, read)))
	thread.RecordExecutable(marker(pool, "read-2", BufferUsage(b, BufferRange{}, read)))

	calls := tcb.Calls()
	barriers := opIndices(calls, TracePipelineBarrier)
	require.Len(t, barriers, 1)
	assert.Less(t, barriers[0], labelIndex(calls, "read-1"))
	assert.Greater(t, barriers[0], labelIndex(calls, "fill"))
	assert.EqualValues(t, 1, thread.Context().Metrics().Barriers.Load())
	assert.EqualValues(t, 2, thread.Context().Metrics().SkippedUsages.Load(), "fill and read-2 need nothing")
}

func TestCommittedStateMatchesUsage(t *testing.T) {
	thread, _ := newTestThread(t, true)
	pool := NewExecutionNodePool()
	img := newTestImage("gbuffer", 2, 2)
	r := ImageRange{Mips: Range[uint32]{Begin: 1, Len: 1}, Layers: Range[uint32]{Begin: 0, Len: 1}}

	write := State(AccessShaderWrite, StageComputeShader, LayoutGeneral).WithQueue(QueueFamilyIndex(0))
	thread.RecordExecutable(marker(pool, "write", ImageUsage(img, r, write)))
	states := img.GetState(0, r)
	require.Len(t, states, 1)
	assert.Equal(t, r.Mips, states[0].Range.Mips)
	assert.Equal(t, write, states[0].State.Write)

	read := State(AccessShaderRead, StageFragmentShader, LayoutGeneral).WithQueue(QueueFamilyIndex(0))
	thread.RecordExecutable(marker(pool, "read", ImageUsage(img, r, read)))
	states = img.GetState(0, r)
	require.Len(t, states, 1)
	assert.Equal(t, read, states[0].State.ReadOnly)

	// Neighbouring sub-ranges are left alone.
	for _, s := range img.GetState(0, img.Full()) {
		if s.Range.Mips.Begin == 0 || s.Range.Layers.Begin == 1 {
			assert.Equal(t, InitialState(LayoutUndefined, QueueFamilyIgnored), s.State)
		}
	}
}

func TestWriteThenReadBarrierCoversReader(t *testing.T) {
	thread, tcb := newTestThread(t, true)
	pool := NewExecutionNodePool()
	b := newTestBuffer("lights", 512)
	reader := State(AccessUniformRead|AccessShaderRead, StageVertexShader|StageFragmentShader, LayoutUndefined)

	thread.RecordExecutable(marker(pool, "A", BufferUsage(b, BufferRange{Begin: 64, Len: 128}, State(AccessShaderWrite, StageComputeShader, LayoutUndefined))))
	thread.RecordExecutable(marker(pool, "B", BufferUsage(b, BufferRange{Begin: 0, Len: 256}, reader)))

	calls := tcb.Calls()
	a, bIdx := labelIndex(calls, "A"), labelIndex(calls, "B")
	covered := false
	for _, i := range opIndices(calls, TracePipelineBarrier) {
		if i < a || i > bIdx {
			continue
		}
		for _, barrier := range calls[i].Barriers.Buffers {
			if barrier.Buffer == b &&
				barrier.Range.Contains(BufferRange{Begin: 64, Len: 128}) &&
				barrier.Dst.Access.Contains(reader.Access) &&
				barrier.Dst.Stage.Contains(reader.Stage) {
				covered = true
			}
		}
	}
	assert.True(t, covered)
}

func TestCopyThenDispatchEmitsOneBarrier(t *testing.T) {
	thread, tcb := newTestThread(t, true)
	staging := newTestBuffer("staging", 256)
	storage := newTestBuffer("storage", 256)

	thread.Record(NewCopyBuffer("upload", staging, storage))
	thread.Record(NewDispatch("consume", computePipeline(0), [3]uint32{4, 1, 1}, nil,
		BufferUsage(storage, BufferRange{}, State(AccessShaderRead, StageComputeShader, LayoutUndefined))))

	batches := tcb.Barriers()
	require.Len(t, batches, 1)
	require.Len(t, batches[0].Buffers, 1)
	require.Empty(t, batches[0].Images)

	barrier := batches[0].Buffers[0]
	assert.Same(t, storage, barrier.Buffer)
	assert.Equal(t, storage.Full(), barrier.Range)
	assert.Equal(t, HazardReadAfterWrite, barrier.Hazard)
	assert.Equal(t, AccessTransferWrite, barrier.Src.Access)
	assert.Equal(t, StageTransfer, barrier.Src.Stage)
	assert.Equal(t, AccessShaderRead, barrier.Dst.Access)
	assert.Equal(t, StageComputeShader, barrier.Dst.Stage)
	assert.Equal(t, StageTransfer, batches[0].SrcStages)
	assert.Equal(t, StageComputeShader, batches[0].DstStages)

	calls := tcb.Calls()
	copyAt := opIndices(calls, TraceCopyBuffer)[0]
	barrierAt := opIndices(calls, TracePipelineBarrier)[0]
	dispatchAt := opIndices(calls, TraceDispatch)[0]
	assert.Less(t, copyAt, barrierAt)
	assert.Less(t, barrierAt, dispatchAt)
}

func TestAdjacentBufferBarriersMerge(t *testing.T) {
	for _, merge := range []bool{true, false} {
		thread, tcb := newTestThread(t, merge)
		pool := NewExecutionNodePool()
		b := newTestBuffer("instances", 100)
		write := State(AccessShaderWrite, StageComputeShader, LayoutUndefined)

		thread.RecordExecutable(marker(pool, "write", BufferUsage(b, BufferRange{}, write)))
		// The first half is read by the fragment stage, splitting the slot.
		thread.RecordExecutable(marker(pool, "fragment", BufferUsage(b, BufferRange{Begin: 0, Len: 50}, State(AccessShaderRead, StageFragmentShader, LayoutUndefined))))
		tcb.Clear()

		thread.RecordExecutable(marker(pool, "vertex", BufferUsage(b, BufferRange{}, State(AccessShaderRead, StageVertexShader, LayoutUndefined))))
		batches := tcb.Barriers()
		require.Len(t, batches, 1)
		if merge {
			require.Len(t, batches[0].Buffers, 1)
			assert.Equal(t, b.Full(), batches[0].Buffers[0].Range)
		} else {
			require.Len(t, batches[0].Buffers, 2)
			assert.Equal(t, BufferRange{Begin: 0, Len: 50}, batches[0].Buffers[0].Range)
			assert.Equal(t, BufferRange{Begin: 50, Len: 50}, batches[0].Buffers[1].Range)
		}
	}
}

func TestImageBarriersMergeAcrossMips(t *testing.T) {
	for _, merge := range []bool{true, false} {
		thread, tcb := newTestThread(t, merge)
		img := newTestImage("environment", 4, 6)

		thread.Record(NewClearColorImage("clear", img, ImageRange{}, ClearColor(0, 0, 0, 0)))
		batches := tcb.Barriers()
		require.Len(t, batches, 1)
		if merge {
			require.Len(t, batches[0].Images, 1)
			b := batches[0].Images[0]
			assert.Equal(t, img.Full(), b.Range)
			assert.Equal(t, LayoutUndefined, b.Src.Layout)
			assert.Equal(t, LayoutTransferDstOptimal, b.Dst.Layout)
			assert.Equal(t, HazardLayoutTransition, b.Hazard)
		} else {
			require.Len(t, batches[0].Images, 4)
			for mip, b := range batches[0].Images {
				assert.Equal(t, Range[uint32]{Begin: uint32(mip), Len: 1}, b.Range.Mips)
				assert.Equal(t, Range[uint32]{Len: 6}, b.Range.Layers)
			}
		}
		assert.EqualValues(t, len(batches[0].Images), thread.Context().Metrics().LayoutTransitions.Load())
	}
}

func TestQueueOwnershipTransfer(t *testing.T) {
	thread, tcb := newTestThread(t, true)
	pool := NewExecutionNodePool()
	b := newTestBuffer("readback", 64)

	compute := State(AccessShaderWrite, StageComputeShader, LayoutUndefined).WithQueue(QueueFamilyIndex(1))
	thread.RecordExecutable(marker(pool, "produce", BufferUsage(b, BufferRange{}, compute)))
	thread.RecordExecutable(marker(pool, "consume",
		BufferUsage(b, BufferRange{}, State(AccessTransferRead, StageTransfer, LayoutUndefined)).WithQueue(QueueFamilyIndex(0))))

	batches := tcb.Barriers()
	require.Len(t, batches, 1)
	barrier := batches[0].Buffers[0]
	assert.Equal(t, HazardQueueTransfer, barrier.Hazard)
	src, _ := barrier.Src.Queue.Index()
	dst, _ := barrier.Dst.Queue.Index()
	assert.Equal(t, uint32(1), src)
	assert.Equal(t, uint32(0), dst)
}

func TestResolverKeepsResourcesAlive(t *testing.T) {
	thread, _ := newTestThread(t, true)
	pool := NewExecutionNodePool()
	b := newTestBuffer("constants", 64)

	thread.RecordExecutable(marker(pool, "use", BufferUsage(b, BufferRange{}, State(AccessUniformRead, StageVertexShader, LayoutUndefined))))
	keepAlive, callbacks := thread.Context().takeCompletion()
	assert.Contains(t, keepAlive, Resource(b))
	assert.Len(t, callbacks, 1)
}

func TestResolverLeavesUndeclaredImageCornerAlone(t *testing.T) {
	thread, _ := newTestThread(t, true)
	pool := NewExecutionNodePool()
	img := newTestImage("mips", 2, 2)
	general := State(AccessShaderWrite, StageComputeShader, LayoutGeneral)

	thread.RecordExecutable(marker(pool, "write",
		ImageUsage(img, ImageRange{Mips: MakeRange[uint32](0, 2), Layers: MakeRange[uint32](0, 1)}, general),
		ImageUsage(img, ImageRange{Mips: MakeRange[uint32](0, 1), Layers: MakeRange[uint32](0, 2)}, general),
	))

	corner := ImageRange{Mips: MakeRange[uint32](1, 2), Layers: MakeRange[uint32](1, 2)}
	states := img.GetState(0, corner)
	require.Len(t, states, 1)
	assert.Equal(t, InitialState(LayoutUndefined, QueueFamilyIgnored), states[0].State)

	for _, r := range []ImageRange{
		{Mips: MakeRange[uint32](0, 1), Layers: MakeRange[uint32](0, 1)},
		{Mips: MakeRange[uint32](1, 2), Layers: MakeRange[uint32](0, 1)},
		{Mips: MakeRange[uint32](0, 1), Layers: MakeRange[uint32](1, 2)},
	} {
		states := img.GetState(0, r)
		require.Len(t, states, 1)
		assert.Equal(t, LayoutGeneral, states[0].State.Layout(), "%s", r)
		assert.Equal(t, AccessShaderWrite, states[0].State.Write.Access, "%s", r)
	}
}

func TestUploadReadsOnlyItsTexels(t *testing.T) {
	thread, tcb := newTestThread(t, true)
	staging := newTestBuffer("staging", 4096)
	img := newTestImage("albedo", 1, 1) // 64x64, 4 bytes per texel
	small := NewImage(ImageInfo{Name: "small", Handle: "small", Width: 8, Height: 8, TexelSize: 2})

	upload := NewCopyBufferToImage("upload", staging, small, BufferImageCopy{BufferOffset: 1024, Range: small.Full()})
	node := upload.ExecutionNode(NewRecordContext())
	assert.Equal(t, BufferRange{Begin: 1024, Len: 128}, node.Resources().Usages()[0].BufferRange)
	node.Finish()

	region := NewCopyBufferToImage("region", staging, img, BufferImageCopy{Range: img.Full(), Extent: [3]uint32{16, 8, 1}})
	node = region.ExecutionNode(NewRecordContext())
	assert.Equal(t, BufferRange{Begin: 0, Len: 512}, node.Resources().Usages()[0].BufferRange)
	node.Finish()

	thread.Record(upload)
	before := tcb.Count(TracePipelineBarrier)
	// Writing the staging tail does not wait on the upload.
	thread.Record(NewFillBuffer("tail", staging, BufferRange{Begin: 2048}, 0))
	assert.Equal(t, before, tcb.Count(TracePipelineBarrier))
}
