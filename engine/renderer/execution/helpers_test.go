package execution

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestThread(t *testing.T, merge bool) (*ExecutionThread, *TraceCommandBuffer) {
	t.Helper()
	tcb := NewTraceCommandBuffer("test")
	cb := NewCommandBuffer("test", tcb)
	require.NoError(t, cb.Begin())
	ctx := NewExecutionContext(ExecutionContextInfo{Name: "test", CommandBuffer: cb})
	thread := NewExecutionThread(ExecutionThreadInfo{Context: ctx, MergeBarriers: merge})
	return thread, tcb
}

func newTestBuffer(name string, size uint64) *Buffer {
	return NewBuffer(BufferInfo{Name: name, Handle: name, Size: size})
}

func newTestImage(name string, mips, layers uint32) *Image {
	return NewImage(ImageInfo{Name: name, Handle: name, Width: 64, Height: 64, Mips: mips, Layers: layers})
}

// marker records a node that declares usages and leaves a named label in the trace.
func marker(pool *ExecutionNodePool, name string, usages ...Usage) Executable {
	return ExecutableFunc(pool, name, func(list *UsageList) {
		list.Add(usages...)
	}, func(ctx *ExecutionContext) {
		ctx.InsertDebugLabel(name, DefaultLabelColor)
	})
}

func labelIndex(calls []TraceCall, name string) int {
	for i, c := range calls {
		if c.Op == TraceInsertDebugLabel && c.Name == name {
			return i
		}
	}
	return -1
}

func opIndices(calls []TraceCall, op TraceOp) []int {
	var out []int
	for i, c := range calls {
		if c.Op == op {
			out = append(out, i)
		}
	}
	return out
}

// requireNoBarrierInsidePass fails when a barrier is recorded inside a
// render pass or a dynamic rendering scope.
func requireNoBarrierInsidePass(t *testing.T, calls []TraceCall) {
	t.Helper()
	inside := false
	for i, c := range calls {
		switch c.Op {
		case TraceBeginRenderPass, TraceBeginRendering:
			inside = true
		case TraceEndRenderPass, TraceEndRendering:
			inside = false
		case TracePipelineBarrier:
			require.False(t, inside, "barrier recorded inside a pass at call %d", i)
		}
	}
}

func computePipeline(sets uint32) *Pipeline {
	return &Pipeline{Name: "cs", Handle: "cs", Kind: PipelineCompute, Layout: &PipelineLayout{Handle: "cs-layout", SetCount: sets}}
}

func graphicsPipeline() *Pipeline {
	return &Pipeline{Name: "gfx", Handle: "gfx", Kind: PipelineGraphics, Layout: &PipelineLayout{Handle: "gfx-layout"}}
}

func colorPass(img *Image, subpasses int, handle any) *RenderPassBeginInfo {
	rp := &RenderPass{
		Name:   "main",
		Handle: handle,
		Attachments: []AttachmentDescription{{
			InitialLayout: LayoutColorAttachmentOptimal,
			FinalLayout:   LayoutColorAttachmentOptimal,
		}},
	}
	for i := 0; i < subpasses; i++ {
		rp.Subpasses = append(rp.Subpasses, SubpassDescription{
			Colors: []AttachmentReference{{Attachment: 0, Layout: LayoutColorAttachmentOptimal}},
		})
	}
	view := &ImageView{Handle: img.Name() + "-view", Image: img, Range: img.Full()}
	return &RenderPassBeginInfo{
		RenderPass:  rp,
		Framebuffer: &Framebuffer{Handle: "fb", Views: []*ImageView{view}, Width: 64, Height: 64, Layers: 1},
		Area:        Rect2D{Width: 64, Height: 64},
		ClearValues: []ClearValue{ClearColor(0, 0, 0, 1)},
	}
}
