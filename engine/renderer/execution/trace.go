package execution

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/anima-exec/engine/core"
)

// TraceOp is a native call recorded by a TraceCommandBuffer.
type TraceOp int

const (
	TraceBegin TraceOp = iota
	TraceEnd
	TraceReset
	TracePipelineBarrier
	TraceBeginRenderPass
	TraceNextSubpass
	TraceEndRenderPass
	TraceBeginRendering
	TraceEndRendering
	TraceBindPipeline
	TraceBindDescriptorSets
	TraceCopyBuffer
	TraceFillBuffer
	TraceCopyBufferToImage
	TraceClearColorImage
	TraceDispatch
	TraceDraw
	TraceBeginDebugLabel
	TraceEndDebugLabel
	TraceInsertDebugLabel
)

var traceOpNames = [...]string{
	"begin", "end", "reset", "pipeline_barrier",
	"begin_render_pass", "next_subpass", "end_render_pass",
	"begin_rendering", "end_rendering",
	"bind_pipeline", "bind_descriptor_sets",
	"copy_buffer", "fill_buffer", "copy_buffer_to_image", "clear_color_image",
	"dispatch", "draw",
	"begin_debug_label", "end_debug_label", "insert_debug_label",
}

func (op TraceOp) String() string {
	if int(op) < len(traceOpNames) {
		return traceOpNames[op]
	}
	return "unknown"
}

// TraceCall is one recorded native call. Only the fields of its op are set.
type TraceCall struct {
	Op         TraceOp
	Name       string
	Barriers   *BarrierBatch
	RenderPass *RenderPassBeginInfo
	Rendering  *RenderingInfo
	Pipeline   *Pipeline
	Kind       PipelineKind
	FirstSet   uint32
	Sets       []*DescriptorSet
	Args       [4]uint32
}

func (c TraceCall) String() string {
	switch c.Op {
	case TracePipelineBarrier:
		return fmt.Sprintf("%s(buffers=%d images=%d)", c.Op, len(c.Barriers.Buffers), len(c.Barriers.Images))
	case TraceBeginDebugLabel, TraceInsertDebugLabel:
		return fmt.Sprintf("%s(%s)", c.Op, c.Name)
	default:
		return c.Op.String()
	}
}

// TraceCommandBuffer is a NativeCommandBuffer recording calls instead of
// talking to a GPU.
type TraceCommandBuffer struct {
	Name string

	mu    sync.Mutex
	calls []TraceCall
}

func NewTraceCommandBuffer(name string) *TraceCommandBuffer {
	return &TraceCommandBuffer{Name: name}
}

func (t *TraceCommandBuffer) record(call TraceCall) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, call)
}

// Calls returns a copy of the trace.
func (t *TraceCommandBuffer) Calls() []TraceCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.calls)
}

func (t *TraceCommandBuffer) Ops() []TraceOp {
	calls := t.Calls()
	ops := make([]TraceOp, len(calls))
	for i, c := range calls {
		ops[i] = c.Op
	}
	return ops
}

func (t *TraceCommandBuffer) Count(op TraceOp) int {
	n := 0
	for _, c := range t.Calls() {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Index is the position of the first call of op, -1 when absent.
func (t *TraceCommandBuffer) Index(op TraceOp) int {
	return slices.IndexFunc(t.Calls(), func(c TraceCall) bool { return c.Op == op })
}

// Barriers returns every recorded barrier batch in order.
func (t *TraceCommandBuffer) Barriers() []*BarrierBatch {
	var out []*BarrierBatch
	for _, c := range t.Calls() {
		if c.Op == TracePipelineBarrier {
			out = append(out, c.Barriers)
		}
	}
	return out
}

func (t *TraceCommandBuffer) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = t.calls[:0]
}

func (t *TraceCommandBuffer) Begin() error {
	t.record(TraceCall{Op: TraceBegin})
	return nil
}

func (t *TraceCommandBuffer) End() error {
	t.record(TraceCall{Op: TraceEnd})
	return nil
}

// Reset drops the recorded calls, like resetting a native command buffer.
func (t *TraceCommandBuffer) Reset() error {
	t.Clear()
	return nil
}

func (t *TraceCommandBuffer) PipelineBarrier(batch *BarrierBatch) {
	b := &BarrierBatch{
		SrcStages: batch.SrcStages,
		DstStages: batch.DstStages,
		Buffers:   slices.Clone(batch.Buffers),
		Images:    slices.Clone(batch.Images),
	}
	t.record(TraceCall{Op: TracePipelineBarrier, Barriers: b})
}

func (t *TraceCommandBuffer) BeginRenderPass(info *RenderPassBeginInfo, contents SubpassContents) {
	stored := *info
	stored.ClearValues = slices.Clone(info.ClearValues)
	t.record(TraceCall{Op: TraceBeginRenderPass, RenderPass: &stored, Args: [4]uint32{uint32(contents)}})
}

func (t *TraceCommandBuffer) NextSubpass(contents SubpassContents) {
	t.record(TraceCall{Op: TraceNextSubpass, Args: [4]uint32{uint32(contents)}})
}

func (t *TraceCommandBuffer) EndRenderPass() {
	t.record(TraceCall{Op: TraceEndRenderPass})
}

func (t *TraceCommandBuffer) BeginRendering(info *RenderingInfo) {
	t.record(TraceCall{Op: TraceBeginRendering, Rendering: info})
}

func (t *TraceCommandBuffer) EndRendering() {
	t.record(TraceCall{Op: TraceEndRendering})
}

func (t *TraceCommandBuffer) BindPipeline(pipeline *Pipeline) {
	t.record(TraceCall{Op: TraceBindPipeline, Pipeline: pipeline, Name: pipeline.Name})
}

func (t *TraceCommandBuffer) BindDescriptorSets(kind PipelineKind, layout *PipelineLayout, first uint32, sets []*DescriptorSet) {
	t.record(TraceCall{Op: TraceBindDescriptorSets, Kind: kind, FirstSet: first, Sets: slices.Clone(sets)})
}

func (t *TraceCommandBuffer) CopyBuffer(src, dst *Buffer, regions []BufferCopy) {
	t.record(TraceCall{Op: TraceCopyBuffer, Name: dst.Name(), Args: [4]uint32{uint32(len(regions))}})
}

func (t *TraceCommandBuffer) FillBuffer(dst *Buffer, r BufferRange, value uint32) {
	t.record(TraceCall{Op: TraceFillBuffer, Name: dst.Name(), Args: [4]uint32{value}})
}

func (t *TraceCommandBuffer) CopyBufferToImage(src *Buffer, dst *Image, layout Layout, regions []BufferImageCopy) {
	t.record(TraceCall{Op: TraceCopyBufferToImage, Name: dst.Name(), Args: [4]uint32{uint32(len(regions)), uint32(layout)}})
}

func (t *TraceCommandBuffer) ClearColorImage(img *Image, layout Layout, color ClearValue, r ImageRange) {
	t.record(TraceCall{Op: TraceClearColorImage, Name: img.Name(), Args: [4]uint32{uint32(layout)}})
}

func (t *TraceCommandBuffer) Dispatch(x, y, z uint32) {
	t.record(TraceCall{Op: TraceDispatch, Args: [4]uint32{x, y, z}})
}

func (t *TraceCommandBuffer) Draw(vertices, instances, firstVertex, firstInstance uint32) {
	t.record(TraceCall{Op: TraceDraw, Args: [4]uint32{vertices, instances, firstVertex, firstInstance}})
}

func (t *TraceCommandBuffer) BeginDebugLabel(name string, color DebugColor) {
	t.record(TraceCall{Op: TraceBeginDebugLabel, Name: name})
}

func (t *TraceCommandBuffer) EndDebugLabel() {
	t.record(TraceCall{Op: TraceEndDebugLabel})
}

func (t *TraceCommandBuffer) InsertDebugLabel(name string, color DebugColor) {
	t.record(TraceCall{Op: TraceInsertDebugLabel, Name: name})
}

// TraceFence is signaled by its TraceQueue instead of a GPU.
type TraceFence struct {
	Name     string
	signaled atomic.Bool
}

func NewTraceFence(name string) *TraceFence {
	return &TraceFence{Name: name}
}

func (f *TraceFence) Signal() {
	f.signaled.Store(true)
}

func (f *TraceFence) Signaled() (bool, error) {
	return f.signaled.Load(), nil
}

func (f *TraceFence) Wait(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Microsecond)
	defer ticker.Stop()
	for !f.signaled.Load() {
		select {
		case <-ctx.Done():
			return fmt.Errorf("fence %q: %w: %w", f.Name, core.ErrFenceTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
	return nil
}

func (f *TraceFence) Reset() error {
	f.signaled.Store(false)
	return nil
}

// TraceQueue accepts submissions. With AutoComplete set it signals their
// fences right away, otherwise Complete does.
type TraceQueue struct {
	AutoComplete bool
	family       QueueFamily

	mu        sync.Mutex
	pending   []*TraceFence
	submitted []*TraceCommandBuffer
}

func NewTraceQueue(family QueueFamily, autoComplete bool) *TraceQueue {
	return &TraceQueue{family: family, AutoComplete: autoComplete}
}

func (q *TraceQueue) Family() QueueFamily {
	return q.family
}

func (q *TraceQueue) Submit(cb NativeCommandBuffer, fence NativeFence) error {
	tcb, ok := cb.(*TraceCommandBuffer)
	if !ok {
		return fmt.Errorf("trace queue cannot submit %T: %w", cb, core.ErrNativeCall)
	}
	tf, ok := fence.(*TraceFence)
	if !ok {
		return fmt.Errorf("trace queue cannot signal %T: %w", fence, core.ErrNativeCall)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.submitted = append(q.submitted, tcb)
	if q.AutoComplete {
		tf.Signal()
		return nil
	}
	q.pending = append(q.pending, tf)
	return nil
}

// Complete signals the fences of the n oldest pending submissions; n < 0 signals all.
func (q *TraceQueue) Complete(n int) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n < 0 || n > len(q.pending) {
		n = len(q.pending)
	}
	for _, f := range q.pending[:n] {
		f.Signal()
	}
	q.pending = q.pending[n:]
	return n
}

// Submitted returns the command buffers submitted so far, in order.
func (q *TraceQueue) Submitted() []*TraceCommandBuffer {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.submitted)
}

// TraceDevice creates trace command buffers and fences.
type TraceDevice struct {
	mu      sync.Mutex
	buffers []*TraceCommandBuffer
	fences  int
}

func NewTraceDevice() *TraceDevice {
	return &TraceDevice{}
}

func (d *TraceDevice) NewCommandBuffer(name string) (NativeCommandBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cb := NewTraceCommandBuffer(name)
	d.buffers = append(d.buffers, cb)
	return cb, nil
}

func (d *TraceDevice) NewFence(name string) (NativeFence, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fences++
	return NewTraceFence(name), nil
}

// CommandBuffers returns every command buffer the device created.
func (d *TraceDevice) CommandBuffers() []*TraceCommandBuffer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.buffers)
}

func (d *TraceDevice) Fences() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fences
}
