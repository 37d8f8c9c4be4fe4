package execution

import "context"

// BufferBarrier orders every access to Range made in Src before the accesses in Dst.
type BufferBarrier struct {
	Buffer *Buffer
	Range  BufferRange
	Src    ResourceState
	Dst    ResourceState
	Hazard Hazard
}

// ImageBarrier orders accesses to Range and moves it from Src.Layout to Dst.Layout.
type ImageBarrier struct {
	Image  *Image
	Range  ImageRange
	Src    ResourceState
	Dst    ResourceState
	Hazard Hazard
}

func (b ImageBarrier) IsTransition() bool {
	return b.Src.Layout != b.Dst.Layout
}

// BarrierBatch is everything recorded by one native pipeline barrier call.
type BarrierBatch struct {
	SrcStages Stage
	DstStages Stage
	Buffers   []BufferBarrier
	Images    []ImageBarrier
}

func (b *BarrierBatch) Len() int {
	return len(b.Buffers) + len(b.Images)
}

func (b *BarrierBatch) reset() {
	b.SrcStages, b.DstStages = StageNone, StageNone
	clear(b.Buffers)
	clear(b.Images)
	b.Buffers = b.Buffers[:0]
	b.Images = b.Images[:0]
}

type Rect2D struct {
	X, Y          int32
	Width, Height uint32
}

// ClearValue clears a color attachment, or a depth/stencil one when IsDepth is set.
type ClearValue struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
	IsDepth bool
}

func ClearColor(r, g, b, a float32) ClearValue {
	return ClearValue{Color: [4]float32{r, g, b, a}}
}

func ClearDepthStencil(depth float32, stencil uint32) ClearValue {
	return ClearValue{Depth: depth, Stencil: stencil, IsDepth: true}
}

// DebugColor is an RGBA label color.
type DebugColor [4]float32

var DefaultLabelColor = DebugColor{0.5, 0.5, 0.5, 1}

type BufferCopy struct {
	SrcOffset uint64
	DstOffset uint64
	Size      uint64
}

// BufferImageCopy copies tightly packed texels into one mip level of Range.
type BufferImageCopy struct {
	BufferOffset uint64
	Range        ImageRange
	Offset       [3]int32
	Extent       [3]uint32
}

type SubpassContents int

const (
	SubpassContentsInline SubpassContents = iota
	SubpassContentsSecondary
)

// RenderingAttachment is an attachment of a dynamic rendering scope.
// A nil Clear loads the previous contents.
type RenderingAttachment struct {
	View   *ImageView
	Layout Layout
	Clear  *ClearValue
}

// RenderingInfo describes a dynamic rendering scope.
type RenderingInfo struct {
	Area   Rect2D
	Layers uint32
	Colors []RenderingAttachment
	Depth  *RenderingAttachment
}

// NativeCommandBuffer is the backend command buffer the core records into.
type NativeCommandBuffer interface {
	Begin() error
	End() error
	Reset() error

	PipelineBarrier(batch *BarrierBatch)

	BeginRenderPass(info *RenderPassBeginInfo, contents SubpassContents)
	NextSubpass(contents SubpassContents)
	EndRenderPass()
	BeginRendering(info *RenderingInfo)
	EndRendering()

	BindPipeline(pipeline *Pipeline)
	BindDescriptorSets(kind PipelineKind, layout *PipelineLayout, first uint32, sets []*DescriptorSet)

	CopyBuffer(src, dst *Buffer, regions []BufferCopy)
	FillBuffer(dst *Buffer, r BufferRange, value uint32)
	CopyBufferToImage(src *Buffer, dst *Image, layout Layout, regions []BufferImageCopy)
	ClearColorImage(img *Image, layout Layout, color ClearValue, r ImageRange)
	Dispatch(x, y, z uint32)
	Draw(vertices, instances, firstVertex, firstInstance uint32)

	BeginDebugLabel(name string, color DebugColor)
	EndDebugLabel()
	InsertDebugLabel(name string, color DebugColor)
}

// NativeFence is signaled by the GPU when a submission completes.
type NativeFence interface {
	Signaled() (bool, error)
	Wait(ctx context.Context) error
	Reset() error
}

type NativeQueue interface {
	Family() QueueFamily
	Submit(cb NativeCommandBuffer, fence NativeFence) error
}

// NativeDevice creates the native objects an executor needs.
type NativeDevice interface {
	NewCommandBuffer(name string) (NativeCommandBuffer, error)
	NewFence(name string) (NativeFence, error)
}
