package execution

import (
	"slices"

	"github.com/spaghettifunk/anima-exec/engine/core"
)

var (
	transferRead  = State(AccessTransferRead, StageTransfer, LayoutUndefined)
	transferWrite = State(AccessTransferWrite, StageTransfer, LayoutUndefined)
)

func transferDst() ResourceState {
	return State(AccessTransferWrite, StageTransfer, LayoutTransferDstOptimal)
}

// CopyBuffer copies regions of Src into Dst. No region copies as much as both hold.
type CopyBuffer struct {
	commandBase
	Src     *Buffer
	Dst     *Buffer
	Regions []BufferCopy
}

func NewCopyBuffer(name string, src, dst *Buffer, regions ...BufferCopy) *CopyBuffer {
	return &CopyBuffer{
		commandBase: newCommandBase(name, CommandKindTransfer),
		Src:         src,
		Dst:         dst,
		Regions:     regions,
	}
}

func (c *CopyBuffer) ExecutionNode(*RecordContext) *ExecutionNode {
	regions := slices.Clone(c.Regions)
	if len(regions) == 0 {
		regions = []BufferCopy{{Size: min(c.Src.Size(), c.Dst.Size())}}
	}
	n := c.node()
	for _, r := range regions {
		n.Resources().Add(
			BufferUsage(c.Src, BufferRange{Begin: r.SrcOffset, Len: r.Size}, transferRead),
			BufferUsage(c.Dst, BufferRange{Begin: r.DstOffset, Len: r.Size}, transferWrite),
		)
	}
	src, dst := c.Src, c.Dst
	n.SetExecute(func(ctx *ExecutionContext) {
		ctx.Native().CopyBuffer(src, dst, regions)
	})
	return n
}

// FillBuffer writes Value, a 32 bit word, over Range of Dst.
type FillBuffer struct {
	commandBase
	Dst   *Buffer
	Range BufferRange
	Value uint32
}

func NewFillBuffer(name string, dst *Buffer, r BufferRange, value uint32) *FillBuffer {
	return &FillBuffer{
		commandBase: newCommandBase(name, CommandKindTransfer),
		Dst:         dst,
		Range:       r,
		Value:       value,
	}
}

func (c *FillBuffer) ExecutionNode(*RecordContext) *ExecutionNode {
	n := c.node()
	r := c.Dst.Resolve(c.Range)
	n.Resources().Add(BufferUsage(c.Dst, r, transferWrite))
	dst, value := c.Dst, c.Value
	n.SetExecute(func(ctx *ExecutionContext) {
		ctx.Native().FillBuffer(dst, r, value)
	})
	return n
}

// CopyBufferToImage uploads texels from Src into mip levels of Dst.
type CopyBufferToImage struct {
	commandBase
	Src     *Buffer
	Dst     *Image
	Regions []BufferImageCopy
}

func NewCopyBufferToImage(name string, src *Buffer, dst *Image, regions ...BufferImageCopy) *CopyBufferToImage {
	return &CopyBufferToImage{
		commandBase: newCommandBase(name, CommandKindTransfer),
		Src:         src,
		Dst:         dst,
		Regions:     regions,
	}
}

func (c *CopyBufferToImage) ExecutionNode(*RecordContext) *ExecutionNode {
	core.Assert(len(c.Regions) > 0, "%s copies no region", c.name)
	regions := slices.Clone(c.Regions)
	n := c.node()
	for _, r := range regions {
		n.Resources().Add(
			BufferUsage(c.Src, BufferRange{Begin: r.BufferOffset, Len: copySize(c.Dst, r)}, transferRead),
			ImageUsage(c.Dst, r.Range, transferDst()),
		)
	}
	src, dst := c.Src, c.Dst
	n.SetExecute(func(ctx *ExecutionContext) {
		ctx.Native().CopyBufferToImage(src, dst, LayoutTransferDstOptimal, regions)
	})
	return n
}

// copySize is the number of tightly packed bytes r reads from the buffer.
// A zero extent covers the whole mip level.
func copySize(img *Image, r BufferImageCopy) uint64 {
	rng := img.Resolve(r.Range)
	var size uint64
	for m := rng.Mips.Begin; m < rng.Mips.End(); m++ {
		w, h, d := r.Extent[0], r.Extent[1], max(r.Extent[2], 1)
		if w == 0 || h == 0 {
			w, h = max(img.width>>m, 1), max(img.height>>m, 1)
		}
		size += uint64(w) * uint64(h) * uint64(d) * uint64(rng.Layers.Len) * uint64(img.texelSize)
	}
	return size
}

// ClearColorImage clears Range of Image to Color.
type ClearColorImage struct {
	commandBase
	Image *Image
	Range ImageRange
	Color ClearValue
}

func NewClearColorImage(name string, img *Image, r ImageRange, color ClearValue) *ClearColorImage {
	return &ClearColorImage{
		commandBase: newCommandBase(name, CommandKindTransfer),
		Image:       img,
		Range:       r,
		Color:       color,
	}
}

func (c *ClearColorImage) ExecutionNode(*RecordContext) *ExecutionNode {
	n := c.node()
	r := c.Image.Resolve(c.Range)
	n.Resources().Add(ImageUsage(c.Image, r, transferDst()))
	img, color := c.Image, c.Color
	n.SetExecute(func(ctx *ExecutionContext) {
		ctx.Native().ClearColorImage(img, LayoutTransferDstOptimal, color, r)
	})
	return n
}

// SetBinding binds Set at Index before a shader command runs.
type SetBinding struct {
	Index uint32
	Set   *DescriptorSet
}

// shaderCommand is the part dispatches and draws share: a pipeline, the sets
// it binds and the resources it touches besides those of its bound sets.
type shaderCommand struct {
	commandBase
	Pipeline  *Pipeline
	Sets      []SetBinding
	Resources []Usage
}

// bind declares the resources of every set the pipeline layout sees and
// returns the binds that are not already in place.
func (c *shaderCommand) bind(rc *RecordContext, n *ExecutionNode) []SetBinding {
	bound := rc.BoundSets(c.Pipeline.Kind)
	var binds []SetBinding
	for _, b := range c.Sets {
		if bound.IsBound(b.Index, b.Set) {
			continue
		}
		bound.Bind(b.Index, b.Set)
		binds = append(binds, b)
	}
	if c.Pipeline.Layout != nil {
		bound.DeclareResources(c.Pipeline.Layout.SetCount, n.Resources())
	}
	n.Resources().Add(c.Resources...)
	return binds
}

func (c *shaderCommand) prepare(ctx *ExecutionContext, binds []SetBinding) {
	sets := ctx.BoundSets(c.Pipeline.Kind)
	for _, b := range binds {
		sets.Bind(b.Index, b.Set)
	}
	ctx.KeepAlive(c.Pipeline)
	ctx.Native().BindPipeline(c.Pipeline)
	ctx.RecordBindings(c.Pipeline)
}

// Dispatch runs a compute pipeline over Groups work groups.
type Dispatch struct {
	shaderCommand
	Groups [3]uint32
}

func NewDispatch(name string, pipeline *Pipeline, groups [3]uint32, sets []SetBinding, resources ...Usage) *Dispatch {
	core.Assert(pipeline.Kind == PipelineCompute, "%s needs a compute pipeline", name)
	return &Dispatch{
		shaderCommand: shaderCommand{
			commandBase: newCommandBase(name, CommandKindDispatch),
			Pipeline:    pipeline,
			Sets:        sets,
			Resources:   resources,
		},
		Groups: groups,
	}
}

func (c *Dispatch) ExecutionNode(rc *RecordContext) *ExecutionNode {
	n := c.node()
	binds := c.bind(rc, n)
	groups := c.Groups
	n.SetExecute(func(ctx *ExecutionContext) {
		c.prepare(ctx, binds)
		ctx.Native().Dispatch(groups[0], groups[1], groups[2])
	})
	return n
}

// Draw issues a non-indexed draw. It must be recorded inside a render pass.
type Draw struct {
	shaderCommand
	VertexCount   uint32
	InstanceCount uint32
	FirstVertex   uint32
	FirstInstance uint32
}

func NewDraw(name string, pipeline *Pipeline, vertices, instances uint32, sets []SetBinding, resources ...Usage) *Draw {
	core.Assert(pipeline.Kind == PipelineGraphics, "%s needs a graphics pipeline", name)
	return &Draw{
		shaderCommand: shaderCommand{
			commandBase: newCommandBase(name, CommandKindDraw),
			Pipeline:    pipeline,
			Sets:        sets,
			Resources:   resources,
		},
		VertexCount:   vertices,
		InstanceCount: max(instances, 1),
	}
}

func (c *Draw) ExecutionNode(rc *RecordContext) *ExecutionNode {
	core.Assert(rc.RenderPass() != nil, "%s recorded outside of a render pass", c.name)
	n := c.node()
	binds := c.bind(rc, n)
	vertices, instances, firstVertex, firstInstance := c.VertexCount, c.InstanceCount, c.FirstVertex, c.FirstInstance
	n.SetExecute(func(ctx *ExecutionContext) {
		c.prepare(ctx, binds)
		ctx.Native().Draw(vertices, instances, firstVertex, firstInstance)
	})
	return n
}
