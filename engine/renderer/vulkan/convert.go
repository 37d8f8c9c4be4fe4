package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-exec/engine/core"
	"github.com/spaghettifunk/anima-exec/engine/renderer/execution"
)

// The execution flag values mirror Vulkan's, so conversions are plain casts.

func accessFlags(a execution.Access) vk.AccessFlags {
	return vk.AccessFlags(a)
}

func stageFlags(s execution.Stage) vk.PipelineStageFlags {
	return vk.PipelineStageFlags(s)
}

func imageLayout(l execution.Layout) vk.ImageLayout {
	return vk.ImageLayout(l)
}

func queueIndex(q execution.QueueFamily) uint32 {
	if index, ok := q.Index(); ok {
		return index
	}
	return vk.QueueFamilyIgnored
}

// pipelineBindPointRayTracing is VK_PIPELINE_BIND_POINT_RAY_TRACING_KHR.
const pipelineBindPointRayTracing vk.PipelineBindPoint = 1000165000

func bindPoint(kind execution.PipelineKind) vk.PipelineBindPoint {
	switch kind {
	case execution.PipelineCompute:
		return vk.PipelineBindPointCompute
	case execution.PipelineRayTracing:
		return pipelineBindPointRayTracing
	default:
		return vk.PipelineBindPointGraphics
	}
}

func subpassContents(c execution.SubpassContents) vk.SubpassContents {
	if c == execution.SubpassContentsSecondary {
		return vk.SubpassContentsSecondaryCommandBuffers
	}
	return vk.SubpassContentsInline
}

func subresourceRange(r execution.ImageRange) vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask:     vk.ImageAspectFlags(r.Aspect),
		BaseMipLevel:   r.Mips.Begin,
		LevelCount:     r.Mips.Len,
		BaseArrayLayer: r.Layers.Begin,
		LayerCount:     r.Layers.Len,
	}
}

func rect2D(r execution.Rect2D) vk.Rect2D {
	return vk.Rect2D{
		Offset: vk.Offset2D{X: r.X, Y: r.Y},
		Extent: vk.Extent2D{Width: r.Width, Height: r.Height},
	}
}

func clearValue(c execution.ClearValue) vk.ClearValue {
	var v vk.ClearValue
	if c.IsDepth {
		v.SetDepthStencil(c.Depth, c.Stencil)
	} else {
		v.SetColor(c.Color[:])
	}
	return v
}

func bufferBarrier(b *execution.BufferBarrier) vk.BufferMemoryBarrier {
	return vk.BufferMemoryBarrier{
		SType:               vk.StructureTypeBufferMemoryBarrier,
		SrcAccessMask:       accessFlags(b.Src.Access),
		DstAccessMask:       accessFlags(b.Dst.Access),
		SrcQueueFamilyIndex: queueIndex(b.Src.Queue),
		DstQueueFamilyIndex: queueIndex(b.Dst.Queue),
		Buffer:              bufferHandle(b.Buffer),
		Offset:              vk.DeviceSize(b.Range.Begin),
		Size:                vk.DeviceSize(b.Range.Len),
	}
}

func imageBarrier(b *execution.ImageBarrier) vk.ImageMemoryBarrier {
	return vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       accessFlags(b.Src.Access),
		DstAccessMask:       accessFlags(b.Dst.Access),
		OldLayout:           imageLayout(b.Src.Layout),
		NewLayout:           imageLayout(b.Dst.Layout),
		SrcQueueFamilyIndex: queueIndex(b.Src.Queue),
		DstQueueFamilyIndex: queueIndex(b.Dst.Queue),
		Image:               imageHandle(b.Image),
		SubresourceRange:    subresourceRange(b.Range),
	}
}

// Handles are stored untyped by the execution layer. A handle of the wrong
// type is a programming error.

func bufferHandle(b *execution.Buffer) vk.Buffer {
	h, ok := b.Handle().(vk.Buffer)
	core.Assert(ok, "buffer %s does not hold a vulkan handle", b.Name())
	return h
}

func imageHandle(i *execution.Image) vk.Image {
	h, ok := i.Handle().(vk.Image)
	core.Assert(ok, "image %s does not hold a vulkan handle", i.Name())
	return h
}

func handleOf[T any](kind string, handle any) T {
	h, ok := handle.(T)
	core.Assert(ok, "%s does not hold a vulkan handle", kind)
	return h
}
