package vulkan

import (
	"fmt"
	"unsafe"

	"github.com/charmbracelet/log"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-exec/engine/core"
	"github.com/spaghettifunk/anima-exec/engine/renderer/execution"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

// VulkanCommandBuffer is a primary command buffer implementing
// execution.NativeCommandBuffer.
type VulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	Name   string
	// Command buffer state.
	State VulkanCommandBufferState

	context *VulkanContext
	log     *log.Logger
	labels  []string

	buffers []vk.BufferMemoryBarrier
	images  []vk.ImageMemoryBarrier
	sets    []vk.DescriptorSet
	clears  []vk.ClearValue
	copies  []vk.BufferCopy
	uploads []vk.BufferImageCopy
	ranges  []vk.ImageSubresourceRange
}

func NewVulkanCommandBuffer(context *VulkanContext, name string) (*VulkanCommandBuffer, error) {
	cb := &VulkanCommandBuffer{
		Name:    name,
		State:   COMMAND_BUFFER_STATE_NOT_ALLOCATED,
		context: context,
		log:     context.log.WithPrefix(name),
	}

	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        context.CommandPool,
		CommandBufferCount: 1,
		Level:              vk.CommandBufferLevelPrimary,
	}

	buffers := make([]vk.CommandBuffer, 1)
	err := context.Locks.SafeCall(CommandPoolManagement, func() error {
		return resultError(
			fmt.Sprintf("allocate command buffer %q", name),
			vk.AllocateCommandBuffers(context.Device, &allocateInfo, buffers))
	})
	if err != nil {
		return nil, err
	}
	cb.Handle = buffers[0]
	cb.State = COMMAND_BUFFER_STATE_READY
	return cb, nil
}

func (v *VulkanCommandBuffer) Free() {
	if v.Handle == nil {
		return
	}
	_ = v.context.Locks.SafeCall(CommandPoolManagement, func() error {
		vk.FreeCommandBuffers(v.context.Device, v.context.CommandPool, 1, []vk.CommandBuffer{v.Handle})
		return nil
	})
	v.Handle = nil
	v.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}

func (v *VulkanCommandBuffer) Begin() error {
	beginInfo := &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if err := resultError("begin command buffer", vk.BeginCommandBuffer(v.Handle, beginInfo)); err != nil {
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING
	return nil
}

func (v *VulkanCommandBuffer) End() error {
	if err := resultError("end command buffer", vk.EndCommandBuffer(v.Handle)); err != nil {
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

func (v *VulkanCommandBuffer) Reset() error {
	err := v.context.Locks.SafeCall(CommandPoolManagement, func() error {
		return resultError("reset command buffer", vk.ResetCommandBuffer(v.Handle, 0))
	})
	if err != nil {
		return err
	}
	v.labels = v.labels[:0]
	v.State = COMMAND_BUFFER_STATE_READY
	return nil
}

func (v *VulkanCommandBuffer) PipelineBarrier(batch *execution.BarrierBatch) {
	v.buffers = v.buffers[:0]
	for i := range batch.Buffers {
		v.buffers = append(v.buffers, bufferBarrier(&batch.Buffers[i]))
	}
	v.images = v.images[:0]
	for i := range batch.Images {
		v.images = append(v.images, imageBarrier(&batch.Images[i]))
	}

	vk.CmdPipelineBarrier(v.Handle,
		stageFlags(batch.SrcStages),
		stageFlags(batch.DstStages),
		0, 0, nil,
		uint32(len(v.buffers)), v.buffers,
		uint32(len(v.images)), v.images)
}

func (v *VulkanCommandBuffer) BeginRenderPass(info *execution.RenderPassBeginInfo, contents execution.SubpassContents) {
	v.clears = v.clears[:0]
	for _, c := range info.ClearValues {
		v.clears = append(v.clears, clearValue(c))
	}

	beginInfo := vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      handleOf[vk.RenderPass]("render pass "+info.RenderPass.Name, info.RenderPass.Handle),
		Framebuffer:     handleOf[vk.Framebuffer]("framebuffer", info.Framebuffer.Handle),
		RenderArea:      rect2D(info.Area),
		ClearValueCount: uint32(len(v.clears)),
		PClearValues:    v.clears,
	}
	vk.CmdBeginRenderPass(v.Handle, &beginInfo, subpassContents(contents))
	v.State = COMMAND_BUFFER_STATE_IN_RENDER_PASS
}

func (v *VulkanCommandBuffer) NextSubpass(contents execution.SubpassContents) {
	vk.CmdNextSubpass(v.Handle, subpassContents(contents))
}

func (v *VulkanCommandBuffer) EndRenderPass() {
	vk.CmdEndRenderPass(v.Handle)
	v.State = COMMAND_BUFFER_STATE_RECORDING
}

// BeginRendering needs VK_KHR_dynamic_rendering, which the bindings do not
// expose. Passes without a native handle cannot be recorded on this backend.
func (v *VulkanCommandBuffer) BeginRendering(info *execution.RenderingInfo) {
	core.Assert(false, "%s: dynamic rendering is not supported by the vulkan backend", v.Name)
}

func (v *VulkanCommandBuffer) EndRendering() {
	core.Assert(false, "%s: dynamic rendering is not supported by the vulkan backend", v.Name)
}

func (v *VulkanCommandBuffer) BindPipeline(pipeline *execution.Pipeline) {
	vk.CmdBindPipeline(v.Handle, bindPoint(pipeline.Kind), handleOf[vk.Pipeline]("pipeline "+pipeline.Name, pipeline.Handle))
}

func (v *VulkanCommandBuffer) BindDescriptorSets(kind execution.PipelineKind, layout *execution.PipelineLayout, first uint32, sets []*execution.DescriptorSet) {
	v.sets = v.sets[:0]
	for _, s := range sets {
		v.sets = append(v.sets, handleOf[vk.DescriptorSet]("descriptor set "+s.Name, s.Handle))
	}
	vk.CmdBindDescriptorSets(v.Handle, bindPoint(kind),
		handleOf[vk.PipelineLayout]("pipeline layout", layout.Handle),
		first, uint32(len(v.sets)), v.sets, 0, nil)
}

func (v *VulkanCommandBuffer) CopyBuffer(src, dst *execution.Buffer, regions []execution.BufferCopy) {
	v.copies = v.copies[:0]
	for _, r := range regions {
		v.copies = append(v.copies, vk.BufferCopy{
			SrcOffset: vk.DeviceSize(r.SrcOffset),
			DstOffset: vk.DeviceSize(r.DstOffset),
			Size:      vk.DeviceSize(r.Size),
		})
	}
	vk.CmdCopyBuffer(v.Handle, bufferHandle(src), bufferHandle(dst), uint32(len(v.copies)), v.copies)
}

func (v *VulkanCommandBuffer) FillBuffer(dst *execution.Buffer, r execution.BufferRange, value uint32) {
	r = dst.Resolve(r)
	vk.CmdFillBuffer(v.Handle, bufferHandle(dst), vk.DeviceSize(r.Begin), vk.DeviceSize(r.Len), value)
}

func (v *VulkanCommandBuffer) CopyBufferToImage(src *execution.Buffer, dst *execution.Image, layout execution.Layout, regions []execution.BufferImageCopy) {
	v.uploads = v.uploads[:0]
	for _, r := range regions {
		v.uploads = append(v.uploads, vk.BufferImageCopy{
			BufferOffset: vk.DeviceSize(r.BufferOffset),
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask:     vk.ImageAspectFlags(r.Range.Aspect),
				MipLevel:       r.Range.Mips.Begin,
				BaseArrayLayer: r.Range.Layers.Begin,
				LayerCount:     r.Range.Layers.Len,
			},
			ImageOffset: vk.Offset3D{X: r.Offset[0], Y: r.Offset[1], Z: r.Offset[2]},
			ImageExtent: vk.Extent3D{Width: r.Extent[0], Height: r.Extent[1], Depth: r.Extent[2]},
		})
	}
	vk.CmdCopyBufferToImage(v.Handle, bufferHandle(src), imageHandle(dst), imageLayout(layout), uint32(len(v.uploads)), v.uploads)
}

func (v *VulkanCommandBuffer) ClearColorImage(img *execution.Image, layout execution.Layout, color execution.ClearValue, r execution.ImageRange) {
	value := clearValue(color)
	v.ranges = append(v.ranges[:0], subresourceRange(img.Resolve(r)))
	// The color member is the first of the clear value union.
	vk.CmdClearColorImage(v.Handle, imageHandle(img), imageLayout(layout),
		(*vk.ClearColorValue)(unsafe.Pointer(&value)), 1, v.ranges)
}

func (v *VulkanCommandBuffer) Dispatch(x, y, z uint32) {
	vk.CmdDispatch(v.Handle, x, y, z)
}

func (v *VulkanCommandBuffer) Draw(vertices, instances, firstVertex, firstInstance uint32) {
	vk.CmdDraw(v.Handle, vertices, instances, firstVertex, firstInstance)
}

// Debug labels go to the log; the bindings carry no debug utils entry points.

func (v *VulkanCommandBuffer) BeginDebugLabel(name string, color execution.DebugColor) {
	v.labels = append(v.labels, name)
	v.log.Debug("begin label", "name", name, "depth", len(v.labels))
}

func (v *VulkanCommandBuffer) EndDebugLabel() {
	if len(v.labels) == 0 {
		return
	}
	name := v.labels[len(v.labels)-1]
	v.labels = v.labels[:len(v.labels)-1]
	v.log.Debug("end label", "name", name, "depth", len(v.labels))
}

func (v *VulkanCommandBuffer) InsertDebugLabel(name string, color execution.DebugColor) {
	v.log.Debug("label", "name", name)
}
