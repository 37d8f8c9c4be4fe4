package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-exec/engine/core"
	"github.com/spaghettifunk/anima-exec/engine/renderer/execution"
)

// VulkanQueue submits command buffers recorded by this backend.
type VulkanQueue struct {
	Handle vk.Queue

	family  uint32
	context *VulkanContext
}

func (q *VulkanQueue) Family() execution.QueueFamily {
	return execution.QueueFamilyIndex(q.family)
}

func (q *VulkanQueue) Submit(cb execution.NativeCommandBuffer, fence execution.NativeFence) error {
	vcb, ok := cb.(*VulkanCommandBuffer)
	if !ok {
		err := fmt.Errorf("submit: %w: foreign command buffer %T", core.ErrNativeCall, cb)
		core.LogError(err.Error())
		return err
	}
	var handle vk.Fence
	if fence != nil {
		vf, ok := fence.(*VulkanFence)
		if !ok {
			err := fmt.Errorf("submit: %w: foreign fence %T", core.ErrNativeCall, fence)
			core.LogError(err.Error())
			return err
		}
		handle = vf.Handle
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{vcb.Handle},
	}
	return q.context.Locks.SafeQueueCall(q.family, func() error {
		return resultError(
			fmt.Sprintf("submit %q", vcb.Name),
			vk.QueueSubmit(q.Handle, 1, []vk.SubmitInfo{submitInfo}, handle))
	})
}

// WaitIdle blocks until the queue has drained.
func (q *VulkanQueue) WaitIdle() error {
	return q.context.Locks.SafeQueueCall(q.family, func() error {
		return resultError("queue wait idle", vk.QueueWaitIdle(q.Handle))
	})
}
