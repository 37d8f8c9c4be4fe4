package vulkan

import (
	"context"
	"fmt"
	"time"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-exec/engine/core"
)

// fenceWaitSlice bounds each native wait so cancellation is noticed.
const fenceWaitSlice = uint64(time.Millisecond)

type VulkanFence struct {
	Handle     vk.Fence
	Name       string
	IsSignaled bool

	context *VulkanContext
}

func NewFence(context *VulkanContext, name string, createSignaled bool) (*VulkanFence, error) {
	fence := &VulkanFence{
		Name:       name,
		IsSignaled: createSignaled,
		context:    context,
	}

	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if fence.IsSignaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var pFence vk.Fence
	err := context.Locks.SafeCall(SynchronizationManagement, func() error {
		return resultError(fmt.Sprintf("create fence %q", name),
			vk.CreateFence(context.Device, &fenceCreateInfo, context.Allocator, &pFence))
	})
	if err != nil {
		return nil, err
	}
	fence.Handle = pFence
	return fence, nil
}

func (vf *VulkanFence) Destroy() {
	if vf.Handle != nil {
		_ = vf.context.Locks.SafeCall(SynchronizationManagement, func() error {
			vk.DestroyFence(vf.context.Device, vf.Handle, vf.context.Allocator)
			return nil
		})
		vf.Handle = nil
	}
	vf.IsSignaled = false
}

func (vf *VulkanFence) Signaled() (bool, error) {
	if vf.IsSignaled {
		return true, nil
	}
	switch res := vk.GetFenceStatus(vf.context.Device, vf.Handle); res {
	case vk.Success:
		vf.IsSignaled = true
		return true, nil
	case vk.NotReady:
		return false, nil
	default:
		return false, resultError(fmt.Sprintf("fence %q status", vf.Name), res)
	}
}

// Wait blocks until the fence is signaled or ctx is done.
func (vf *VulkanFence) Wait(ctx context.Context) error {
	for !vf.IsSignaled {
		result := vk.WaitForFences(vf.context.Device, 1, []vk.Fence{vf.Handle}, vk.True, fenceWaitSlice)
		switch result {
		case vk.Success:
			vf.IsSignaled = true
		case vk.Timeout:
			if err := ctx.Err(); err != nil {
				core.LogWarn("fence %s wait timed out", vf.Name)
				return fmt.Errorf("fence %q: %w: %w", vf.Name, core.ErrFenceTimeout, err)
			}
		default:
			return resultError(fmt.Sprintf("wait fence %q", vf.Name), result)
		}
	}
	return nil
}

func (vf *VulkanFence) Reset() error {
	if !vf.IsSignaled {
		return nil
	}
	err := vf.context.Locks.SafeCall(SynchronizationManagement, func() error {
		return resultError(fmt.Sprintf("reset fence %q", vf.Name),
			vk.ResetFences(vf.context.Device, 1, []vk.Fence{vf.Handle}))
	})
	if err != nil {
		return err
	}
	vf.IsSignaled = false
	return nil
}
