package vulkan

import (
	"fmt"

	"github.com/charmbracelet/log"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-exec/engine/core"
	"github.com/spaghettifunk/anima-exec/engine/renderer/execution"
)

// VulkanContextInfo points the backend at a device created by the application.
type VulkanContextInfo struct {
	Device      vk.Device
	Allocator   *vk.AllocationCallbacks
	QueueFamily uint32
}

// VulkanContext owns the command pool the executor allocates from and
// implements execution.NativeDevice.
type VulkanContext struct {
	Device      vk.Device
	Allocator   *vk.AllocationCallbacks
	CommandPool vk.CommandPool
	QueueFamily uint32
	Locks       *VulkanLockPool

	log *log.Logger
}

func NewVulkanContext(info VulkanContextInfo) (*VulkanContext, error) {
	if info.Device == nil {
		err := fmt.Errorf("vulkan context: %w: no device", core.ErrConfig)
		core.LogError(err.Error())
		return nil, err
	}
	vc := &VulkanContext{
		Device:      info.Device,
		Allocator:   info.Allocator,
		QueueFamily: info.QueueFamily,
		Locks:       NewVulkanLockPool(),
		log:         core.LogWith("vulkan"),
	}
	vc.Locks.SetQueueFamily(info.QueueFamily)

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: info.QueueFamily,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(vc.Device, &poolCreateInfo, vc.Allocator, &pool); res != vk.Success {
		return nil, resultError("create command pool", res)
	}
	vc.CommandPool = pool
	vc.log.Info("command pool created", "family", info.QueueFamily)
	return vc, nil
}

func (vc *VulkanContext) NewCommandBuffer(name string) (execution.NativeCommandBuffer, error) {
	return NewVulkanCommandBuffer(vc, name)
}

func (vc *VulkanContext) NewFence(name string) (execution.NativeFence, error) {
	return NewFence(vc, name, false)
}

// Queue fetches queue index of the context's family.
func (vc *VulkanContext) Queue(index uint32) *VulkanQueue {
	var q vk.Queue
	vk.GetDeviceQueue(vc.Device, vc.QueueFamily, index, &q)
	return &VulkanQueue{
		Handle:  q,
		family:  vc.QueueFamily,
		context: vc,
	}
}

// Destroy releases the command pool. Command buffers allocated from it become invalid.
func (vc *VulkanContext) Destroy() {
	if vc.CommandPool == nil {
		return
	}
	_ = vc.Locks.SafeCall(CommandPoolManagement, func() error {
		vk.DestroyCommandPool(vc.Device, vc.CommandPool, vc.Allocator)
		return nil
	})
	vc.CommandPool = nil
	vc.log.Info("command pool destroyed")
}
