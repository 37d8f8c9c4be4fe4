package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-exec/engine/core"
)

var resultNames = map[vk.Result]string{
	vk.Success:                   "VK_SUCCESS",
	vk.NotReady:                  "VK_NOT_READY",
	vk.Timeout:                   "VK_TIMEOUT",
	vk.EventSet:                  "VK_EVENT_SET",
	vk.EventReset:                "VK_EVENT_RESET",
	vk.Incomplete:                "VK_INCOMPLETE",
	vk.ErrorOutOfHostMemory:      "VK_ERROR_OUT_OF_HOST_MEMORY",
	vk.ErrorOutOfDeviceMemory:    "VK_ERROR_OUT_OF_DEVICE_MEMORY",
	vk.ErrorInitializationFailed: "VK_ERROR_INITIALIZATION_FAILED",
	vk.ErrorDeviceLost:           "VK_ERROR_DEVICE_LOST",
	vk.ErrorTooManyObjects:       "VK_ERROR_TOO_MANY_OBJECTS",
	vk.ErrorOutOfPoolMemory:      "VK_ERROR_OUT_OF_POOL_MEMORY",
	vk.ErrorUnknown:              "VK_ERROR_UNKNOWN",
}

func VulkanResultString(result vk.Result) string {
	if name, ok := resultNames[result]; ok {
		return name
	}
	return fmt.Sprintf("VkResult(%d)", int32(result))
}

// resultError wraps a failed call into one of the engine errors and logs it.
func resultError(op string, result vk.Result) error {
	if result == vk.Success {
		return nil
	}
	var err error
	switch result {
	case vk.ErrorDeviceLost:
		err = fmt.Errorf("%s: %w (%s)", op, core.ErrDeviceLost, VulkanResultString(result))
	case vk.Timeout:
		err = fmt.Errorf("%s: %w (%s)", op, core.ErrFenceTimeout, VulkanResultString(result))
	default:
		err = fmt.Errorf("%s: %w (%s)", op, core.ErrNativeCall, VulkanResultString(result))
	}
	core.LogError(err.Error())
	return err
}
