package execution

import (
	"fmt"

	"github.com/spaghettifunk/anima-exec/engine/core"
)

type CommandBufferState int

const (
	COMMAND_BUFFER_STATE_IDLE CommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_COMPLETED
)

func (s CommandBufferState) String() string {
	switch s {
	case COMMAND_BUFFER_STATE_IDLE:
		return "idle"
	case COMMAND_BUFFER_STATE_RECORDING:
		return "recording"
	case COMMAND_BUFFER_STATE_RECORDING_ENDED:
		return "ended"
	case COMMAND_BUFFER_STATE_SUBMITTED:
		return "submitted"
	case COMMAND_BUFFER_STATE_COMPLETED:
		return "completed"
	default:
		return "unknown"
	}
}

// CommandBuffer wraps a native command buffer with its lifecycle:
// idle -> recording -> ended -> submitted -> completed -> idle.
type CommandBuffer struct {
	ID     core.Identifier
	Name   string
	State  CommandBufferState
	native NativeCommandBuffer
}

func NewCommandBuffer(name string, native NativeCommandBuffer) *CommandBuffer {
	return &CommandBuffer{
		ID:     core.NewIdentifier(),
		Name:   name,
		State:  COMMAND_BUFFER_STATE_IDLE,
		native: native,
	}
}

func (c *CommandBuffer) Native() NativeCommandBuffer {
	return c.native
}

func (c *CommandBuffer) transition(from, to CommandBufferState) {
	core.Assert(c.State == from, "command buffer %q is %s, expected %s", c.Name, c.State, from)
	c.State = to
}

func (c *CommandBuffer) Begin() error {
	c.transition(COMMAND_BUFFER_STATE_IDLE, COMMAND_BUFFER_STATE_RECORDING)
	if err := c.native.Begin(); err != nil {
		err = fmt.Errorf("failed to begin command buffer %q: %w", c.Name, err)
		core.LogError(err.Error())
		return err
	}
	return nil
}

func (c *CommandBuffer) End() error {
	c.transition(COMMAND_BUFFER_STATE_RECORDING, COMMAND_BUFFER_STATE_RECORDING_ENDED)
	if err := c.native.End(); err != nil {
		err = fmt.Errorf("failed to end command buffer %q: %w", c.Name, err)
		core.LogError(err.Error())
		return err
	}
	return nil
}

func (c *CommandBuffer) MarkSubmitted() {
	c.transition(COMMAND_BUFFER_STATE_RECORDING_ENDED, COMMAND_BUFFER_STATE_SUBMITTED)
}

func (c *CommandBuffer) MarkCompleted() {
	c.transition(COMMAND_BUFFER_STATE_SUBMITTED, COMMAND_BUFFER_STATE_COMPLETED)
}

// Reset returns a completed, or abandoned, command buffer to idle.
func (c *CommandBuffer) Reset() error {
	core.Assert(c.State != COMMAND_BUFFER_STATE_SUBMITTED, "command buffer %q is still in flight", c.Name)
	if err := c.native.Reset(); err != nil {
		err = fmt.Errorf("failed to reset command buffer %q: %w", c.Name, err)
		core.LogError(err.Error())
		return err
	}
	c.State = COMMAND_BUFFER_STATE_IDLE
	return nil
}
