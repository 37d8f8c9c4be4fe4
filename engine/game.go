package engine

import (
	"github.com/spaghettifunk/anima-exec/engine/core"
	"github.com/spaghettifunk/anima-exec/engine/renderer/execution"
)

type Game struct {
	ApplicationConfig *ApplicationConfig
	// Set by the engine before initialization.
	Events            *core.EventSystem
	State             interface{}
	FnInitialize      Initialize
	FnUpdate          Update
	FnRender          Render
	FnShutdown        Shutdown
}

// Frame is what a game records into each frame.
type Frame struct {
	Number    uint64
	DeltaTime float64
	Thread    *execution.ExecutionThread
	Executor  *execution.LinearExecutor
}

// Record hands cmd its per-frame update, then records it.
func (f *Frame) Record(cmd execution.Command) {
	cmd.UpdateResources(&execution.UpdateContext{
		Frame:      f.Number,
		Generation: f.Thread.Context().Generation(),
	})
	f.Thread.Record(cmd)
}

type Initialize func(executor *execution.LinearExecutor) error
type Update func(deltaTime float64) error
type Render func(frame *Frame) error
type Shutdown func() error
