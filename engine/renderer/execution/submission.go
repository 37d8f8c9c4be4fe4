package execution

import (
	"github.com/spaghettifunk/anima-exec/engine/core"
)

// Submission is a command buffer handed to a queue, with everything that has
// to stay alive until its fence signals.
type Submission struct {
	ID    core.Identifier
	Name  string
	cb    *CommandBuffer
	fence NativeFence

	keepAlive []any
	callbacks []func()
}

func newSubmission(ctx *ExecutionContext, fence NativeFence) *Submission {
	keepAlive, callbacks := ctx.takeCompletion()
	return &Submission{
		ID:        core.NewIdentifier(),
		Name:      ctx.Name,
		cb:        ctx.CommandBuffer(),
		fence:     fence,
		keepAlive: keepAlive,
		callbacks: callbacks,
	}
}

func (s *Submission) CommandBuffer() *CommandBuffer {
	return s.cb
}

// KeepAlive returns the objects held by the submission.
func (s *Submission) KeepAlive() []any {
	return s.keepAlive
}

// complete runs the completion callbacks and drops the keep-alive list.
func (s *Submission) complete() {
	for _, fn := range s.callbacks {
		fn()
	}
	s.callbacks = nil
	s.keepAlive = nil
	s.cb.MarkCompleted()
}
