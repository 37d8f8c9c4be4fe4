package execution

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spaghettifunk/anima-exec/engine/containers"
	"github.com/spaghettifunk/anima-exec/engine/core"
	"github.com/spaghettifunk/anima-exec/engine/systems"
)

type LinearExecutorInfo struct {
	Name   string
	Device NativeDevice
	Queue  NativeQueue
	Config core.ExecutionConfig
	// Jobs runs the background recycler. Without it, completed submissions
	// are only recycled when the executor is used.
	Jobs       *systems.JobSystem
	Metrics    *core.SyncMetrics
	Generation int
	LabelNodes bool
}

// LinearExecutor records command buffers one after another and submits them
// to a single queue, in order.
type LinearExecutor struct {
	name       string
	log        *log.Logger
	device     NativeDevice
	queue      NativeQueue
	cfg        core.ExecutionConfig
	jobs       *systems.JobSystem
	metrics    *core.SyncMetrics
	generation int
	labelNodes bool

	mu       sync.Mutex
	inFlight *containers.RingQueue[*Submission]
	idle     []*CommandBuffer
	fences   []NativeFence
	pending  []*ExecutionContext
	current  *ExecutionThread
	count    int

	recycling atomic.Bool
	stop      chan struct{}
	stopped   chan struct{}
}

func NewLinearExecutor(info LinearExecutorInfo) *LinearExecutor {
	cfg := info.Config
	if cfg.FramesInFlight <= 0 {
		cfg.FramesInFlight = core.DefaultConfig().Execution.FramesInFlight
	}
	if cfg.Generations <= 0 {
		cfg.Generations = DefaultGenerations
	}
	core.Assert(info.Generation >= 0 && info.Generation < cfg.Generations,
		"executor generation %d out of range, resources keep %d", info.Generation, cfg.Generations)
	metrics := info.Metrics
	if metrics == nil {
		metrics = &core.SyncMetrics{}
	}
	name := info.Name
	if name == "" {
		name = "executor"
	}
	return &LinearExecutor{
		name:       name,
		log:        core.LogWith(name),
		device:     info.Device,
		queue:      info.Queue,
		cfg:        cfg,
		jobs:       info.Jobs,
		metrics:    metrics,
		generation: info.Generation,
		labelNodes: info.LabelNodes,
		inFlight:   containers.NewRingQueue[*Submission](cfg.FramesInFlight),
	}
}

func (e *LinearExecutor) Metrics() *core.SyncMetrics {
	return e.metrics
}

// NewBuffer creates a buffer keeping as many state generations as the executor
// is configured with, unless info sets its own.
func (e *LinearExecutor) NewBuffer(info BufferInfo) *Buffer {
	if info.Generations <= 0 {
		info.Generations = e.cfg.Generations
	}
	return NewBuffer(info)
}

// NewImage is NewBuffer for images.
func (e *LinearExecutor) NewImage(info ImageInfo) *Image {
	if info.Generations <= 0 {
		info.Generations = e.cfg.Generations
	}
	return NewImage(info)
}

// InFlight is the number of submissions not yet recycled.
func (e *LinearExecutor) InFlight() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inFlight.Len()
}

// Current is the thread being recorded, nil between command buffers.
func (e *LinearExecutor) Current() *ExecutionThread {
	return e.current
}

// BeginCommandBuffer starts recording a new command buffer. It blocks on the
// oldest submission when the frames-in-flight limit is reached.
func (e *LinearExecutor) BeginCommandBuffer() (*ExecutionThread, error) {
	core.Assert(e.current == nil, "%s: command buffer begun while another is recording", e.name)
	e.Recycle()
	if err := e.waitForSlot(context.Background()); err != nil {
		return nil, err
	}

	cb, err := e.commandBuffer()
	if err != nil {
		return nil, err
	}
	if err := cb.Begin(); err != nil {
		return nil, err
	}
	ctx := NewExecutionContext(ExecutionContextInfo{
		Name:          cb.Name,
		CommandBuffer: cb,
		Generation:    e.generation,
		Metrics:       e.metrics,
	})
	e.current = NewExecutionThread(ExecutionThreadInfo{
		Context:       ctx,
		MergeBarriers: e.cfg.MergeBarriers,
		LabelNodes:    e.labelNodes,
	})
	return e.current, nil
}

func (e *LinearExecutor) commandBuffer() (*CommandBuffer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n := len(e.idle); n > 0 {
		cb := e.idle[n-1]
		e.idle = e.idle[:n-1]
		return cb, nil
	}
	e.count++
	name := fmt.Sprintf("%s-cb%d", e.name, e.count)
	native, err := e.device.NewCommandBuffer(name)
	if err != nil {
		err = fmt.Errorf("failed to create command buffer %s: %w", name, err)
		e.log.Error(err.Error())
		return nil, err
	}
	return NewCommandBuffer(name, native), nil
}

func (e *LinearExecutor) fence() (NativeFence, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n := len(e.fences); n > 0 {
		f := e.fences[n-1]
		e.fences = e.fences[:n-1]
		return f, nil
	}
	f, err := e.device.NewFence(fmt.Sprintf("%s-fence%d", e.name, e.count))
	if err != nil {
		err = fmt.Errorf("failed to create fence: %w", err)
		e.log.Error(err.Error())
		return nil, err
	}
	return f, nil
}

// EndCommandBuffer closes the recording of thread. It is submitted by the next Submit.
func (e *LinearExecutor) EndCommandBuffer(thread *ExecutionThread) error {
	core.Assert(thread != nil && thread == e.current, "%s: ending a command buffer that is not recording", e.name)
	thread.Close()
	e.current = nil
	if err := thread.ctx.End(); err != nil {
		e.discard(thread.ctx)
		return err
	}
	e.pending = append(e.pending, thread.ctx)
	return nil
}

// Submit hands every ended command buffer to the queue, in order.
func (e *LinearExecutor) Submit() error {
	for len(e.pending) > 0 {
		ctx := e.pending[0]
		if err := e.waitForSlot(context.Background()); err != nil {
			return err
		}
		fence, err := e.fence()
		if err != nil {
			return err
		}
		cb := ctx.CommandBuffer()
		if err := e.queue.Submit(cb.Native(), fence); err != nil {
			err = fmt.Errorf("failed to submit %s: %w", cb.Name, err)
			e.log.Error(err.Error())
			return err
		}
		cb.MarkSubmitted()
		sub := newSubmission(ctx, fence)

		e.mu.Lock()
		err = e.inFlight.Enqueue(sub)
		e.mu.Unlock()
		core.Assert(err == nil, "%s: in-flight queue overflow", e.name)

		e.pending = e.pending[1:]
		e.metrics.Submissions.Add(1)
		e.log.Debug("submitted", "command_buffer", cb.Name, "keep_alive", len(sub.keepAlive))
	}
	e.pending = nil
	return nil
}

// Execute records cmd into the current command buffer, or into a command
// buffer of its own that is submitted right away.
func (e *LinearExecutor) Execute(cmd Command) error {
	if e.current != nil {
		e.current.Record(cmd)
		return nil
	}
	thread, err := e.BeginCommandBuffer()
	if err != nil {
		return err
	}
	thread.Record(cmd)
	if err := e.EndCommandBuffer(thread); err != nil {
		return err
	}
	return e.Submit()
}

func (e *LinearExecutor) waitForSlot(ctx context.Context) error {
	for {
		e.mu.Lock()
		full := e.inFlight.IsFull()
		e.mu.Unlock()
		if !full {
			return nil
		}
		if err := e.waitOldest(ctx); err != nil {
			return err
		}
	}
}

func (e *LinearExecutor) waitOldest(ctx context.Context) error {
	e.mu.Lock()
	sub, err := e.inFlight.Peek()
	e.mu.Unlock()
	if err != nil {
		return nil
	}
	if err := sub.fence.Wait(ctx); err != nil {
		err = fmt.Errorf("waiting for %s: %w", sub.Name, err)
		e.log.Error(err.Error())
		return err
	}
	e.Recycle()
	return nil
}

// Recycle completes every submission whose fence signaled, oldest first, and
// returns how many it completed.
func (e *LinearExecutor) Recycle() int {
	var done []*Submission
	e.mu.Lock()
	for !e.inFlight.IsEmpty() {
		sub, _ := e.inFlight.Peek()
		signaled, err := sub.fence.Signaled()
		if err != nil {
			e.log.Error("fence status", "submission", sub.Name, "err", err)
			break
		}
		if !signaled {
			break
		}
		_, _ = e.inFlight.Dequeue()
		done = append(done, sub)
	}
	e.mu.Unlock()

	for _, sub := range done {
		sub.complete()
		e.release(sub.cb, sub.fence)
	}
	return len(done)
}

func (e *LinearExecutor) release(cb *CommandBuffer, fence NativeFence) {
	if err := cb.Reset(); err != nil {
		return
	}
	if fence != nil {
		if err := fence.Reset(); err != nil {
			e.log.Error("fence reset", "err", err)
			fence = nil
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.idle = append(e.idle, cb)
	if fence != nil {
		e.fences = append(e.fences, fence)
	}
}

// WaitForAllCompletion blocks until every submission completed, or ctx is done.
func (e *LinearExecutor) WaitForAllCompletion(ctx context.Context) error {
	for {
		e.mu.Lock()
		empty := e.inFlight.IsEmpty()
		e.mu.Unlock()
		if empty {
			return nil
		}
		if err := e.waitOldest(ctx); err != nil {
			return err
		}
	}
}

// StartRecycler polls in-flight submissions on the job system until Close.
func (e *LinearExecutor) StartRecycler() {
	if e.jobs == nil || e.stop != nil {
		return
	}
	e.stop = make(chan struct{})
	e.stopped = make(chan struct{})
	interval := time.Duration(e.cfg.RecycleIntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = core.DefaultConfig().RecycleInterval()
	}
	go func() {
		defer close(e.stopped)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-e.stop:
				return
			case <-ticker.C:
				e.scheduleRecycle()
			}
		}
	}()
}

func (e *LinearExecutor) scheduleRecycle() {
	if !e.recycling.CompareAndSwap(false, true) {
		return
	}
	queued := e.jobs.TrySubmit(systems.JobTask{
		Name: e.name + "-recycle",
		OnStart: func() error {
			e.Recycle()
			return nil
		},
		OnCompletionCallback: func() { e.recycling.Store(false) },
	})
	if !queued {
		e.recycling.Store(false)
	}
}

// Abort drops the command buffer thread is recording. Buffered nodes are
// finished and the command buffer goes back to the idle list unsubmitted.
func (e *LinearExecutor) Abort(thread *ExecutionThread) {
	core.Assert(thread != nil && thread == e.current, "%s: aborting a command buffer that is not recording", e.name)
	e.current = nil
	thread.Reset()
	e.discard(thread.ctx)
}

func (e *LinearExecutor) discard(ctx *ExecutionContext) {
	ctx.Abandon()
	e.release(ctx.CommandBuffer(), nil)
	e.log.Debug("discarded", "command_buffer", ctx.CommandBuffer().Name)
}

// Close stops the recycler, drops anything not yet submitted and waits for
// every submission.
func (e *LinearExecutor) Close(ctx context.Context) error {
	if e.stop != nil {
		close(e.stop)
		<-e.stopped
		e.stop = nil
	}
	if e.current != nil {
		e.Abort(e.current)
	}
	for _, pending := range e.pending {
		e.discard(pending)
	}
	e.pending = nil
	return e.WaitForAllCompletion(ctx)
}
