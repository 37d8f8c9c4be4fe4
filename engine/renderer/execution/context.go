package execution

import (
	"github.com/charmbracelet/log"
	"github.com/spaghettifunk/anima-exec/engine/core"
)

type ExecutionContextInfo struct {
	Name          string
	CommandBuffer *CommandBuffer
	Generation    int
	Metrics       *core.SyncMetrics
}

// ExecutionContext is the physical recording state: the live command buffer,
// what it keeps alive and what runs once the GPU is done with it.
type ExecutionContext struct {
	ID   core.Identifier
	Name string

	log        *log.Logger
	cb         *CommandBuffer
	generation int
	metrics    *core.SyncMetrics

	labels    []string
	keepAlive []any
	callbacks []func()
	sets      [pipelineKindCount]*BoundSetsManager
}

func NewExecutionContext(info ExecutionContextInfo) *ExecutionContext {
	metrics := info.Metrics
	if metrics == nil {
		metrics = &core.SyncMetrics{}
	}
	id := core.NewIdentifier()
	ctx := &ExecutionContext{
		ID:         id,
		Name:       id.DebugName("ctx", info.Name),
		cb:         info.CommandBuffer,
		generation: info.Generation,
		metrics:    metrics,
	}
	ctx.log = core.LogWith(ctx.Name)
	for kind := range ctx.sets {
		ctx.sets[kind] = NewBoundSetsManager(PipelineKind(kind))
	}
	return ctx
}

func (c *ExecutionContext) CommandBuffer() *CommandBuffer { return c.cb }
func (c *ExecutionContext) Native() NativeCommandBuffer   { return c.cb.Native() }
func (c *ExecutionContext) Generation() int               { return c.generation }
func (c *ExecutionContext) Metrics() *core.SyncMetrics    { return c.metrics }
func (c *ExecutionContext) Logger() *log.Logger           { return c.log }

// KeepAlive holds obj until the submission of this context completes.
func (c *ExecutionContext) KeepAlive(obj any) {
	c.keepAlive = append(c.keepAlive, obj)
}

// OnCompletion registers fn to run once the submission completed.
func (c *ExecutionContext) OnCompletion(fn func()) {
	c.callbacks = append(c.callbacks, fn)
}

// Retire keeps node alive and releases it to its pool on completion.
func (c *ExecutionContext) Retire(node *ExecutionNode) {
	c.KeepAlive(node)
	c.OnCompletion(node.Finish)
}

func (c *ExecutionContext) BoundSets(kind PipelineKind) *BoundSetsManager {
	return c.sets[kind]
}

func (c *ExecutionContext) BindSet(index uint32, set *DescriptorSet, points BindPoints) {
	for kind := range c.sets {
		if points.Has(PipelineKind(kind)) {
			c.sets[kind].Bind(index, set)
		}
	}
}

// RecordBindings emits the pending descriptor set binds for a pipeline.
func (c *ExecutionContext) RecordBindings(pipeline *Pipeline) {
	c.sets[pipeline.Kind].Record(c.Native(), pipeline.Layout)
}

func (c *ExecutionContext) PushDebugLabel(name string) {
	c.PushDebugLabelColor(name, DefaultLabelColor)
}

func (c *ExecutionContext) PushDebugLabelColor(name string, color DebugColor) {
	c.labels = append(c.labels, name)
	c.Native().BeginDebugLabel(name, color)
}

func (c *ExecutionContext) PopDebugLabel() {
	core.Assert(len(c.labels) > 0, "debug label popped with none pushed on %q", c.Name)
	c.labels = c.labels[:len(c.labels)-1]
	c.Native().EndDebugLabel()
}

func (c *ExecutionContext) InsertDebugLabel(name string, color DebugColor) {
	c.Native().InsertDebugLabel(name, color)
}

// LabelDepth is the number of debug labels currently open.
func (c *ExecutionContext) LabelDepth() int {
	return len(c.labels)
}

// End closes the command buffer. Every debug label must have been popped.
func (c *ExecutionContext) End() error {
	core.Assert(len(c.labels) == 0, "%d debug label(s) still open on %q: %v", len(c.labels), c.Name, c.labels)
	return c.cb.End()
}

// takeCompletion hands the keep-alive list and the callbacks over to a submission.
func (c *ExecutionContext) takeCompletion() ([]any, []func()) {
	keepAlive, callbacks := c.keepAlive, c.callbacks
	c.keepAlive, c.callbacks = nil, nil
	return keepAlive, callbacks
}

// Abandon drops the recording, releasing what it holds immediately.
func (c *ExecutionContext) Abandon() {
	_, callbacks := c.takeCompletion()
	for _, fn := range callbacks {
		fn()
	}
	c.labels = c.labels[:0]
	for _, m := range c.sets {
		m.Reset()
	}
}
