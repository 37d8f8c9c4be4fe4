package execution

import (
	"github.com/spaghettifunk/anima-exec/engine/core"
)

// RenderingStatus tells whether, and how, a render pass is being recorded.
type RenderingStatus int

const (
	RenderingNone RenderingStatus = iota
	RenderingRenderPass
	RenderingDynamic
)

func (s RenderingStatus) String() string {
	switch s {
	case RenderingNone:
		return "none"
	case RenderingRenderPass:
		return "render_pass"
	case RenderingDynamic:
		return "dynamic"
	default:
		return "unknown"
	}
}

type ExecutionThreadInfo struct {
	Context       *ExecutionContext
	MergeBarriers bool
	// LabelNodes wraps every node in a debug label named after it.
	LabelNodes bool
}

// ExecutionThread records commands into an execution context. Outside of a
// render pass every node is synchronized and executed immediately. Inside a
// render pass everything is buffered and replayed by EndRenderPass, once the
// union of the buffered usages has been synchronized, so that no barrier is
// ever recorded inside the pass.
type ExecutionThread struct {
	ctx        *ExecutionContext
	rc         *RecordContext
	resolver   *SyncResolver
	labelNodes bool

	status   RenderingStatus
	info     *RenderPassBeginInfo
	deferred deferredEvents
	pass     UsageList
}

func NewExecutionThread(info ExecutionThreadInfo) *ExecutionThread {
	return &ExecutionThread{
		ctx:        info.Context,
		rc:         NewRecordContext(),
		resolver:   NewSyncResolver(info.MergeBarriers),
		labelNodes: info.LabelNodes,
	}
}

func (t *ExecutionThread) Context() *ExecutionContext       { return t.ctx }
func (t *ExecutionThread) RecordContext() *RecordContext    { return t.rc }
func (t *ExecutionThread) RenderingStatus() RenderingStatus { return t.status }

func (t *ExecutionThread) deferring() bool {
	return t.status != RenderingNone
}

// Record records cmd.
func (t *ExecutionThread) Record(cmd Command) {
	t.RecordExecutable(cmd.ExecutionNode)
}

// RecordExecutable records the node built by exe. A nil node records nothing.
func (t *ExecutionThread) RecordExecutable(exe Executable) {
	node := exe(t.rc)
	if node == nil {
		return
	}
	if t.deferring() {
		t.deferred.addNode(node)
		t.ctx.metrics.DeferredEvents.Add(1)
		return
	}
	t.resolver.Reset(t.ctx)
	t.resolver.Commit(node.Resources())
	t.resolver.Record()
	t.runNode(node)
}

func (t *ExecutionThread) runNode(node *ExecutionNode) {
	if t.labelNodes {
		t.ctx.PushDebugLabel(node.Name)
	}
	node.Execute(t.ctx)
	if t.labelNodes {
		t.ctx.PopDebugLabel()
	}
	t.ctx.Retire(node)
}

func (t *ExecutionThread) BindSet(index uint32, set *DescriptorSet, points BindPoints) {
	t.rc.BindSet(index, set, points)
	if t.deferring() {
		t.deferred.addBindSet(index, set, points)
		t.ctx.metrics.DeferredEvents.Add(1)
		return
	}
	t.ctx.BindSet(index, set, points)
}

func (t *ExecutionThread) PushDebugLabel(name string) {
	t.PushDebugLabelColor(name, DefaultLabelColor)
}

func (t *ExecutionThread) PushDebugLabelColor(name string, color DebugColor) {
	if t.deferring() {
		t.deferred.addLabel(eventPushLabel, name, color)
		t.ctx.metrics.DeferredEvents.Add(1)
		return
	}
	t.ctx.PushDebugLabelColor(name, color)
}

func (t *ExecutionThread) PopDebugLabel() {
	if t.deferring() {
		t.deferred.addPopLabel()
		t.ctx.metrics.DeferredEvents.Add(1)
		return
	}
	t.ctx.PopDebugLabel()
}

func (t *ExecutionThread) InsertDebugLabel(name string, color DebugColor) {
	if t.deferring() {
		t.deferred.addLabel(eventInsertLabel, name, color)
		t.ctx.metrics.DeferredEvents.Add(1)
		return
	}
	t.ctx.InsertDebugLabel(name, color)
}

// BeginRenderPass starts buffering. Passes without a native render pass
// object are recorded with dynamic rendering, one scope per subpass.
func (t *ExecutionThread) BeginRenderPass(info *RenderPassBeginInfo, flags RenderPassFlags) {
	core.Assert(t.status == RenderingNone, "render pass %q begun while %s", info.RenderPass.Name, t.status)
	core.Assert(len(info.RenderPass.Subpasses) > 0, "render pass %q has no subpass", info.RenderPass.Name)
	t.info = t.deferred.begin(info, flags)
	t.status = RenderingRenderPass
	if info.RenderPass.IsDynamic() {
		t.status = RenderingDynamic
	}
	t.rc.BeginRenderPass(t.info)
	t.ctx.metrics.RenderPasses.Add(1)
}

func (t *ExecutionThread) NextSubPass(flags RenderPassFlags) {
	core.Assert(t.deferring(), "next subpass outside of a render pass")
	t.rc.NextSubPass()
	t.deferred.addNextSubpass(flags, t.status == RenderingDynamic)
	t.ctx.metrics.DeferredEvents.Add(1)
}

// EndRenderPass synchronizes the buffered usages, then replays the pass.
func (t *ExecutionThread) EndRenderPass() {
	core.Assert(t.deferring(), "end render pass outside of a render pass")
	if t.status == RenderingDynamic {
		t.endDynamicRendering()
	} else {
		t.endRenderPass()
	}
	t.rc.EndRenderPass()
	t.deferred.clear()
	t.pass.Clear()
	t.status = RenderingNone
	t.info = nil
}

func (t *ExecutionThread) endRenderPass() {
	for i := range t.deferred.resources {
		t.pass.Merge(&t.deferred.resources[i])
	}
	t.info.ExportResources(&t.pass)
	t.synchronize(&t.pass)
	t.ctx.KeepAlive(t.info.RenderPass)
	t.ctx.KeepAlive(t.info.Framebuffer)

	t.replay(0, false)
	t.ctx.Native().EndRenderPass()
}

func (t *ExecutionThread) endDynamicRendering() {
	cb := t.ctx.Native()
	next := 0
	for subpass := range t.deferred.resources {
		t.pass.Clear()
		t.pass.Merge(&t.deferred.resources[subpass])
		t.info.ExportSubpassResources(subpass, &t.pass)
		t.synchronize(&t.pass)

		cb.BeginRendering(t.info.RenderingInfo(subpass))
		next = t.replay(next, true)
		cb.EndRendering()
	}
}

func (t *ExecutionThread) synchronize(list *UsageList) {
	t.resolver.Reset(t.ctx)
	t.resolver.Commit(list)
	t.resolver.Record()
}

// replay executes buffered events from start. With splitSubpasses it stops
// after the first next-subpass event and returns where to resume.
func (t *ExecutionThread) replay(start int, splitSubpasses bool) int {
	d := &t.deferred
	for i := start; i < len(d.events); i++ {
		e := d.events[i]
		switch e.kind {
		case eventBeginRenderPass:
			// Dynamic rendering opens one scope per subpass instead.
			if !splitSubpasses {
				t.ctx.Native().BeginRenderPass(&d.beginInfos[e.index], e.flags.contents())
			}
		case eventNode:
			t.runNode(d.nodes[e.index])
		case eventBindSet:
			b := d.sets[e.index]
			t.ctx.BindSet(b.index, b.set, b.points)
		case eventPushLabel:
			l := d.labels[e.index]
			t.ctx.PushDebugLabelColor(d.labelName(l), l.color)
		case eventPopLabel:
			t.ctx.PopDebugLabel()
		case eventInsertLabel:
			l := d.labels[e.index]
			t.ctx.InsertDebugLabel(d.labelName(l), l.color)
		case eventNextSubpass:
			if splitSubpasses {
				return i + 1
			}
			t.ctx.Native().NextSubpass(e.flags.contents())
		}
	}
	return len(d.events)
}

// Reset abandons a render pass being buffered. Buffered nodes are released.
func (t *ExecutionThread) Reset() {
	for _, node := range t.deferred.nodes {
		node.Finish()
	}
	t.deferred.clear()
	t.pass.Clear()
	t.rc.Reset()
	t.status = RenderingNone
	t.info = nil
}

// Close checks that nothing is left buffered before the context ends.
func (t *ExecutionThread) Close() {
	core.Assert(t.status == RenderingNone, "command buffer ended inside render pass %q", t.passName())
	core.Assert(t.deferred.empty(), "command buffer ended with buffered events")
}

func (t *ExecutionThread) passName() string {
	if t.info == nil {
		return ""
	}
	return t.info.RenderPass.Name
}
