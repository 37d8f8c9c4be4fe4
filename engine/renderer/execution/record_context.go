package execution

import (
	"github.com/spaghettifunk/anima-exec/engine/core"
)

// RecordContext is the logical recording state seen by commands when they
// build their execution nodes. It has no effect on the GPU.
type RecordContext struct {
	sets       [pipelineKindCount]BoundSets
	renderPass *RenderPassBeginInfo
	subpass    int
}

func NewRecordContext() *RecordContext {
	return &RecordContext{}
}

func (r *RecordContext) BoundSets(kind PipelineKind) *BoundSets {
	return &r.sets[kind]
}

func (r *RecordContext) BindSet(index uint32, set *DescriptorSet, points BindPoints) {
	for kind := PipelineKind(0); kind < pipelineKindCount; kind++ {
		if points.Has(kind) {
			r.sets[kind].Bind(index, set)
		}
	}
}

func (r *RecordContext) BeginRenderPass(info *RenderPassBeginInfo) {
	core.Assert(r.renderPass == nil, "render pass %q begun inside another", info.RenderPass.Name)
	r.renderPass = info
	r.subpass = 0
}

func (r *RecordContext) NextSubPass() {
	core.Assert(r.renderPass != nil, "next subpass outside of a render pass")
	r.subpass++
	core.Assert(r.subpass < len(r.renderPass.RenderPass.Subpasses),
		"render pass %q has only %d subpasses", r.renderPass.RenderPass.Name, len(r.renderPass.RenderPass.Subpasses))
}

func (r *RecordContext) EndRenderPass() {
	core.Assert(r.renderPass != nil, "end render pass outside of a render pass")
	r.renderPass = nil
	r.subpass = 0
}

// RenderPass is the render pass being recorded, nil outside of one.
func (r *RecordContext) RenderPass() *RenderPassBeginInfo {
	return r.renderPass
}

func (r *RecordContext) SubPassIndex() int {
	return r.subpass
}

func (r *RecordContext) Reset() {
	for i := range r.sets {
		r.sets[i].Clear()
	}
	r.renderPass = nil
	r.subpass = 0
}
