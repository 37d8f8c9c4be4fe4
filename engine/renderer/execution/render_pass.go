package execution

import (
	"github.com/spaghettifunk/anima-exec/engine/core"
)

// ImageView is a native view over a sub-range of an image.
type ImageView struct {
	Handle any
	Image  *Image
	Range  ImageRange
}

type AttachmentDescription struct {
	InitialLayout Layout
	FinalLayout   Layout
	IsDepth       bool
}

type AttachmentReference struct {
	Attachment uint32
	Layout     Layout
}

type SubpassDescription struct {
	Colors []AttachmentReference
	Depth  *AttachmentReference
	Inputs []AttachmentReference
}

// RenderPass describes attachments and subpasses. A nil Handle means the pass
// is recorded with dynamic rendering.
type RenderPass struct {
	ID          core.Identifier
	Name        string
	Handle      any
	Attachments []AttachmentDescription
	Subpasses   []SubpassDescription
}

func (r *RenderPass) IsDynamic() bool {
	return r.Handle == nil
}

type Framebuffer struct {
	Handle any
	Views  []*ImageView
	Width  uint32
	Height uint32
	Layers uint32
}

// RenderPassFlags tune how a render pass is recorded.
type RenderPassFlags uint32

const (
	RenderPassFlagsNone RenderPassFlags = 0
	// RenderPassSecondaryContents records subpass contents from secondary command buffers.
	RenderPassSecondaryContents RenderPassFlags = 1
)

func (f RenderPassFlags) contents() SubpassContents {
	if f&RenderPassSecondaryContents != 0 {
		return SubpassContentsSecondary
	}
	return SubpassContentsInline
}

type RenderPassBeginInfo struct {
	RenderPass  *RenderPass
	Framebuffer *Framebuffer
	Area        Rect2D
	ClearValues []ClearValue
}

func attachmentState(isDepth bool) ResourceState {
	if isDepth {
		return State(AccessDepthStencilAttachmentRead|AccessDepthStencilAttachmentWrite,
			StageEarlyFragmentTests|StageLateFragmentTests, LayoutUndefined)
	}
	return State(AccessColorAttachmentRead|AccessColorAttachmentWrite, StageColorAttachmentOutput, LayoutUndefined)
}

func inputState() ResourceState {
	return State(AccessInputAttachmentRead, StageFragmentShader, LayoutUndefined)
}

// attachmentUse accumulates what the subpasses do with one attachment.
type attachmentUse struct {
	used   bool
	state  ResourceState
	layout Layout
}

func (a *attachmentUse) add(s ResourceState, layout Layout) {
	if !a.used {
		a.used, a.state, a.layout = true, s, layout
		return
	}
	a.state = a.state.Union(s)
}

func (info *RenderPassBeginInfo) subpassUses(subpasses []SubpassDescription) []attachmentUse {
	uses := make([]attachmentUse, len(info.RenderPass.Attachments))
	for _, sp := range subpasses {
		for _, ref := range sp.Colors {
			uses[ref.Attachment].add(attachmentState(false), ref.Layout)
		}
		if sp.Depth != nil {
			uses[sp.Depth.Attachment].add(attachmentState(true), sp.Depth.Layout)
		}
		for _, ref := range sp.Inputs {
			uses[ref.Attachment].add(inputState(), ref.Layout)
		}
	}
	return uses
}

// ExportResources adds the attachments of the whole pass to list: each enters
// in its initial layout, or the layout of its first use, and leaves in its
// final layout.
func (info *RenderPassBeginInfo) ExportResources(list *UsageList) {
	rp := info.RenderPass
	core.Assert(len(info.Framebuffer.Views) >= len(rp.Attachments),
		"framebuffer has %d views for %d attachments", len(info.Framebuffer.Views), len(rp.Attachments))
	for i, use := range info.subpassUses(rp.Subpasses) {
		if !use.used {
			continue
		}
		desc := rp.Attachments[i]
		view := info.Framebuffer.Views[i]
		begin := use.state
		begin.Layout = use.layout
		if desc.InitialLayout != LayoutUndefined {
			begin.Layout = desc.InitialLayout
		}
		u := ImageUsage(view.Image, view.Range, begin)
		if desc.FinalLayout != LayoutUndefined && desc.FinalLayout != begin.Layout {
			end := use.state
			end.Layout = desc.FinalLayout
			u = u.WithEnd(end)
		}
		list.Add(u)
	}
}

// ExportSubpassResources adds the attachments of one subpass, each in the
// layout the subpass references it with.
func (info *RenderPassBeginInfo) ExportSubpassResources(subpass int, list *UsageList) {
	rp := info.RenderPass
	for i, use := range info.subpassUses(rp.Subpasses[subpass : subpass+1]) {
		if !use.used {
			continue
		}
		view := info.Framebuffer.Views[i]
		begin := use.state
		begin.Layout = use.layout
		list.Add(ImageUsage(view.Image, view.Range, begin))
	}
}

// RenderingInfo builds the dynamic rendering scope of one subpass. Clear
// values apply to the first subpass using an attachment.
func (info *RenderPassBeginInfo) RenderingInfo(subpass int) *RenderingInfo {
	rp := info.RenderPass
	sp := rp.Subpasses[subpass]
	ri := &RenderingInfo{Area: info.Area, Layers: max(info.Framebuffer.Layers, 1)}
	attach := func(ref AttachmentReference) RenderingAttachment {
		a := RenderingAttachment{View: info.Framebuffer.Views[ref.Attachment], Layout: ref.Layout}
		if int(ref.Attachment) < len(info.ClearValues) && info.firstUse(ref.Attachment) == subpass {
			clearValue := info.ClearValues[ref.Attachment]
			a.Clear = &clearValue
		}
		return a
	}
	for _, ref := range sp.Colors {
		ri.Colors = append(ri.Colors, attach(ref))
	}
	if sp.Depth != nil {
		depth := attach(*sp.Depth)
		ri.Depth = &depth
	}
	return ri
}

func (info *RenderPassBeginInfo) firstUse(attachment uint32) int {
	for i, sp := range info.RenderPass.Subpasses {
		for _, ref := range sp.Colors {
			if ref.Attachment == attachment {
				return i
			}
		}
		if sp.Depth != nil && sp.Depth.Attachment == attachment {
			return i
		}
		for _, ref := range sp.Inputs {
			if ref.Attachment == attachment {
				return i
			}
		}
	}
	return -1
}
