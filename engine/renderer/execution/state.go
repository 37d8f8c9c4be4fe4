package execution

// Access is a memory access mask. Bit values match the native API access flags.
type Access uint32

const (
	AccessNone                        Access = 0
	AccessIndirectCommandRead         Access = 0x00000001
	AccessIndexRead                   Access = 0x00000002
	AccessVertexAttributeRead         Access = 0x00000004
	AccessUniformRead                 Access = 0x00000008
	AccessInputAttachmentRead         Access = 0x00000010
	AccessShaderRead                  Access = 0x00000020
	AccessShaderWrite                 Access = 0x00000040
	AccessColorAttachmentRead         Access = 0x00000080
	AccessColorAttachmentWrite        Access = 0x00000100
	AccessDepthStencilAttachmentRead  Access = 0x00000200
	AccessDepthStencilAttachmentWrite Access = 0x00000400
	AccessTransferRead                Access = 0x00000800
	AccessTransferWrite               Access = 0x00001000
	AccessHostRead                    Access = 0x00002000
	AccessHostWrite                   Access = 0x00004000
	AccessMemoryRead                  Access = 0x00008000
	AccessMemoryWrite                 Access = 0x00010000
)

const accessWriteMask = AccessShaderWrite |
	AccessColorAttachmentWrite |
	AccessDepthStencilAttachmentWrite |
	AccessTransferWrite |
	AccessHostWrite |
	AccessMemoryWrite

const accessReadMask = AccessIndirectCommandRead |
	AccessIndexRead |
	AccessVertexAttributeRead |
	AccessUniformRead |
	AccessInputAttachmentRead |
	AccessShaderRead |
	AccessColorAttachmentRead |
	AccessDepthStencilAttachmentRead |
	AccessTransferRead |
	AccessHostRead |
	AccessMemoryRead

func (a Access) IsWrite() bool {
	return a&accessWriteMask != 0
}

func (a Access) IsRead() bool {
	return a&accessReadMask != 0
}

// IsReadOnly reports an access that reads and never writes.
func (a Access) IsReadOnly() bool {
	return a.IsRead() && !a.IsWrite()
}

func (a Access) Contains(o Access) bool {
	return a&o == o
}

// Stage is a pipeline stage mask. Bit values match the native API stage flags.
type Stage uint32

const (
	StageNone                  Stage = 0
	StageTopOfPipe             Stage = 0x00000001
	StageDrawIndirect          Stage = 0x00000002
	StageVertexInput           Stage = 0x00000004
	StageVertexShader          Stage = 0x00000008
	StageTessellationControl   Stage = 0x00000010
	StageTessellationEval      Stage = 0x00000020
	StageGeometryShader        Stage = 0x00000040
	StageFragmentShader        Stage = 0x00000080
	StageEarlyFragmentTests    Stage = 0x00000100
	StageLateFragmentTests     Stage = 0x00000200
	StageColorAttachmentOutput Stage = 0x00000400
	StageComputeShader         Stage = 0x00000800
	StageTransfer              Stage = 0x00001000
	StageBottomOfPipe          Stage = 0x00002000
	StageHost                  Stage = 0x00004000
	StageAllGraphics           Stage = 0x00008000
	StageAllCommands           Stage = 0x00010000
	StageRayTracingShader      Stage = 0x00200000
)

func (s Stage) Contains(o Stage) bool {
	return s&o == o
}

// Layout is an image layout. Values match the native API layouts.
type Layout int32

const (
	LayoutUndefined                     Layout = 0
	LayoutGeneral                       Layout = 1
	LayoutColorAttachmentOptimal        Layout = 2
	LayoutDepthStencilAttachmentOptimal Layout = 3
	LayoutDepthStencilReadOnlyOptimal   Layout = 4
	LayoutShaderReadOnlyOptimal         Layout = 5
	LayoutTransferSrcOptimal            Layout = 6
	LayoutTransferDstOptimal            Layout = 7
	LayoutPreinitialized                Layout = 8
	LayoutPresentSrc                    Layout = 1000001002
)

func (l Layout) String() string {
	switch l {
	case LayoutUndefined:
		return "undefined"
	case LayoutGeneral:
		return "general"
	case LayoutColorAttachmentOptimal:
		return "color_attachment"
	case LayoutDepthStencilAttachmentOptimal:
		return "depth_stencil_attachment"
	case LayoutDepthStencilReadOnlyOptimal:
		return "depth_stencil_read_only"
	case LayoutShaderReadOnlyOptimal:
		return "shader_read_only"
	case LayoutTransferSrcOptimal:
		return "transfer_src"
	case LayoutTransferDstOptimal:
		return "transfer_dst"
	case LayoutPreinitialized:
		return "preinitialized"
	case LayoutPresentSrc:
		return "present_src"
	default:
		return "unknown"
	}
}

// QueueFamily identifies the queue family owning a resource. The zero value
// means no ownership is requested or recorded.
type QueueFamily uint32

const QueueFamilyIgnored QueueFamily = 0

// QueueFamilyIndex wraps a native queue family index.
func QueueFamilyIndex(index uint32) QueueFamily {
	return QueueFamily(index + 1)
}

// Index returns the native family index, false when ignored.
func (q QueueFamily) Index() (uint32, bool) {
	if q == QueueFamilyIgnored {
		return 0, false
	}
	return uint32(q) - 1, true
}

// ResourceState is the last known, or desired, GPU state of a sub-range.
type ResourceState struct {
	Access Access
	Stage  Stage
	Layout Layout
	Queue  QueueFamily
}

// State builds a state without queue ownership.
func State(access Access, stage Stage, layout Layout) ResourceState {
	return ResourceState{Access: access, Stage: stage, Layout: layout}
}

// Union merges access and stage masks, keeping the receiver's layout and queue.
func (s ResourceState) Union(o ResourceState) ResourceState {
	s.Access |= o.Access
	s.Stage |= o.Stage
	return s
}

// WithQueue returns s requesting ownership on queue.
func (s ResourceState) WithQueue(queue QueueFamily) ResourceState {
	s.Queue = queue
	return s
}

func (s ResourceState) IsZero() bool {
	return s.Access == AccessNone && s.Stage == StageNone
}

// packedState is the word encoding of a ResourceState, used as a comparable key.
type packedState struct {
	masks uint64
	place uint64
}

func (s ResourceState) pack() packedState {
	return packedState{
		masks: uint64(s.Access)<<32 | uint64(s.Stage),
		place: uint64(uint32(s.Layout))<<32 | uint64(s.Queue),
	}
}

func (p packedState) unpack() ResourceState {
	return ResourceState{
		Access: Access(p.masks >> 32),
		Stage:  Stage(uint32(p.masks)),
		Layout: Layout(int32(uint32(p.place >> 32))),
		Queue:  QueueFamily(uint32(p.place)),
	}
}

// DoubleState is what a state slot records: the last write and every
// read-only access made visible since that write.
type DoubleState struct {
	Write    ResourceState
	ReadOnly ResourceState
}

// InitialState is the state of a sub-range nothing has touched yet.
func InitialState(layout Layout, queue QueueFamily) DoubleState {
	return DoubleState{
		Write:    ResourceState{Layout: layout, Queue: queue},
		ReadOnly: ResourceState{Layout: layout, Queue: queue},
	}
}

func (d DoubleState) Layout() Layout {
	return d.ReadOnly.Layout
}

func (d DoubleState) Queue() QueueFamily {
	return d.Write.Queue
}

// Apply returns the slot state once next has happened on the GPU timeline.
// isImage enables layout tracking.
func (d DoubleState) Apply(next ResourceState, isImage bool) DoubleState {
	queue := d.Queue()
	if next.Queue != QueueFamilyIgnored {
		queue = next.Queue
	}
	layout := d.Layout()
	if isImage {
		layout = next.Layout
	}
	switch {
	case next.Access.IsWrite():
		w := next
		w.Layout, w.Queue = layout, queue
		return DoubleState{
			Write:    w,
			ReadOnly: ResourceState{Layout: layout, Queue: queue},
		}
	case layout != d.Layout() || queue != d.Queue():
		// A transition is a write by itself; only next's accesses see it.
		r := next
		r.Layout, r.Queue = layout, queue
		return DoubleState{
			Write:    ResourceState{Stage: next.Stage, Layout: layout, Queue: queue},
			ReadOnly: r,
		}
	default:
		ro := d.ReadOnly.Union(next)
		ro.Layout, ro.Queue = layout, queue
		return DoubleState{Write: d.Write, ReadOnly: ro}
	}
}
