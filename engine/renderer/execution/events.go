package execution

type commandEventType uint8

const (
	eventBeginRenderPass commandEventType = iota
	eventNode
	eventBindSet
	eventPushLabel
	eventPopLabel
	eventInsertLabel
	eventNextSubpass
)

// commandEvent references an entry of one of the typed arrays of deferredEvents.
type commandEvent struct {
	kind  commandEventType
	index uint32
	flags RenderPassFlags
}

type bindSetEvent struct {
	index  uint32
	set    *DescriptorSet
	points BindPoints
}

type labelEvent struct {
	offset uint32
	length uint32
	color  DebugColor
}

// deferredEvents buffers everything recorded inside a render pass.
type deferredEvents struct {
	events      []commandEvent
	nodes       []*ExecutionNode
	sets        []bindSetEvent
	labels      []labelEvent
	names       []byte
	beginInfos  []RenderPassBeginInfo
	clearValues []ClearValue
	// resources holds the union of node usages, one list per subpass when
	// subpasses are resolved separately.
	resources []UsageList
}

func (d *deferredEvents) push(kind commandEventType, index int, flags RenderPassFlags) {
	d.events = append(d.events, commandEvent{kind: kind, index: uint32(index), flags: flags})
}

func (d *deferredEvents) addNode(node *ExecutionNode) {
	d.resources[len(d.resources)-1].Merge(node.Resources())
	d.push(eventNode, len(d.nodes), RenderPassFlagsNone)
	d.nodes = append(d.nodes, node)
}

func (d *deferredEvents) addBindSet(index uint32, set *DescriptorSet, points BindPoints) {
	d.push(eventBindSet, len(d.sets), RenderPassFlagsNone)
	d.sets = append(d.sets, bindSetEvent{index: index, set: set, points: points})
}

func (d *deferredEvents) addLabel(kind commandEventType, name string, color DebugColor) {
	d.push(kind, len(d.labels), RenderPassFlagsNone)
	d.labels = append(d.labels, labelEvent{offset: uint32(len(d.names)), length: uint32(len(name)), color: color})
	d.names = append(d.names, name...)
}

func (d *deferredEvents) labelName(e labelEvent) string {
	return string(d.names[e.offset : e.offset+e.length])
}

func (d *deferredEvents) addPopLabel() {
	d.push(eventPopLabel, 0, RenderPassFlagsNone)
}

func (d *deferredEvents) addNextSubpass(flags RenderPassFlags, splitResources bool) {
	d.push(eventNextSubpass, 0, flags)
	if splitResources {
		d.resources = append(d.resources, UsageList{})
	}
}

// begin stores a copy of info behind a begin event; its clear values live in
// clearValues.
func (d *deferredEvents) begin(info *RenderPassBeginInfo, flags RenderPassFlags) *RenderPassBeginInfo {
	d.push(eventBeginRenderPass, len(d.beginInfos), flags)
	first := len(d.clearValues)
	d.clearValues = append(d.clearValues, info.ClearValues...)
	stored := *info
	stored.ClearValues = d.clearValues[first:len(d.clearValues):len(d.clearValues)]
	d.beginInfos = append(d.beginInfos, stored)
	d.resources = append(d.resources[:0], UsageList{})
	return &d.beginInfos[len(d.beginInfos)-1]
}

func (d *deferredEvents) clear() {
	clear(d.events)
	clear(d.nodes)
	clear(d.sets)
	clear(d.beginInfos)
	d.events = d.events[:0]
	d.nodes = d.nodes[:0]
	d.sets = d.sets[:0]
	d.labels = d.labels[:0]
	d.names = d.names[:0]
	d.beginInfos = d.beginInfos[:0]
	d.clearValues = d.clearValues[:0]
	for i := range d.resources {
		d.resources[i].Clear()
	}
	d.resources = d.resources[:0]
}

func (d *deferredEvents) empty() bool {
	return len(d.events) == 0
}
