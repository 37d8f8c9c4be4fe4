package execution

import (
	"github.com/spaghettifunk/anima-exec/engine/core"
)

type PipelineKind int

const (
	PipelineGraphics PipelineKind = iota
	PipelineCompute
	PipelineRayTracing
	pipelineKindCount
)

func (k PipelineKind) String() string {
	switch k {
	case PipelineGraphics:
		return "graphics"
	case PipelineCompute:
		return "compute"
	case PipelineRayTracing:
		return "ray_tracing"
	default:
		return "unknown"
	}
}

// BindPoints selects the pipeline kinds a descriptor set is bound for.
type BindPoints uint8

const (
	BindGraphics   BindPoints = 1 << PipelineGraphics
	BindCompute    BindPoints = 1 << PipelineCompute
	BindRayTracing BindPoints = 1 << PipelineRayTracing
	BindAll                   = BindGraphics | BindCompute | BindRayTracing
)

func (b BindPoints) Has(kind PipelineKind) bool {
	return b&(1<<kind) != 0
}

// PipelineLayout is the native layout object and the number of set slots it declares.
type PipelineLayout struct {
	Handle   any
	SetCount uint32
}

type Pipeline struct {
	Name   string
	Handle any
	Kind   PipelineKind
	Layout *PipelineLayout
}

// DescriptorSet is a native set together with the resource states its bindings imply.
type DescriptorSet struct {
	ID        core.Identifier
	Name      string
	Handle    any
	Resources []Usage
}

func NewDescriptorSet(name string, handle any, resources ...Usage) *DescriptorSet {
	return &DescriptorSet{
		ID:        core.NewIdentifier(),
		Name:      name,
		Handle:    handle,
		Resources: resources,
	}
}

// BoundSets tracks which set is bound at each index, logically.
type BoundSets struct {
	sets []*DescriptorSet
}

func (b *BoundSets) Bind(index uint32, set *DescriptorSet) {
	for uint32(len(b.sets)) <= index {
		b.sets = append(b.sets, nil)
	}
	b.sets[index] = set
}

func (b *BoundSets) Get(index uint32) *DescriptorSet {
	if index >= uint32(len(b.sets)) {
		return nil
	}
	return b.sets[index]
}

func (b *BoundSets) IsBound(index uint32, set *DescriptorSet) bool {
	return set != nil && b.Get(index) == set
}

// DeclareResources adds the resources of the sets bound in [0, count).
func (b *BoundSets) DeclareResources(count uint32, list *UsageList) {
	for i := uint32(0); i < count; i++ {
		if set := b.Get(i); set != nil {
			list.Add(set.Resources...)
		}
	}
}

func (b *BoundSets) Clear() {
	clear(b.sets)
	b.sets = b.sets[:0]
}

// BoundSetsManager is the physical side of BoundSets: binds are recorded
// lazily, for contiguous dirty ranges, when a shader command needs them.
type BoundSetsManager struct {
	kind   PipelineKind
	bound  BoundSets
	dirty  []bool
	layout *PipelineLayout
}

func NewBoundSetsManager(kind PipelineKind) *BoundSetsManager {
	return &BoundSetsManager{kind: kind}
}

func (m *BoundSetsManager) Bind(index uint32, set *DescriptorSet) {
	if m.bound.Get(index) == set {
		return
	}
	m.bound.Bind(index, set)
	for uint32(len(m.dirty)) <= index {
		m.dirty = append(m.dirty, false)
	}
	m.dirty[index] = true
}

func (m *BoundSetsManager) Get(index uint32) *DescriptorSet {
	return m.bound.Get(index)
}

// Record emits the binds the layout needs. A layout change rebinds every set.
func (m *BoundSetsManager) Record(cb NativeCommandBuffer, layout *PipelineLayout) {
	if layout == nil {
		return
	}
	if m.layout != layout {
		for i := range m.dirty {
			m.dirty[i] = m.bound.Get(uint32(i)) != nil
		}
		m.layout = layout
	}
	count := min(layout.SetCount, uint32(len(m.dirty)))
	for i := uint32(0); i < count; {
		if !m.dirty[i] || m.bound.Get(i) == nil {
			i++
			continue
		}
		first := i
		var sets []*DescriptorSet
		for ; i < count && m.dirty[i] && m.bound.Get(i) != nil; i++ {
			sets = append(sets, m.bound.Get(i))
			m.dirty[i] = false
		}
		cb.BindDescriptorSets(m.kind, layout, first, sets)
	}
}

func (m *BoundSetsManager) Reset() {
	m.bound.Clear()
	clear(m.dirty)
	m.dirty = m.dirty[:0]
	m.layout = nil
}
