package execution

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/anima-exec/engine/core"
)

// DefaultGenerations is the number of independent state sets a resource keeps.
const DefaultGenerations = 3

// Resource is something an Usage can reference: a *Buffer or an *Image.
type Resource interface {
	ID() core.Identifier
	Name() string
	Ready() bool
}

// BufferInfo describes a buffer created by the backend.
type BufferInfo struct {
	Name        string
	Handle      any
	Size        uint64
	Queue       QueueFamily
	Generations int
}

// Buffer tracks the synchronization state of a native buffer.
type Buffer struct {
	id     core.Identifier
	name   string
	handle any
	size   uint64
	queue  QueueFamily

	mu     sync.Mutex
	states []*statePartition[uint64]
}

func NewBuffer(info BufferInfo) *Buffer {
	core.Assert(info.Size > 0, "buffer %q must not be empty", info.Name)
	generations := info.Generations
	if generations <= 0 {
		generations = DefaultGenerations
	}
	return &Buffer{
		id:     core.NewIdentifier(),
		name:   info.Name,
		handle: info.Handle,
		size:   info.Size,
		queue:  info.Queue,
		states: make([]*statePartition[uint64], generations),
	}
}

func (b *Buffer) ID() core.Identifier { return b.id }
func (b *Buffer) Name() string        { return b.name }
func (b *Buffer) Handle() any         { return b.handle }
func (b *Buffer) Size() uint64        { return b.size }

// Ready reports whether the native buffer exists.
func (b *Buffer) Ready() bool {
	return b.handle != nil
}

// SetHandle attaches the native buffer once the backend created it.
func (b *Buffer) SetHandle(handle any) {
	b.handle = handle
}

// Resolve clips r to the buffer; a zero length means up to the end.
func (b *Buffer) Resolve(r BufferRange) BufferRange {
	if r.Len == 0 && r.Begin < b.size {
		r.Len = b.size - r.Begin
	}
	return r.Intersect(BufferRange{Len: b.size})
}

func (b *Buffer) Full() BufferRange {
	return BufferRange{Len: b.size}
}

func (b *Buffer) partition(generation int) *statePartition[uint64] {
	core.Assert(generation >= 0 && generation < len(b.states), "buffer %q has no generation %d", b.name, generation)
	if b.states[generation] == nil {
		b.states[generation] = newStatePartition(b.size, InitialState(LayoutUndefined, b.queue))
	}
	return b.states[generation]
}

// GetState returns every state slot overlapping r, clipped to r, in order.
func (b *Buffer) GetState(generation int, r BufferRange) []StateInRange[uint64] {
	return b.appendState(generation, r, nil)
}

func (b *Buffer) appendState(generation int, r BufferRange, out []StateInRange[uint64]) []StateInRange[uint64] {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.partition(generation).get(b.Resolve(r), out)
}

// SetState overwrites exactly r with state.
func (b *Buffer) SetState(generation int, r BufferRange, state DoubleState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.partition(generation).set(b.Resolve(r), state)
}

// applyState folds next into every slot of r.
func (b *Buffer) applyState(generation int, r BufferRange, next ResourceState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.partition(generation).update(b.Resolve(r), func(s DoubleState) DoubleState {
		return s.Apply(next, false)
	})
}

func (b *Buffer) String() string {
	return fmt.Sprintf("buffer(%s, %d bytes)", b.name, b.size)
}

// ImageInfo describes an image created by the backend.
type ImageInfo struct {
	Name          string
	Handle        any
	Aspect        ImageAspect
	Width         uint32
	Height        uint32
	Mips          uint32
	Layers        uint32
	InitialLayout Layout
	Queue         QueueFamily
	Generations   int
	// TexelSize is the size of one texel in bytes, 4 when unset.
	TexelSize     uint32
}

// ImageStateInRange is a state slot of one mip level, clipped to a query.
type ImageStateInRange struct {
	Range ImageRange
	State DoubleState
}

// Image tracks the synchronization state of a native image, per mip level and layer.
type Image struct {
	id            core.Identifier
	name          string
	handle        any
	aspect        ImageAspect
	width, height uint32
	mips, layers  uint32
	initialLayout Layout
	queue         QueueFamily
	texelSize     uint32

	mu     sync.Mutex
	states [][]*statePartition[uint32]
}

func NewImage(info ImageInfo) *Image {
	mips, layers := max(info.Mips, 1), max(info.Layers, 1)
	generations := info.Generations
	if generations <= 0 {
		generations = DefaultGenerations
	}
	aspect := info.Aspect
	if aspect == 0 {
		aspect = ImageAspectColor
	}
	texelSize := info.TexelSize
	if texelSize == 0 {
		texelSize = 4
	}
	return &Image{
		id:            core.NewIdentifier(),
		name:          info.Name,
		handle:        info.Handle,
		aspect:        aspect,
		width:         info.Width,
		height:        info.Height,
		mips:          mips,
		layers:        layers,
		initialLayout: info.InitialLayout,
		queue:         info.Queue,
		texelSize:     texelSize,
		states:        make([][]*statePartition[uint32], generations),
	}
}

func (i *Image) ID() core.Identifier   { return i.id }
func (i *Image) Name() string          { return i.name }
func (i *Image) Handle() any           { return i.handle }
func (i *Image) Aspect() ImageAspect   { return i.aspect }
func (i *Image) Extent() (w, h uint32) { return i.width, i.height }
func (i *Image) Mips() uint32          { return i.mips }
func (i *Image) Layers() uint32        { return i.layers }
func (i *Image) TexelSize() uint32     { return i.texelSize }
func (i *Image) Ready() bool           { return i.handle != nil }
func (i *Image) SetHandle(handle any)  { i.handle = handle }

// Full is the range covering every mip level and layer.
func (i *Image) Full() ImageRange {
	return ImageRange{
		Aspect: i.aspect,
		Mips:   Range[uint32]{Len: i.mips},
		Layers: Range[uint32]{Len: i.layers},
	}
}

// Resolve clips r to the image; empty mip or layer ranges mean all of them.
func (i *Image) Resolve(r ImageRange) ImageRange {
	if r.Aspect == 0 {
		r.Aspect = i.aspect
	}
	if r.Mips.Len == 0 && r.Mips.Begin < i.mips {
		r.Mips.Len = i.mips - r.Mips.Begin
	}
	if r.Layers.Len == 0 && r.Layers.Begin < i.layers {
		r.Layers.Len = i.layers - r.Layers.Begin
	}
	r.Mips = r.Mips.Intersect(Range[uint32]{Len: i.mips})
	r.Layers = r.Layers.Intersect(Range[uint32]{Len: i.layers})
	return r
}

func (i *Image) partitions(generation int) []*statePartition[uint32] {
	core.Assert(generation >= 0 && generation < len(i.states), "image %q has no generation %d", i.name, generation)
	if i.states[generation] == nil {
		mips := make([]*statePartition[uint32], i.mips)
		for m := range mips {
			mips[m] = newStatePartition(i.layers, InitialState(i.initialLayout, i.queue))
		}
		i.states[generation] = mips
	}
	return i.states[generation]
}

// GetState returns the overlapping slots of each mip level, by mip then layer.
func (i *Image) GetState(generation int, r ImageRange) []ImageStateInRange {
	return i.appendState(generation, r, nil)
}

func (i *Image) appendState(generation int, r ImageRange, out []ImageStateInRange) []ImageStateInRange {
	i.mu.Lock()
	defer i.mu.Unlock()
	r = i.Resolve(r)
	var scratch []StateInRange[uint32]
	for m := r.Mips.Begin; m < r.Mips.End(); m++ {
		scratch = i.partitions(generation)[m].get(r.Layers, scratch[:0])
		for _, s := range scratch {
			out = append(out, ImageStateInRange{
				Range: ImageRange{Aspect: r.Aspect, Mips: Range[uint32]{Begin: m, Len: 1}, Layers: s.Range},
				State: s.State,
			})
		}
	}
	return out
}

// SetState overwrites exactly r with state.
func (i *Image) SetState(generation int, r ImageRange, state DoubleState) {
	i.mu.Lock()
	defer i.mu.Unlock()
	r = i.Resolve(r)
	for m := r.Mips.Begin; m < r.Mips.End(); m++ {
		i.partitions(generation)[m].set(r.Layers, state)
	}
}

func (i *Image) applyState(generation int, r ImageRange, next ResourceState) {
	i.mu.Lock()
	defer i.mu.Unlock()
	r = i.Resolve(r)
	for m := r.Mips.Begin; m < r.Mips.End(); m++ {
		i.partitions(generation)[m].update(r.Layers, func(s DoubleState) DoubleState {
			return s.Apply(next, true)
		})
	}
}

func (i *Image) String() string {
	return fmt.Sprintf("image(%s, %dx%d, %d mips, %d layers)", i.name, i.width, i.height, i.mips, i.layers)
}
