package execution

import (
	"sort"

	"github.com/spaghettifunk/anima-exec/engine/core"
	"golang.org/x/exp/constraints"
)

// StateInRange is one slot of a partition clipped to a query.
type StateInRange[T constraints.Unsigned] struct {
	Range Range[T]
	State DoubleState
}

type stateSlot[T constraints.Unsigned] struct {
	begin T
	state DoubleState
}

// statePartition covers [0, extent) with sorted, non-overlapping slots.
// A slot ends where the next one begins.
type statePartition[T constraints.Unsigned] struct {
	extent T
	slots  []stateSlot[T]
}

func newStatePartition[T constraints.Unsigned](extent T, initial DoubleState) *statePartition[T] {
	return &statePartition[T]{
		extent: extent,
		slots:  []stateSlot[T]{{begin: 0, state: initial}},
	}
}

func (p *statePartition[T]) slotEnd(i int) T {
	if i+1 < len(p.slots) {
		return p.slots[i+1].begin
	}
	return p.extent
}

// find returns the index of the slot containing pos.
func (p *statePartition[T]) find(pos T) int {
	i := sort.Search(len(p.slots), func(i int) bool { return p.slots[i].begin > pos })
	return i - 1
}

func (p *statePartition[T]) clip(r Range[T]) Range[T] {
	return r.Intersect(Range[T]{Len: p.extent})
}

// get appends to out every slot overlapping r, clipped to r.
func (p *statePartition[T]) get(r Range[T], out []StateInRange[T]) []StateInRange[T] {
	r = p.clip(r)
	if r.Empty() {
		return out
	}
	for i := p.find(r.Begin); i < len(p.slots) && p.slots[i].begin < r.End(); i++ {
		slot := MakeRange(p.slots[i].begin, p.slotEnd(i)).Intersect(r)
		out = append(out, StateInRange[T]{Range: slot, State: p.slots[i].state})
	}
	return out
}

// split makes pos a slot boundary.
func (p *statePartition[T]) split(pos T) {
	if pos == 0 || pos >= p.extent {
		return
	}
	i := p.find(pos)
	if p.slots[i].begin == pos {
		return
	}
	p.slots = append(p.slots, stateSlot[T]{})
	copy(p.slots[i+2:], p.slots[i+1:])
	p.slots[i+1] = stateSlot[T]{begin: pos, state: p.slots[i].state}
}

func (p *statePartition[T]) coalesce() {
	out := p.slots[:1]
	for _, s := range p.slots[1:] {
		if s.state == out[len(out)-1].state {
			continue
		}
		out = append(out, s)
	}
	p.slots = out
}

// update rewrites the state of every slot inside r through fn.
func (p *statePartition[T]) update(r Range[T], fn func(DoubleState) DoubleState) {
	r = p.clip(r)
	if r.Empty() {
		return
	}
	p.split(r.Begin)
	p.split(r.End())
	for i := p.find(r.Begin); i < len(p.slots) && p.slots[i].begin < r.End(); i++ {
		p.slots[i].state = fn(p.slots[i].state)
	}
	p.coalesce()
	p.check()
}

func (p *statePartition[T]) set(r Range[T], state DoubleState) {
	p.update(r, func(DoubleState) DoubleState { return state })
}

func (p *statePartition[T]) check() {
	if !core.AssertionsEnabled {
		return
	}
	core.Assert(len(p.slots) > 0 && p.slots[0].begin == 0, "state partition must start at 0")
	for i := 1; i < len(p.slots); i++ {
		core.Assert(p.slots[i-1].begin < p.slots[i].begin, "state partition slots must be sorted and non-empty")
		core.Assert(p.slots[i].begin < p.extent, "state partition slot begins past the extent")
	}
}

func (p *statePartition[T]) len() int {
	return len(p.slots)
}
