package execution

import (
	"fmt"
	"slices"

	"github.com/spaghettifunk/anima-exec/engine/core"
)

// Usage declares that an operation touches a sub-range of a resource in a
// given state. End, when set, is the state the operation leaves it in.
// A non-ignored State.Queue requests ownership on that queue family.
type Usage struct {
	Buffer      *Buffer
	BufferRange BufferRange

	Image      *Image
	ImageRange ImageRange

	State ResourceState
	End   *ResourceState
}

func BufferUsage(b *Buffer, r BufferRange, state ResourceState) Usage {
	return Usage{Buffer: b, BufferRange: r, State: state}
}

func ImageUsage(img *Image, r ImageRange, state ResourceState) Usage {
	return Usage{Image: img, ImageRange: r, State: state}
}

// WithEnd returns a copy of u leaving the resource in end.
func (u Usage) WithEnd(end ResourceState) Usage {
	u.End = &end
	return u
}

// WithQueue returns a copy of u requesting ownership on queue.
func (u Usage) WithQueue(queue QueueFamily) Usage {
	u.State.Queue = queue
	return u
}

func (u Usage) Resource() Resource {
	if u.Buffer != nil {
		return u.Buffer
	}
	return u.Image
}

// FinalState is what the resource holds once the usage completed.
func (u Usage) FinalState() ResourceState {
	if u.End != nil {
		return *u.End
	}
	return u.State
}

func (u Usage) sameResource(o Usage) bool {
	if u.Buffer != nil {
		return u.Buffer == o.Buffer
	}
	return u.Image != nil && u.Image == o.Image
}

func (u Usage) overlaps(o Usage) bool {
	if !u.sameResource(o) {
		return false
	}
	if u.Buffer != nil {
		return u.BufferRange.Overlaps(o.BufferRange)
	}
	return u.ImageRange.Overlaps(o.ImageRange)
}

func (u Usage) String() string {
	if u.Buffer != nil {
		return fmt.Sprintf("%s %s access=%#x stage=%#x", u.Buffer.Name(), u.BufferRange, u.State.Access, u.State.Stage)
	}
	return fmt.Sprintf("%s %s access=%#x stage=%#x layout=%s", u.Image.Name(), u.ImageRange, u.State.Access, u.State.Stage, u.State.Layout)
}

func mergeUsage(a, b Usage) Usage {
	if a.Buffer != nil {
		a.BufferRange = a.BufferRange.Hull(b.BufferRange)
	} else {
		core.Assert(a.State.Layout == b.State.Layout,
			"image %q used with layouts %s and %s by the same operation", a.Image.Name(), a.State.Layout, b.State.Layout)
		a.ImageRange = a.ImageRange.Intersect(b.ImageRange)
	}
	core.Assert(a.State.Queue == QueueFamilyIgnored || b.State.Queue == QueueFamilyIgnored || a.State.Queue == b.State.Queue,
		"%s requested on two queue families by the same operation", a.Resource().Name())
	queue := a.State.Queue
	if queue == QueueFamilyIgnored {
		queue = b.State.Queue
	}
	a.State = a.State.Union(b.State)
	a.State.Queue = queue
	if b.End != nil {
		core.Assert(a.End == nil || *a.End == *b.End, "%s has more than one end state", a.Resource().Name())
		a.End = b.End
	}
	return a
}

func sameEnd(a, b *ResourceState) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// UsageList is the set of sub-ranges an operation touches. Buffer entries with
// overlapping ranges are merged. Image entries stay disjoint rectangles whose
// states are unioned only where declarations intersect. Order is insertion order.
type UsageList struct {
	usages []Usage
}

// Add appends u, merging it with every overlapping entry of the same resource.
func (l *UsageList) Add(usages ...Usage) {
	for _, u := range usages {
		l.add(u)
	}
}

func (l *UsageList) add(u Usage) {
	core.Assert((u.Buffer == nil) != (u.Image == nil), "usage must reference exactly one buffer or image")
	core.Assert(u.Resource().Ready(), "%s is not ready and cannot be used", u.Resource().Name())
	if u.Buffer != nil {
		u.BufferRange = u.Buffer.Resolve(u.BufferRange)
		if u.BufferRange.Empty() {
			return
		}
	} else {
		u.ImageRange = u.Image.Resolve(u.ImageRange)
		if !u.ImageRange.Empty() {
			l.addImage(u)
		}
		return
	}

	at := -1
	for i := range l.usages {
		if l.usages[i].overlaps(u) {
			at = i
			break
		}
	}
	if at < 0 {
		l.usages = append(l.usages, u)
		return
	}
	l.usages[at] = mergeUsage(l.usages[at], u)

	// The widened range may now reach entries it did not overlap before.
	for merged := true; merged; {
		merged = false
		for i := 0; i < len(l.usages); i++ {
			if i == at || !l.usages[at].overlaps(l.usages[i]) {
				continue
			}
			l.usages[at] = mergeUsage(l.usages[at], l.usages[i])
			l.usages = append(l.usages[:i], l.usages[i+1:]...)
			if i < at {
				at--
			}
			merged = true
			break
		}
	}
}

func (l *UsageList) addImage(u Usage) {
	rest := []ImageRange{u.ImageRange}
	for i := 0; i < len(l.usages); i++ {
		e := l.usages[i]
		if !e.overlaps(u) {
			continue
		}
		pieces := []Usage{mergeUsage(e, u)}
		for _, r := range e.ImageRange.Subtract(u.ImageRange) {
			p := e
			p.ImageRange = r
			pieces = append(pieces, p)
		}
		l.usages = slices.Replace(l.usages, i, i+1, pieces...)
		i += len(pieces) - 1

		var left []ImageRange
		for _, r := range rest {
			left = append(left, r.Subtract(e.ImageRange)...)
		}
		rest = left
	}
	for _, r := range rest {
		p := u
		p.ImageRange = r
		l.usages = append(l.usages, p)
	}
	l.coalesce(u.Image)
}

// coalesce joins entries of img with equal states whose union is a rectangle.
func (l *UsageList) coalesce(img *Image) {
	for joined := true; joined; {
		joined = false
		for i := 0; i < len(l.usages) && !joined; i++ {
			a := l.usages[i]
			if a.Image != img {
				continue
			}
			for j := i + 1; j < len(l.usages); j++ {
				b := l.usages[j]
				if b.Image != img || a.State != b.State || !sameEnd(a.End, b.End) {
					continue
				}
				if r, ok := a.ImageRange.Join(b.ImageRange); ok {
					l.usages[i].ImageRange = r
					l.usages = slices.Delete(l.usages, j, j+1)
					joined = true
					break
				}
			}
		}
	}
}

// Merge folds every entry of other into l.
func (l *UsageList) Merge(other *UsageList) {
	for _, u := range other.usages {
		l.add(u)
	}
}

func (l *UsageList) Clear() {
	clear(l.usages)
	l.usages = l.usages[:0]
}

func (l *UsageList) Len() int {
	return len(l.usages)
}

func (l *UsageList) Empty() bool {
	return len(l.usages) == 0
}

// Usages returns the entries in insertion order. The slice must not be modified.
func (l *UsageList) Usages() []Usage {
	return l.usages
}
