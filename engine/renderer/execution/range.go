package execution

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

// Range is a half-open interval [Begin, Begin+Len).
type Range[T constraints.Unsigned] struct {
	Begin T
	Len   T
}

func MakeRange[T constraints.Unsigned](begin, end T) Range[T] {
	if end < begin {
		return Range[T]{Begin: begin}
	}
	return Range[T]{Begin: begin, Len: end - begin}
}

func (r Range[T]) End() T {
	return r.Begin + r.Len
}

func (r Range[T]) Empty() bool {
	return r.Len == 0
}

func (r Range[T]) Overlaps(o Range[T]) bool {
	return r.Begin < o.End() && o.Begin < r.End()
}

func (r Range[T]) Contains(o Range[T]) bool {
	return r.Begin <= o.Begin && o.End() <= r.End()
}

// Adjacent reports whether o starts exactly where r ends.
func (r Range[T]) Adjacent(o Range[T]) bool {
	return r.End() == o.Begin
}

func (r Range[T]) Intersect(o Range[T]) Range[T] {
	return MakeRange(max(r.Begin, o.Begin), min(r.End(), o.End()))
}

// Hull is the smallest range covering both.
func (r Range[T]) Hull(o Range[T]) Range[T] {
	if r.Empty() {
		return o
	}
	if o.Empty() {
		return r
	}
	return MakeRange(min(r.Begin, o.Begin), max(r.End(), o.End()))
}

func (r Range[T]) String() string {
	return fmt.Sprintf("[%d, %d)", r.Begin, r.End())
}

// BufferRange is a byte range. A zero Len means "up to the end of the buffer".
type BufferRange = Range[uint64]

// ImageAspect selects the planes of an image.
type ImageAspect uint32

const (
	ImageAspectColor   ImageAspect = 0x1
	ImageAspectDepth   ImageAspect = 0x2
	ImageAspectStencil ImageAspect = 0x4
)

// ImageRange is a sub-resource range: mip levels by array layers.
type ImageRange struct {
	Aspect ImageAspect
	Mips   Range[uint32]
	Layers Range[uint32]
}

func (r ImageRange) Empty() bool {
	return r.Mips.Empty() || r.Layers.Empty()
}

func (r ImageRange) Overlaps(o ImageRange) bool {
	return r.Mips.Overlaps(o.Mips) && r.Layers.Overlaps(o.Layers)
}

func (r ImageRange) Intersect(o ImageRange) ImageRange {
	return ImageRange{
		Aspect: r.Aspect | o.Aspect,
		Mips:   r.Mips.Intersect(o.Mips),
		Layers: r.Layers.Intersect(o.Layers),
	}
}

// Subtract returns up to four disjoint rectangles covering r minus o.
func (r ImageRange) Subtract(o ImageRange) []ImageRange {
	if !r.Overlaps(o) {
		return []ImageRange{r}
	}
	var out []ImageRange
	add := func(mips, layers Range[uint32]) {
		if !mips.Empty() && !layers.Empty() {
			out = append(out, ImageRange{Aspect: r.Aspect, Mips: mips, Layers: layers})
		}
	}
	mips := r.Mips.Intersect(o.Mips)
	add(MakeRange(r.Mips.Begin, mips.Begin), r.Layers)
	add(MakeRange(mips.End(), r.Mips.End()), r.Layers)
	add(mips, MakeRange(r.Layers.Begin, o.Layers.Begin))
	add(mips, MakeRange(o.Layers.End(), r.Layers.End()))
	return out
}

// Join returns the rectangle covering exactly r and o, if there is one.
func (r ImageRange) Join(o ImageRange) (ImageRange, bool) {
	if r.Aspect != o.Aspect {
		return ImageRange{}, false
	}
	if r.Mips == o.Mips && (r.Layers.Adjacent(o.Layers) || o.Layers.Adjacent(r.Layers)) {
		return ImageRange{Aspect: r.Aspect, Mips: r.Mips, Layers: r.Layers.Hull(o.Layers)}, true
	}
	if r.Layers == o.Layers && (r.Mips.Adjacent(o.Mips) || o.Mips.Adjacent(r.Mips)) {
		return ImageRange{Aspect: r.Aspect, Mips: r.Mips.Hull(o.Mips), Layers: r.Layers}, true
	}
	return ImageRange{}, false
}

func (r ImageRange) String() string {
	return fmt.Sprintf("mips%s layers%s", r.Mips, r.Layers)
}
