package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsageListMergesOverlappingRanges(t *testing.T) {
	b := newTestBuffer("storage", 256)
	other := newTestBuffer("other", 256)
	var list UsageList

	list.Add(
		BufferUsage(b, BufferRange{Begin: 0, Len: 64}, State(AccessShaderRead, StageVertexShader, LayoutUndefined)),
		BufferUsage(other, BufferRange{Begin: 32, Len: 64}, State(AccessShaderRead, StageVertexShader, LayoutUndefined)),
		BufferUsage(b, BufferRange{Begin: 32, Len: 64}, State(AccessShaderWrite, StageComputeShader, LayoutUndefined)),
	)

	require.Equal(t, 2, list.Len())
	merged := list.Usages()[0]
	assert.Same(t, b, merged.Buffer)
	assert.Equal(t, BufferRange{Begin: 0, Len: 96}, merged.BufferRange)
	assert.Equal(t, AccessShaderRead|AccessShaderWrite, merged.State.Access)
	assert.Equal(t, StageVertexShader|StageComputeShader, merged.State.Stage)
	assert.Same(t, other, list.Usages()[1].Buffer)
}

func TestUsageListKeepsDisjointRangesApart(t *testing.T) {
	b := newTestBuffer("storage", 256)
	var list UsageList
	read := State(AccessShaderRead, StageComputeShader, LayoutUndefined)

	list.Add(BufferUsage(b, BufferRange{Begin: 0, Len: 64}, read))
	list.Add(BufferUsage(b, BufferRange{Begin: 128, Len: 64}, read))
	require.Equal(t, 2, list.Len())

	// A range bridging both folds them into one entry.
	list.Add(BufferUsage(b, BufferRange{Begin: 32, Len: 128}, read))
	require.Equal(t, 1, list.Len())
	assert.Equal(t, BufferRange{Begin: 0, Len: 192}, list.Usages()[0].BufferRange)
}

func TestUsageListMergeKeepsEndState(t *testing.T) {
	img := newTestImage("target", 1, 1)
	color := State(AccessColorAttachmentWrite, StageColorAttachmentOutput, LayoutColorAttachmentOptimal)
	end := State(AccessColorAttachmentWrite, StageColorAttachmentOutput, LayoutPresentSrc)

	var list, pass UsageList
	list.Add(ImageUsage(img, ImageRange{}, color).WithEnd(end))
	pass.Add(ImageUsage(img, ImageRange{}, State(AccessColorAttachmentRead, StageColorAttachmentOutput, LayoutColorAttachmentOptimal)))
	pass.Merge(&list)

	require.Equal(t, 1, pass.Len())
	u := pass.Usages()[0]
	require.NotNil(t, u.End)
	assert.Equal(t, end, *u.End)
	assert.Equal(t, end, u.FinalState())
	assert.Equal(t, AccessColorAttachmentRead|AccessColorAttachmentWrite, u.State.Access)
}

func TestUsageListAssertsInvalidUsages(t *testing.T) {
	img := newTestImage("texture", 1, 1)
	var list UsageList
	list.Add(ImageUsage(img, ImageRange{}, State(AccessShaderRead, StageFragmentShader, LayoutShaderReadOnlyOptimal)))

	assert.Panics(t, func() {
		list.Add(ImageUsage(img, ImageRange{}, State(AccessShaderRead, StageFragmentShader, LayoutGeneral)))
	}, "conflicting layouts")

	notReady := NewBuffer(BufferInfo{Name: "pending", Size: 16})
	assert.Panics(t, func() {
		list.Add(BufferUsage(notReady, BufferRange{}, State(AccessShaderRead, StageFragmentShader, LayoutUndefined)))
	}, "resource not ready")
}

func TestUsageListClear(t *testing.T) {
	b := newTestBuffer("storage", 16)
	var list UsageList
	list.Add(BufferUsage(b, BufferRange{}, State(AccessShaderRead, StageComputeShader, LayoutUndefined)))
	list.Clear()
	assert.True(t, list.Empty())
}

func TestRangeOperations(t *testing.T) {
	a := Range[uint32]{Begin: 2, Len: 4}
	b := Range[uint32]{Begin: 6, Len: 2}

	assert.False(t, a.Overlaps(b))
	assert.True(t, a.Adjacent(b))
	assert.Equal(t, Range[uint32]{Begin: 2, Len: 6}, a.Hull(b))
	assert.True(t, a.Intersect(b).Empty())
	assert.Equal(t, Range[uint32]{Begin: 4, Len: 2}, a.Intersect(Range[uint32]{Begin: 4, Len: 10}))
	assert.True(t, a.Contains(Range[uint32]{Begin: 3, Len: 2}))
	assert.Equal(t, "[2, 6)", a.String())
}

func imageRange(mips, layers Range[uint32]) ImageRange {
	return ImageRange{Aspect: ImageAspectColor, Mips: mips, Layers: layers}
}

func TestUsageListKeepsImageRectanglesTight(t *testing.T) {
	img := newTestImage("atlas", 2, 2)
	general := State(AccessShaderWrite, StageComputeShader, LayoutGeneral)
	sampled := State(AccessShaderRead, StageFragmentShader, LayoutShaderReadOnlyOptimal)
	var list UsageList

	list.Add(
		ImageUsage(img, imageRange(MakeRange[uint32](0, 2), MakeRange[uint32](0, 1)), general),
		ImageUsage(img, imageRange(MakeRange[uint32](0, 1), MakeRange[uint32](0, 2)), general),
	)
	require.Equal(t, 2, list.Len())
	assert.Equal(t, imageRange(MakeRange[uint32](0, 2), MakeRange[uint32](0, 1)), list.Usages()[0].ImageRange)
	assert.Equal(t, imageRange(MakeRange[uint32](0, 1), MakeRange[uint32](1, 2)), list.Usages()[1].ImageRange)

	// The undeclared corner takes its own layout without conflict.
	corner := imageRange(MakeRange[uint32](1, 2), MakeRange[uint32](1, 2))
	require.NotPanics(t, func() {
		list.Add(ImageUsage(img, corner, sampled))
	})
	require.Equal(t, 3, list.Len())
	assert.Equal(t, corner, list.Usages()[2].ImageRange)
	assert.Equal(t, LayoutShaderReadOnlyOptimal, list.Usages()[2].State.Layout)
}

func TestUsageListUnionsStateOnlyOnIntersection(t *testing.T) {
	img := newTestImage("array", 1, 4)
	write := State(AccessShaderWrite, StageComputeShader, LayoutGeneral)
	read := State(AccessShaderRead, StageFragmentShader, LayoutGeneral)
	var list UsageList

	list.Add(
		ImageUsage(img, imageRange(MakeRange[uint32](0, 1), MakeRange[uint32](0, 3)), write),
		ImageUsage(img, imageRange(MakeRange[uint32](0, 1), MakeRange[uint32](2, 4)), read),
	)

	require.Equal(t, 3, list.Len())
	byLayer := map[uint32]Usage{}
	for _, u := range list.Usages() {
		byLayer[u.ImageRange.Layers.Begin] = u
	}
	assert.Equal(t, MakeRange[uint32](0, 2), byLayer[0].ImageRange.Layers)
	assert.Equal(t, write, byLayer[0].State)
	assert.Equal(t, MakeRange[uint32](2, 3), byLayer[2].ImageRange.Layers)
	assert.Equal(t, write.Union(read), byLayer[2].State)
	assert.Equal(t, MakeRange[uint32](3, 4), byLayer[3].ImageRange.Layers)
	assert.Equal(t, read, byLayer[3].State)
}

func TestImageRangeSubtractAndJoin(t *testing.T) {
	full := imageRange(MakeRange[uint32](0, 4), MakeRange[uint32](0, 4))
	hole := imageRange(MakeRange[uint32](1, 2), MakeRange[uint32](1, 2))

	pieces := full.Subtract(hole)
	require.Len(t, pieces, 4)
	var area uint32
	for _, p := range pieces {
		assert.False(t, p.Overlaps(hole))
		area += p.Mips.Len * p.Layers.Len
	}
	assert.EqualValues(t, 15, area)
	assert.Equal(t, []ImageRange{hole}, hole.Subtract(imageRange(MakeRange[uint32](3, 4), MakeRange[uint32](0, 4))))

	joined, ok := imageRange(MakeRange[uint32](0, 1), MakeRange[uint32](0, 2)).Join(imageRange(MakeRange[uint32](1, 3), MakeRange[uint32](0, 2)))
	require.True(t, ok)
	assert.Equal(t, imageRange(MakeRange[uint32](0, 3), MakeRange[uint32](0, 2)), joined)
	_, ok = imageRange(MakeRange[uint32](0, 1), MakeRange[uint32](0, 1)).Join(imageRange(MakeRange[uint32](1, 2), MakeRange[uint32](1, 2)))
	assert.False(t, ok)
}
