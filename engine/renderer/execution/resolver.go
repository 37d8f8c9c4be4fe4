package execution

// Hazard is the kind of dependency between the recorded state of a sub-range
// and the state an operation needs.
type Hazard int

const (
	HazardNone Hazard = iota
	HazardReadAfterWrite
	HazardWriteAfterWrite
	HazardWriteAfterRead
	HazardLayoutTransition
	HazardQueueTransfer
)

func (h Hazard) String() string {
	switch h {
	case HazardNone:
		return "none"
	case HazardReadAfterWrite:
		return "read_after_write"
	case HazardWriteAfterWrite:
		return "write_after_write"
	case HazardWriteAfterRead:
		return "write_after_read"
	case HazardLayoutTransition:
		return "layout_transition"
	case HazardQueueTransfer:
		return "queue_transfer"
	default:
		return "unknown"
	}
}

// Classify returns the hazard between prev and next and the state a barrier
// has to wait on. isImage enables layout tracking.
func Classify(prev DoubleState, next ResourceState, isImage bool) (Hazard, ResourceState) {
	layoutChange := isImage && next.Layout != prev.Layout()
	queueChange := next.Queue != QueueFamilyIgnored &&
		prev.Queue() != QueueFamilyIgnored &&
		next.Queue != prev.Queue()

	var hazard Hazard
	var src ResourceState
	if next.Access.IsWrite() || layoutChange || queueChange {
		// Writes and transitions also wait for the reads made since the last write.
		src = prev.Write.Union(prev.ReadOnly)
		switch {
		case layoutChange:
			hazard = HazardLayoutTransition
		case queueChange:
			hazard = HazardQueueTransfer
		case !prev.ReadOnly.IsZero():
			hazard = HazardWriteAfterRead
		case !prev.Write.IsZero():
			hazard = HazardWriteAfterWrite
		}
	} else {
		src = prev.Write
		visible := prev.ReadOnly.Access.Contains(next.Access) && prev.ReadOnly.Stage.Contains(next.Stage)
		if !prev.Write.IsZero() && !visible {
			hazard = HazardReadAfterWrite
		}
	}
	src.Layout = prev.Layout()
	src.Queue = prev.Queue()
	return hazard, src
}

func barrierStates(hazard Hazard, src, next ResourceState, isImage bool) (ResourceState, ResourceState) {
	dst := next
	dst.Layout = src.Layout
	if isImage {
		dst.Layout = next.Layout
	}
	if hazard != HazardQueueTransfer {
		src.Queue, dst.Queue = QueueFamilyIgnored, QueueFamilyIgnored
	}
	return src, dst
}

type transitionKey struct {
	src packedState
	dst packedState
}

func keyOf(src, dst ResourceState) transitionKey {
	return transitionKey{src: src.pack(), dst: dst.pack()}
}

// SyncResolver turns usage lists into barriers and commits the resulting
// states. Commit any number of lists, then Record once to emit one batch.
type SyncResolver struct {
	ctx   *ExecutionContext
	merge bool
	batch BarrierBatch

	bufferStates []StateInRange[uint64]
	imageStates  []ImageStateInRange
	pending      []ImageBarrier
}

func NewSyncResolver(merge bool) *SyncResolver {
	return &SyncResolver{merge: merge}
}

// Reset binds the resolver to ctx and drops anything not recorded.
func (s *SyncResolver) Reset(ctx *ExecutionContext) {
	s.ctx = ctx
	s.batch.reset()
}

// Pending is the number of barriers waiting for Record.
func (s *SyncResolver) Pending() int {
	return s.batch.Len()
}

// Commit resolves every usage of list against the state store and commits
// the state each usage leaves behind.
func (s *SyncResolver) Commit(list *UsageList) {
	for _, u := range list.Usages() {
		before := s.batch.Len()
		if u.Buffer != nil {
			s.commitBuffer(u)
		} else {
			s.commitImage(u)
		}
		if s.batch.Len() == before {
			s.ctx.metrics.SkippedUsages.Add(1)
		}
		s.ctx.KeepAlive(u.Resource())
	}
}

func (s *SyncResolver) commitBuffer(u Usage) {
	generation := s.ctx.Generation()
	s.bufferStates = u.Buffer.appendState(generation, u.BufferRange, s.bufferStates[:0])
	first := len(s.batch.Buffers)
	for _, slot := range s.bufferStates {
		hazard, from := Classify(slot.State, u.State, false)
		if hazard == HazardNone {
			continue
		}
		src, dst := barrierStates(hazard, from, u.State, false)
		if s.merge && len(s.batch.Buffers) > first {
			last := &s.batch.Buffers[len(s.batch.Buffers)-1]
			if last.Range.Adjacent(slot.Range) && keyOf(last.Src, last.Dst) == keyOf(src, dst) {
				last.Range.Len += slot.Range.Len
				continue
			}
		}
		s.batch.Buffers = append(s.batch.Buffers, BufferBarrier{
			Buffer: u.Buffer,
			Range:  slot.Range,
			Src:    src,
			Dst:    dst,
			Hazard: hazard,
		})
	}
	clear(s.bufferStates)

	u.Buffer.applyState(generation, u.BufferRange, u.State)
	if u.End != nil {
		u.Buffer.applyState(generation, u.BufferRange, *u.End)
	}
}

func (s *SyncResolver) commitImage(u Usage) {
	generation := s.ctx.Generation()
	s.imageStates = u.Image.appendState(generation, u.ImageRange, s.imageStates[:0])
	s.pending = s.pending[:0]
	for _, slot := range s.imageStates {
		hazard, from := Classify(slot.State, u.State, true)
		if hazard == HazardNone {
			continue
		}
		src, dst := barrierStates(hazard, from, u.State, true)
		if s.merge && len(s.pending) > 0 {
			// Slots come sorted by mip, then layer.
			last := &s.pending[len(s.pending)-1]
			if last.Range.Mips == slot.Range.Mips &&
				last.Range.Layers.Adjacent(slot.Range.Layers) &&
				keyOf(last.Src, last.Dst) == keyOf(src, dst) {
				last.Range.Layers.Len += slot.Range.Layers.Len
				continue
			}
		}
		s.pending = append(s.pending, ImageBarrier{
			Image:  u.Image,
			Range:  slot.Range,
			Src:    src,
			Dst:    dst,
			Hazard: hazard,
		})
	}
	clear(s.imageStates)

	first := len(s.batch.Images)
	for _, b := range s.pending {
		if s.merge && s.mergeMips(first, b) {
			continue
		}
		s.batch.Images = append(s.batch.Images, b)
	}
	clear(s.pending)

	u.Image.applyState(generation, u.ImageRange, u.State)
	if u.End != nil {
		u.Image.applyState(generation, u.ImageRange, *u.End)
	}
}

// mergeMips extends a barrier of the same usage covering the previous mip
// levels with identical layers and transition.
func (s *SyncResolver) mergeMips(first int, b ImageBarrier) bool {
	key := keyOf(b.Src, b.Dst)
	for i := first; i < len(s.batch.Images); i++ {
		o := &s.batch.Images[i]
		if o.Range.Layers == b.Range.Layers &&
			o.Range.Mips.Adjacent(b.Range.Mips) &&
			keyOf(o.Src, o.Dst) == key {
			o.Range.Mips.Len += b.Range.Mips.Len
			return true
		}
	}
	return false
}

// Record emits every pending barrier in a single native call.
func (s *SyncResolver) Record() {
	if s.batch.Len() == 0 {
		return
	}
	transitions := 0
	for _, b := range s.batch.Buffers {
		s.batch.SrcStages |= b.Src.Stage
		s.batch.DstStages |= b.Dst.Stage
	}
	for _, b := range s.batch.Images {
		s.batch.SrcStages |= b.Src.Stage
		s.batch.DstStages |= b.Dst.Stage
		if b.IsTransition() {
			transitions++
		}
	}
	if s.batch.SrcStages == StageNone {
		s.batch.SrcStages = StageTopOfPipe
	}
	if s.batch.DstStages == StageNone {
		s.batch.DstStages = StageBottomOfPipe
	}

	s.ctx.log.Debug("pipeline barrier",
		"buffers", len(s.batch.Buffers),
		"images", len(s.batch.Images),
		"transitions", transitions)
	s.ctx.CommandBuffer().Native().PipelineBarrier(&s.batch)

	s.ctx.metrics.Barriers.Add(uint64(s.batch.Len()))
	s.ctx.metrics.LayoutTransitions.Add(uint64(transitions))
	s.ctx.metrics.BarrierBatches.Add(1)
	s.batch.reset()
}
