package core

import (
	"fmt"
	"sync/atomic"
)

const AVG_COUNT uint8 = 30

// FrameMetrics averages frame times over AVG_COUNT frames and counts frames per second.
type FrameMetrics struct {
	FrameAVGCounter    uint8
	MStimes            [AVG_COUNT]float64
	MSavg              float64
	Frames             int32
	AccumulatedFrameMS float64
	FPS                float64
}

func NewFrameMetrics() *FrameMetrics {
	return &FrameMetrics{
		MStimes: [AVG_COUNT]float64{0},
	}
}

func (m *FrameMetrics) Update(frameElapsedTime float64) {
	// Calculate frame ms average
	frameMS := (frameElapsedTime * 1000.0)
	m.MStimes[m.FrameAVGCounter] = frameMS
	if m.FrameAVGCounter == AVG_COUNT-1 {
		m.MSavg = 0
		for i := uint8(0); i < AVG_COUNT; i++ {
			m.MSavg += m.MStimes[i]
		}

		m.MSavg /= float64(AVG_COUNT)
	}
	m.FrameAVGCounter++
	m.FrameAVGCounter %= AVG_COUNT

	// Calculate Frames per second.
	m.AccumulatedFrameMS += frameMS
	if m.AccumulatedFrameMS > 1000 {
		m.FPS = float64(m.Frames)
		m.AccumulatedFrameMS -= 1000
		m.Frames = 0
	}

	// Count all Frames.
	m.Frames++
}

func (m *FrameMetrics) Frame() (float64, float64) {
	return m.FPS, m.MSavg
}

// SyncMetrics counts what the synchronization layer emitted. Safe for concurrent use.
type SyncMetrics struct {
	Barriers          atomic.Uint64
	LayoutTransitions atomic.Uint64
	BarrierBatches    atomic.Uint64
	SkippedUsages     atomic.Uint64
	RenderPasses      atomic.Uint64
	DeferredEvents    atomic.Uint64
	Submissions       atomic.Uint64
}

type SyncMetricsSnapshot struct {
	Barriers          uint64
	LayoutTransitions uint64
	BarrierBatches    uint64
	SkippedUsages     uint64
	RenderPasses      uint64
	DeferredEvents    uint64
	Submissions       uint64
}

func (m *SyncMetrics) Snapshot() SyncMetricsSnapshot {
	return SyncMetricsSnapshot{
		Barriers:          m.Barriers.Load(),
		LayoutTransitions: m.LayoutTransitions.Load(),
		BarrierBatches:    m.BarrierBatches.Load(),
		SkippedUsages:     m.SkippedUsages.Load(),
		RenderPasses:      m.RenderPasses.Load(),
		DeferredEvents:    m.DeferredEvents.Load(),
		Submissions:       m.Submissions.Load(),
	}
}

func (s SyncMetricsSnapshot) String() string {
	return fmt.Sprintf("barriers=%d transitions=%d batches=%d skipped=%d render_passes=%d deferred_events=%d submissions=%d",
		s.Barriers, s.LayoutTransitions, s.BarrierBatches, s.SkippedUsages, s.RenderPasses, s.DeferredEvents, s.Submissions)
}
