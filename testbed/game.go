package testbed

import (
	"github.com/spaghettifunk/anima-exec/engine"
	"github.com/spaghettifunk/anima-exec/engine/core"
	"github.com/spaghettifunk/anima-exec/engine/renderer/execution"
)

const (
	particleCount = 4096
	particleSize  = 16
	textureSize   = 256
	targetWidth   = 1280
	targetHeight  = 720

	reportInterval = 60
)

type TestGame struct {
	*engine.Game
}

// gameState holds the resources and commands of a small particle scene:
// uploads, a simulation dispatch, a two-subpass render pass and a
// post-process dispatch reading the pass output.
type gameState struct {
	staging   *execution.Buffer
	particles *execution.Buffer
	counters  *execution.Buffer
	albedo    *execution.Image
	target    *execution.Image

	pass *execution.RenderPassBeginInfo

	uploadParticles *execution.CopyBuffer
	uploadAlbedo    *execution.CopyBufferToImage
	resetCounters   *execution.FillBuffer
	simulate        *execution.Dispatch
	drawParticles   *execution.Draw
	drawOverlay     *execution.Draw
	tonemap         *execution.Dispatch
	stamp           *execution.CustomCommand

	executor  *execution.LinearExecutor
	submitted uint64
	lastFrame uint64
	elapsed   float64
}

func NewTestGame(app *engine.ApplicationConfig) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: app,
			State:             &gameState{},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

func (g *TestGame) Initialize(executor *execution.LinearExecutor) error {
	core.LogInfo("initializing testbed scene...")
	s := g.state()
	s.executor = executor
	if g.Events != nil {
		g.Events.Register(core.EVENT_CODE_FRAME_SUBMITTED, g, g.onFrameSubmitted)
	}

	// Handles are placeholders: the recording backend never dereferences them.
	s.staging = s.executor.NewBuffer(execution.BufferInfo{Name: "staging", Handle: "staging", Size: 1 << 20})
	s.particles = s.executor.NewBuffer(execution.BufferInfo{Name: "particles", Handle: "particles", Size: particleCount * particleSize})
	s.counters = s.executor.NewBuffer(execution.BufferInfo{Name: "counters", Handle: "counters", Size: 256})
	s.albedo = s.executor.NewImage(execution.ImageInfo{
		Name: "albedo", Handle: "albedo", Aspect: execution.ImageAspectColor,
		Width: textureSize, Height: textureSize, Mips: 1, Layers: 1,
	})
	s.target = s.executor.NewImage(execution.ImageInfo{
		Name: "scene-color", Handle: "scene-color", Aspect: execution.ImageAspectColor,
		Width: targetWidth, Height: targetHeight, Mips: 1, Layers: 1,
	})

	compute := &execution.PipelineLayout{Handle: "compute-layout", SetCount: 1}
	graphics := &execution.PipelineLayout{Handle: "graphics-layout", SetCount: 1}
	simulatePipeline := &execution.Pipeline{Name: "simulate", Handle: "simulate", Kind: execution.PipelineCompute, Layout: compute}
	tonemapPipeline := &execution.Pipeline{Name: "tonemap", Handle: "tonemap", Kind: execution.PipelineCompute, Layout: compute}
	particlePipeline := &execution.Pipeline{Name: "particles", Handle: "particles", Kind: execution.PipelineGraphics, Layout: graphics}
	overlayPipeline := &execution.Pipeline{Name: "overlay", Handle: "overlay", Kind: execution.PipelineGraphics, Layout: graphics}

	storage := execution.State(execution.AccessShaderRead|execution.AccessShaderWrite, execution.StageComputeShader, execution.LayoutUndefined)
	simSet := execution.NewDescriptorSet("simulation", "simulation-set",
		execution.BufferUsage(s.particles, execution.BufferRange{}, storage),
		execution.BufferUsage(s.counters, execution.BufferRange{}, storage),
	)
	drawSet := execution.NewDescriptorSet("draw", "draw-set",
		execution.BufferUsage(s.particles, execution.BufferRange{},
			execution.State(execution.AccessShaderRead, execution.StageVertexShader, execution.LayoutUndefined)),
		execution.ImageUsage(s.albedo, s.albedo.Full(),
			execution.State(execution.AccessShaderRead, execution.StageFragmentShader, execution.LayoutShaderReadOnlyOptimal)),
	)
	postSet := execution.NewDescriptorSet("post", "post-set",
		execution.ImageUsage(s.target, s.target.Full(),
			execution.State(execution.AccessShaderRead, execution.StageComputeShader, execution.LayoutShaderReadOnlyOptimal)),
	)

	s.uploadParticles = execution.NewCopyBuffer("upload particles", s.staging, s.particles,
		execution.BufferCopy{Size: particleCount * particleSize})
	s.uploadAlbedo = execution.NewCopyBufferToImage("upload albedo", s.staging, s.albedo, execution.BufferImageCopy{
		BufferOffset: particleCount * particleSize,
		Range:        s.albedo.Full(),
		Extent:       [3]uint32{textureSize, textureSize, 1},
	})
	s.resetCounters = execution.NewFillBuffer("reset counters", s.counters, execution.BufferRange{}, 0)
	s.simulate = execution.NewDispatch("simulate", simulatePipeline, [3]uint32{particleCount / 64, 1, 1},
		[]execution.SetBinding{{Index: 0, Set: simSet}})
	s.drawParticles = execution.NewDraw("draw particles", particlePipeline, 6, particleCount,
		[]execution.SetBinding{{Index: 0, Set: drawSet}})
	s.drawOverlay = execution.NewDraw("draw overlay", overlayPipeline, 3, 1, nil)
	s.tonemap = execution.NewDispatch("tonemap", tonemapPipeline, [3]uint32{targetWidth / 8, targetHeight / 8, 1},
		[]execution.SetBinding{{Index: 0, Set: postSet}})
	s.stamp = execution.NewCustomCommand("stamp frame",
		func(rc *execution.RecordContext, list *execution.UsageList) {
			list.Add(execution.BufferUsage(s.counters, execution.MakeRange[uint64](0, 4),
				execution.State(execution.AccessTransferWrite, execution.StageTransfer, execution.LayoutUndefined)))
		},
		func(ctx *execution.ExecutionContext) {
			ctx.Native().FillBuffer(s.counters, execution.MakeRange[uint64](0, 4), uint32(s.lastFrame))
		},
	).OnUpdate(func(uc *execution.UpdateContext) bool {
		changed := uc.Frame != s.lastFrame
		s.lastFrame = uc.Frame
		return changed
	})

	view := &execution.ImageView{Handle: "scene-color-view", Image: s.target, Range: s.target.Full()}
	color := []execution.AttachmentReference{{Attachment: 0, Layout: execution.LayoutColorAttachmentOptimal}}
	s.pass = &execution.RenderPassBeginInfo{
		RenderPass: &execution.RenderPass{
			ID:     core.NewIdentifier(),
			Name:   "scene",
			Handle: "scene-pass",
			Attachments: []execution.AttachmentDescription{{
				InitialLayout: execution.LayoutUndefined,
				FinalLayout:   execution.LayoutShaderReadOnlyOptimal,
			}},
			Subpasses: []execution.SubpassDescription{{Colors: color}, {Colors: color}},
		},
		Framebuffer: &execution.Framebuffer{
			Handle: "scene-fb",
			Views:  []*execution.ImageView{view},
			Width:  targetWidth,
			Height: targetHeight,
			Layers: 1,
		},
		Area:        execution.Rect2D{Width: targetWidth, Height: targetHeight},
		ClearValues: []execution.ClearValue{execution.ClearColor(0, 0, 0, 1)},
	}
	return nil
}

func (g *TestGame) onFrameSubmitted(code core.SystemEventCode, sender interface{}, listenerInst interface{}, data core.EventContext) bool {
	s := g.state()
	s.submitted++
	if frame := data.Data.U64[0]; frame%reportInterval == 0 {
		m := s.executor.Metrics().Snapshot()
		core.LogDebug("frame %d submitted (%d in flight): %d barriers, %d layout transitions, %d deferred events",
			frame, data.Data.U64[1], m.Barriers, m.LayoutTransitions, m.DeferredEvents)
	}
	return false
}

func (g *TestGame) Update(deltaTime float64) error {
	g.state().elapsed += deltaTime
	return nil
}

func (g *TestGame) Render(frame *engine.Frame) error {
	s := g.state()
	t := frame.Thread

	if frame.Number == 0 {
		t.PushDebugLabel("uploads")
		frame.Record(s.uploadParticles)
		frame.Record(s.uploadAlbedo)
		t.PopDebugLabel()
	}

	frame.Record(s.resetCounters)
	frame.Record(s.stamp)
	frame.Record(s.simulate)

	t.BeginRenderPass(s.pass, execution.RenderPassFlagsNone)
	frame.Record(s.drawParticles)
	t.NextSubPass(execution.RenderPassFlagsNone)
	frame.Record(s.drawOverlay)
	t.EndRenderPass()

	frame.Record(s.tonemap)
	return nil
}

func (g *TestGame) Shutdown() error {
	s := g.state()
	core.LogInfo("testbed submitted %d frames in %.2fs", s.submitted, s.elapsed)
	return nil
}
