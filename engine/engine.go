package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/anima-exec/engine/core"
	"github.com/spaghettifunk/anima-exec/engine/renderer/execution"
	"github.com/spaghettifunk/anima-exec/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	// Engine released everything
	EngineStageShutdown
)

const shutdownTimeout = 5 * time.Second

// Engine drives a game's frames through a LinearExecutor.
type Engine struct {
	currentStage Stage
	gameInstance *Game
	isRunning    atomic.Bool

	events   *core.EventSystem
	config   *core.Config
	watcher  *core.ConfigWatcher
	jobs     *systems.JobSystem
	device   execution.NativeDevice
	queue    execution.NativeQueue
	executor *execution.LinearExecutor

	clock        *core.Clock
	lastTime     float64
	frame        uint64
	frameMetrics *core.FrameMetrics
	syncMetrics  *core.SyncMetrics
}

func New(g *Game) (*Engine, error) {
	if g == nil || g.ApplicationConfig == nil {
		return nil, fmt.Errorf("engine: %w: missing application configuration", core.ErrConfig)
	}
	events := core.NewEventSystem()
	g.Events = events
	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		events:       events,
		clock:        core.NewClock(),
		frameMetrics: core.NewFrameMetrics(),
		syncMetrics:  &core.SyncMetrics{},
	}, nil
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

func (e *Engine) Config() *core.Config {
	if e.watcher != nil {
		return e.watcher.Current()
	}
	return e.config
}

func (e *Engine) Executor() *execution.LinearExecutor {
	return e.executor
}

func (e *Engine) Metrics() core.SyncMetricsSnapshot {
	return e.syncMetrics.Snapshot()
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing
	app := e.gameInstance.ApplicationConfig

	if err := e.loadConfig(app); err != nil {
		return err
	}
	cfg := e.config
	if app.LogLevel != "" {
		cfg.Log.Level = app.LogLevel
	}
	core.SetLogLevel(cfg.Log.Level)

	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)

	jobs, err := systems.NewJobSystem(cfg.Execution.RecycleWorkers, cfg.Execution.FramesInFlight)
	if err != nil {
		core.LogError(err.Error())
		return err
	}
	e.jobs = jobs

	e.device, e.queue = app.Device, app.Queue
	if e.device == nil || e.queue == nil {
		core.LogInfo("no native backend given, recording into traces")
		e.device = execution.NewTraceDevice()
		e.queue = execution.NewTraceQueue(execution.QueueFamilyIndex(0), true)
	}

	e.executor = execution.NewLinearExecutor(execution.LinearExecutorInfo{
		Name:       app.Name,
		Device:     e.device,
		Queue:      e.queue,
		Config:     cfg.Execution,
		Jobs:       e.jobs,
		Metrics:    e.syncMetrics,
		LabelNodes: app.LabelNodes,
	})
	e.executor.StartRecycler()

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(e.executor); err != nil {
			return err
		}
	}
	e.currentStage = EngineStageInitialized
	core.LogInfo("engine initialized (frames in flight: %d, generations: %d)", cfg.Execution.FramesInFlight, cfg.Execution.Generations)
	return nil
}

func (e *Engine) loadConfig(app *ApplicationConfig) error {
	if app.ConfigPath == "" {
		e.config = core.DefaultConfig()
		return nil
	}
	if !app.WatchConfig {
		cfg, err := core.LoadConfig(app.ConfigPath)
		if err != nil {
			core.LogError(err.Error())
			return err
		}
		e.config = cfg
		return nil
	}
	watcher, err := core.NewConfigWatcher(app.ConfigPath, func(cfg *core.Config) {
		// Only the log level applies live; the executor keeps its sizing.
		core.SetLogLevel(cfg.Log.Level)
		var data core.EventContext
		data.Data.C = app.ConfigPath
		e.events.Fire(core.EVENT_CODE_CONFIG_RELOADED, e, data)
	})
	if err != nil {
		core.LogError(err.Error())
		return err
	}
	e.watcher = watcher
	e.config = watcher.Current()
	return nil
}

// Run records frames until ctx is done or the configured frame count is reached.
func (e *Engine) Run(ctx context.Context) error {
	core.Assert(e.currentStage == EngineStageInitialized, "engine run before initialization")
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	frames := e.gameInstance.ApplicationConfig.Frames
	for e.isRunning.Load() {
		if ctx.Err() != nil {
			break
		}
		if frames > 0 && e.frame >= frames {
			break
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		frameStart := time.Now()

		if e.gameInstance.FnUpdate != nil {
			if err := e.gameInstance.FnUpdate(delta); err != nil {
				core.LogError("game update failed, shutting down: %s", err)
				e.isRunning.Store(false)
				return err
			}
		}

		if err := e.drawFrame(delta); err != nil {
			core.LogError("frame %d failed, shutting down: %s", e.frame, err)
			e.isRunning.Store(false)
			return err
		}

		e.frameMetrics.Update(time.Since(frameStart).Seconds())
		e.lastTime = currentTime
		e.frame++
	}
	e.isRunning.Store(false)
	return nil
}

func (e *Engine) drawFrame(delta float64) error {
	thread, err := e.executor.BeginCommandBuffer()
	if err != nil {
		return err
	}
	frame := &Frame{
		Number:    e.frame,
		DeltaTime: delta,
		Thread:    thread,
		Executor:  e.executor,
	}
	thread.PushDebugLabel(fmt.Sprintf("frame %d", e.frame))
	if e.gameInstance.FnRender != nil {
		if err := e.gameInstance.FnRender(frame); err != nil {
			e.executor.Abort(thread)
			return err
		}
	}
	thread.PopDebugLabel()
	if err := e.executor.EndCommandBuffer(thread); err != nil {
		return err
	}
	if err := e.executor.Submit(); err != nil {
		return err
	}
	var data core.EventContext
	data.Data.U64[0] = e.frame
	data.Data.U64[1] = uint64(e.executor.InFlight())
	e.events.Fire(core.EVENT_CODE_FRAME_SUBMITTED, e, data)
	return nil
}

func (e *Engine) onEvent(code core.SystemEventCode, sender interface{}, listenerInst interface{}, data core.EventContext) bool {
	switch code {
	case core.EVENT_CODE_APPLICATION_QUIT:
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.Stop()
		return true
	}
	return false
}

// Stop asks Run to return after the current frame.
func (e *Engine) Stop() {
	e.isRunning.Store(false)
}

func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShutdown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown
	e.Stop()

	var errs []error
	if e.executor != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := e.executor.Close(ctx); err != nil {
			errs = append(errs, err)
		}
		cancel()
	}
	if e.gameInstance.FnShutdown != nil {
		if err := e.gameInstance.FnShutdown(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.jobs != nil {
		if err := e.jobs.Shutdown(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.watcher != nil {
		if err := e.watcher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	e.events.Shutdown()

	fps, avg := e.frameMetrics.Frame()
	m := e.syncMetrics.Snapshot()
	core.LogInfo("shutdown after %d frames (fps %.1f, avg %.3fms): %d barriers in %d batches, %d layout transitions, %d render passes, %d submissions",
		e.frame, fps, avg, m.Barriers, m.BarrierBatches, m.LayoutTransitions, m.RenderPasses, m.Submissions)

	e.currentStage = EngineStageShutdown
	return errors.Join(errs...)
}
