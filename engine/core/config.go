package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// LogConfig holds the logger settings.
type LogConfig struct {
	Level string `toml:"level" yaml:"level"`
}

// ExecutionConfig holds the tunables of the execution layer.
type ExecutionConfig struct {
	// Number of independent resource state generations.
	Generations int `toml:"generations" yaml:"generations"`
	// Maximum number of submissions in flight before BeginCommandBuffer waits.
	FramesInFlight int `toml:"frames_in_flight" yaml:"frames_in_flight"`
	// Workers of the job system running the submission recycler.
	RecycleWorkers int `toml:"recycle_workers" yaml:"recycle_workers"`
	// Interval between two recycler polls.
	RecycleIntervalMS int `toml:"recycle_interval_ms" yaml:"recycle_interval_ms"`
	// Merge adjacent sub-ranges sharing the same transition into one barrier.
	MergeBarriers bool `toml:"merge_barriers" yaml:"merge_barriers"`
}

type Config struct {
	Log       LogConfig       `toml:"log" yaml:"log"`
	Execution ExecutionConfig `toml:"execution" yaml:"execution"`
}

func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
		},
		Execution: ExecutionConfig{
			Generations:       3,
			FramesInFlight:    3,
			RecycleWorkers:    1,
			RecycleIntervalMS: 2,
			MergeBarriers:     true,
		},
	}
}

func (c *Config) RecycleInterval() time.Duration {
	return time.Duration(c.Execution.RecycleIntervalMS) * time.Millisecond
}

func (c *Config) Validate() error {
	if c.Execution.Generations < 1 {
		return fmt.Errorf("execution.generations must be at least 1, got %d: %w", c.Execution.Generations, ErrConfig)
	}
	if c.Execution.FramesInFlight < 1 {
		return fmt.Errorf("execution.frames_in_flight must be at least 1, got %d: %w", c.Execution.FramesInFlight, ErrConfig)
	}
	if c.Execution.RecycleWorkers < 1 {
		return fmt.Errorf("execution.recycle_workers must be at least 1, got %d: %w", c.Execution.RecycleWorkers, ErrConfig)
	}
	if c.Execution.RecycleIntervalMS < 0 {
		return fmt.Errorf("execution.recycle_interval_ms cannot be negative: %w", ErrConfig)
	}
	return nil
}

// ParseConfig decodes a TOML document on top of the defaults.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", errors.Join(ErrConfig, err))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseConfigYAML is ParseConfig for YAML documents.
func ParseConfigYAML(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", errors.Join(ErrConfig, err))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig reads the configuration file at path, as YAML when the extension
// says so and TOML otherwise. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			LogDebug("configuration file %s not found, using defaults", path)
			return DefaultConfig(), nil
		}
		return nil, err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return ParseConfigYAML(data)
	default:
		return ParseConfig(data)
	}
}

// ConfigWatcher reloads a configuration file whenever it changes on disk.
type ConfigWatcher struct {
	path     string
	fsnotify *fsnotify.Watcher
	onChange func(*Config)

	mu      sync.Mutex
	current *Config
	done    chan struct{}
	closed  bool
}

func NewConfigWatcher(path string, onChange func(*Config)) (*ConfigWatcher, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors replace files rather than writing in place.
	if err := fsWatch.Add(filepath.Dir(path)); err != nil {
		fsWatch.Close()
		return nil, err
	}
	cw := &ConfigWatcher{
		path:     path,
		fsnotify: fsWatch,
		onChange: onChange,
		current:  cfg,
		done:     make(chan struct{}),
	}
	go cw.watch()
	return cw, nil
}

func (cw *ConfigWatcher) Current() *Config {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.current
}

func (cw *ConfigWatcher) watch() {
	defer close(cw.done)
	target := filepath.Clean(cw.path)
	for {
		select {
		case event, ok := <-cw.fsnotify.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cfg, err := LoadConfig(cw.path)
			if err != nil {
				LogWarn("ignoring configuration change: %s", err.Error())
				continue
			}
			cw.mu.Lock()
			cw.current = cfg
			cw.mu.Unlock()
			LogInfo("configuration reloaded from %s", cw.path)
			if cw.onChange != nil {
				cw.onChange(cfg)
			}
		case err, ok := <-cw.fsnotify.Errors:
			if !ok {
				return
			}
			LogError(err.Error())
		}
	}
}

func (cw *ConfigWatcher) Close() error {
	cw.mu.Lock()
	if cw.closed {
		cw.mu.Unlock()
		return errors.New("config watcher already closed")
	}
	cw.closed = true
	cw.mu.Unlock()
	err := cw.fsnotify.Close()
	<-cw.done
	return err
}
