package engine

import (
	"github.com/spaghettifunk/anima-exec/engine/renderer/execution"
)

type ApplicationConfig struct {
	// The application name, used for logging and executor naming.
	Name string
	// Path of the TOML or YAML configuration file. Empty uses the defaults.
	ConfigPath string
	// Reload the configuration file when it changes on disk.
	WatchConfig bool
	// Overrides the configured log level when set.
	LogLevel string
	// Number of frames to run. Zero runs until Shutdown.
	Frames uint64
	// Native backend. Both nil selects the recording backend.
	Device execution.NativeDevice
	Queue  execution.NativeQueue
	// Label every recorded node with its name.
	LabelNodes bool
}
