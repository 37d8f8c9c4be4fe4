/*
This is an example of application that will use the
engine package to record frames headless
*/
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/anima-exec/engine"
	"github.com/spaghettifunk/anima-exec/engine/core"
	"github.com/spaghettifunk/anima-exec/testbed"
	"github.com/spf13/cobra"
)

func main() {
	app := &engine.ApplicationConfig{
		Name: "anima-exec",
	}

	cmd := &cobra.Command{
		Use:           "anima-exec",
		Short:         "Record the testbed scene through the execution layer",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), app)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&app.ConfigPath, "config", "c", "", "configuration file (toml or yaml)")
	flags.BoolVar(&app.WatchConfig, "watch", false, "reload the configuration file when it changes")
	flags.StringVar(&app.LogLevel, "log-level", "", "override the configured log level")
	flags.Uint64VarP(&app.Frames, "frames", "n", 120, "frames to record, 0 runs until interrupted")
	flags.BoolVar(&app.LabelNodes, "label-nodes", false, "wrap every recorded node in a debug label")

	// signal channel to capture system calls
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		core.LogError(err.Error())
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, app *engine.ApplicationConfig) error {
	tb := testbed.NewTestGame(app)

	e, err := engine.New(tb.Game)
	if err != nil {
		return err
	}
	if err := e.Initialize(); err != nil {
		_ = e.Shutdown()
		return err
	}

	runErr := e.Run(ctx)
	if err := e.Shutdown(); err != nil && runErr == nil {
		return err
	}
	return runErr
}
