//go:build mage

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Records the testbed scene headless. FRAMES and CONFIG override the defaults.
func (Run) Testbed() error {
	args := []string{"run", ".", "--log-level", "debug"}
	if frames := os.Getenv("FRAMES"); frames != "" {
		args = append(args, "--frames", frames)
	}
	if config := os.Getenv("CONFIG"); config != "" {
		args = append(args, "--config", config, "--watch")
	}
	fmt.Println("Run testbed...")
	_, err := executeCmd("go", withArgs(args...), withStream())
	return err
}
