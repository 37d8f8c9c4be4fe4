//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Tidies the module and builds every package with assertions enabled.
func (Build) Engine() error {
	if err := goTidy(); err != nil {
		return err
	}
	_, err := executeCmd("go", withArgs("build", "./..."), withStream())
	return err
}

// Builds the testbed binary with assertions compiled out.
func (Build) Release() error {
	mg.Deps(Build.Engine)
	_, err := executeCmd("go", withArgs("build", "-tags", "release", "-o", "bin/anima-exec", "."), withStream())
	return err
}

type Test mg.Namespace

// Runs every test with the race detector.
func (Test) All() error {
	_, err := executeCmd("go", withArgs("test", "-race", "./..."), withStream())
	return err
}

// Runs the execution layer tests only.
func (Test) Execution() error {
	_, err := executeCmd("go", withArgs("test", "-race", "-v", "./engine/renderer/execution/..."), withStream())
	return err
}
