//go:build release

package core

const AssertionsEnabled = false

func Assert(cond bool, msg string, args ...interface{}) {}
