//go:build !release

package core

import "fmt"

// AssertionsEnabled reports whether invariant checks are compiled in.
const AssertionsEnabled = true

// Assert panics with the formatted message when cond is false.
// Builds tagged `release` compile it out.
func Assert(cond bool, msg string, args ...interface{}) {
	if !cond {
		m := fmt.Sprintf(msg, args...)
		getLogger().Error("assertion failed", "reason", m)
		panic("assertion failed: " + m)
	}
}
