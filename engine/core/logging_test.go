package core

import (
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

func TestSubLoggersFollowLevel(t *testing.T) {
	defer SetLogLevel("info")

	SetLogLevel("info")
	sub := LogWith("executor")
	assert.Same(t, sub, LogWith("executor"))

	SetLogLevel("debug")
	assert.Equal(t, log.DebugLevel, sub.GetLevel())
	late := LogWith("vulkan")
	assert.Equal(t, log.DebugLevel, late.GetLevel())

	SetLogLevel("error")
	assert.Equal(t, log.ErrorLevel, sub.GetLevel())
	assert.Equal(t, log.ErrorLevel, late.GetLevel())
}
