package core

import (
	"errors"
)

var (
	ErrNativeCall   = errors.New("native graphics call failed")
	ErrDeviceLost   = errors.New("device lost")
	ErrFenceTimeout = errors.New("fence wait timed out")
	ErrQueueFull    = errors.New("queue is full")
	ErrQueueEmpty   = errors.New("queue is empty")
	ErrConfig       = errors.New("invalid configuration")
)
