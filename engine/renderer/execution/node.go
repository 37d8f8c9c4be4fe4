package execution

import (
	"sync/atomic"

	"github.com/spaghettifunk/anima-exec/engine/core"
)

// CommandKind tags what an execution node records.
type CommandKind int

const (
	CommandKindCustom CommandKind = iota
	CommandKindTransfer
	CommandKindDispatch
	CommandKindDraw
)

func (k CommandKind) String() string {
	switch k {
	case CommandKindCustom:
		return "custom"
	case CommandKindTransfer:
		return "transfer"
	case CommandKindDispatch:
		return "dispatch"
	case CommandKindDraw:
		return "draw"
	default:
		return "unknown"
	}
}

// ExecutionNode is one recorded operation: the resources it touches and the
// callback that emits its native commands. Nodes are reused through an
// ExecutionNodePool and stay in use until the submission holding them completes.
type ExecutionNode struct {
	ID   core.Identifier
	Name string
	Kind CommandKind

	inUse     atomic.Bool
	resources UsageList
	execute   func(ctx *ExecutionContext)
}

func NewExecutionNode(name string, kind CommandKind) *ExecutionNode {
	return &ExecutionNode{
		ID:   core.NewIdentifier(),
		Name: name,
		Kind: kind,
	}
}

func (n *ExecutionNode) Resources() *UsageList {
	return &n.resources
}

func (n *ExecutionNode) SetExecute(fn func(ctx *ExecutionContext)) {
	n.execute = fn
}

func (n *ExecutionNode) Execute(ctx *ExecutionContext) {
	if n.execute != nil {
		n.execute(ctx)
	}
}

func (n *ExecutionNode) InUse() bool {
	return n.inUse.Load()
}

// Finish releases the node back to its pool.
func (n *ExecutionNode) Finish() {
	n.resources.Clear()
	n.execute = nil
	n.inUse.Store(false)
}
