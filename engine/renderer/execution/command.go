package execution

// UpdateContext is handed to commands before a frame is recorded.
type UpdateContext struct {
	Frame      uint64
	Generation int
}

// Command is an operation that can produce execution nodes.
type Command interface {
	Name() string
	Kind() CommandKind
	// ExecutionNode builds the node recording this command, nil to skip it.
	ExecutionNode(rc *RecordContext) *ExecutionNode
	// UpdateResources refreshes per-frame data, reporting whether anything changed.
	UpdateResources(uc *UpdateContext) bool
}

// Executable builds an execution node on demand.
type Executable func(rc *RecordContext) *ExecutionNode

type commandBase struct {
	name string
	kind CommandKind
	pool *ExecutionNodePool
}

func newCommandBase(name string, kind CommandKind) commandBase {
	return commandBase{name: name, kind: kind, pool: NewExecutionNodePool()}
}

func (c *commandBase) Name() string      { return c.name }
func (c *commandBase) Kind() CommandKind { return c.kind }

func (c *commandBase) UpdateResources(*UpdateContext) bool {
	return false
}

// Pool is the node pool owned by the command.
func (c *commandBase) Pool() *ExecutionNodePool {
	return c.pool
}

func (c *commandBase) node() *ExecutionNode {
	return c.pool.GetNode(func() *ExecutionNode {
		return NewExecutionNode(c.name, c.kind)
	})
}

// CustomCommand declares its resources and records through callbacks.
type CustomCommand struct {
	commandBase
	declare func(rc *RecordContext, list *UsageList)
	run     func(ctx *ExecutionContext)
	update  func(uc *UpdateContext) bool
}

func NewCustomCommand(name string, declare func(rc *RecordContext, list *UsageList), run func(ctx *ExecutionContext)) *CustomCommand {
	return &CustomCommand{
		commandBase: newCommandBase(name, CommandKindCustom),
		declare:     declare,
		run:         run,
	}
}

// OnUpdate sets the per-frame update callback.
func (c *CustomCommand) OnUpdate(fn func(uc *UpdateContext) bool) *CustomCommand {
	c.update = fn
	return c
}

func (c *CustomCommand) UpdateResources(uc *UpdateContext) bool {
	if c.update == nil {
		return false
	}
	return c.update(uc)
}

func (c *CustomCommand) ExecutionNode(rc *RecordContext) *ExecutionNode {
	n := c.node()
	if c.declare != nil {
		c.declare(rc, n.Resources())
	}
	n.SetExecute(c.run)
	return n
}

// ExecutableFunc builds an Executable drawing its nodes from pool.
func ExecutableFunc(pool *ExecutionNodePool, name string, declare func(list *UsageList), run func(ctx *ExecutionContext)) Executable {
	return func(rc *RecordContext) *ExecutionNode {
		n := pool.GetNode(func() *ExecutionNode {
			return NewExecutionNode(name, CommandKindCustom)
		})
		if declare != nil {
			declare(n.Resources())
		}
		n.SetExecute(run)
		return n
	}
}
