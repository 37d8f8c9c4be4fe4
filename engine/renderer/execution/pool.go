package execution

import (
	"sync"

	"github.com/spaghettifunk/anima-exec/engine/core"
)

// ExecutionNodePool hands out execution nodes, reusing those whose previous
// submission completed.
type ExecutionNodePool struct {
	mu    sync.Mutex
	free  []*ExecutionNode
	inUse []*ExecutionNode
}

func NewExecutionNodePool() *ExecutionNodePool {
	return &ExecutionNodePool{}
}

// GetNode returns a clean node, built by factory when none can be reused.
func (p *ExecutionNodePool) GetNode(factory func() *ExecutionNode) *ExecutionNode {
	p.mu.Lock()
	defer p.mu.Unlock()

	node := p.reclaim()
	if node == nil {
		node = factory()
	}
	core.Assert(node.resources.Empty(), "node %q taken from the pool still holds resources", node.Name)
	core.Assert(!node.InUse(), "node %q taken from the pool is still in use", node.Name)
	node.inUse.Store(true)
	p.inUse = append(p.inUse, node)
	return node
}

// reclaim moves finished nodes to the free list and pops one.
func (p *ExecutionNodePool) reclaim() *ExecutionNode {
	if len(p.free) == 0 {
		kept := p.inUse[:0]
		for _, n := range p.inUse {
			if n.InUse() {
				kept = append(kept, n)
			} else {
				p.free = append(p.free, n)
			}
		}
		clear(p.inUse[len(kept):])
		p.inUse = kept
	}
	if len(p.free) == 0 {
		return nil
	}
	n := p.free[len(p.free)-1]
	p.free[len(p.free)-1] = nil
	p.free = p.free[:len(p.free)-1]
	return n
}

// Len is the number of nodes the pool owns.
func (p *ExecutionNodePool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free) + len(p.inUse)
}
