package engine

import (
	"github.com/rendis/ffts/pkg/schema"
)

// arena is the id-indexed context table owned by one build. Structural
// contexts are placed at their allocated ids; Labels are appended as the
// inserter creates them, so every Label id is above every structural id.
type arena struct {
	contexts []*schema.Context
	capacity int
	maxChain int
	labels   int
}

func newArena(structural uint32, capacity, maxChain int) *arena {
	return &arena{
		contexts: make([]*schema.Context, structural),
		capacity: capacity,
		maxChain: maxChain,
	}
}

// place stores an emitted context at its id.
func (a *arena) place(c *schema.Context) error {
	if int(c.ID) >= len(a.contexts) {
		return schema.NewErrorf(schema.ErrCodeDanglingSuccessor,
			"context id %d outside allocated table of %d", c.ID, len(a.contexts)).WithNode(c.OwnerNode)
	}
	if prev := a.contexts[c.ID]; prev != nil {
		return schema.NewErrorf(schema.ErrCodeShapeMismatch,
			"context id %d emitted twice (%s, %s)", c.ID, prev.OwnerNode, c.OwnerNode).WithContext(c.ID)
	}
	a.contexts[c.ID] = c
	return nil
}

// assemble seals the arena into a TaskGraph.
func (a *arena) assemble(name string, ready uint32, args []schema.AdditionalArg) (*schema.TaskGraph, error) {
	for i, c := range a.contexts {
		if c == nil {
			return nil, schema.NewErrorf(schema.ErrCodeShapeMismatch, "context id %d was allocated but never emitted", i)
		}
	}
	total := uint32(len(a.contexts))
	if ready > total {
		return nil, schema.NewErrorf(schema.ErrCodeShapeMismatch, "ready count %d exceeds total %d", ready, total)
	}
	return &schema.TaskGraph{
		Partition:         name,
		ReadyContextCount: ready,
		TotalContextCount: total,
		Contexts:          a.contexts,
		AdditionalArgs:    args,
	}, nil
}
