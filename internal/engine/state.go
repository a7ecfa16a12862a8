package engine

import (
	"github.com/rendis/ffts/pkg/schema"
)

// unassigned marks a context id slot not yet allocated.
const unassigned = ^uint32(0)

// nodeState is the build-owned annotation of one materializing node. The
// partition itself is never written to.
type nodeState struct {
	node *schema.NodeDef
	mode Mode

	preds     []string // real in-unit producers, pass-throughs unwound
	succs     []string // real non-collective consumers, pass-throughs unwound
	predCount uint32
	gated     bool // pred_count forced to 1 by at-start predecessors

	ids  []uint32 // context ids; indexed by subtask for collectives
	pass int

	// collective bookkeeping
	subtaskInputs []int
	degreeZero    int
}

// contextCount is the number of structural contexts the node emits.
func (s *nodeState) contextCount() int {
	switch s.mode {
	case ModeAuto, ModeDynamic:
		return s.node.Slice.Dim()
	case ModeCollective:
		return len(s.node.Collective.Subtasks)
	default:
		return 1
	}
}

// exitCount is how many completions the node delivers to each consumer.
func (s *nodeState) exitCount() int {
	if s.mode == ModeCollective {
		return s.degreeZero
	}
	return s.contextCount()
}

// exits are the contexts whose completion signals the node's consumers.
func (s *nodeState) exits() []uint32 {
	if s.mode != ModeCollective {
		return s.ids
	}
	out := make([]uint32, 0, s.degreeZero)
	for i, targets := range s.node.Collective.Adjacency {
		if len(targets) == 0 {
			out = append(out, s.ids[i])
		}
	}
	return out
}

// entries are the contexts that wait on the node's producers.
func (s *nodeState) entries() []uint32 {
	if s.mode != ModeCollective {
		return s.ids
	}
	var out []uint32
	for i, n := range s.subtaskInputs {
		if n == 0 {
			out = append(out, s.ids[i])
		}
	}
	return out
}

// ready reports whether the node belongs to the zero-predecessor prefix.
func (s *nodeState) ready() bool {
	return len(s.preds) == 0 && len(s.node.AtStartPreds) == 0
}
