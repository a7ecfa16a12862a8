package engine

import (
	"math"

	"github.com/rendis/ffts/pkg/schema"
)

// boundary reports whether pass-through node pt carries data across a
// thread-slice boundary for producer: none of pt's consumers share the
// producer's thread scope.
func (p *Plan) boundary(pt, producer *schema.NodeDef) bool {
	for _, s := range p.Succs[pt.ID] {
		if p.Nodes[s].ThreadScope == producer.ThreadScope {
			return false
		}
	}
	return true
}

// consumers walks the real consumers of producer, recursing through
// non-boundary pass-through nodes. Each pass-through is entered at most once
// per producer, so the walk is linear in the edges it can reach.
func (b *build) consumers(producer *schema.NodeDef) []string {
	var out []string
	seen := make(map[string]bool)
	visited := make(map[string]bool)

	var walk func(id string)
	walk = func(id string) {
		for _, s := range b.plan.Succs[id] {
			n := b.plan.Nodes[s]
			if n.PassThrough {
				if visited[s] || b.plan.boundary(n, producer) {
					continue
				}
				visited[s] = true
				walk(s)
				continue
			}
			if seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	walk(producer.ID)
	return out
}

// resolve fills preds, succs and predCount for every materializing node.
// Predecessors are the inverse of the consumer walk: a producer feeds a
// consumer when the consumer is reachable from it through pass-throughs that
// are all non-boundary for that producer. Collective consumers get preds but
// never appear in succs; they bind their own incoming edges.
func (b *build) resolve() error {
	for _, id := range b.plan.Order {
		st := b.states[id]
		if st == nil {
			continue
		}
		for _, c := range b.consumers(st.node) {
			cs := b.states[c]
			cs.preds = append(cs.preds, id)
			if cs.mode != ModeCollective {
				st.succs = append(st.succs, c)
			}
		}
	}

	for _, id := range b.plan.Order {
		st := b.states[id]
		if st == nil {
			continue
		}
		var count int
		for _, p := range st.preds {
			count += b.states[p].exitCount()
		}
		if len(st.node.AtStartPreds) > 0 {
			count = 1
			st.gated = true
		}
		if count > math.MaxUint16 {
			return schema.NewErrorf(schema.ErrCodeShapeMismatch, "pred_count %d exceeds hardware width", count).WithNode(id)
		}
		st.predCount = uint32(count)
	}
	return nil
}
