package engine

import (
	"github.com/rendis/ffts/pkg/schema"
)

// insert appends succID to the successor list of ctxID. When the inline list
// is full the last slot either already points at a Label, which is followed,
// or holds a real successor, which is evicted into a fresh Label together
// with succID. The walk down the Label chain is bounded by maxChain.
func (a *arena) insert(ctxID, succID uint32) error {
	size := uint32(len(a.contexts))
	if succID >= size {
		return schema.NewErrorf(schema.ErrCodeDanglingSuccessor,
			"successor %d is outside the table of %d contexts", succID, size).WithContext(ctxID)
	}
	if ctxID >= size {
		return schema.NewErrorf(schema.ErrCodeDanglingSuccessor,
			"context %d is outside the table of %d contexts", ctxID, size)
	}

	cur := a.contexts[ctxID]
	for depth := 0; ; {
		n := len(cur.SuccessorIDs)
		if n < a.capacity {
			cur.SuccessorIDs = append(cur.SuccessorIDs, succID)
			return nil
		}

		last := cur.SuccessorIDs[n-1]
		if last >= size {
			return schema.NewErrorf(schema.ErrCodeDanglingSuccessor,
				"last slot references %d outside the table of %d contexts", last, size).WithContext(cur.ID)
		}
		if depth++; depth > a.maxChain {
			return schema.NewErrorf(schema.ErrCodeOverflowChainExhausted,
				"label chain exceeds %d links", a.maxChain).
				WithContext(ctxID).
				WithNode(a.contexts[ctxID].OwnerNode)
		}

		next := a.contexts[last]
		if next.IsLabel() {
			cur = next
			continue
		}

		label := &schema.Context{
			ID:            size,
			Type:          schema.ContextLabel,
			PredCount:     1,
			PredCountInit: 1,
			SuccessorIDs:  []uint32{last, succID},
			OwnerNode:     cur.OwnerNode,
		}
		a.contexts = append(a.contexts, label)
		a.labels++
		cur.SuccessorIDs[n-1] = label.ID
		return nil
	}
}
