package engine

import (
	"github.com/rendis/ffts/pkg/schema"
)

// analyzeCollective validates a collective's subtask registration and records
// its per-subtask input counts and degree-zero count.
func analyzeCollective(st *nodeState) error {
	n := st.node
	def := n.Collective
	if def == nil {
		return schema.NewErrorf(schema.ErrCodeMissingTemplate, "collective op %s has no registered subtasks", n.OpType).WithNode(n.ID)
	}
	m := len(def.Subtasks)
	if m == 0 {
		return schema.NewError(schema.ErrCodeShapeMismatch, "collective has zero subtasks").WithNode(n.ID)
	}
	if len(def.Adjacency) != m {
		return schema.NewErrorf(schema.ErrCodeShapeMismatch,
			"collective has %d subtasks but adjacency of size %d", m, len(def.Adjacency)).WithNode(n.ID)
	}

	inputs := make([]int, m)
	for i, targets := range def.Adjacency {
		for _, t := range targets {
			if t < 0 || t >= m {
				return schema.NewErrorf(schema.ErrCodeShapeMismatch,
					"subtask %d targets %d, outside [0, %d)", i, t, m).WithNode(n.ID)
			}
			if t == i {
				return schema.NewErrorf(schema.ErrCodeCycleDetected, "subtask %d depends on itself", i).WithNode(n.ID)
			}
			inputs[t]++
		}
		if len(targets) == 0 {
			st.degreeZero++
		}
	}

	// Kahn over the internal adjacency.
	remaining := make([]int, m)
	copy(remaining, inputs)
	queue := make([]int, 0, m)
	for i, c := range remaining {
		if c == 0 {
			queue = append(queue, i)
		}
	}
	visited := 0
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		visited++
		for _, t := range def.Adjacency[i] {
			remaining[t]--
			if remaining[t] == 0 {
				queue = append(queue, t)
			}
		}
	}
	if visited != m {
		return schema.NewError(schema.ErrCodeCycleDetected, "collective subtask adjacency contains a cycle").WithNode(n.ID)
	}

	st.subtaskInputs = inputs
	return nil
}

// subtaskContextType maps a subtask hardware op to its context type and payload.
func subtaskContextType(st schema.Subtask) (schema.ContextType, *schema.Payload, bool) {
	switch st.Op {
	case schema.SubtaskSDMA:
		if st.SDMA == nil {
			return "", nil, false
		}
		c := *st.SDMA
		return schema.ContextSDMA, &schema.Payload{SDMA: &c}, true
	case schema.SubtaskNotifyWait, schema.SubtaskNotifyRecord:
		if st.Notify == nil {
			return "", nil, false
		}
		c := *st.Notify
		t := schema.ContextNotifyWait
		if st.Op == schema.SubtaskNotifyRecord {
			t = schema.ContextNotifyRecord
		}
		return t, &schema.Payload{Notify: &c}, true
	case schema.SubtaskWriteValue:
		if st.WriteValue == nil {
			return "", nil, false
		}
		c := *st.WriteValue
		return schema.ContextWriteValue, &schema.Payload{WriteValue: &c}, true
	}
	return "", nil, false
}

// emitCollective emits one context per subtask. Zero-input subtasks inherit
// the node's aggregate pred_count; the others wait on their internal inputs.
func emitCollective(st *nodeState) ([]*schema.Context, error) {
	n := st.node
	subtasks := n.Collective.Subtasks
	if len(st.ids) != len(subtasks) {
		return nil, schema.NewErrorf(schema.ErrCodeShapeMismatch,
			"collective has %d subtasks but %d context ids", len(subtasks), len(st.ids)).WithNode(n.ID)
	}

	out := make([]*schema.Context, 0, len(subtasks))
	for i, sub := range subtasks {
		t, payload, ok := subtaskContextType(sub)
		if !ok {
			return nil, schema.NewErrorf(schema.ErrCodeMissingTemplate,
				"subtask %d (%s) has no matching descriptor", i, sub.Op).WithNode(n.ID).WithContext(st.ids[i])
		}
		pred := uint32(st.subtaskInputs[i])
		gated := false
		if pred == 0 {
			pred = st.predCount
			gated = st.gated
		}
		out = append(out, &schema.Context{
			ID:            st.ids[i],
			Type:          t,
			PredCount:     pred,
			PredCountInit: pred,
			ThreadDim:     1,
			OwnerNode:     n.ID,
			StartGated:    gated,
			Payload:       payload,
		})
	}
	return out, nil
}
