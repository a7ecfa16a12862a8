package engine

import (
	"math"

	"github.com/rendis/ffts/pkg/schema"
)

// emit dispatches a node to the emitter of its mode. Emitters return the
// node's structural contexts with counters set and successor lists empty;
// edges are wired afterwards through the inserter.
func (b *build) emit(st *nodeState) ([]*schema.Context, error) {
	switch st.mode {
	case ModeManual:
		return emitManual(b.cfg, st)
	case ModeAuto, ModeDynamic:
		t, payload, err := resolveContextType(b.cfg, st.node)
		if err != nil {
			return nil, err
		}
		return emitSliced(st, t, payload, st.ids)
	case ModeMixL2:
		ctxs, arg, err := b.emitMixL2(st)
		if err != nil {
			return nil, err
		}
		if arg != nil {
			b.additionalArgs = append(b.additionalArgs, *arg)
		}
		return ctxs, nil
	case ModeCollective:
		return emitCollective(st)
	}
	return nil, schema.NewErrorf(schema.ErrCodeValidation, "unsupported mode %s", st.mode).WithNode(st.node.ID)
}

func emitManual(cfg *Config, st *nodeState) ([]*schema.Context, error) {
	t, payload, err := resolveContextType(cfg, st.node)
	if err != nil {
		return nil, err
	}
	return []*schema.Context{{
		ID:            st.ids[0],
		Type:          t,
		PredCount:     st.predCount,
		PredCountInit: st.predCount,
		ThreadDim:     1,
		OwnerNode:     st.node.ID,
		StartGated:    st.gated,
		Payload:       payload,
	}}, nil
}

// CheckSliceIDs rejects an upstream slot list whose length disagrees with
// thread_dim.
func CheckSliceIDs(n *schema.NodeDef) error {
	s := n.Slice
	if s == nil || len(s.ContextIDs) == 0 || len(s.ContextIDs) == s.Dim() {
		return nil
	}
	return schema.NewErrorf(schema.ErrCodeShapeMismatch,
		"context_ids has %d entries but thread_dim is %d", len(s.ContextIDs), s.Dim()).WithNode(n.ID)
}

// emitSliced emits one context per thread slice. Every slice shares the
// node's counters and successors; only the last one saves the task address.
func emitSliced(st *nodeState, t schema.ContextType, payload *schema.Payload, ids []uint32) ([]*schema.Context, error) {
	n := st.node
	dim := n.Slice.Dim()
	if err := CheckSliceIDs(n); err != nil {
		return nil, err
	}
	if dim > math.MaxUint16 {
		return nil, schema.NewErrorf(schema.ErrCodeShapeMismatch, "thread_dim %d exceeds hardware width", dim).WithNode(n.ID)
	}
	window := 0
	if n.Slice != nil {
		window = n.Slice.WindowSize
	}
	if window < 0 || window > math.MaxUint16 {
		return nil, schema.NewErrorf(schema.ErrCodeShapeMismatch, "window_size %d out of range", window).WithNode(n.ID)
	}

	out := make([]*schema.Context, dim)
	for i, id := range ids {
		var p *schema.Payload
		if payload != nil {
			cp := *payload
			cp.AICore = cloneKernel(payload.AICore)
			cp.AIV = cloneKernel(payload.AIV)
			p = &cp
		}
		out[i] = &schema.Context{
			ID:            id,
			Type:          t,
			PredCount:     st.predCount,
			PredCountInit: st.predCount,
			ThreadID:      uint16(i),
			ThreadDim:     uint16(dim),
			WindowSize:    uint16(window),
			SaveTaskAddr:  i == dim-1,
			Dynamic:       st.mode == ModeDynamic,
			OwnerNode:     n.ID,
			StartGated:    st.gated,
			Payload:       p,
		}
	}
	return out, nil
}

// emitMixL2 emits the fused AI-core/vector-core context and, when the
// template asks for first-argument injection, its additional-args record.
func (b *build) emitMixL2(st *nodeState) ([]*schema.Context, *schema.AdditionalArg, error) {
	n := st.node
	mix := n.Template.Mix
	if mix.AIC == nil && mix.AIV == nil {
		return nil, nil, missingTemplate(n, "mix")
	}

	t := schema.ContextMixAIC
	if mix.Primary == schema.CoreMixAIV {
		t = schema.ContextMixAIV
	}
	id := st.ids[0]
	ctx := &schema.Context{
		ID:            id,
		Type:          t,
		PredCount:     st.predCount,
		PredCountInit: st.predCount,
		ThreadDim:     1,
		OwnerNode:     n.ID,
		StartGated:    st.gated,
		Payload:       &schema.Payload{AICore: cloneKernel(mix.AIC), AIV: cloneKernel(mix.AIV)},
	}
	if !mix.FirstArgInjection {
		return []*schema.Context{ctx}, nil, nil
	}

	arg := &schema.AdditionalArg{NodeID: n.ID, ContextIDs: []uint32{id}}
	if mix.DefaultContextNode != "" {
		def, ok := b.states[mix.DefaultContextNode]
		if !ok || len(def.ids) == 0 {
			return nil, nil, schema.NewErrorf(schema.ErrCodeNotFound,
				"default context node %s is not scheduled in this unit", mix.DefaultContextNode).WithNode(n.ID)
		}
		arg.ContextIDs = append(arg.ContextIDs, def.ids[0])
	}
	return []*schema.Context{ctx}, arg, nil
}
