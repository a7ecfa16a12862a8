package validation

import (
	"errors"
	"fmt"

	"github.com/rendis/ffts/internal/engine"
	"github.com/rendis/ffts/pkg/schema"
)

// validateSemantic performs the checks JSON Schema cannot express: unique
// ids, self inputs, payload presence per core type, collective shape, and
// references to at-start and default-context nodes.
func validateSemantic(p *schema.Partition, cfg *engine.Config) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	index := make(map[string]int, len(p.Nodes))
	for i, n := range p.Nodes {
		if first, exists := index[n.ID]; exists {
			result.AddError(fmt.Sprintf("nodes[%d].id", i), schema.ErrCodeValidation,
				fmt.Sprintf("duplicate node id %q (first at nodes[%d])", n.ID, first))
			continue
		}
		index[n.ID] = i
	}

	for i := range p.Nodes {
		validateNodeSemantic(p, i, index, cfg, result)
	}
	return result
}

func validateNodeSemantic(p *schema.Partition, i int, index map[string]int, cfg *engine.Config, result *schema.ValidationResult) {
	n := &p.Nodes[i]
	path := fmt.Sprintf("nodes[%d]", i)

	for j, in := range n.Inputs {
		if in == n.ID {
			result.AddError(fmt.Sprintf("%s.inputs[%d]", path, j), schema.ErrCodeCycleDetected,
				fmt.Sprintf("node %q consumes itself", n.ID))
		}
	}

	if n.PassThrough {
		if n.Template != nil || n.Collective != nil {
			result.AddWarning(path, schema.ErrCodeValidation, "pass-through node carries a payload that is never emitted")
		}
		if len(n.AtStartPreds) > 0 {
			result.AddWarning(path+".at_start_preds", schema.ErrCodeValidation, "at-start predecessors of a pass-through node have no effect")
		}
		return
	}

	field := "template"
	if cfg.IsCollective(n.OpType) && !n.IsMixL2() {
		field = "collective"
	} else if n.Collective != nil {
		result.AddWarning(path+".collective", schema.ErrCodeValidation,
			fmt.Sprintf("op %s is not a collective; subtask registration is ignored", n.OpType))
	}
	if err := engine.CheckNode(cfg, n); err != nil {
		addCheckError(result, path+"."+field, err)
	}

	for j, ref := range n.AtStartPreds {
		if _, inside := index[ref]; inside {
			result.AddWarning(fmt.Sprintf("%s.at_start_preds[%d]", path, j), schema.ErrCodeValidation,
				fmt.Sprintf("at-start predecessor %q is inside the unit; the gate replaces its edge", ref))
		}
	}

	if n.IsMixL2() && n.Template.Mix.DefaultContextNode != "" {
		mix := n.Template.Mix
		refPath := path + ".template.mix.default_context_node"
		j, ok := index[mix.DefaultContextNode]
		switch {
		case !ok:
			result.AddError(refPath, schema.ErrCodeNotFound,
				fmt.Sprintf("default context node %q is not in the partition", mix.DefaultContextNode))
		case p.Nodes[j].PassThrough:
			result.AddError(refPath, schema.ErrCodeNotFound,
				fmt.Sprintf("default context node %q is a pass-through and owns no context", mix.DefaultContextNode))
		}
		if !mix.FirstArgInjection {
			result.AddWarning(refPath, schema.ErrCodeValidation, "default_context_node is ignored without first_arg_injection")
		}
	}

	if err := engine.CheckSliceIDs(n); err != nil {
		addCheckError(result, path+".slice.context_ids", err)
	}
	if s := n.Slice; s != nil {
		if s.WindowSize > s.Dim() {
			result.AddWarning(path+".slice.window_size", schema.ErrCodeValidation,
				fmt.Sprintf("window_size %d exceeds thread_dim %d", s.WindowSize, s.Dim()))
		}
		if s.Mode == schema.ThreadModeAuto && s.ThreadDim == 0 {
			result.AddWarning(path+".slice.thread_dim", schema.ErrCodeValidation, "auto slicing without thread_dim emits a single slice")
		}
	}
}

// addCheckError records a build-time check failure under path, keeping its code.
func addCheckError(result *schema.ValidationResult, path string, err error) {
	var fe *schema.FftsError
	if errors.As(err, &fe) {
		result.AddError(path, fe.Code, fe.Message)
		return
	}
	result.AddError(path, schema.ErrCodeValidation, err.Error())
}
