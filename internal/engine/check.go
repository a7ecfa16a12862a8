package engine

import (
	"github.com/rendis/ffts/pkg/schema"
)

// CheckNode runs the payload and shape checks a build would hit for one node
// without allocating anything. Pass-through nodes always pass.
func CheckNode(cfg *Config, n *schema.NodeDef) error {
	switch {
	case n.PassThrough:
		return nil
	case n.IsMixL2():
		if n.Template.Mix.AIC == nil && n.Template.Mix.AIV == nil {
			return missingTemplate(n, "mix")
		}
		return nil
	case cfg.IsCollective(n.OpType):
		st := &nodeState{node: n, mode: ModeCollective}
		if err := analyzeCollective(st); err != nil {
			return err
		}
		for i, sub := range n.Collective.Subtasks {
			if _, _, ok := subtaskContextType(sub); !ok {
				return schema.NewErrorf(schema.ErrCodeMissingTemplate,
					"subtask %d (%s) has no matching descriptor", i, sub.Op).WithNode(n.ID)
			}
		}
		return nil
	}
	_, _, err := resolveContextType(cfg, n)
	return err
}
