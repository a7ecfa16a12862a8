package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rendis/ffts/pkg/schema"
)

// Mode is the emission strategy chosen for a node.
type Mode int

const (
	ModeManual Mode = iota
	ModeAuto
	ModeDynamic
	ModeMixL2
	ModeCollective
)

var modeNames = map[Mode]string{
	ModeManual:     "manual",
	ModeAuto:       "auto",
	ModeDynamic:    "dynamic",
	ModeMixL2:      "mix_l2",
	ModeCollective: "collective",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode converts a mode name to a Mode.
func ParseMode(s string) (Mode, error) {
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return 0, schema.NewErrorf(schema.ErrCodeValidation, "unknown mode %q", s)
}

// MarshalJSON writes the mode by name, as profiles spell it.
func (m Mode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// Evaluator evaluates an expression against a data map. The expression
// engines in internal/expressions satisfy it.
type Evaluator interface {
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}

// SelectMode picks the emission mode of a node. The routing order is:
// alias-engine marker, collective op type, configured rules, unknown shape
// anywhere in the partition, declared auto slicing, manual.
func SelectMode(ctx context.Context, cfg *Config, rules Evaluator, p *Plan, n *schema.NodeDef) (Mode, error) {
	if n.IsMixL2() {
		return ModeMixL2, nil
	}
	if cfg.IsCollective(n.OpType) {
		return ModeCollective, nil
	}
	if rules != nil && len(cfg.ModeRules) > 0 {
		data := ruleData(p, n)
		for _, r := range cfg.ModeRules {
			out, err := rules.Evaluate(ctx, r.When, data)
			if err != nil {
				return 0, schema.NewErrorf(schema.ErrCodeExpression, "mode rule %s: %v", r.Name, err).
					WithNode(n.ID).WithCause(err)
			}
			match, ok := out.(bool)
			if !ok {
				return 0, schema.NewErrorf(schema.ErrCodeExpression, "mode rule %s returned %T, want bool", r.Name, out).
					WithNode(n.ID)
			}
			if match {
				return r.Mode, nil
			}
		}
	}
	if p.UnknownShape {
		return ModeDynamic, nil
	}
	if n.SliceMode() == schema.ThreadModeAuto {
		return ModeAuto, nil
	}
	return ModeManual, nil
}

// ruleData exposes a node and its partition to mode rules.
func ruleData(p *Plan, n *schema.NodeDef) map[string]any {
	coreType := ""
	if n.Template != nil {
		coreType = string(n.Template.CoreType)
	}
	window := 0
	if n.Slice != nil {
		window = n.Slice.WindowSize
	}
	return map[string]any{
		"node": map[string]any{
			"id":            n.ID,
			"op_type":       n.OpType,
			"core_type":     coreType,
			"thread_mode":   string(n.SliceMode()),
			"thread_dim":    int64(n.Slice.Dim()),
			"window_size":   int64(window),
			"thread_scope":  int64(n.ThreadScope),
			"unknown_shape": n.UnknownShape,
			"inputs":        int64(len(n.Inputs)),
			"successors":    int64(len(p.Succs[n.ID])),
		},
		"partition": map[string]any{
			"name":          p.Name,
			"nodes":         int64(len(p.Order)),
			"unknown_shape": p.UnknownShape,
		},
	}
}
