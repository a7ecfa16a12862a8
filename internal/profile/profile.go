// Package profile loads hardware profiles: HCL files that size the context
// table and route op types for the task-graph builder.
//
//	name              = "ascend-lite"
//	max_inline_fanout = hw.inline_slots
//	max_label_chain   = 32
//	collective_ops    = concat(hw.collective_ops, ["HcomCustomAllReduce"])
//	rts_context_types = {
//	  CopyAsync = context.sdma
//	}
//
//	mode_rule "wide_matmul" {
//	  when = "node.op_type == 'MatMul' && node.thread_dim >= 4"
//	  mode = "auto"
//	}
package profile

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"

	"github.com/rendis/ffts/internal/engine"
	"github.com/rendis/ffts/pkg/schema"
)

// RuleChecker compiles a mode-rule expression ahead of any build.
// expressions.CELEngine satisfies it.
type RuleChecker interface {
	CheckBool(expression string) error
}

// Profile is a decoded hardware profile.
type Profile struct {
	Name   string
	Source string
	Config *engine.Config
}

// fileRoot is the top-level shape of a profile file.
type fileRoot struct {
	Name            string            `hcl:"name,optional"`
	MaxInlineFanout *int              `hcl:"max_inline_fanout,optional"`
	MaxLabelChain   *int              `hcl:"max_label_chain,optional"`
	CollectiveOps   []string          `hcl:"collective_ops,optional"`
	RTSContextTypes map[string]string `hcl:"rts_context_types,optional"`
	ModeRules       []*modeRuleBlock  `hcl:"mode_rule,block"`
}

type modeRuleBlock struct {
	Name string `hcl:"name,label"`
	When string `hcl:"when"`
	Mode string `hcl:"mode"`
}

// Loader decodes profile files on top of engine.DefaultConfig.
type Loader struct {
	logger  *slog.Logger
	checker RuleChecker
}

// NewLoader creates a Loader. checker may be nil to skip compiling mode
// rules at load time; logger may be nil.
func NewLoader(logger *slog.Logger, checker RuleChecker) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger, checker: checker}
}

// LoadFile reads and decodes the profile at path.
func (l *Loader) LoadFile(ctx context.Context, path string) (*Profile, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeProfile, "read profile %s: %v", path, err).WithCause(err)
	}
	return l.Parse(ctx, src, path)
}

// Parse decodes profile source. filename only labels diagnostics.
func (l *Loader) Parse(ctx context.Context, src []byte, filename string) (*Profile, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, diagError("parse", filename, diags)
	}

	var root fileRoot
	diags = gohcl.DecodeBody(file.Body, evalContext(), &root)
	if diags.HasErrors() {
		return nil, diagError("decode", filename, diags)
	}

	cfg, err := l.translate(&root)
	if err != nil {
		return nil, err
	}

	l.logger.DebugContext(ctx, "hardware profile loaded",
		slog.String("profile", root.Name),
		slog.String("source", filename),
		slog.Int("max_inline_fanout", cfg.MaxInlineFanout),
		slog.Int("mode_rules", len(cfg.ModeRules)),
	)
	return &Profile{Name: root.Name, Source: filename, Config: cfg}, nil
}

// translate merges a decoded file over the default configuration.
func (l *Loader) translate(root *fileRoot) (*engine.Config, error) {
	cfg := engine.DefaultConfig()
	if root.MaxInlineFanout != nil {
		cfg.MaxInlineFanout = *root.MaxInlineFanout
	}
	if root.MaxLabelChain != nil {
		cfg.MaxLabelChain = *root.MaxLabelChain
	}
	if root.CollectiveOps != nil {
		cfg.CollectiveOps = make(map[string]bool, len(root.CollectiveOps))
		for _, op := range root.CollectiveOps {
			cfg.CollectiveOps[op] = true
		}
	}
	for op, t := range root.RTSContextTypes {
		cfg.ContextTypeMap[op] = schema.ContextType(t)
	}

	for _, r := range root.ModeRules {
		mode, err := engine.ParseMode(r.Mode)
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeProfile, "mode_rule %q: %v", r.Name, err).WithCause(err)
		}
		if l.checker != nil {
			if err := l.checker.CheckBool(r.When); err != nil {
				return nil, schema.NewErrorf(schema.ErrCodeProfile, "mode_rule %q: %v", r.Name, err).WithCause(err)
			}
		}
		cfg.ModeRules = append(cfg.ModeRules, engine.ModeRule{Name: r.Name, When: r.When, Mode: mode})
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// evalContext exposes reference-hardware defaults and the context type names
// to profile expressions.
func evalContext() *hcl.EvalContext {
	defaults := engine.DefaultConfig()

	ops := make([]string, 0, len(defaults.CollectiveOps))
	for op := range defaults.CollectiveOps {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	opVals := make([]cty.Value, len(ops))
	for i, op := range ops {
		opVals[i] = cty.StringVal(op)
	}

	types := []schema.ContextType{
		schema.ContextAICore, schema.ContextAIV, schema.ContextMixAIC, schema.ContextMixAIV,
		schema.ContextAICPU, schema.ContextSDMA, schema.ContextNotifyWait, schema.ContextNotifyRecord,
		schema.ContextWriteValue, schema.ContextCaseSwitch, schema.ContextAtStart, schema.ContextAtEnd,
	}
	typeVals := make(map[string]cty.Value, len(types))
	for _, t := range types {
		typeVals[string(t)] = cty.StringVal(string(t))
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"hw": cty.ObjectVal(map[string]cty.Value{
				"inline_slots":   cty.NumberIntVal(schema.MaxInlineFanout),
				"label_chain":    cty.NumberIntVal(engine.DefaultMaxLabelChain),
				"collective_ops": cty.ListVal(opVals),
			}),
			"context": cty.ObjectVal(typeVals),
		},
		Functions: map[string]function.Function{
			"concat": stdlib.ConcatFunc,
			"min":    stdlib.MinFunc,
			"max":    stdlib.MaxFunc,
		},
	}
}

func diagError(stage, filename string, diags hcl.Diagnostics) error {
	msgs := make([]string, 0, len(diags))
	for _, d := range diags {
		if d.Severity == hcl.DiagError {
			msgs = append(msgs, d.Error())
		}
	}
	return schema.NewErrorf(schema.ErrCodeProfile, "failed to %s profile %s: %s", stage, filename, diags.Error()).
		WithCause(diags).
		WithDetails(map[string]any{"diagnostics": msgs})
}

// DefaultProfile is the reference hardware without any file.
func DefaultProfile() *Profile {
	return &Profile{Name: "default", Source: fmt.Sprintf("builtin (%d inline slots)", schema.MaxInlineFanout), Config: engine.DefaultConfig()}
}
