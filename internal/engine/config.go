package engine

import (
	"maps"

	"github.com/rendis/ffts/pkg/schema"
)

// DefaultMaxLabelChain bounds how many Labels may hang off one context.
const DefaultMaxLabelChain = 64

// defaultCollectiveOps are the HCCL-class op types expanded into subtasks.
var defaultCollectiveOps = []string{
	"HcomAllReduce",
	"HcomAllGather",
	"HcomReduceScatter",
	"HcomBroadcast",
	"HcomReduce",
	"HcomSend",
	"HcomReceive",
	"HcomAllToAllV",
}

// defaultContextTypeMap routes runtime (RTS) op types that carry no compute
// template to their context type.
var defaultContextTypeMap = map[string]schema.ContextType{
	"Send":               schema.ContextNotifyRecord,
	"Recv":               schema.ContextNotifyWait,
	"MemcpyAsync":        schema.ContextSDMA,
	"MemcpyAddrAsync":    schema.ContextSDMA,
	"WriteValue":         schema.ContextWriteValue,
	"LabelSwitchByIndex": schema.ContextCaseSwitch,
	"StreamSwitch":       schema.ContextCaseSwitch,
}

// ModeRule forces a thread-slice mode on nodes matching a boolean
// expression. Rules are consulted in order; the first match wins.
type ModeRule struct {
	Name string `json:"name"`
	When string `json:"when"`
	Mode Mode   `json:"mode"`
}

// Config is the immutable hardware/routing configuration shared by builds.
// Build a Config once and pass it by pointer; builds never mutate it.
type Config struct {
	MaxInlineFanout int
	MaxLabelChain   int
	CollectiveOps   map[string]bool
	ContextTypeMap  map[string]schema.ContextType
	ModeRules       []ModeRule
}

// DefaultConfig returns the configuration of the reference hardware.
func DefaultConfig() *Config {
	cfg := &Config{
		MaxInlineFanout: schema.MaxInlineFanout,
		MaxLabelChain:   DefaultMaxLabelChain,
		CollectiveOps:   make(map[string]bool, len(defaultCollectiveOps)),
		ContextTypeMap:  maps.Clone(defaultContextTypeMap),
	}
	for _, op := range defaultCollectiveOps {
		cfg.CollectiveOps[op] = true
	}
	return cfg
}

// Validate checks the configuration against the fixed wire layout.
func (c *Config) Validate() error {
	if c.MaxInlineFanout < 2 || c.MaxInlineFanout > schema.MaxInlineFanout {
		return schema.NewErrorf(schema.ErrCodeProfile,
			"max_inline_fanout must be in [2, %d], got %d", schema.MaxInlineFanout, c.MaxInlineFanout)
	}
	if c.MaxLabelChain < 1 {
		return schema.NewErrorf(schema.ErrCodeProfile, "max_label_chain must be positive, got %d", c.MaxLabelChain)
	}
	for op, t := range c.ContextTypeMap {
		if !t.Valid() {
			return schema.NewErrorf(schema.ErrCodeProfile, "op %s maps to unknown context type %q", op, t)
		}
		if t == schema.ContextLabel {
			return schema.NewErrorf(schema.ErrCodeProfile, "op %s cannot map to %s; labels are reserved for overflow chains", op, t)
		}
	}
	for i, r := range c.ModeRules {
		if r.When == "" {
			return schema.NewErrorf(schema.ErrCodeProfile, "mode rule %d (%s) has no expression", i, r.Name)
		}
		switch r.Mode {
		case ModeManual, ModeAuto, ModeDynamic:
		default:
			return schema.NewErrorf(schema.ErrCodeProfile, "mode rule %d (%s) cannot force mode %s", i, r.Name, r.Mode)
		}
	}
	return nil
}

// IsCollective reports whether opType expands into collective subtasks.
func (c *Config) IsCollective(opType string) bool {
	return c.CollectiveOps[opType]
}
