package engine

import (
	"context"
	"io"
	"log/slog"

	"github.com/rendis/ffts/internal/logging"
	"github.com/rendis/ffts/pkg/schema"
)

// Builder lowers partitions into FFTS+ task graphs. A Builder is safe for
// concurrent use: each Build owns all of its mutable state.
type Builder struct {
	cfg    *Config
	rules  Evaluator
	logger *slog.Logger
}

// NewBuilder creates a builder. rules may be nil when the config carries no
// mode rules; a nil logger discards output.
func NewBuilder(cfg *Config, rules Evaluator, logger *slog.Logger) (*Builder, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.ModeRules) > 0 && rules == nil {
		return nil, schema.NewError(schema.ErrCodeProfile, "mode rules configured without a rule engine")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Builder{cfg: cfg, rules: rules, logger: logger}, nil
}

// Config returns the builder's configuration.
func (b *Builder) Config() *Config {
	return b.cfg
}

// build is the state of one Build call.
type build struct {
	cfg            *Config
	plan           *Plan
	states         map[string]*nodeState
	additionalArgs []schema.AdditionalArg
}

// Build lowers one partition. It either returns a complete TaskGraph or an
// error; no partial table escapes.
func (b *Builder) Build(ctx context.Context, p *schema.Partition) (*schema.TaskGraph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	plan, err := NewPlan(p)
	if err != nil {
		return nil, err
	}
	if logging.Partition(ctx) == "" {
		ctx = logging.WithPartition(ctx, plan.Name)
	}

	bs := &build{
		cfg:    b.cfg,
		plan:   plan,
		states: make(map[string]*nodeState, len(plan.Nodes)),
	}

	// Modes first: the resolver needs to know which consumers are collective.
	for _, id := range plan.Order {
		n := plan.Nodes[id]
		if n.PassThrough {
			continue
		}
		mode, err := SelectMode(ctx, b.cfg, b.rules, plan, n)
		if err != nil {
			return nil, err
		}
		st := &nodeState{node: n, mode: mode}
		if mode == ModeCollective {
			if err := analyzeCollective(st); err != nil {
				return nil, err
			}
		}
		bs.states[id] = st
	}

	if err := bs.resolve(); err != nil {
		return nil, err
	}
	ready, structural := bs.allocate()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ar := newArena(structural, b.cfg.MaxInlineFanout, b.cfg.MaxLabelChain)
	for _, id := range plan.Order {
		st := bs.states[id]
		if st == nil {
			continue
		}
		ctxs, err := bs.emit(st)
		if err != nil {
			return nil, err
		}
		for _, c := range ctxs {
			if err := ar.place(c); err != nil {
				return nil, err
			}
		}
		b.logger.DebugContext(logging.WithNodeID(ctx, id), "node emitted",
			slog.String("mode", st.mode.String()),
			slog.Int("contexts", len(ctxs)),
			slog.Int("pass", st.pass),
			slog.Any("pred_count", st.predCount),
		)
	}

	if err := bs.wire(ar); err != nil {
		return nil, err
	}

	g, err := ar.assemble(plan.Name, ready, bs.additionalArgs)
	if err != nil {
		return nil, err
	}

	b.logger.InfoContext(ctx, "task graph built",
		slog.Any("ready", g.ReadyContextCount),
		slog.Any("total", g.TotalContextCount),
		slog.Int("labels", ar.labels),
	)
	return g, nil
}

// wire inserts every edge once all structural contexts exist, so forward
// references are legal and dangling ids are real errors.
func (bs *build) wire(ar *arena) error {
	for _, id := range bs.plan.Order {
		st := bs.states[id]
		if st == nil {
			continue
		}

		var external []uint32
		for _, s := range st.succs {
			external = append(external, bs.states[s].entries()...)
		}

		if st.mode != ModeCollective {
			for _, src := range st.ids {
				for _, dst := range external {
					if err := ar.insert(src, dst); err != nil {
						return err
					}
				}
			}
			continue
		}

		for i, targets := range st.node.Collective.Adjacency {
			src := st.ids[i]
			if len(targets) == 0 {
				for _, dst := range external {
					if err := ar.insert(src, dst); err != nil {
						return err
					}
				}
				continue
			}
			for _, t := range targets {
				if err := ar.insert(src, st.ids[t]); err != nil {
					return err
				}
			}
		}

		// Late binding: producers of a collective point at its entry subtasks.
		entries := st.entries()
		for _, p := range st.preds {
			for _, src := range bs.states[p].exits() {
				for _, dst := range entries {
					if err := ar.insert(src, dst); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}
