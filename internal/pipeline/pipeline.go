// Package pipeline runs a partition through validation, lowering,
// verification and persistence. The CLI and the MCP server share it.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/rendis/ffts/internal/engine"
	"github.com/rendis/ffts/internal/logging"
	"github.com/rendis/ffts/internal/store"
	"github.com/rendis/ffts/internal/validation"
	"github.com/rendis/ffts/pkg/schema"
)

// Deps holds the dependencies for creating a Pipeline. Store may be nil, in
// which case builds are not persisted.
type Deps struct {
	Builder   *engine.Builder
	Validator *validation.PartitionValidator
	Store     store.Store
	Profile   string
	Logger    *slog.Logger
}

// Pipeline compiles partitions into verified task graphs.
type Pipeline struct {
	builder   *engine.Builder
	validator *validation.PartitionValidator
	store     store.Store
	profile   string
	logger    *slog.Logger
}

// Result is the outcome of one compile.
type Result struct {
	BuildID    string                   `json:"build_id"`
	Revision   int64                    `json:"revision,omitempty"`
	Partition  string                   `json:"partition"`
	Graph      *schema.TaskGraph        `json:"graph"`
	Wavefronts *engine.Wavefronts       `json:"wavefronts"`
	Warnings   []schema.ValidationIssue `json:"warnings,omitempty"`
	Stored     bool                     `json:"stored"`
}

// New creates a Pipeline. A nil Validator is built from the builder's config.
func New(deps Deps) (*Pipeline, error) {
	if deps.Builder == nil {
		b, err := engine.NewBuilder(nil, nil, deps.Logger)
		if err != nil {
			return nil, err
		}
		deps.Builder = b
	}
	if deps.Validator == nil {
		v, err := validation.NewPartitionValidator(deps.Builder.Config())
		if err != nil {
			return nil, err
		}
		deps.Validator = v
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pipeline{
		builder:   deps.Builder,
		validator: deps.Validator,
		store:     deps.Store,
		profile:   deps.Profile,
		logger:    logger,
	}, nil
}

// Builder returns the pipeline's builder.
func (p *Pipeline) Builder() *engine.Builder { return p.builder }

// Store returns the pipeline's store, possibly nil.
func (p *Pipeline) Store() store.Store { return p.store }

// CompileDocument validates raw partition JSON and compiles it.
func (p *Pipeline) CompileDocument(ctx context.Context, raw []byte, persist bool) (*Result, error) {
	part, vr := p.validator.ValidateDocument(raw)
	if err := vr.ToError(); err != nil {
		return nil, err
	}
	return p.compile(ctx, part, vr, persist)
}

// Compile validates and compiles a decoded partition.
func (p *Pipeline) Compile(ctx context.Context, part *schema.Partition, persist bool) (*Result, error) {
	vr := p.validator.Validate(part)
	if err := vr.ToError(); err != nil {
		return nil, err
	}
	return p.compile(ctx, part, vr, persist)
}

func (p *Pipeline) compile(ctx context.Context, part *schema.Partition, vr *schema.ValidationResult, persist bool) (*Result, error) {
	buildID := uuid.New().String()
	ctx = logging.WithIDs(ctx, buildID, part.Name)
	log := logging.LogWith(ctx, p.logger)

	for _, w := range vr.Warnings {
		log.WarnContext(ctx, "partition warning", slog.String("path", w.Path), slog.String("message", w.Message))
	}

	g, err := p.builder.Build(ctx, part)
	if err != nil {
		log.ErrorContext(ctx, "build failed", slog.String("error", err.Error()))
		return nil, err
	}
	return p.finish(ctx, buildID, part, g, vr, persist)
}

// finish verifies an already built table and persists it when asked.
func (p *Pipeline) finish(ctx context.Context, buildID string, part *schema.Partition, g *schema.TaskGraph, vr *schema.ValidationResult, persist bool) (*Result, error) {
	log := logging.LogWith(ctx, p.logger)

	// A table that fails verification is a builder bug; never hand it out.
	if err := engine.Verify(g, p.builder.Config().MaxInlineFanout).ToError(); err != nil {
		log.ErrorContext(ctx, "built table failed verification", slog.String("error", err.Error()))
		return nil, err
	}

	res := &Result{
		BuildID:    buildID,
		Partition:  part.Name,
		Graph:      g,
		Wavefronts: engine.ComputeWavefronts(g),
		Warnings:   vr.Warnings,
	}
	if !persist || p.store == nil {
		return res, nil
	}

	b := &store.Build{
		ID:        buildID,
		Partition: part.Name,
		Profile:   p.profile,
		Table:     g,
		Warnings:  vr.Warnings,
	}
	if err := p.store.SaveBuild(ctx, b); err != nil {
		return nil, err
	}
	res.Revision = b.Revision
	res.Stored = true
	log.InfoContext(ctx, "build stored", slog.Int64("revision", b.Revision))
	return res, nil
}

// BatchItem is the outcome of one partition in CompileBatch.
type BatchItem struct {
	Partition string
	Result    *Result
	Err       error
}

// CompileBatch compiles many partitions on a bounded pool and returns items
// in input order. Validation runs first; invalid partitions keep their
// validation error and are not built. A failing partition does not stop the
// others.
func (p *Pipeline) CompileBatch(ctx context.Context, parts []*schema.Partition, size int, persist bool) ([]BatchItem, engine.PoolMetrics, error) {
	items := make([]BatchItem, len(parts))
	results := make([]*schema.ValidationResult, len(parts))
	var valid []*schema.Partition
	var index []int
	for i, part := range parts {
		items[i].Partition = partName(part, i)
		vr := p.validator.Validate(part)
		if err := vr.ToError(); err != nil {
			items[i].Err = err
			continue
		}
		results[i] = vr
		valid = append(valid, part)
		index = append(index, i)
	}

	built, metrics, err := engine.NewBatchBuilder(p.builder, size).BuildAll(ctx, valid)
	for j, br := range built {
		i := index[j]
		if br.Err != nil {
			items[i].Err = br.Err
			continue
		}
		buildID := uuid.New().String()
		items[i].Result, items[i].Err = p.finish(logging.WithIDs(ctx, buildID, parts[i].Name), buildID, parts[i], br.Graph, results[i], persist)
	}
	return items, metrics, err
}

func partName(part *schema.Partition, i int) string {
	if part != nil && part.Name != "" {
		return part.Name
	}
	return fmt.Sprintf("#%d", i)
}
