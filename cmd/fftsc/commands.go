package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/rendis/ffts/internal/diagram"
	"github.com/rendis/ffts/internal/engine"
	"github.com/rendis/ffts/internal/expressions"
	"github.com/rendis/ffts/internal/pipeline"
	"github.com/rendis/ffts/internal/retention"
	"github.com/rendis/ffts/internal/store"
	"github.com/rendis/ffts/internal/validation"
	"github.com/rendis/ffts/pkg/mcp"
	"github.com/rendis/ffts/pkg/schema"
)

func (a *app) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

func (a *app) runBuild(ctx context.Context, args []string) error {
	fs := a.flagSet("build")
	profilePath := fs.String("profile", "", "hardware profile (HCL)")
	persist := fs.Bool("persist", false, "store the build")
	wireOut := fs.String("wire", "", "write the wire image to this file (single partition)")
	format := fs.String("format", "summary", "output: summary or json")
	poolSize := fs.Int("pool", a.cfg.PoolSize, "concurrent builds for batches")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *format != "summary" && *format != "json" {
		return fmt.Errorf("format must be summary or json")
	}
	files := fs.Args()
	if len(files) == 0 {
		files = []string{"-"}
	}
	if len(files) > 1 && *wireOut != "" {
		return fmt.Errorf("-wire takes a single partition")
	}

	var st store.Store
	if *persist {
		s, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()
		st = s
	}
	p, err := a.newPipeline(ctx, *profilePath, st)
	if err != nil {
		return err
	}

	if len(files) == 1 {
		raw, err := a.readInput(files[0])
		if err != nil {
			return err
		}
		res, err := p.CompileDocument(ctx, raw, *persist)
		if err != nil {
			return err
		}
		if *wireOut != "" {
			wire, err := schema.EncodeTaskGraph(res.Graph)
			if err != nil {
				return err
			}
			if err := os.WriteFile(*wireOut, wire, 0o644); err != nil {
				return err
			}
		}
		return a.printResult(res, *format)
	}
	return a.buildBatch(ctx, p, files, *poolSize, *persist, *format)
}

func (a *app) buildBatch(ctx context.Context, p *pipeline.Pipeline, files []string, size int, persist bool, format string) error {
	parts := make([]*schema.Partition, len(files))
	for i, f := range files {
		raw, err := a.readInput(f)
		if err != nil {
			return err
		}
		var part schema.Partition
		if err := json.Unmarshal(raw, &part); err != nil {
			return fmt.Errorf("%s: %w", f, err)
		}
		if part.Name == "" {
			part.Name = f
		}
		parts[i] = &part
	}

	items, metrics, err := p.CompileBatch(ctx, parts, size, persist)
	if err != nil {
		return err
	}
	failed := 0
	for _, it := range items {
		if it.Err != nil {
			failed++
			fmt.Fprintf(a.stderr, "%s: %v\n", it.Partition, it.Err)
			continue
		}
		if err := a.printResult(it.Result, format); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d partitions failed (completed %d)", failed, len(items), metrics.Completed)
	}
	return nil
}

func (a *app) printResult(res *pipeline.Result, format string) error {
	if format == "json" {
		return writeJSON(a.stdout, res)
	}
	g := res.Graph
	line := fmt.Sprintf("%s: ready %d / total %d, labels %d, levels %d",
		res.Partition, g.ReadyContextCount, g.TotalContextCount, g.LabelCount(), len(res.Wavefronts.Levels))
	if res.Stored {
		line += fmt.Sprintf(", stored %s rev %d", res.BuildID, res.Revision)
	}
	fmt.Fprintln(a.stdout, line)
	for _, w := range res.Warnings {
		fmt.Fprintf(a.stdout, "  warning %s [%s]: %s\n", w.Path, w.Code, w.Message)
	}
	return nil
}

func (a *app) runValidate(ctx context.Context, args []string) error {
	fs := a.flagSet("validate")
	profilePath := fs.String("profile", "", "hardware profile (HCL)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: fftsc validate [-profile file] <partition.json|->")
	}
	raw, err := a.readInput(fs.Arg(0))
	if err != nil {
		return err
	}
	p, err := a.newPipeline(ctx, *profilePath, nil)
	if err != nil {
		return err
	}
	v, err := validation.NewPartitionValidator(p.Builder().Config())
	if err != nil {
		return err
	}
	_, vr := v.ValidateDocument(raw)
	printIssues(a, vr)
	if vr.HasErrorCode(schema.ErrCodeMissingTemplate) {
		fmt.Fprintln(a.stdout, "hint: ops without a template need an rts_context_types entry in the profile")
	}
	if !vr.Valid() {
		return vr.ToError()
	}
	fmt.Fprintln(a.stdout, "valid")
	return nil
}

func printIssues(a *app, vr *schema.ValidationResult) {
	for _, e := range vr.Errors {
		fmt.Fprintf(a.stdout, "error   %s [%s]: %s\n", e.Path, e.Code, e.Message)
	}
	for _, w := range vr.Warnings {
		fmt.Fprintf(a.stdout, "warning %s [%s]: %s\n", w.Path, w.Code, w.Message)
	}
}

func (a *app) runVerify(ctx context.Context, args []string) error {
	fs := a.flagSet("verify")
	profilePath := fs.String("profile", "", "hardware profile (HCL); sets the inline capacity")
	wire := fs.Bool("wire", false, "input is a wire image rather than table JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: fftsc verify [-wire] <table>")
	}
	raw, err := a.readInput(fs.Arg(0))
	if err != nil {
		return err
	}

	var g *schema.TaskGraph
	if *wire {
		g, err = schema.DecodeTaskGraph(raw)
		if err != nil {
			return err
		}
	} else {
		g = &schema.TaskGraph{}
		if err := json.Unmarshal(raw, g); err != nil {
			return schema.NewError(schema.ErrCodeValidation, "decode table").WithCause(err)
		}
	}

	prof, err := a.loadProfile(ctx, *profilePath, nil, a.logger())
	if err != nil {
		return err
	}
	vr := engine.Verify(g, prof.Config.MaxInlineFanout)
	printIssues(a, vr)
	if !vr.Valid() {
		return vr.ToError()
	}
	w := engine.ComputeWavefronts(g)
	fmt.Fprintf(a.stdout, "ok: ready %d / total %d, labels %d, levels %d\n",
		g.ReadyContextCount, g.TotalContextCount, g.LabelCount(), len(w.Levels))
	return nil
}

func (a *app) runDiagram(ctx context.Context, args []string) error {
	fs := a.flagSet("diagram")
	format := fs.String("format", "ascii", "ascii, mermaid or png")
	out := fs.String("o", "", "output file (default stdout)")
	src := a.sourceFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	src.file = fs.Arg(0)

	g, err := a.resolveGraph(ctx, *src)
	if err != nil {
		return err
	}
	model, err := diagram.Build(g)
	if err != nil {
		return err
	}

	var data []byte
	switch *format {
	case "ascii":
		data = []byte(diagram.RenderASCIIAuto(ctx, model, binDir()))
	case "mermaid":
		data = []byte(diagram.RenderMermaid(model) + "\n")
	case "png", "image":
		data, err = diagram.RenderImage(ctx, model)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("format must be ascii, mermaid or png")
	}

	if *out == "" {
		_, err = a.stdout.Write(data)
		return err
	}
	return os.WriteFile(*out, data, 0o644)
}

func (a *app) runQuery(ctx context.Context, args []string) error {
	fs := a.flagSet("query")
	expression := fs.String("e", "", "expression to evaluate")
	lang := fs.String("lang", "jq", "expression language: jq or expr")
	stream := fs.Bool("stream", false, "jq only: print every output on its own line")
	src := a.sourceFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	src.file = fs.Arg(0)
	if *expression == "" {
		return fmt.Errorf("-e is required")
	}

	var eng expressions.Engine
	switch *lang {
	case "jq":
		eng = expressions.NewGoJQEngine()
	case "expr":
		if *stream {
			return fmt.Errorf("-stream needs -lang jq")
		}
		eng = expressions.NewExprEngine()
	default:
		return fmt.Errorf("unknown language %q", *lang)
	}

	g, err := a.resolveGraph(ctx, *src)
	if err != nil {
		return err
	}
	data, err := expressions.TableData(g)
	if err != nil {
		return err
	}
	if *stream {
		outs, err := eng.(*expressions.GoJQEngine).Stream(ctx, *expression, data)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(a.stdout)
		for _, v := range outs {
			if err := enc.Encode(v); err != nil {
				return err
			}
		}
		return nil
	}
	v, err := eng.Evaluate(ctx, *expression, data)
	if err != nil {
		return err
	}
	return writeJSON(a.stdout, v)
}

func (a *app) sourceFlags(fs *flag.FlagSet) *graphSource {
	src := &graphSource{}
	fs.StringVar(&src.buildID, "id", "", "stored build id")
	fs.StringVar(&src.partition, "partition", "", "latest stored build of this partition")
	fs.StringVar(&src.profile, "profile", "", "hardware profile (HCL) for file input")
	return src
}

func (a *app) runList(ctx context.Context, args []string) error {
	fs := a.flagSet("list")
	partition := fs.String("partition", "", "only this partition")
	since := fs.Duration("since", 0, "only builds newer than this (e.g. 24h)")
	limit := fs.Int("limit", 20, "max rows")
	offset := fs.Int("offset", 0, "rows to skip")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	filter := store.BuildFilter{Partition: *partition, Limit: *limit, Offset: *offset}
	if *since > 0 {
		t := time.Now().Add(-*since)
		filter.Since = &t
	}
	builds, err := st.ListBuilds(ctx, filter)
	if err != nil {
		return err
	}
	if *asJSON {
		return writeJSON(a.stdout, builds)
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPARTITION\tREV\tREADY\tTOTAL\tLABELS\tCREATED")
	for _, b := range builds {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			b.ID, b.Partition, b.Revision, b.Ready, b.Total, b.Labels, b.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func (a *app) runServe(ctx context.Context, args []string) error {
	fs := a.flagSet("serve")
	profilePath := fs.String("profile", "", "hardware profile (HCL)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	p, err := a.newPipeline(ctx, *profilePath, st)
	if err != nil {
		return err
	}
	if sched := a.cfg.RetentionSchedule; sched != "" && sched != retentionOff {
		policy, err := a.cfg.retentionPolicy()
		if err != nil {
			return err
		}
		j := retention.New(st, policy, a.logger())
		if err := j.Start(ctx, sched); err != nil {
			return err
		}
		defer j.Stop()
	}

	srv := mcp.NewFftsServer(mcp.FftsServerDeps{
		Pipeline: p,
		Store:    st,
		Version:  version,
		BinDir:   binDir(),
		Logger:   a.logger(),
	})
	a.logger().InfoContext(ctx, "serving MCP on stdio", "db", a.cfg.DBPath)
	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// runPrune sweeps stored builds once with the configured policy; flags
// override it for this run.
func (a *app) runPrune(ctx context.Context, args []string) error {
	fs := a.flagSet("prune")
	keep := fs.Int("keep", a.cfg.KeepRevisions, "revisions to keep per partition (0 keeps all)")
	maxAge := fs.String("max-age", a.cfg.RetentionMaxAge, "drop revisions older than this (e.g. 720h)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg := a.cfg
	cfg.KeepRevisions = *keep
	cfg.RetentionMaxAge = *maxAge
	policy, err := cfg.retentionPolicy()
	if err != nil {
		return err
	}

	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	rep, err := retention.New(st, policy, a.logger()).Sweep(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "deleted %d builds across %d partitions (schema v%d)\n",
		rep.Deleted, rep.Partitions, rep.SchemaVersion)
	return nil
}

func (a *app) runDelete(ctx context.Context, args []string) error {
	fs := a.flagSet("delete")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("usage: fftsc delete <build-id>...")
	}

	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	for _, id := range fs.Args() {
		if err := st.DeleteBuild(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "deleted %s\n", id)
	}
	return nil
}

// profileView is the effective hardware profile as `fftsc profile` prints it.
type profileView struct {
	Name            string                        `json:"name"`
	Source          string                        `json:"source,omitempty"`
	MaxInlineFanout int                           `json:"max_inline_fanout"`
	MaxLabelChain   int                           `json:"max_label_chain"`
	CollectiveOps   []string                      `json:"collective_ops"`
	RTSContextTypes map[string]schema.ContextType `json:"rts_context_types"`
	ModeRules       []engine.ModeRule             `json:"mode_rules"`
}

func (a *app) runProfile(ctx context.Context, args []string) error {
	fs := a.flagSet("profile")
	profilePath := fs.String("profile", "", "hardware profile (HCL)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cel, err := expressions.NewCELEngine()
	if err != nil {
		return err
	}
	prof, err := a.loadProfile(ctx, *profilePath, cel, a.logger())
	if err != nil {
		return err
	}

	cfg := prof.Config
	view := profileView{
		Name:            prof.Name,
		Source:          prof.Source,
		MaxInlineFanout: cfg.MaxInlineFanout,
		MaxLabelChain:   cfg.MaxLabelChain,
		CollectiveOps:   slices.Sorted(maps.Keys(cfg.CollectiveOps)),
		RTSContextTypes: cfg.ContextTypeMap,
		ModeRules:       cfg.ModeRules,
	}
	if view.ModeRules == nil {
		view.ModeRules = []engine.ModeRule{}
	}
	return writeJSON(a.stdout, view)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
