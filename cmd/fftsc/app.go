package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rendis/ffts/internal/engine"
	"github.com/rendis/ffts/internal/expressions"
	"github.com/rendis/ffts/internal/logging"
	"github.com/rendis/ffts/internal/pipeline"
	"github.com/rendis/ffts/internal/profile"
	"github.com/rendis/ffts/internal/store"
	"github.com/rendis/ffts/pkg/schema"
)

// app carries configuration and streams for one command invocation.
type app struct {
	cfg    Config
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// logger writes to stderr; stdout stays clean for tables, diagrams and the
// MCP stdio transport.
func (a *app) logger() *slog.Logger {
	return logging.New(a.cfg.LogLevel, a.cfg.LogFormat, a.stderr)
}

func (a *app) openStore(ctx context.Context) (*store.LibSQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(a.cfg.DBPath), 0o700); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	s, err := store.NewLibSQLStore("file:" + a.cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// loadProfile resolves the hardware profile: the flag wins over settings,
// and no path at all means the builtin default.
func (a *app) loadProfile(ctx context.Context, path string, cel *expressions.CELEngine, logger *slog.Logger) (*profile.Profile, error) {
	if path == "" {
		path = a.cfg.ProfilePath
	}
	if path == "" {
		return profile.DefaultProfile(), nil
	}
	var checker profile.RuleChecker
	if cel != nil {
		checker = cel
	}
	return profile.NewLoader(logger, checker).LoadFile(ctx, path)
}

// newPipeline wires profile, CEL mode rules, builder and (optionally) store.
func (a *app) newPipeline(ctx context.Context, profilePath string, st store.Store) (*pipeline.Pipeline, error) {
	logger := a.logger()
	cel, err := expressions.NewCELEngine()
	if err != nil {
		return nil, err
	}
	prof, err := a.loadProfile(ctx, profilePath, cel, logger)
	if err != nil {
		return nil, err
	}
	logger.DebugContext(ctx, "profile loaded", slog.String("profile", prof.Name), slog.String("source", prof.Source))

	b, err := engine.NewBuilder(prof.Config, cel, logger)
	if err != nil {
		return nil, err
	}
	return pipeline.New(pipeline.Deps{
		Builder: b,
		Store:   st,
		Profile: prof.Name,
		Logger:  logger,
	})
}

// readInput reads a file, or stdin for "-".
func (a *app) readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(a.stdin)
	}
	return os.ReadFile(path)
}

// graphSource names where diagram and query take their table from: a stored
// build by id, the latest build of a partition, or a partition file compiled
// in memory.
type graphSource struct {
	buildID   string
	partition string
	profile   string
	file      string
}

func (a *app) resolveGraph(ctx context.Context, src graphSource) (*schema.TaskGraph, error) {
	if src.buildID != "" || src.partition != "" {
		st, err := a.openStore(ctx)
		if err != nil {
			return nil, err
		}
		defer st.Close()

		var b *store.Build
		if src.buildID != "" {
			b, err = st.GetBuild(ctx, src.buildID)
		} else {
			b, err = st.LatestBuild(ctx, src.partition)
		}
		if err != nil {
			return nil, err
		}
		return b.Table, nil
	}

	if src.file == "" {
		return nil, fmt.Errorf("need -id, -partition or a partition file")
	}
	raw, err := a.readInput(src.file)
	if err != nil {
		return nil, err
	}
	p, err := a.newPipeline(ctx, src.profile, nil)
	if err != nil {
		return nil, err
	}
	res, err := p.CompileDocument(ctx, raw, false)
	if err != nil {
		return nil, err
	}
	return res.Graph, nil
}
