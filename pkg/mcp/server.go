package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/ffts/internal/expressions"
	"github.com/rendis/ffts/internal/pipeline"
	"github.com/rendis/ffts/internal/store"
)

// FftsServerDeps holds the dependencies for creating an FftsServer.
type FftsServerDeps struct {
	Pipeline *pipeline.Pipeline
	Store    store.Store
	Version  string
	// BinDir is searched for the mermaid-ascii binary.
	BinDir string
	Logger *slog.Logger
}

// FftsServer wraps an MCP server with task-graph tool handlers.
type FftsServer struct {
	pipeline  *pipeline.Pipeline
	store     store.Store
	engines   map[string]expressions.Engine
	binDir    string
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewFftsServer creates a new FftsServer with all 5 tools registered.
func NewFftsServer(deps FftsServerDeps) *FftsServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	s := &FftsServer{
		pipeline: deps.Pipeline,
		store:    deps.Store,
		engines: map[string]expressions.Engine{
			"expr": expressions.NewExprEngine(),
			"jq":   expressions.NewGoJQEngine(),
		},
		binDir:   deps.BinDir,
		logger:   logger,
	}

	mcpSrv := server.NewMCPServer(
		"ffts",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("ffts lowers operator-graph partitions into FFTS+ hardware task graphs. Use ffts.build to compile a partition, ffts.get and ffts.list to read stored builds, ffts.diagram to render one, and ffts.query to evaluate an expr or jq expression over a built table."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *FftsServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *FftsServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *FftsServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: buildTool(), Handler: s.handleBuild},
		{Tool: getTool(), Handler: s.handleGet},
		{Tool: listTool(), Handler: s.handleList},
		{Tool: diagramTool(), Handler: s.handleDiagram},
		{Tool: queryTool(), Handler: s.handleQuery},
	}
}

// --- Tool definitions ---

func buildTool() mcp.Tool {
	return mcp.NewTool("ffts.build",
		mcp.WithDescription("Compile a partition into an FFTS+ task graph"),
		mcp.WithObject("partition", mcp.Required(), mcp.Description("Partition document: name and nodes in partition order")),
		mcp.WithBoolean("persist", mcp.Description("Store the build (default: true when a store is configured)")),
		mcp.WithBoolean("include_table", mcp.Description("Return the full context table (default: false)")),
	)
}

func getTool() mcp.Tool {
	return mcp.NewTool("ffts.get",
		mcp.WithDescription("Fetch a stored build"),
		mcp.WithString("build_id", mcp.Description("Build ID")),
		mcp.WithString("partition", mcp.Description("Partition name; returns its latest revision")),
		mcp.WithString("format", mcp.Enum("json", "wire"),
			mcp.Description("json (context table) or wire (base64 SQE header plus 128-byte records)"),
		),
	)
}

func listTool() mcp.Tool {
	return mcp.NewTool("ffts.list",
		mcp.WithDescription("List stored builds, newest first"),
		mcp.WithObject("filter", mcp.Description("Filter criteria (partition, since, limit, offset)")),
	)
}

func diagramTool() mcp.Tool {
	return mcp.NewTool("ffts.diagram",
		mcp.WithDescription("Render a stored build as ASCII art, Mermaid flowchart syntax, or base64-encoded PNG image"),
		mcp.WithString("build_id", mcp.Description("Build ID")),
		mcp.WithString("partition", mcp.Description("Partition name; renders its latest revision")),
		mcp.WithString("format", mcp.Required(),
			mcp.Enum("ascii", "mermaid", "image"),
			mcp.Description("Output format: ascii (text), mermaid (flowchart syntax), or image (base64 PNG)"),
		),
	)
}

func queryTool() mcp.Tool {
	return mcp.NewTool("ffts.query",
		mcp.WithDescription("Evaluate an expression over a stored build's context table"),
		mcp.WithString("build_id", mcp.Description("Build ID")),
		mcp.WithString("partition", mcp.Description("Partition name; queries its latest revision")),
		mcp.WithString("expression", mcp.Required(), mcp.Description("Expression over contexts, successors, levels, ready, total, labels")),
		mcp.WithString("language", mcp.Enum("expr", "jq"), mcp.Description("Expression language (default: expr)")),
	)
}
