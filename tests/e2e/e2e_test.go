package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/rendis/ffts/internal/engine"
	"github.com/rendis/ffts/internal/expressions"
	"github.com/rendis/ffts/internal/pipeline"
	"github.com/rendis/ffts/internal/profile"
	"github.com/rendis/ffts/internal/store"
	fftsmcp "github.com/rendis/ffts/pkg/mcp"
	"github.com/rendis/ffts/pkg/schema"
)

// --- Test infrastructure ---

// testEnv holds all real dependencies for E2E tests: a libSQL store on disk,
// a profile-driven builder with CEL mode rules, and the MCP server.
type testEnv struct {
	store    *store.LibSQLStore
	pipeline *pipeline.Pipeline
	server   *fftsmcp.FftsServer
}

const testProfile = `
name              = "e2e"
max_inline_fanout = min(hw.inline_slots, 8)

mode_rule "wide_matmul" {
  when = "node.op_type == 'MatMul' && node.thread_dim >= 4"
  mode = "auto"
}
`

func newTestEnv(t *testing.T, profileSrc string) *testEnv {
	t.Helper()

	dir := t.TempDir()
	s, err := store.NewLibSQLStore("file:" + filepath.Join(dir, "e2e.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() {
		_ = s.Close()
		_ = os.RemoveAll(dir)
	})

	cel, err := expressions.NewCELEngine()
	require.NoError(t, err)

	prof := profile.DefaultProfile()
	if profileSrc != "" {
		prof, err = profile.NewLoader(nil, cel).Parse(context.Background(), []byte(profileSrc), "e2e.hcl")
		require.NoError(t, err)
	}

	b, err := engine.NewBuilder(prof.Config, cel, nil)
	require.NoError(t, err)
	p, err := pipeline.New(pipeline.Deps{Builder: b, Store: s, Profile: prof.Name})
	require.NoError(t, err)

	srv := fftsmcp.NewFftsServer(fftsmcp.FftsServerDeps{
		Pipeline: p,
		Store:    s,
		Version:  "e2e",
		BinDir:   filepath.Join(dir, "bin"),
	})
	return &testEnv{store: s, pipeline: p, server: srv}
}

// rpc sends one JSON-RPC message through the MCP server after initializing
// the session, and returns the raw response.
func (e *testEnv) rpc(t *testing.T, method string, params map[string]any) json.RawMessage {
	t.Helper()
	ctx := context.Background()
	mcpSrv := e.server.MCPServer()

	initMsg, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      0,
		"method":  "initialize",
		"params": map[string]any{
			"protocolVersion": "2025-03-26",
			"capabilities":    map[string]any{},
			"clientInfo":      map[string]any{"name": "e2e-test", "version": "1.0.0"},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, mcpSrv.HandleMessage(ctx, initMsg))

	reqMsg, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	require.NoError(t, err)

	resp := mcpSrv.HandleMessage(ctx, reqMsg)
	require.NotNil(t, resp)
	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(raw, &rpcResp))
	if rpcResp.Error != nil {
		t.Fatalf("JSON-RPC error: code=%d, msg=%s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	return rpcResp.Result
}

// callTool invokes a tool handler through the full JSON-RPC round-trip.
func (e *testEnv) callTool(t *testing.T, toolName string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	raw := e.rpc(t, "tools/call", map[string]any{"name": toolName, "arguments": args})
	var result mcp.CallToolResult
	require.NoError(t, json.Unmarshal(raw, &result))
	return &result
}

// extractText returns the first text content of a tool result.
func extractText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	return mcp.GetTextFromContent(result.Content[0])
}

// extractJSON parses the first text content of a tool result.
func extractJSON(t *testing.T, result *mcp.CallToolResult, target any) {
	t.Helper()
	require.False(t, result.IsError, "tool error: %s", extractText(t, result))
	require.NoError(t, json.Unmarshal([]byte(extractText(t, result)), target))
}

// --- Partition documents ---

func kernel(id string, inputs ...string) map[string]any {
	in := make([]any, len(inputs))
	for i, s := range inputs {
		in[i] = s
	}
	return map[string]any{
		"id":      id,
		"op_type": "MatMul",
		"inputs":  in,
		"template": map[string]any{
			"core_type": "aicore",
			"aicore":    map[string]any{"block_dim": 1},
		},
	}
}

func partitionDoc(name string, nodes ...map[string]any) map[string]any {
	list := make([]any, len(nodes))
	for i, n := range nodes {
		list[i] = n
	}
	return map[string]any{"name": name, "nodes": list}
}

func fanOut(name string, n int) map[string]any {
	nodes := []map[string]any{kernel("src")}
	for i := range n {
		nodes = append(nodes, kernel(fmt.Sprintf("k%d", i), "src"))
	}
	return partitionDoc(name, nodes...)
}

func mustPartition(t *testing.T, doc map[string]any) *schema.Partition {
	t.Helper()
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	var p schema.Partition
	require.NoError(t, json.Unmarshal(raw, &p))
	return &p
}
