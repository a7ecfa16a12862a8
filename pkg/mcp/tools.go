package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rendis/ffts/internal/diagram"
	"github.com/rendis/ffts/internal/expressions"
	"github.com/rendis/ffts/internal/store"
)

// handleBuild compiles a partition document.
func (s *FftsServer) handleBuild(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.pipeline == nil {
		return mcp.NewToolResultError("builder not configured"), nil
	}
	partRaw := mcp.ParseStringMap(req, "partition", nil)
	if partRaw == nil {
		return mcp.NewToolResultError("partition is required"), nil
	}
	raw, err := json.Marshal(partRaw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid partition: %v", err)), nil
	}

	persist := req.GetBool("persist", true)
	res, buildErr := s.pipeline.CompileDocument(ctx, raw, persist)
	if buildErr != nil {
		return errorResult("build failed", buildErr)
	}

	out := map[string]any{
		"build_id":            res.BuildID,
		"partition":           res.Partition,
		"stored":              res.Stored,
		"ready_context_count": res.Graph.ReadyContextCount,
		"total_context_count": res.Graph.TotalContextCount,
		"labels":              res.Graph.LabelCount(),
		"levels":              len(res.Wavefronts.Levels),
	}
	if res.Stored {
		out["revision"] = res.Revision
	}
	if len(res.Warnings) > 0 {
		out["warnings"] = res.Warnings
	}
	if req.GetBool("include_table", false) {
		out["table"] = res.Graph
	}
	return marshalResult(out)
}

// handleGet returns a stored build as JSON or wire bytes.
func (s *FftsServer) handleGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	b, errResult := s.resolveBuild(ctx, req)
	if errResult != nil {
		return errResult, nil
	}

	switch req.GetString("format", "json") {
	case "json":
		return marshalResult(b)
	case "wire":
		return marshalResult(map[string]any{
			"build_id": b.ID,
			"bytes":    len(b.Wire),
			"wire":     base64.StdEncoding.EncodeToString(b.Wire),
		})
	default:
		return mcp.NewToolResultError("format must be json or wire"), nil
	}
}

// handleList lists stored build summaries.
func (s *FftsServer) handleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return mcp.NewToolResultError("store not configured"), nil
	}
	filter := mcp.ParseStringMap(req, "filter", nil)

	bf := store.BuildFilter{
		Limit:  extractInt(filter, "limit", 50),
		Offset: extractInt(filter, "offset", 0),
	}
	if name, ok := filter["partition"].(string); ok {
		bf.Partition = name
	}
	if since, ok := filter["since"].(string); ok && since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("since must be RFC3339: %v", err)), nil
		}
		bf.Since = &t
	}

	builds, err := s.store.ListBuilds(ctx, bf)
	if err != nil {
		return errorResult("list failed", err)
	}
	if builds == nil {
		builds = []*store.BuildSummary{}
	}
	return marshalResult(map[string]any{"builds": builds})
}

// handleDiagram renders a stored build in the requested format.
func (s *FftsServer) handleDiagram(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format, err := req.RequireString("format")
	if err != nil {
		return mcp.NewToolResultError("format is required"), nil
	}
	if format != "ascii" && format != "mermaid" && format != "image" {
		return mcp.NewToolResultError("format must be ascii, mermaid, or image"), nil
	}

	b, errResult := s.resolveBuild(ctx, req)
	if errResult != nil {
		return errResult, nil
	}

	model, buildErr := diagram.Build(b.Table)
	if buildErr != nil {
		return errorResult("diagram build failed", buildErr)
	}

	switch format {
	case "ascii":
		return mcp.NewToolResultText(diagram.RenderASCIIAuto(ctx, model, s.binDir)), nil
	case "mermaid":
		return mcp.NewToolResultText(diagram.RenderMermaid(model)), nil
	default:
		png, imgErr := diagram.RenderImage(ctx, model)
		if imgErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("image render failed: %v", imgErr)), nil
		}
		return mcp.NewToolResultText(base64.StdEncoding.EncodeToString(png)), nil
	}
}

// handleQuery evaluates an expression over a stored table.
func (s *FftsServer) handleQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	expression, err := req.RequireString("expression")
	if err != nil {
		return mcp.NewToolResultError("expression is required"), nil
	}
	language := req.GetString("language", "expr")
	eng, ok := s.engines[language]
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unknown language: %s", language)), nil
	}

	b, errResult := s.resolveBuild(ctx, req)
	if errResult != nil {
		return errResult, nil
	}

	data, dataErr := expressions.TableData(b.Table)
	if dataErr != nil {
		return errorResult("table data failed", dataErr)
	}
	value, evalErr := eng.Evaluate(ctx, expression, data)
	if evalErr != nil {
		return errorResult("query failed", evalErr)
	}
	return marshalResult(map[string]any{
		"build_id": b.ID,
		"language": eng.Name(),
		"result":   value,
	})
}

// --- Internal helpers ---

// resolveBuild loads the build named by build_id, or the latest revision of
// partition. The second return is a ready-made error result.
func (s *FftsServer) resolveBuild(ctx context.Context, req mcp.CallToolRequest) (*store.Build, *mcp.CallToolResult) {
	if s.store == nil {
		return nil, mcp.NewToolResultError("store not configured")
	}
	id := req.GetString("build_id", "")
	name := req.GetString("partition", "")

	var (
		b   *store.Build
		err error
	)
	switch {
	case id != "":
		b, err = s.store.GetBuild(ctx, id)
	case name != "":
		b, err = s.store.LatestBuild(ctx, name)
	default:
		return nil, mcp.NewToolResultError("one of build_id or partition is required")
	}
	if err != nil {
		return nil, mcp.NewToolResultError(fmt.Sprintf("build lookup failed: %v", err))
	}
	return b, nil
}

// extractInt safely extracts an integer from a filter map.
func extractInt(filter map[string]any, key string, defaultVal int) int {
	if filter == nil {
		return defaultVal
	}
	v, ok := filter[key]
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case float64:
		return int(val)
	case int:
		return val
	case string:
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

// errorResult reports err as a tool error.
func errorResult(prefix string, err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", prefix, err)), nil
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
