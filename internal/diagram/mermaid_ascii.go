package diagram

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// RenderASCIIAuto renders through the mermaid-ascii binary in binDir when it
// exists, falling back to RenderASCII.
func RenderASCIIAuto(ctx context.Context, model *DiagramModel, binDir string) string {
	if binDir != "" {
		binPath := filepath.Join(binDir, "mermaid-ascii")
		if _, err := os.Stat(binPath); err == nil {
			result, err := RenderASCIIViaCLI(ctx, model, binPath)
			if err == nil {
				return result
			}
		}
	}
	return RenderASCII(model)
}

// RenderASCIIViaCLI pipes simplified Mermaid syntax through the mermaid-ascii binary.
func RenderASCIIViaCLI(ctx context.Context, model *DiagramModel, binPath string) (string, error) {
	cmd := exec.CommandContext(ctx, binPath)
	cmd.Stdin = strings.NewReader(RenderMermaidForCLI(model))
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("mermaid-ascii: %w: %s", err, stderr.String())
	}
	return stdout.String(), nil
}

// RenderMermaidForCLI generates edge-only Mermaid syntax that mermaid-ascii
// can parse. Node ids carry the context type and firing state since
// mermaid-ascii ignores node declarations and subgraphs.
func RenderMermaidForCLI(model *DiagramModel) string {
	var b strings.Builder
	b.WriteString("graph TD\n")

	displayID := make(map[string]string, len(model.Nodes))
	for _, node := range model.Nodes {
		displayID[node.ID] = cliNodeID(node)
	}
	resolve := func(id string) string {
		if d, ok := displayID[id]; ok {
			return d
		}
		return id
	}

	linked := make(map[string]bool)
	for _, edge := range model.Edges {
		label := ""
		if edge.Label != "" {
			label = fmt.Sprintf("|%s|", edge.Label)
		}
		b.WriteString(fmt.Sprintf("    %s -->%s %s\n", resolve(edge.From), label, resolve(edge.To)))
		linked[edge.From] = true
		linked[edge.To] = true
	}

	// Isolated contexts still need a line to show up.
	for _, node := range model.Nodes {
		if !linked[node.ID] {
			b.WriteString(fmt.Sprintf("    %s\n", resolve(node.ID)))
		}
	}

	return b.String()
}

// cliNodeID builds a display ID such as "c3-aicore-READY".
func cliNodeID(node *Node) string {
	id := strings.ReplaceAll(firstLine(node.Label), " ", "-")
	if node.State != nil {
		if tag := cliStateTag(node.State.State); tag != "" {
			id += "-" + tag
		}
	}
	return id
}

// cliStateTag returns a compact state indicator for node IDs.
func cliStateTag(state string) string {
	switch state {
	case StateReady:
		return "READY"
	case StateGated:
		return "GATED"
	case StateUnfired:
		return "NEVER"
	default:
		return ""
	}
}
