package diagram

import (
	"fmt"
	"strings"
)

// stateTag returns a short ASCII indicator for a firing state.
func stateTag(state string) string {
	switch state {
	case StateReady:
		return "[READY]"
	case StateGated:
		return "[GATED]"
	case StateUnfired:
		return "[NEVER]"
	default:
		return ""
	}
}

// RenderASCII renders a DiagramModel as a text diagram, one row of boxes per
// wavefront level.
func RenderASCII(model *DiagramModel) string {
	var b strings.Builder

	if model.Title != "" {
		b.WriteString(fmt.Sprintf("=== %s ===\n\n", model.Title))
	}

	nodeIndex := make(map[string]*Node, len(model.Nodes))
	for _, n := range model.Nodes {
		nodeIndex[n.ID] = n
	}

	for levelIdx, level := range model.Levels {
		b.WriteString(fmt.Sprintf("level %d\n", levelIdx))
		var boxes []asciiBox
		for _, nodeID := range level {
			if node := nodeIndex[nodeID]; node != nil {
				boxes = append(boxes, makeBox(node))
			}
		}
		renderBoxRow(&b, boxes)
		if levelIdx < len(model.Levels)-1 {
			renderConnector(&b, len(boxes))
		}
	}

	if len(model.Unfired) > 0 {
		b.WriteString(fmt.Sprintf("\n--- never fire: %s ---\n", strings.Join(model.Unfired, ", ")))
	}

	b.WriteString("\n--- successors ---\n")
	for _, n := range model.Nodes {
		var outs []string
		for _, e := range model.Edges {
			if e.From != n.ID {
				continue
			}
			if e.Overflow {
				outs = append(outs, e.To+"*")
			} else {
				outs = append(outs, e.To)
			}
		}
		if len(outs) > 0 {
			b.WriteString(fmt.Sprintf("  %s ─→ %s\n", n.ID, strings.Join(outs, " ")))
		}
	}

	for _, grp := range model.Groups {
		b.WriteString(fmt.Sprintf("\n  [%s] %s\n", grp.Label, strings.Join(grp.NodeIDs, " ")))
	}

	return b.String()
}

// asciiBox holds the rendered lines of a single box.
type asciiBox struct {
	lines []string
	width int
}

// makeBox creates an ASCII box for a node. Labels get a dashed border.
func makeBox(node *Node) asciiBox {
	contentLines := strings.Split(node.Label, "\n")
	if node.State != nil {
		if tag := stateTag(node.State.State); tag != "" {
			contentLines = append(contentLines, tag)
		}
	}

	maxLen := 0
	for _, line := range contentLines {
		if len(line) > maxLen {
			maxLen = len(line)
		}
	}
	width := maxLen + 4

	horiz, vert := "─", "│"
	if node.Kind == NodeKindLabel {
		horiz, vert = "╌", "╎"
	}

	var lines []string
	lines = append(lines, "┌"+strings.Repeat(horiz, width-2)+"┐")
	for _, content := range contentLines {
		padded := content + strings.Repeat(" ", maxLen-len(content))
		lines = append(lines, vert+" "+padded+" "+vert)
	}
	lines = append(lines, "└"+strings.Repeat(horiz, width-2)+"┘")

	return asciiBox{lines: lines, width: width}
}

// firstLine returns only the first line of a multi-line label.
func firstLine(s string) string {
	if i := strings.Index(s, "\n"); i >= 0 {
		return s[:i]
	}
	return s
}

// renderBoxRow writes boxes side by side.
func renderBoxRow(b *strings.Builder, boxes []asciiBox) {
	if len(boxes) == 0 {
		return
	}

	maxHeight := 0
	for _, box := range boxes {
		if len(box.lines) > maxHeight {
			maxHeight = len(box.lines)
		}
	}

	for row := 0; row < maxHeight; row++ {
		for i, box := range boxes {
			if i > 0 {
				b.WriteString("  ")
			}
			if row < len(box.lines) {
				b.WriteString(box.lines[row])
			} else {
				b.WriteString(strings.Repeat(" ", box.width))
			}
		}
		b.WriteByte('\n')
	}
}

// renderConnector draws a vertical connector between levels.
func renderConnector(b *strings.Builder, boxCount int) {
	if boxCount == 0 {
		return
	}
	b.WriteString("       │\n")
	b.WriteString("       ▼\n")
}
