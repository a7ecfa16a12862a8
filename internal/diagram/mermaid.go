package diagram

import (
	"fmt"
	"strings"
)

// RenderMermaid renders a DiagramModel as a Mermaid flowchart string.
func RenderMermaid(model *DiagramModel) string {
	var b strings.Builder

	b.WriteString("graph TD\n")

	if model.Title != "" {
		b.WriteString(fmt.Sprintf("    %%%% %s\n", model.Title))
	}

	grouped := make(map[string]bool)
	nodeIndex := make(map[string]*Node, len(model.Nodes))
	for _, node := range model.Nodes {
		nodeIndex[node.ID] = node
	}

	// Multi-context owners become subgraphs.
	for i, grp := range model.Groups {
		b.WriteString(fmt.Sprintf("    subgraph g%d[\"%s\"]\n", i, grp.Label))
		for _, id := range grp.NodeIDs {
			grouped[id] = true
			if node := nodeIndex[id]; node != nil {
				b.WriteString(fmt.Sprintf("        %s\n", mermaidNodeDef(node)))
			}
		}
		b.WriteString("    end\n")
	}

	for _, node := range model.Nodes {
		if grouped[node.ID] {
			continue
		}
		b.WriteString(fmt.Sprintf("    %s\n", mermaidNodeDef(node)))
	}

	for _, edge := range model.Edges {
		arrow := "-->"
		if edge.Overflow {
			arrow = "-.->"
		}
		label := ""
		if edge.Label != "" {
			label = fmt.Sprintf("|%s|", edge.Label)
		}
		b.WriteString(fmt.Sprintf("    %s %s%s %s\n", edge.From, arrow, label, edge.To))
	}

	b.WriteString("\n")
	b.WriteString("    classDef ready fill:#2d6a2d,stroke:#1a4a1a,color:#fff\n")
	b.WriteString("    classDef gated fill:#b7791a,stroke:#8a5c14,color:#fff\n")
	b.WriteString("    classDef waiting fill:#1a5276,stroke:#0e3a52,color:#fff\n")
	b.WriteString("    classDef unfired fill:#8b1a1a,stroke:#5c0e0e,color:#fff\n")
	b.WriteString("    classDef label fill:#e8e8e8,stroke:#888,color:#333,stroke-dasharray:5 5\n")

	for _, node := range model.Nodes {
		if cls := mermaidClass(node); cls != "" {
			b.WriteString(fmt.Sprintf("    class %s %s\n", node.ID, cls))
		}
	}

	return b.String()
}

// mermaidNodeDef returns a Mermaid node definition with the appropriate shape.
func mermaidNodeDef(node *Node) string {
	label := strings.ReplaceAll(node.Label, "\n", "<br/>")

	switch node.Kind {
	case NodeKindLabel:
		return fmt.Sprintf("%s([%q])", node.ID, label)
	case NodeKindDMA:
		return fmt.Sprintf("%s[/%q/]", node.ID, label)
	case NodeKindSync:
		return fmt.Sprintf("%s{{%q}}", node.ID, label)
	case NodeKindControl:
		return fmt.Sprintf("%s{%q}", node.ID, label)
	default: // compute
		return fmt.Sprintf("%s[%q]", node.ID, label)
	}
}

// mermaidClass maps a node to a Mermaid class name. Labels keep their own
// style regardless of firing state unless they never fire.
func mermaidClass(node *Node) string {
	if node.State == nil {
		return ""
	}
	if node.Kind == NodeKindLabel && node.State.State != StateUnfired {
		return "label"
	}
	return node.State.State
}
