package diagram

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
)

// RenderImage renders a DiagramModel as a PNG image using graphviz.
func RenderImage(ctx context.Context, model *DiagramModel) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("diagram: create graphviz: %w", err)
	}
	defer gv.Close()

	gv.SetLayout(graphviz.DOT)

	graph, err := gv.Graph()
	if err != nil {
		return nil, fmt.Errorf("diagram: create graph: %w", err)
	}
	defer graph.Close()

	graph.SetRankDir(cgraph.TBRank)
	if model.Title != "" {
		graph.SetLabel(model.Title)
	}

	nodeIndex := make(map[string]*Node, len(model.Nodes))
	for _, node := range model.Nodes {
		nodeIndex[node.ID] = node
	}

	// Clustered contexts are created inside their subgraph.
	gvNodes := make(map[string]*cgraph.Node, len(model.Nodes))
	for i, grp := range model.Groups {
		sub, subErr := graph.CreateSubGraphByName(fmt.Sprintf("cluster_%d", i))
		if subErr != nil {
			continue
		}
		sub.SetLabel(grp.Label)
		sub.SetStyle(cgraph.DashedGraphStyle)
		for _, id := range grp.NodeIDs {
			node := nodeIndex[id]
			if node == nil {
				continue
			}
			gvNode, nErr := sub.CreateNodeByName(id)
			if nErr != nil {
				return nil, fmt.Errorf("diagram: create node %s: %w", id, nErr)
			}
			gvNode.SetLabel(gvLabel(node.Label))
			applyNodeStyle(gvNode, node)
			gvNodes[id] = gvNode
		}
	}

	for _, node := range model.Nodes {
		if gvNodes[node.ID] != nil {
			continue
		}
		gvNode, nErr := graph.CreateNodeByName(node.ID)
		if nErr != nil {
			return nil, fmt.Errorf("diagram: create node %s: %w", node.ID, nErr)
		}
		gvNode.SetLabel(gvLabel(node.Label))
		applyNodeStyle(gvNode, node)
		gvNodes[node.ID] = gvNode
	}

	for _, edge := range model.Edges {
		fromGV, toGV := gvNodes[edge.From], gvNodes[edge.To]
		if fromGV == nil || toGV == nil {
			continue
		}
		e, eErr := graph.CreateEdgeByName("", fromGV, toGV)
		if eErr != nil {
			return nil, fmt.Errorf("diagram: create edge %s -> %s: %w", edge.From, edge.To, eErr)
		}
		if edge.Label != "" {
			e.SetLabel(edge.Label)
		}
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, graphviz.PNG, &buf); err != nil {
		return nil, fmt.Errorf("diagram: render PNG: %w", err)
	}

	return buf.Bytes(), nil
}

// applyNodeStyle sets graphviz attributes based on node kind and state.
func applyNodeStyle(gvNode *cgraph.Node, node *Node) {
	switch node.Kind {
	case NodeKindCompute:
		gvNode.SetShape(cgraph.BoxShape)
	case NodeKindDMA:
		gvNode.SetShape(cgraph.HexagonShape)
	case NodeKindSync:
		gvNode.SetShape(cgraph.EllipseShape)
	case NodeKindControl:
		gvNode.SetShape(cgraph.DiamondShape)
	case NodeKindLabel:
		gvNode.SetShape(cgraph.CircleShape)
		gvNode.SetWidth(0.5)
		gvNode.SetHeight(0.5)
	}

	if node.State != nil {
		applyStateColor(gvNode, node)
	}
}

// applyStateColor sets fill color and style based on firing state.
func applyStateColor(gvNode *cgraph.Node, node *Node) {
	gvNode.SetStyle(cgraph.FilledNodeStyle)
	switch node.State.State {
	case StateReady:
		gvNode.SetFillColor("#2d6a2d")
		gvNode.SetFontColor("white")
	case StateGated:
		gvNode.SetFillColor("#b7791a")
		gvNode.SetFontColor("white")
	case StateUnfired:
		gvNode.SetFillColor("#8b1a1a")
		gvNode.SetFontColor("white")
	default:
		gvNode.SetFillColor("#d3d3d3")
		gvNode.SetFontColor("black")
	}
	if node.Kind == NodeKindLabel && node.State.State != StateUnfired {
		gvNode.SetFillColor("#e8e8e8")
		gvNode.SetFontColor("#888888")
		gvNode.SetStyle(cgraph.DashedNodeStyle)
	}
}

// gvLabel turns label line breaks into DOT escapes.
func gvLabel(s string) string {
	return strings.ReplaceAll(s, "\n", `\n`)
}
