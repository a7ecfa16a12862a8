package diagram

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rendis/ffts/internal/engine"
	"github.com/rendis/ffts/pkg/schema"
)

// --- Test partition builders ---

func kernel(id string, inputs ...string) schema.NodeDef {
	return schema.NodeDef{
		ID:     id,
		OpType: "MatMul",
		Inputs: inputs,
		Template: &schema.Template{
			CoreType: schema.CoreAICore,
			AICore:   &schema.AICoreTemplate{BlockDim: 1},
		},
	}
}

// slicedPartition is an auto-sliced producer of two slices feeding one
// manual consumer: c0 c1 ready, c2 waits on both.
func slicedPartition() *schema.Partition {
	a := kernel("a")
	a.Slice = &schema.ThreadSlice{Mode: schema.ThreadModeAuto, ThreadDim: 2}
	return &schema.Partition{Name: "sliced", Nodes: []schema.NodeDef{a, kernel("b", "a")}}
}

// fanOutPartition has one producer feeding n consumers.
func fanOutPartition(n int) *schema.Partition {
	nodes := []schema.NodeDef{kernel("src")}
	for i := range n {
		nodes = append(nodes, kernel(fmt.Sprintf("k%d", i), "src"))
	}
	return &schema.Partition{Name: "fanout", Nodes: nodes}
}

func buildGraph(t *testing.T, p *schema.Partition) *schema.TaskGraph {
	t.Helper()
	b, err := engine.NewBuilder(nil, nil, nil)
	require.NoError(t, err)
	g, err := b.Build(t.Context(), p)
	require.NoError(t, err)
	return g
}

// deadlockedGraph is a hand-made table of two contexts waiting on each other.
func deadlockedGraph() *schema.TaskGraph {
	return &schema.TaskGraph{
		Partition:         "deadlock",
		TotalContextCount: 2,
		Contexts: []*schema.Context{
			{ID: 0, Type: schema.ContextAICore, PredCount: 1, PredCountInit: 1, SuccessorIDs: []uint32{1}, OwnerNode: "x"},
			{ID: 1, Type: schema.ContextSDMA, PredCount: 1, PredCountInit: 1, SuccessorIDs: []uint32{0}, OwnerNode: "y"},
		},
	}
}
