package diagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/ffts/pkg/schema"
)

func TestBuildSliced(t *testing.T) {
	model, err := Build(buildGraph(t, slicedPartition()))
	require.NoError(t, err)

	assert.Equal(t, "sliced (ready 2 / total 3)", model.Title)
	require.Len(t, model.Nodes, 3)
	assert.Equal(t, "c0 aicore\na [0/2]", model.Nodes[0].Label)
	assert.Equal(t, NodeKindCompute, model.Nodes[0].Kind)
	assert.Equal(t, StateReady, model.Nodes[0].State.State)
	assert.Equal(t, StateWaiting, model.Nodes[2].State.State)
	assert.EqualValues(t, 2, model.Nodes[2].State.PredCount)

	assert.Equal(t, [][]string{{"c0", "c1"}, {"c2"}}, model.Levels)
	assert.Empty(t, model.Unfired)

	require.Len(t, model.Groups, 1)
	assert.Equal(t, "a", model.Groups[0].Label)
	assert.Equal(t, []string{"c0", "c1"}, model.Groups[0].NodeIDs)

	assert.ElementsMatch(t, []Edge{{From: "c0", To: "c2"}, {From: "c1", To: "c2"}}, model.Edges)
}

func TestBuildFanOutShowsLabel(t *testing.T) {
	g := buildGraph(t, fanOutPartition(30))
	require.Equal(t, 1, g.LabelCount())

	model, err := Build(g)
	require.NoError(t, err)

	var labels, overflow int
	for _, n := range model.Nodes {
		if n.Kind == NodeKindLabel {
			labels++
			assert.NotEmpty(t, n.ID)
		}
	}
	for _, e := range model.Edges {
		if e.Overflow {
			overflow++
			assert.Equal(t, "overflow", e.Label)
			assert.Equal(t, "c0", e.From)
		}
	}
	assert.Equal(t, 1, labels)
	assert.Equal(t, 1, overflow)
	// Producer, then consumers and the Label, then the consumers behind it.
	assert.Len(t, model.Levels, 3)
	assert.Empty(t, model.Groups)
}

func TestBuildDeadlock(t *testing.T) {
	model, err := Build(deadlockedGraph())
	require.NoError(t, err)

	assert.Empty(t, model.Levels)
	assert.Equal(t, []string{"c0", "c1"}, model.Unfired)
	for _, n := range model.Nodes {
		assert.Equal(t, StateUnfired, n.State.State)
		assert.Equal(t, -1, n.Level)
	}
	assert.Equal(t, NodeKindDMA, model.Nodes[1].Kind)
}

func TestBuildRejectsDangling(t *testing.T) {
	g := deadlockedGraph()
	g.Contexts[1].SuccessorIDs = []uint32{7}
	_, err := Build(g)
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeDanglingSuccessor))

	_, err = Build(nil)
	assert.Error(t, err)
}

func TestContextTypeToKind(t *testing.T) {
	tests := map[schema.ContextType]NodeKind{
		schema.ContextAICore:       NodeKindCompute,
		schema.ContextMixAIV:       NodeKindCompute,
		schema.ContextAICPU:        NodeKindCompute,
		schema.ContextSDMA:         NodeKindDMA,
		schema.ContextNotifyRecord: NodeKindSync,
		schema.ContextWriteValue:   NodeKindSync,
		schema.ContextCaseSwitch:   NodeKindControl,
		schema.ContextAtEnd:        NodeKindControl,
		schema.ContextLabel:        NodeKindLabel,
	}
	for ct, want := range tests {
		assert.Equal(t, want, contextTypeToKind(ct), ct)
	}
}

func TestStartGatedState(t *testing.T) {
	g := &schema.TaskGraph{
		TotalContextCount: 1,
		Contexts: []*schema.Context{
			{ID: 0, Type: schema.ContextAICore, PredCount: 1, PredCountInit: 1, StartGated: true, OwnerNode: "g"},
		},
	}
	model, err := Build(g)
	require.NoError(t, err)
	// Gating comes from outside the table, so the wavefront fires it at level 0.
	assert.Equal(t, 0, model.Nodes[0].Level)
	assert.Equal(t, StateGated, model.Nodes[0].State.State)
	assert.Equal(t, "TaskGraph (ready 0 / total 1)", model.Title)
}
