package diagram

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderMermaidSliced(t *testing.T) {
	model, err := Build(buildGraph(t, slicedPartition()))
	require.NoError(t, err)

	out := RenderMermaid(model)
	assert.True(t, strings.HasPrefix(out, "graph TD\n"))
	assert.Contains(t, out, "%% sliced (ready 2 / total 3)")
	assert.Contains(t, out, `subgraph g0["a"]`)
	assert.Contains(t, out, `c0["c0 aicore<br/>a [0/2]"]`)
	assert.Contains(t, out, "c0 --> c2")
	assert.Contains(t, out, "c1 --> c2")
	assert.Contains(t, out, "class c0 ready")
	assert.Contains(t, out, "class c2 waiting")
}

func TestRenderMermaidLabelDistinct(t *testing.T) {
	model, err := Build(buildGraph(t, fanOutPartition(30)))
	require.NoError(t, err)

	out := RenderMermaid(model)
	assert.Contains(t, out, `c31(["c31 label"])`)
	assert.Contains(t, out, "c0 -.->|overflow| c31")
	assert.Contains(t, out, "class c31 label")
}

func TestRenderMermaidDeadlock(t *testing.T) {
	model, err := Build(deadlockedGraph())
	require.NoError(t, err)

	out := RenderMermaid(model)
	assert.Contains(t, out, `c1[/"c1 sdma<br/>y"/]`)
	assert.Contains(t, out, "class c0 unfired")
	assert.Contains(t, out, "class c1 unfired")
}

func TestRenderASCII(t *testing.T) {
	model, err := Build(buildGraph(t, slicedPartition()))
	require.NoError(t, err)

	out := RenderASCII(model)
	assert.Contains(t, out, "=== sliced (ready 2 / total 3) ===")
	assert.Contains(t, out, "level 0")
	assert.Contains(t, out, "level 1")
	assert.Contains(t, out, "[READY]")
	assert.Contains(t, out, "c0 ─→ c2")
	assert.Contains(t, out, "[a] c0 c1")
	assert.NotContains(t, out, "never fire")

	// Level 0 holds both slices on one row.
	lines := strings.Split(out, "\n")
	var row string
	for _, l := range lines {
		if strings.Contains(l, "c0 aicore") {
			row = l
			break
		}
	}
	assert.Contains(t, row, "c1 aicore")
}

func TestRenderASCIIOverflowAndDeadlock(t *testing.T) {
	model, err := Build(buildGraph(t, fanOutPartition(30)))
	require.NoError(t, err)
	out := RenderASCII(model)
	assert.Contains(t, out, "c31*")
	assert.Contains(t, out, "╎ c31 label")

	model, err = Build(deadlockedGraph())
	require.NoError(t, err)
	out = RenderASCII(model)
	assert.Contains(t, out, "--- never fire: c0, c1 ---")
}

func TestRenderMermaidForCLI(t *testing.T) {
	model, err := Build(buildGraph(t, slicedPartition()))
	require.NoError(t, err)

	out := RenderMermaidForCLI(model)
	assert.Contains(t, out, "c0-aicore-READY --> c2-aicore")
	assert.NotContains(t, out, "subgraph")
}

func TestRenderMermaidForCLIIsolated(t *testing.T) {
	model, err := Build(buildGraph(t, fanOutPartition(0)))
	require.NoError(t, err)

	out := RenderMermaidForCLI(model)
	assert.Equal(t, "graph TD\n    c0-aicore-READY\n", out)
}

func TestRenderASCIIAutoFallback(t *testing.T) {
	model, err := Build(buildGraph(t, slicedPartition()))
	require.NoError(t, err)

	out := RenderASCIIAuto(t.Context(), model, t.TempDir())
	assert.Equal(t, RenderASCII(model), out)
}

func TestRenderImage(t *testing.T) {
	for name, model := range map[string]func() (*DiagramModel, error){
		"sliced":   func() (*DiagramModel, error) { return Build(buildGraph(t, slicedPartition())) },
		"fanout":   func() (*DiagramModel, error) { return Build(buildGraph(t, fanOutPartition(30))) },
		"deadlock": func() (*DiagramModel, error) { return Build(deadlockedGraph()) },
	} {
		t.Run(name, func(t *testing.T) {
			m, err := model()
			require.NoError(t, err)

			png, err := RenderImage(t.Context(), m)
			require.NoError(t, err)
			require.Greater(t, len(png), 8)

			// PNG magic bytes.
			assert.Equal(t, byte(0x89), png[0])
			assert.Equal(t, byte('P'), png[1])
			assert.Equal(t, byte('N'), png[2])
			assert.Equal(t, byte('G'), png[3])
		})
	}
}
