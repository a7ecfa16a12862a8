// gen-diagrams generates sample diagram outputs for README documentation.
// Run: go run ./cmd/gen-diagrams
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rendis/ffts/internal/diagram"
	"github.com/rendis/ffts/internal/pipeline"
	"github.com/rendis/ffts/pkg/schema"
)

func kernel(id string, inputs ...string) schema.NodeDef {
	return schema.NodeDef{
		ID:     id,
		OpType: "MatMul",
		Inputs: inputs,
		Template: &schema.Template{
			CoreType: schema.CoreAICore,
			AICore:   &schema.AICoreTemplate{KernelAddrs: []uint64{0x1000}, BlockDim: 8},
		},
	}
}

func main() {
	ctx := context.Background()

	// embed -> sliced matmul (2 slices) -> allreduce (copy, record, wait) -> wide fan-out
	// that spills into a label.
	sliced := kernel("matmul", "embed")
	sliced.Slice = &schema.ThreadSlice{Mode: schema.ThreadModeAuto, ThreadDim: 2, WindowSize: 2}

	part := &schema.Partition{
		Name: "sample",
		Nodes: []schema.NodeDef{
			kernel("embed"),
			sliced,
			{
				ID:     "allreduce",
				OpType: "HcomAllReduce",
				Inputs: []string{"matmul"},
				Collective: &schema.CollectiveDef{
					Subtasks: []schema.Subtask{
						{Op: schema.SubtaskSDMA, SDMA: &schema.SDMATemplate{SrcAddr: 0x2000, DstAddr: 0x3000, Length: 4096}},
						{Op: schema.SubtaskNotifyRecord, Notify: &schema.NotifyTemplate{NotifyID: 1}},
						{Op: schema.SubtaskNotifyWait, Notify: &schema.NotifyTemplate{NotifyID: 2}},
					},
					Adjacency: [][]int{{1}, {2}, {}},
				},
			},
		},
	}
	for i := range 28 {
		part.Nodes = append(part.Nodes, kernel(fmt.Sprintf("head%d", i), "allreduce"))
	}

	p, err := pipeline.New(pipeline.Deps{Profile: "default"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "pipeline error: %v\n", err)
		os.Exit(1)
	}
	res, err := p.Compile(ctx, part, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build error: %v\n", err)
		os.Exit(1)
	}
	model, err := diagram.Build(res.Graph)
	if err != nil {
		fmt.Fprintf(os.Stderr, "diagram error: %v\n", err)
		os.Exit(1)
	}

	outDir := filepath.Join("docs", "assets")
	os.MkdirAll(outDir, 0o755)

	// ASCII (mermaid-ascii with hand-rolled fallback)
	home, _ := os.UserHomeDir()
	binDir := filepath.Join(home, ".ffts", "bin")
	ascii := diagram.RenderASCIIAuto(ctx, model, binDir)
	os.WriteFile(filepath.Join(outDir, "diagram-ascii.txt"), []byte(ascii), 0o644)
	fmt.Println("=== ASCII ===")
	fmt.Println(ascii)

	// Mermaid
	mermaid := diagram.RenderMermaid(model)
	os.WriteFile(filepath.Join(outDir, "diagram-mermaid.md"), []byte("```mermaid\n"+mermaid+"\n```\n"), 0o644)
	fmt.Println("=== Mermaid ===")
	fmt.Println(mermaid)

	// Image (PNG)
	png, imgErr := diagram.RenderImage(ctx, model)
	if imgErr != nil {
		fmt.Fprintf(os.Stderr, "image error: %v\n", imgErr)
	} else {
		pngPath := filepath.Join(outDir, "diagram-sample.png")
		os.WriteFile(pngPath, png, 0o644)
		fmt.Printf("=== Image (PNG) ===\nWritten: %s (%d bytes)\n", pngPath, len(png))
	}
}
