package validation

import "github.com/rendis/ffts/pkg/schema"

func kernelNode(id string, inputs ...string) schema.NodeDef {
	return schema.NodeDef{
		ID:     id,
		OpType: "MatMul",
		Inputs: inputs,
		Template: &schema.Template{
			CoreType: schema.CoreAICore,
			AICore:   &schema.AICoreTemplate{KernelAddrs: []uint64{0x2000}, BlockDim: 4},
		},
	}
}

func collective(id string, adjacency [][]int, inputs ...string) schema.NodeDef {
	subtasks := make([]schema.Subtask, len(adjacency))
	for i := range subtasks {
		subtasks[i] = schema.Subtask{Op: schema.SubtaskNotifyRecord, Notify: &schema.NotifyTemplate{NotifyID: uint16(i)}}
	}
	return schema.NodeDef{
		ID:         id,
		OpType:     "HcomAllGather",
		Inputs:     inputs,
		Collective: &schema.CollectiveDef{Subtasks: subtasks, Adjacency: adjacency},
	}
}

func partitionOf(nodes ...schema.NodeDef) *schema.Partition {
	return &schema.Partition{Name: "sg", Nodes: nodes}
}
