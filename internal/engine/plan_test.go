package engine

import (
	"errors"
	"testing"

	"github.com/rendis/ffts/pkg/schema"
)

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !schema.HasCode(err, code) {
		t.Errorf("expected code %s, got %v", code, err)
	}
}

func TestNewPlan_Indexes(t *testing.T) {
	p := &schema.Partition{Name: "sg", Nodes: []schema.NodeDef{
		aicoreNode("a", "graph_in"),
		aicoreNode("b", "a", "a"),
		aicoreNode("c", "a", "b"),
	}}

	plan, err := NewPlan(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(plan.Preds["a"]) != 0 {
		t.Errorf("graph inputs must be dropped, got %v", plan.Preds["a"])
	}
	if got := plan.Preds["b"]; len(got) != 1 || got[0] != "a" {
		t.Errorf("duplicate inputs must collapse, got %v", got)
	}
	if got := plan.Succs["a"]; len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Errorf("expected succs of a = [b c], got %v", got)
	}
	if !plan.Contains("c") || plan.Contains("graph_in") {
		t.Error("Contains reports wrong membership")
	}
	if len(plan.Sorted) != 3 || plan.Sorted[0] != "a" || plan.Sorted[2] != "c" {
		t.Errorf("unexpected topological order %v", plan.Sorted)
	}
}

func TestNewPlan_UnknownShape(t *testing.T) {
	n := aicoreNode("b", "a")
	n.UnknownShape = true
	plan, err := NewPlan(&schema.Partition{Nodes: []schema.NodeDef{aicoreNode("a"), n}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !plan.UnknownShape {
		t.Error("expected partition to be flagged unknown-shape")
	}
}

func TestNewPlan_Rejects(t *testing.T) {
	_, err := NewPlan(nil)
	assertCode(t, err, schema.ErrCodeValidation)

	_, err = NewPlan(&schema.Partition{Nodes: []schema.NodeDef{{ID: ""}}})
	assertCode(t, err, schema.ErrCodeValidation)

	_, err = NewPlan(&schema.Partition{Nodes: []schema.NodeDef{
		aicoreNode("a", "c"),
		aicoreNode("b", "a"),
		aicoreNode("c", "b"),
		aicoreNode("d"),
	}})
	assertCode(t, err, schema.ErrCodeCycleDetected)

	var fe *schema.FftsError
	if !errors.As(err, &fe) {
		t.Fatal("expected FftsError")
	}
	stuck, _ := fe.Details["nodes"].([]string)
	if len(stuck) != 3 {
		t.Errorf("expected 3 nodes on the cycle, got %v", stuck)
	}
}

func TestPlan_Boundary(t *testing.T) {
	in := aicoreNode("b", "pt")
	out := aicoreNode("c", "pt")
	out.ThreadScope = 2
	plan, err := NewPlan(&schema.Partition{Nodes: []schema.NodeDef{
		aicoreNode("a"),
		passThrough("pt", "a"),
		in,
		out,
		passThrough("sink", "a"),
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a := plan.Nodes["a"]
	if plan.boundary(plan.Nodes["pt"], a) {
		t.Error("pt has a same-scope consumer, expected non-boundary")
	}
	if !plan.boundary(plan.Nodes["sink"], a) {
		t.Error("pass-through without consumers is a boundary")
	}

	scoped := *a
	scoped.ThreadScope = 5
	if !plan.boundary(plan.Nodes["pt"], &scoped) {
		t.Error("no consumer in scope 5, expected boundary")
	}
}
