package pipeline

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/ffts/internal/store"
	"github.com/rendis/ffts/pkg/schema"
)

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

func chain(name string) *schema.Partition {
	return &schema.Partition{Name: name, Nodes: []schema.NodeDef{kernel("a"), kernel("b", "a"), kernel("c", "b")}}
}

func newTestStore(t *testing.T) *store.LibSQLStore {
	t.Helper()
	s, err := store.NewLibSQLStore("file:" + filepath.Join(t.TempDir(), "pipeline.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(t.Context()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCompile_Chain(t *testing.T) {
	p, err := New(Deps{})
	require.NoError(t, err)

	res, err := p.Compile(t.Context(), chain("abc"), true)
	require.NoError(t, err)
	assert.NotEmpty(t, res.BuildID)
	assert.False(t, res.Stored, "no store configured")
	assert.EqualValues(t, 1, res.Graph.ReadyContextCount)
	assert.EqualValues(t, 3, res.Graph.TotalContextCount)
	assert.Len(t, res.Wavefronts.Levels, 3)
}

func TestCompileDocument_PersistsRevisions(t *testing.T) {
	s := newTestStore(t)
	p, err := New(Deps{Store: s, Profile: "default"})
	require.NoError(t, err)

	raw, err := json.Marshal(chain("abc"))
	require.NoError(t, err)

	for rev := 1; rev <= 2; rev++ {
		res, err := p.CompileDocument(t.Context(), raw, true)
		require.NoError(t, err)
		assert.True(t, res.Stored)
		assert.EqualValues(t, rev, res.Revision)
	}

	latest, err := s.LatestBuild(t.Context(), "abc")
	require.NoError(t, err)
	assert.EqualValues(t, 2, latest.Revision)
	assert.Equal(t, "default", latest.Profile)
	assert.EqualValues(t, 3, latest.Total)

	res, err := p.CompileDocument(t.Context(), raw, false)
	require.NoError(t, err)
	assert.False(t, res.Stored)
}

func TestCompile_ValidationErrors(t *testing.T) {
	p, err := New(Deps{})
	require.NoError(t, err)

	cyclic := &schema.Partition{Name: "loop", Nodes: []schema.NodeDef{kernel("a", "b"), kernel("b", "a")}}
	_, err = p.Compile(t.Context(), cyclic, false)
	assert.True(t, schema.HasCode(err, schema.ErrCodeCycleDetected), "got %v", err)

	_, err = p.CompileDocument(t.Context(), []byte(`{"name":"x","nodes":[{"id":1}]}`), false)
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation), "got %v", err)

	noTpl := &schema.Partition{Name: "bare", Nodes: []schema.NodeDef{{ID: "a", OpType: "MatMul"}}}
	_, err = p.Compile(t.Context(), noTpl, false)
	assert.True(t, schema.HasCode(err, schema.ErrCodeMissingTemplate), "got %v", err)
}

func TestCompileBatch(t *testing.T) {
	s := newTestStore(t)
	p, err := New(Deps{Store: s})
	require.NoError(t, err)

	parts := []*schema.Partition{
		chain("p0"),
		{Name: "broken", Nodes: []schema.NodeDef{kernel("x", "x")}},
		nil,
		chain("p3"),
	}
	items, metrics, err := p.CompileBatch(t.Context(), parts, 2, true)
	require.NoError(t, err)
	require.Len(t, items, 4)

	assert.NoError(t, items[0].Err)
	assert.True(t, items[0].Result.Stored)
	assert.Error(t, items[1].Err)
	assert.Equal(t, "broken", items[1].Partition)
	assert.Error(t, items[2].Err)
	assert.Equal(t, "#2", items[2].Partition)
	assert.NoError(t, items[3].Err)
	assert.EqualValues(t, 2, metrics.Completed)

	list, err := s.ListBuilds(t.Context(), store.BuildFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestCompileBatch_Many(t *testing.T) {
	p, err := New(Deps{})
	require.NoError(t, err)

	var parts []*schema.Partition
	for i := range 20 {
		parts = append(parts, chain(fmt.Sprintf("p%d", i)))
	}
	items, _, err := p.CompileBatch(t.Context(), parts, 4, false)
	require.NoError(t, err)
	for i, it := range items {
		require.NoError(t, it.Err, "item %d", i)
		assert.Equal(t, fmt.Sprintf("p%d", i), it.Result.Partition)
	}
}
