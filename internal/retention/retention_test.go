package retention

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/ffts/internal/store"
	"github.com/rendis/ffts/pkg/schema"
)

func newTestStore(t *testing.T) *store.LibSQLStore {
	t.Helper()
	s, err := store.NewLibSQLStore("file:" + filepath.Join(t.TempDir(), "retention.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(t.Context()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func singleTable(name string) *schema.TaskGraph {
	return &schema.TaskGraph{
		Partition:         name,
		ReadyContextCount: 1,
		TotalContextCount: 1,
		Contexts: []*schema.Context{
			{ID: 0, Type: schema.ContextAICore, ThreadDim: 1, OwnerNode: "k",
				Payload: &schema.Payload{AICore: &schema.AICoreTemplate{BlockDim: 1}}},
		},
	}
}

func save(t *testing.T, s store.Store, partition string, n int, createdAt time.Time) {
	t.Helper()
	for range n {
		require.NoError(t, s.SaveBuild(t.Context(), &store.Build{Table: singleTable(partition), CreatedAt: createdAt}))
	}
}

func revisions(t *testing.T, s store.Store, partition string) []int64 {
	t.Helper()
	list, err := s.ListBuilds(t.Context(), store.BuildFilter{Partition: partition})
	require.NoError(t, err)
	var out []int64
	for _, b := range list {
		out = append(out, b.Revision)
	}
	return out
}

func TestSweep_KeepRevisions(t *testing.T) {
	s := newTestStore(t)
	save(t, s, "wide", 4, time.Time{})
	save(t, s, "single", 1, time.Time{})

	j := New(s, Policy{KeepRevisions: 2}, nil)
	rep, err := j.Sweep(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Partitions)
	assert.Equal(t, 2, rep.Deleted)
	assert.True(t, rep.Vacuumed)
	assert.Positive(t, rep.SchemaVersion)

	assert.ElementsMatch(t, []int64{4, 3}, revisions(t, s, "wide"))
	assert.Equal(t, []int64{1}, revisions(t, s, "single"))

	latest, err := s.LatestBuild(t.Context(), "wide")
	require.NoError(t, err)
	assert.EqualValues(t, 4, latest.Revision)

	// Pruned history does not reuse revision numbers.
	save(t, s, "wide", 1, time.Time{})
	latest, err = s.LatestBuild(t.Context(), "wide")
	require.NoError(t, err)
	assert.EqualValues(t, 5, latest.Revision)
}

func TestSweep_MaxAgeKeepsNewest(t *testing.T) {
	s := newTestStore(t)
	old := time.Now().Add(-48 * time.Hour).UTC().Truncate(time.Second)
	save(t, s, "stale", 3, old)
	save(t, s, "fresh", 2, time.Time{})

	j := New(s, Policy{MaxAge: 24 * time.Hour}, nil)
	rep, err := j.Sweep(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Deleted)
	assert.Equal(t, []int64{3}, revisions(t, s, "stale"), "newest revision survives its age")
	assert.ElementsMatch(t, []int64{2, 1}, revisions(t, s, "fresh"))
}

func TestSweep_NothingToDo(t *testing.T) {
	s := newTestStore(t)
	save(t, s, "one", 2, time.Time{})

	rep, err := New(s, Policy{}, nil).Sweep(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Deleted)
	assert.False(t, rep.Vacuumed)
	assert.Len(t, revisions(t, s, "one"), 2)
}

// failingStore satisfies store.Store with a listing error.
type failingStore struct {
	store.Store
}

func (failingStore) ListBuilds(context.Context, store.BuildFilter) ([]*store.BuildSummary, error) {
	return nil, schema.NewError(schema.ErrCodeStore, "disk gone")
}

func TestSweep_ListError(t *testing.T) {
	_, err := New(failingStore{}, Policy{KeepRevisions: 1}, nil).Sweep(t.Context())
	assert.True(t, schema.HasCode(err, schema.ErrCodeStore), "got %v", err)
}

func TestNextRun(t *testing.T) {
	j := New(nil, Policy{}, nil)
	from := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

	next, err := j.NextRun(DefaultSchedule, from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), next)

	next, err = j.NextRun("0 */6 * * *", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC), next)

	_, err = j.NextRun("every tuesday", from)
	assert.Error(t, err)
}

func TestStartStop(t *testing.T) {
	s := newTestStore(t)
	j := New(s, Policy{KeepRevisions: 1}, nil)

	assert.Error(t, j.Start(t.Context(), "not a schedule"))

	require.NoError(t, j.Start(t.Context(), "@every 1h"))
	assert.Error(t, j.Start(t.Context(), "@every 1h"), "second start is rejected")
	j.Stop()
	j.Stop()

	require.NoError(t, j.Start(t.Context(), DefaultSchedule), "restart after stop")
	j.Stop()
}
