// Package retention prunes old build revisions from the store and compacts
// the database on a cron schedule.
package retention

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rendis/ffts/internal/store"
)

// DefaultSchedule runs one sweep a day.
const DefaultSchedule = "@daily"

// Policy decides which builds survive a sweep. The newest revision of every
// partition always survives.
type Policy struct {
	// KeepRevisions is how many revisions per partition to keep; 0 keeps all.
	KeepRevisions int
	// MaxAge drops older revisions; 0 disables the age limit.
	MaxAge time.Duration
}

// Report summarizes one sweep.
type Report struct {
	Partitions    int
	Deleted       int
	Vacuumed      bool
	SchemaVersion int
}

// Janitor sweeps a store by policy, on demand or on a schedule.
type Janitor struct {
	store  store.Store
	policy Policy
	parser cron.Parser
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	running sync.Mutex
	cron    *cron.Cron
}

func New(st store.Store, policy Policy, logger *slog.Logger) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{
		store:  st,
		policy: policy,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		logger: logger,
		now:    time.Now,
	}
}

// NextRun computes the next sweep time for a schedule expression.
func (j *Janitor) NextRun(spec string, from time.Time) (time.Time, error) {
	sched, err := j.parser.Parse(spec)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return sched.Next(from), nil
}

// Start schedules sweeps until ctx is done or Stop is called.
func (j *Janitor) Start(ctx context.Context, spec string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cron != nil {
		return fmt.Errorf("retention already started")
	}

	sched, err := j.parser.Parse(spec)
	if err != nil {
		return fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	c := cron.New(cron.WithParser(j.parser))
	c.Schedule(sched, cron.FuncJob(func() {
		if _, err := j.Sweep(ctx); err != nil {
			j.logger.Error("retention sweep failed", slog.String("error", err.Error()))
		}
	}))
	c.Start()
	j.cron = c

	j.logger.Info("retention scheduled",
		slog.String("schedule", spec),
		slog.Int("keep_revisions", j.policy.KeepRevisions),
		slog.Duration("max_age", j.policy.MaxAge),
	)
	return nil
}

// Stop waits for a sweep in progress, then halts the schedule.
func (j *Janitor) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
	j.cron = nil
}

// Sweep deletes the builds the policy drops, then vacuums when anything was
// deleted. A sweep already in progress makes this call a no-op.
func (j *Janitor) Sweep(ctx context.Context) (*Report, error) {
	if !j.running.TryLock() {
		return &Report{}, nil
	}
	defer j.running.Unlock()

	builds, err := j.store.ListBuilds(ctx, store.BuildFilter{})
	if err != nil {
		return nil, fmt.Errorf("list builds: %w", err)
	}

	byPartition := make(map[string][]*store.BuildSummary)
	for _, b := range builds {
		byPartition[b.Partition] = append(byPartition[b.Partition], b)
	}

	rep := &Report{Partitions: len(byPartition)}
	cutoff := time.Time{}
	if j.policy.MaxAge > 0 {
		cutoff = j.now().Add(-j.policy.MaxAge)
	}
	for _, revs := range byPartition {
		for _, b := range j.expired(revs, cutoff) {
			if err := j.store.DeleteBuild(ctx, b.ID); err != nil {
				return rep, fmt.Errorf("delete build %s: %w", b.ID, err)
			}
			rep.Deleted++
		}
	}

	if rep.Deleted > 0 {
		if err := j.store.Vacuum(ctx); err != nil {
			return rep, fmt.Errorf("vacuum: %w", err)
		}
		rep.Vacuumed = true
	}
	if rep.SchemaVersion, err = j.store.SchemaVersion(ctx); err != nil {
		return rep, fmt.Errorf("schema version: %w", err)
	}

	j.logger.Info("retention sweep",
		slog.Int("partitions", rep.Partitions),
		slog.Int("deleted", rep.Deleted),
		slog.Int("schema_version", rep.SchemaVersion),
	)
	return rep, nil
}

// expired returns the revisions of one partition the policy drops.
func (j *Janitor) expired(revs []*store.BuildSummary, cutoff time.Time) []*store.BuildSummary {
	slices.SortFunc(revs, func(a, b *store.BuildSummary) int { return cmp.Compare(b.Revision, a.Revision) })

	var out []*store.BuildSummary
	for i, b := range revs {
		if i == 0 {
			continue
		}
		if j.policy.KeepRevisions > 0 && i >= j.policy.KeepRevisions {
			out = append(out, b)
			continue
		}
		if !cutoff.IsZero() && b.CreatedAt.Before(cutoff) {
			out = append(out, b)
		}
	}
	return out
}
