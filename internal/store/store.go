package store

import "context"

// Store persists finished builds. Implementations must be safe for
// concurrent use.
type Store interface {
	// SaveBuild assigns the next revision of b.Partition, fills in ID and
	// CreatedAt when empty, and stores the build.
	SaveBuild(ctx context.Context, b *Build) error
	GetBuild(ctx context.Context, id string) (*Build, error)
	// LatestBuild returns the highest revision stored for a partition name.
	LatestBuild(ctx context.Context, partition string) (*Build, error)
	ListBuilds(ctx context.Context, filter BuildFilter) ([]*BuildSummary, error)
	DeleteBuild(ctx context.Context, id string) error

	// Maintenance
	Migrate(ctx context.Context) error
	SchemaVersion(ctx context.Context) (int, error)
	Vacuum(ctx context.Context) error

	// Lifecycle
	Close() error
}
