package store

import (
	"time"

	"github.com/rendis/ffts/pkg/schema"
)

// Build is one persisted lowering result. Table and Wire describe the same
// context table; Wire is the hardware encoding of Table.
type Build struct {
	ID        string                   `json:"id"`
	Partition string                   `json:"partition"`
	Revision  int64                    `json:"revision"`
	Profile   string                   `json:"profile,omitempty"`
	Ready     uint32                   `json:"ready_context_count"`
	Total     uint32                   `json:"total_context_count"`
	Labels    int                      `json:"labels"`
	Table     *schema.TaskGraph        `json:"table"`
	Wire      []byte                   `json:"-"`
	Warnings  []schema.ValidationIssue `json:"warnings,omitempty"`
	CreatedAt time.Time                `json:"created_at"`
}

// BuildSummary is a Build without its table and wire bytes, for listings.
type BuildSummary struct {
	ID        string    `json:"id"`
	Partition string    `json:"partition"`
	Revision  int64     `json:"revision"`
	Profile   string    `json:"profile,omitempty"`
	Ready     uint32    `json:"ready_context_count"`
	Total     uint32    `json:"total_context_count"`
	Labels    int       `json:"labels"`
	CreatedAt time.Time `json:"created_at"`
}

// BuildFilter for listing builds.
type BuildFilter struct {
	Partition string
	Since     *time.Time
	Limit     int
	Offset    int
}
