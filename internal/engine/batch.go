package engine

import (
	"context"
	"fmt"

	"github.com/rendis/ffts/internal/logging"
	"github.com/rendis/ffts/pkg/schema"
)

// BatchResult is the outcome of one partition in a batch.
type BatchResult struct {
	Partition string            `json:"partition"`
	Graph     *schema.TaskGraph `json:"graph,omitempty"`
	Err       error             `json:"-"`
}

// BatchBuilder lowers many partitions concurrently on a bounded pool. Builds
// share only the immutable Config.
type BatchBuilder struct {
	builder *Builder
	size    int
}

// NewBatchBuilder creates a batch builder running at most size builds at once.
func NewBatchBuilder(builder *Builder, size int) *BatchBuilder {
	return &BatchBuilder{builder: builder, size: size}
}

// BuildAll builds every partition and returns results in input order. A
// failing partition does not stop the others; ctx cancellation does.
func (bb *BatchBuilder) BuildAll(ctx context.Context, parts []*schema.Partition) ([]BatchResult, PoolMetrics, error) {
	results := make([]BatchResult, len(parts))
	pool := NewWorkerPool(bb.size, nil)
	defer pool.Shutdown()

	for i, p := range parts {
		name := fmt.Sprintf("#%d", i)
		if p != nil && p.Name != "" {
			name = p.Name
		}
		results[i] = BatchResult{
			Partition: name,
			Err:       schema.NewErrorf(schema.ErrCodeValidation, "build of %s did not complete", name),
		}

		slot := &results[i]
		part := p
		err := pool.Submit(ctx, func(ctx context.Context) error {
			g, err := bb.builder.Build(logging.WithPartition(ctx, name), part)
			slot.Graph, slot.Err = g, err
			return err
		})
		if err != nil {
			pool.Wait()
			return results, pool.Metrics(), err
		}
	}

	pool.Wait()
	return results, pool.Metrics(), nil
}
