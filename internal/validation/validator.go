package validation

import "github.com/rendis/ffts/pkg/schema"

// Validator checks partitions for correctness before a build.
// Uses JSON Schema Draft 2020-12 for the structural stage.
type Validator interface {
	ValidatePartition(p *schema.Partition) error
}
