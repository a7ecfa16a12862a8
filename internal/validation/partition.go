package validation

import (
	"encoding/json"
	"errors"

	"github.com/rendis/ffts/internal/engine"
	"github.com/rendis/ffts/pkg/schema"
)

// PartitionValidator orchestrates the three-stage validation pipeline:
// 1. Structural (JSON Schema)
// 2. Semantic (payloads, collective shape, node references)
// 3. DAG (cycles, unused pass-throughs)
type PartitionValidator struct {
	jsonSchema *JSONSchemaValidator
	cfg        *engine.Config
}

// NewPartitionValidator creates a PartitionValidator. cfg decides which ops
// are collectives and which runtime ops need no template; nil means the
// default configuration.
func NewPartitionValidator(cfg *engine.Config) (*PartitionValidator, error) {
	jsv, err := NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = engine.DefaultConfig()
	}
	return &PartitionValidator{jsonSchema: jsv, cfg: cfg}, nil
}

// Validate runs the full pipeline and returns an aggregated result.
// Structural errors short-circuit: semantic and DAG stages are skipped.
func (pv *PartitionValidator) Validate(p *schema.Partition) *schema.ValidationResult {
	if p == nil {
		r := &schema.ValidationResult{}
		r.AddError("/", schema.ErrCodeValidation, "partition is nil")
		return r
	}

	result := structuralResult(pv.jsonSchema.ValidatePartition(p))
	if !result.Valid() {
		return result
	}
	return pv.validateGraph(p, result)
}

// ValidateDocument validates raw partition JSON and decodes it. The
// partition is nil when the structural stage fails.
func (pv *PartitionValidator) ValidateDocument(raw []byte) (*schema.Partition, *schema.ValidationResult) {
	result := structuralResult(pv.jsonSchema.ValidateDocument(raw))
	if !result.Valid() {
		return nil, result
	}

	var p schema.Partition
	if err := json.Unmarshal(raw, &p); err != nil {
		result.AddError("/", schema.ErrCodeValidation, err.Error())
		return nil, result
	}
	return &p, pv.validateGraph(&p, result)
}

// ValidatePartition satisfies the Validator interface.
func (pv *PartitionValidator) ValidatePartition(p *schema.Partition) error {
	return pv.Validate(p).ToError()
}

func (pv *PartitionValidator) validateGraph(p *schema.Partition, result *schema.ValidationResult) *schema.ValidationResult {
	result.Merge(validateSemantic(p, pv.cfg))

	// Skip the DAG stage on semantic errors: the graph may be malformed.
	if result.Valid() {
		result.Merge(validateDAG(p))
	}
	return result
}

// structuralResult converts a JSON Schema error into ValidationResult issues.
func structuralResult(err error) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	if err == nil {
		return result
	}

	var fe *schema.FftsError
	if !errors.As(err, &fe) {
		result.AddError("/", schema.ErrCodeValidation, err.Error())
		return result
	}
	if violations, ok := fe.Details["violations"].([]string); ok {
		for _, v := range violations {
			result.AddError("/", schema.ErrCodeValidation, v)
		}
		return result
	}
	result.AddError("/", schema.ErrCodeValidation, fe.Message)
	return result
}

var _ Validator = (*PartitionValidator)(nil)
