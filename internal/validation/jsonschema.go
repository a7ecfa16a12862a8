package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rendis/ffts/pkg/schema"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

const partitionSchemaURL = "https://ffts.dev/schemas/partition.json"

// partitionSchemaJSON is the JSON Schema for Partition documents.
// Embedded as a constant to avoid filesystem dependencies.
const partitionSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://ffts.dev/schemas/partition.json",
  "type": "object",
  "required": ["nodes"],
  "properties": {
    "name": { "type": "string" },
    "nodes": {
      "type": "array",
      "minItems": 1,
      "items": { "$ref": "#/$defs/node" }
    },
    "metadata": { "type": "object" }
  },
  "additionalProperties": false,
  "$defs": {
    "u8":  { "type": "integer", "minimum": 0, "maximum": 255 },
    "u16": { "type": "integer", "minimum": 0, "maximum": 65535 },
    "u32": { "type": "integer", "minimum": 0, "maximum": 4294967295 },
    "u64": { "type": "integer", "minimum": 0 },
    "node": {
      "type": "object",
      "required": ["id"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "op_type": { "type": "string" },
        "inputs": { "type": "array", "items": { "type": "string" } },
        "slice": { "$ref": "#/$defs/slice" },
        "thread_scope": { "type": "integer" },
        "unknown_shape": { "type": "boolean" },
        "pass_through": { "type": "boolean" },
        "at_start_preds": { "type": "array", "items": { "type": "string", "minLength": 1 } },
        "template": { "$ref": "#/$defs/template" },
        "collective": { "$ref": "#/$defs/collective" }
      },
      "additionalProperties": false
    },
    "slice": {
      "type": "object",
      "properties": {
        "mode": { "type": "string", "enum": ["", "manual", "auto", "dynamic"] },
        "thread_dim": { "type": "integer", "minimum": 0, "maximum": 65535 },
        "window_size": { "$ref": "#/$defs/u16" },
        "context_ids": { "type": "array", "items": { "type": "integer", "minimum": 0 } }
      },
      "additionalProperties": false
    },
    "template": {
      "type": "object",
      "properties": {
        "core_type": {
          "type": "string",
          "enum": ["", "aicore", "aiv", "mix_aic", "mix_aiv", "aicpu", "sdma",
                   "notify_wait", "notify_record", "write_value", "case_switch",
                   "at_start", "at_end"]
        },
        "aicore": { "$ref": "#/$defs/kernel" },
        "aicpu": {
          "type": "object",
          "properties": {
            "kernel_type": { "$ref": "#/$defs/u8" },
            "kernel_addr": { "$ref": "#/$defs/u64" },
            "args_addr": { "$ref": "#/$defs/u64" },
            "block_dim": { "$ref": "#/$defs/u32" },
            "task_param_offset": { "$ref": "#/$defs/u32" }
          },
          "additionalProperties": false
        },
        "sdma": { "$ref": "#/$defs/sdma" },
        "notify": { "$ref": "#/$defs/notify" },
        "write_value": { "$ref": "#/$defs/write_value" },
        "case_switch": {
          "type": "object",
          "properties": {
            "start_label_id": { "$ref": "#/$defs/u32" },
            "label_list_len": { "$ref": "#/$defs/u32" },
            "load_addr": { "$ref": "#/$defs/u64" }
          },
          "additionalProperties": false
        },
        "mix": {
          "type": "object",
          "properties": {
            "alias_engine": { "type": "boolean" },
            "primary": { "type": "string", "enum": ["", "mix_aic", "mix_aiv"] },
            "aic": { "$ref": "#/$defs/kernel" },
            "aiv": { "$ref": "#/$defs/kernel" },
            "first_arg_injection": { "type": "boolean" },
            "default_context_node": { "type": "string" }
          },
          "additionalProperties": false
        }
      },
      "additionalProperties": false
    },
    "kernel": {
      "type": "object",
      "properties": {
        "kernel_addrs": { "type": "array", "items": { "$ref": "#/$defs/u64" } },
        "task_param_offset": { "$ref": "#/$defs/u32" },
        "block_dim": { "$ref": "#/$defs/u32" },
        "non_tail_block_dim": { "$ref": "#/$defs/u16" },
        "tail_block_dim": { "$ref": "#/$defs/u16" },
        "schedule_mode": { "$ref": "#/$defs/u8" },
        "prefetch_bitmap": { "$ref": "#/$defs/u8" }
      },
      "additionalProperties": false
    },
    "sdma": {
      "type": "object",
      "properties": {
        "src_addr": { "$ref": "#/$defs/u64" },
        "dst_addr": { "$ref": "#/$defs/u64" },
        "length": { "$ref": "#/$defs/u32" },
        "opcode": { "$ref": "#/$defs/u8" }
      },
      "additionalProperties": false
    },
    "notify": {
      "type": "object",
      "properties": { "notify_id": { "$ref": "#/$defs/u16" } },
      "additionalProperties": false
    },
    "write_value": {
      "type": "object",
      "properties": {
        "addr": { "$ref": "#/$defs/u64" },
        "value": { "$ref": "#/$defs/u64" }
      },
      "additionalProperties": false
    },
    "collective": {
      "type": "object",
      "required": ["subtasks", "adjacency"],
      "properties": {
        "subtasks": {
          "type": "array",
          "minItems": 1,
          "items": {
            "type": "object",
            "required": ["op"],
            "properties": {
              "op": { "type": "string", "enum": ["sdma", "notify_wait", "notify_record", "write_value"] },
              "sdma": { "$ref": "#/$defs/sdma" },
              "notify": { "$ref": "#/$defs/notify" },
              "write_value": { "$ref": "#/$defs/write_value" }
            },
            "additionalProperties": false
          }
        },
        "adjacency": {
          "type": ["array", "null"],
          "items": {
            "type": ["array", "null"],
            "items": { "type": "integer", "minimum": 0 }
          }
        }
      },
      "additionalProperties": false
    }
  }
}`

// JSONSchemaValidator validates partition documents against the embedded
// JSON Schema. It is safe for concurrent use.
type JSONSchemaValidator struct {
	partitionSchema *jsonschema.Schema
}

// NewJSONSchemaValidator creates a new JSONSchemaValidator with the partition schema pre-compiled.
func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(partitionSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal partition schema: %w", err)
	}
	if err := c.AddResource(partitionSchemaURL, schemaDoc); err != nil {
		return nil, fmt.Errorf("add partition schema resource: %w", err)
	}

	compiled, err := c.Compile(partitionSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile partition schema: %w", err)
	}

	return &JSONSchemaValidator{partitionSchema: compiled}, nil
}

// ValidatePartition validates an in-memory Partition against the schema.
func (v *JSONSchemaValidator) ValidatePartition(p *schema.Partition) error {
	if p == nil {
		return schema.NewError(schema.ErrCodeValidation, "partition is nil")
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize partition").WithCause(err)
	}
	return v.ValidateDocument(raw)
}

// ValidateDocument validates raw partition JSON. Unknown fields are caught
// here, before they would be silently dropped by decoding.
func (v *JSONSchemaValidator) ValidateDocument(raw []byte) error {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "partition is not valid JSON").WithCause(err)
	}
	if err := v.partitionSchema.Validate(doc); err != nil {
		return toFftsError(err)
	}
	return nil
}

// toFftsError converts a jsonschema.ValidationError into an FftsError
// listing every leaf violation.
func toFftsError(err error) *schema.FftsError {
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewError(schema.ErrCodeValidation, verr.Error())
	}

	if len(violations) == 1 {
		return schema.NewError(schema.ErrCodeValidation, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	}

	msg := fmt.Sprintf("validation failed with %d errors", len(violations))
	return schema.NewError(schema.ErrCodeValidation, msg).
		WithDetails(map[string]any{"violations": violations})
}

// collectViolations walks a ValidationError tree and collects leaf error messages
// with their instance locations.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
