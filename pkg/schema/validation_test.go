package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationResult_EmptyIsValid(t *testing.T) {
	r := &ValidationResult{}
	assert.True(t, r.Valid())
}

func TestValidationResult_AddError(t *testing.T) {
	r := &ValidationResult{}
	r.AddError("nodes[0].template", ErrCodeValidation, "template is required")

	assert.False(t, r.Valid())
	require.Len(t, r.Errors, 1)
	assert.Equal(t, "nodes[0].template", r.Errors[0].Path)
	assert.Equal(t, ErrCodeValidation, r.Errors[0].Code)
	assert.Equal(t, "template is required", r.Errors[0].Message)
	assert.Equal(t, SeverityError, r.Errors[0].Severity)
}

func TestValidationResult_AddWarning(t *testing.T) {
	r := &ValidationResult{}
	r.AddWarning("nodes[1].slice.window_size", ErrCodeValidation, "window larger than thread_dim")

	assert.True(t, r.Valid(), "warnings alone should not make result invalid")
	require.Len(t, r.Warnings, 1)
	assert.Equal(t, SeverityWarning, r.Warnings[0].Severity)
}

func TestValidationResult_Merge(t *testing.T) {
	r1 := &ValidationResult{}
	r1.AddError("/", ErrCodeValidation, "err1")
	r1.AddWarning("/", ErrCodeValidation, "warn1")

	r2 := &ValidationResult{}
	r2.AddError("nodes[0]", ErrCodeCycleDetected, "err2")
	r2.AddWarning("nodes[1]", ErrCodeValidation, "warn2")

	r1.Merge(r2)

	assert.Len(t, r1.Errors, 2)
	assert.Len(t, r1.Warnings, 2)
}

func TestValidationResult_MergeNil(t *testing.T) {
	r := &ValidationResult{}
	r.AddError("/", ErrCodeValidation, "err")
	r.Merge(nil)
	assert.Len(t, r.Errors, 1)
}

func TestValidationResult_ToError_Valid(t *testing.T) {
	r := &ValidationResult{}
	r.AddWarning("/", ErrCodeValidation, "just a warning")
	assert.Nil(t, r.ToError())
}

func TestValidationResult_ToError_SingleError(t *testing.T) {
	r := &ValidationResult{}
	r.AddError("nodes[0].template", ErrCodeValidation, "template is required")

	err := r.ToError()
	require.NotNil(t, err)

	var fe *FftsError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, ErrCodeValidation, fe.Code)
	assert.Equal(t, "template is required", fe.Message)
	assert.Equal(t, 1, fe.Details["error_count"])
}

func TestValidationResult_ToError_MultipleErrors(t *testing.T) {
	r := &ValidationResult{}
	r.AddError("/", ErrCodeValidation, "err1")
	r.AddError("/", ErrCodeValidation, "err2")
	r.AddWarning("/", ErrCodeValidation, "warn1")

	err := r.ToError()
	require.NotNil(t, err)

	var fe *FftsError
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe.Message, "2 errors")
	assert.Equal(t, 2, fe.Details["error_count"])
	assert.Equal(t, 1, fe.Details["warning_count"])
}

func TestValidationResult_ToError_SharedCode(t *testing.T) {
	r := &ValidationResult{}
	r.AddError("nodes[0]", ErrCodeCycleDetected, "cycle a -> b -> a")
	r.AddError("nodes[3]", ErrCodeCycleDetected, "cycle c -> c")

	err := r.ToError()
	assert.True(t, HasCode(err, ErrCodeCycleDetected))
	assert.True(t, r.HasErrorCode(ErrCodeCycleDetected))
	assert.False(t, r.HasErrorCode(ErrCodeMissingTemplate))
}
