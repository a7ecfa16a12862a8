package schema

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFftsError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  *FftsError
		want string
	}{
		{"plain", NewError(ErrCodeValidation, "bad input"), "[VALIDATION_ERROR] bad input"},
		{"node", NewError(ErrCodeMissingTemplate, "no template").WithNode("conv1"), "[MISSING_TEMPLATE] node conv1: no template"},
		{"context", NewError(ErrCodeDanglingSuccessor, "id 9").WithContext(3), "[DANGLING_SUCCESSOR] context 3: id 9"},
		{"both", NewErrorf(ErrCodeShapeMismatch, "got %d", 2).WithNode("mm").WithContext(0), "[SHAPE_MISMATCH] node mm (context 0): got 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestFftsError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := NewError(ErrCodeStore, "save build").WithCause(cause)

	assert.ErrorIs(t, err, cause)

	wrapped := fmt.Errorf("build: %w", err)
	var fe *FftsError
	require.ErrorAs(t, wrapped, &fe)
	assert.Equal(t, ErrCodeStore, fe.Code)
	assert.True(t, HasCode(wrapped, ErrCodeStore))
	assert.False(t, HasCode(wrapped, ErrCodeNotFound))
	assert.False(t, HasCode(cause, ErrCodeStore))
}

func TestFftsError_WithDetails(t *testing.T) {
	err := NewError(ErrCodeOverflowChainExhausted, "chain too long").
		WithDetails(map[string]any{"bound": 64})
	assert.Equal(t, 64, err.Details["bound"])
}
