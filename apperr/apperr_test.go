package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

func TestKindMatching(t *testing.T) {
	err := NotFound("registration %s not found", "r1")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrState))
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, "registration r1 not found", MessageOf(err))

	wrapped := fmt.Errorf("launch: %w", err)
	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.Equal(t, KindNotFound, KindOf(wrapped))
}

func TestStorageUnwraps(t *testing.T) {
	cause := errors.New("disk full")
	err := Storage(cause, "extract package")
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrStorage)
	assert.Equal(t, "extract package: disk full", err.Error())
}

func TestKindOfPlainError(t *testing.T) {
	err := errors.New("boom")
	assert.Equal(t, Kind(""), KindOf(err))
	assert.Equal(t, "boom", MessageOf(err))
}

func TestInvalidNamesFields(t *testing.T) {
	type input struct {
		Title string `validate:"required"`
		Count int    `validate:"gte=1"`
	}
	err := Invalid("input", validator.New().Struct(input{}))
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "input invalid: input.Title failed required; input.Count failed gte", MessageOf(err))
}
