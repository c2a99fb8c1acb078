package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationErrorMatchesInvalidInput(t *testing.T) {
	err := Wrap(NewValidationError("vix", "must be between 0 and 100", 140), "set override")

	assert.True(t, Is(err, ErrInvalidInput))

	var verr *ValidationError
	assert.True(t, As(err, &verr))
	assert.Equal(t, "vix", verr.Field)
	assert.Contains(t, err.Error(), "must be between 0 and 100")
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "context"))
	assert.NoError(t, Wrapf(nil, "context %d", 1))
}

func TestMultiError(t *testing.T) {
	var m MultiError
	assert.NoError(t, m.ToError())

	m.Add(nil)
	m.Add(ErrMalformedValue)
	m.Add(fmt.Errorf("second: %w", ErrNotFound))

	err := m.ToError()
	assert.Error(t, err)
	assert.Len(t, m.Errors, 2)
	assert.Contains(t, err.Error(), "multiple errors (2)")
}

func TestContextTagsMerge(t *testing.T) {
	ctx := ContextWithTags(context.Background(), map[string]string{"component": "evaluator"})
	ctx = ContextWithTags(ctx, map[string]string{"trading_date": "2026-10-19"})

	assert.Equal(t, map[string]string{
		"component":    "evaluator",
		"trading_date": "2026-10-19",
	}, TagsFromContext(ctx))
	assert.Nil(t, TagsFromContext(context.Background()))
}
