package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCodes(t *testing.T) {
	assert.Equal(t, 400, NewValidation("bad").StatusCode())
	assert.Equal(t, 404, NewNotFound("missing").StatusCode())
	assert.Equal(t, 500, NewStore("broken", errors.New("disk on fire")).StatusCode())
}

func TestAs_UnwrapsThroughWrapping(t *testing.T) {
	inner := NewNotFound("Loan not found.")
	wrapped := fmt.Errorf("handling request: %w", inner)

	e := As(wrapped)
	require.NotNil(t, e)
	assert.Equal(t, NotFound, e.Kind)
	assert.Equal(t, "Loan not found.", e.Msg)
}

func TestAs_NonAppError(t *testing.T) {
	assert.Nil(t, As(errors.New("plain")))
}

func TestError_IncludesCause(t *testing.T) {
	err := NewStore("Server error", errors.New("connection reset"))
	assert.Contains(t, err.Error(), "connection reset")
	assert.EqualError(t, errors.Unwrap(err), "connection reset")
}
