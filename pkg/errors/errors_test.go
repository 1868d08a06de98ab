package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneKeepsIdentity(t *testing.T) {
	err := Clone(ErrNotFound, "division not found")
	require.Equal(t, "division not found", err.Message)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "resource not found", ErrNotFound.Message)
}

func TestWithFieldsCopiesMap(t *testing.T) {
	fields := map[string]string{"name": "The name field is required."}
	err := WithFields(ErrValidation, fields)
	fields["name"] = "changed"

	require.Equal(t, "The name field is required.", err.Fields["name"])
	assert.Nil(t, ErrValidation.Fields)
	assert.Equal(t, http.StatusUnprocessableEntity, err.Status)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	raw := fmt.Errorf("boom")
	appErr := FromError(raw)
	require.NotNil(t, appErr)
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.ErrorIs(t, appErr, raw)

	wrapped := fmt.Errorf("outer: %w", ErrQueueFull)
	assert.Equal(t, ErrQueueFull, FromError(wrapped))
	assert.Nil(t, FromError(nil))
}
