package errors

import (
	"database/sql"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorWrapsUnknownErrors(t *testing.T) {
	err := FromError(sql.ErrConnDone)
	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestIsMatchesByCodeThroughWrapping(t *testing.T) {
	conflict := Clone(ErrConflict, "proposal already decided")
	wrapped := fmt.Errorf("approve: %w", conflict)

	assert.True(t, Is(wrapped, ErrConflict))
	assert.False(t, Is(wrapped, ErrForbidden))
	assert.False(t, Is(nil, ErrConflict))
}

func TestCloneKeepsOriginalMessage(t *testing.T) {
	clone := Clone(ErrIntegrity, "")
	assert.Equal(t, ErrIntegrity.Message, clone.Message)
	assert.NotSame(t, ErrIntegrity, clone)
}
