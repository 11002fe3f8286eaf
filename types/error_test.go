package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_ErrorString(t *testing.T) {
	t.Parallel()

	e := NewError(ErrFallbackEngaged, "primary loop failed")
	assert.Equal(t, "[FALLBACK_ENGAGED] primary loop failed", e.Error())

	withCause := NewError(ErrProviderFailure, "responder call").WithCause(errors.New("timeout"))
	assert.Equal(t, "[PROVIDER_FAILURE] responder call: timeout", withCause.Error())
}

func TestError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	e := NewError(ErrJudgeDefaulted, "judge call failed").WithCause(cause)
	assert.ErrorIs(t, e, cause)
}

func TestError_IsMatchesByCode(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("wrapped: %w", NewError(ErrNoAgents, "nobody resolved"))
	assert.ErrorIs(t, err, ErrNoAgentsAvailable)
	assert.NotErrorIs(t, err, NewError(ErrAgentSkipped, ""))
}

func TestGetErrorCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ErrSummaryDegraded, GetErrorCode(NewError(ErrSummaryDegraded, "x")))
	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
}
