package errs_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petasbytes/recall-agent/internal/errs"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := errs.ThreadMismatch("threadId", "B", "A")
	require.ErrorIs(t, err, errs.ErrThreadMismatch)
	assert.NotErrorIs(t, err, errs.ErrInvalidMessage)

	wrapped := fmt.Errorf("adding: %w", err)
	assert.ErrorIs(t, wrapped, errs.ErrThreadMismatch)
	assert.Equal(t, "A", err.Details["got"])
}

func TestError_UnwrapsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := errs.PersistenceFailure("t1", cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, errs.ErrPersistenceFailure)
	assert.Contains(t, err.Error(), "disk full")
	assert.Contains(t, err.Error(), errs.CodePersistenceFailure)
}

func TestModelCallFailure_CarriesIdentifiers(t *testing.T) {
	err := errs.ModelCallFailure("claude", "run-1", "thread-1", errors.New("boom"))

	var e *errs.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "claude", e.Details["model"])
	assert.Equal(t, "run-1", e.Details["run_id"])
	assert.Equal(t, "thread-1", e.Details["thread_id"])
}

func TestSentinelsAreNotMutatedByConstructors(t *testing.T) {
	_ = errs.CallbackFailure("onStepFinish", "r", errors.New("x"))
	assert.Nil(t, errs.ErrCallbackFailure.Cause)
	assert.Nil(t, errs.ErrCallbackFailure.Details)
}
