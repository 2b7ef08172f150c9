package errs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errSentinel = errors.New("invalid_quantity")

func TestKindOfWalksWrappedChain(t *testing.T) {
	err := fmt.Errorf("compute: %w", Validation(errSentinel, "quantity must be positive"))

	assert.Equal(t, KindValidation, KindOf(err))
	assert.True(t, IsValidation(err))
	assert.True(t, errors.Is(err, errSentinel))
	assert.False(t, IsRetryable(err))
}

func TestKindOfUnknownErrorIsInternal(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestTransientIsRetryable(t *testing.T) {
	err := Transient(context.DeadlineExceeded, "insert invoice")
	assert.True(t, IsRetryable(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, http.StatusServiceUnavailable, MetadataFor(KindOf(err)).HTTPStatus)
}

func TestCreationFailedErrorKeepsLastCause(t *testing.T) {
	last := Transient(context.DeadlineExceeded, "insert invoice")
	err := error(&CreationFailedError{OrderID: "42", Attempts: 3, Last: last})

	assert.Equal(t, KindCreationFailed, KindOf(err))
	var failed *CreationFailedError
	assert.True(t, errors.As(err, &failed))
	assert.Equal(t, 3, failed.Attempts)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestCodeFallsBackToKind(t *testing.T) {
	assert.Equal(t, "conflict", New(KindConflict, "", "").Code())
	assert.Equal(t, "invalid_quantity", Validation(errSentinel, "").Code())
}

func TestWrapKeepsDriverTextOutOfCode(t *testing.T) {
	err := Transient(errors.New("dial tcp 10.0.0.5:5432: connect: connection refused"), "insert invoice")
	assert.Equal(t, string(KindTransientStore), err.Code())
	assert.Contains(t, err.Error(), "connection refused")
}
