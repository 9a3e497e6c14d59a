package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/substance-resolver/pkg/errors"
)

func TestNew_FieldsAreSetCorrectly(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		code    errors.ErrorCode
		message string
	}{
		{"internal error", errors.CodeInternal, "unexpected failure"},
		{"store unavailable", errors.ErrCodeStoreUnavailable, "reference store not loaded"},
		{"invalid param", errors.CodeInvalidParam, "query parameter is required"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ae := errors.New(tc.code, tc.message)

			require.NotNil(t, ae)
			assert.Equal(t, tc.code, ae.Code)
			assert.Equal(t, tc.message, ae.Message)
			assert.Empty(t, ae.Detail)
			assert.Nil(t, ae.Cause)
			assert.NotEmpty(t, ae.Stack)
		})
	}
}

func TestAppError_ErrorFormat(t *testing.T) {
	ae := errors.New(errors.ErrCodeSnapshotDecode, "bad snapshot")
	assert.Equal(t, "[SUB_004] bad snapshot", ae.Error())

	withDetail := ae.WithDetail("path=/tmp/ref.yaml")
	assert.Equal(t, "[SUB_004] bad snapshot: path=/tmp/ref.yaml", withDetail.Error())
	assert.Empty(t, ae.Detail, "WithDetail must not mutate the receiver")

	withCause := withDetail.WithCause(fmt.Errorf("yaml: line 3"))
	assert.Equal(t, "[SUB_004] bad snapshot: path=/tmp/ref.yaml: yaml: line 3", withCause.Error())
}

func TestAppError_NilReceiverBuilders(t *testing.T) {
	var ae *errors.AppError
	assert.Nil(t, ae.WithDetail("x"))
	assert.Nil(t, ae.WithCause(fmt.Errorf("x")))
}

func TestWrap(t *testing.T) {
	t.Run("nil error yields nil", func(t *testing.T) {
		assert.Nil(t, errors.Wrap(nil, errors.CodeInternal, "ignored"))
	})

	t.Run("cause is reachable through errors.Is", func(t *testing.T) {
		sentinel := stderrors.New("connection refused")
		ae := errors.Wrap(sentinel, errors.ErrCodeDatabaseError, "query failed")
		require.NotNil(t, ae)
		assert.True(t, stderrors.Is(ae, sentinel))
		assert.Equal(t, errors.ErrCodeDatabaseError, ae.Code)
	})

	t.Run("unknown code keeps the inner code", func(t *testing.T) {
		inner := errors.New(errors.ErrCodeStoreIntegrity, "duplicate reference id")
		ae := errors.Wrap(inner, errors.CodeUnknown, "building store")
		assert.Equal(t, errors.ErrCodeStoreIntegrity, ae.Code)
	})
}

func TestIsCode(t *testing.T) {
	inner := errors.New(errors.ErrCodeUpstreamNotFound, "no compound")
	outer := errors.Wrap(inner, errors.ErrCodeUpstreamLookupFailed, "lookup")
	wrapped := fmt.Errorf("batch: %w", outer)

	assert.True(t, errors.IsCode(wrapped, errors.ErrCodeUpstreamLookupFailed))
	assert.True(t, errors.IsCode(wrapped, errors.ErrCodeUpstreamNotFound))
	assert.False(t, errors.IsCode(wrapped, errors.CodeInternal))
	assert.False(t, errors.IsCode(nil, errors.CodeInternal))
	assert.True(t, errors.IsNotFound(wrapped))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, errors.CodeOK, errors.GetCode(nil))
	assert.Equal(t, errors.CodeUnknown, errors.GetCode(stderrors.New("plain")))
	assert.Equal(t, errors.ErrCodeCacheError, errors.GetCode(errors.New(errors.ErrCodeCacheError, "x")))
}

func TestFactories(t *testing.T) {
	assert.Equal(t, errors.CodeNotFound, errors.NotFound("x").Code)
	assert.Equal(t, errors.CodeInvalidParam, errors.InvalidParam("x").Code)
	assert.Equal(t, errors.CodeInternal, errors.Internal("x").Code)
	assert.Equal(t, 503, errors.Unavailable("x").HTTPStatus())
}
