package errors_test

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/topk-planner/pkg/errors"
)

func TestNew_FieldsAreSetCorrectly(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		code    errors.ErrorCode
		message string
	}{
		{"internal error", errors.ErrCodeInternal, "unexpected failure"},
		{"invalid config", errors.ErrCodeInvalidConfig, "top_k must be >= 1"},
		{"catalog not found", errors.ErrCodeCatalogNotFound, "catalog gym-2 not found"},
		{"oracle", errors.ErrCodeOracleInternal, "solver crashed"},
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
		})
	}
}

func TestNew_StackMentionsCaller(t *testing.T) {
	t.Parallel()

	ae := errors.New(errors.ErrCodeInternal, "test")
	assert.Contains(t, ae.Stack, "errors_test.go")
}

func TestNewf(t *testing.T) {
	t.Parallel()

	ae := errors.Newf(errors.ErrCodeInvalidConfig, "unknown item %q", "Rowing")
	assert.Equal(t, `unknown item "Rowing"`, ae.Message)
}

func TestWrap_NilErrReturnsNil(t *testing.T) {
	t.Parallel()

	assert.Nil(t, errors.Wrap(nil, errors.ErrCodeInternal, "ignored"))
}

func TestWrap_CauseChainIsPreserved(t *testing.T) {
	t.Parallel()

	root := stderrors.New("connection refused")
	ae := errors.Wrap(root, errors.ErrCodeDatabaseError, "load catalog")

	require.NotNil(t, ae)
	assert.True(t, stderrors.Is(ae, root))
	assert.Equal(t, root, stderrors.Unwrap(ae))
}

func TestWrap_UnknownCodeInheritsInner(t *testing.T) {
	t.Parallel()

	inner := errors.InvalidConfig("negative budget")
	outer := errors.Wrap(fmt.Errorf("request 7: %w", inner), errors.CodeUnknown, "recommend")

	assert.Equal(t, errors.ErrCodeInvalidConfig, outer.Code)
}

func TestError_Format(t *testing.T) {
	t.Parallel()

	ae := errors.New(errors.ErrCodeInvalidConfig, "unknown override id")
	assert.Equal(t, "[PLAN_001] unknown override id", ae.Error())

	withDetail := ae.WithDetail("id=Rowing")
	assert.Equal(t, "[PLAN_001] unknown override id: id=Rowing", withDetail.Error())
	assert.Empty(t, ae.Detail, "WithDetail must not mutate the receiver")
}

func TestWithCause(t *testing.T) {
	t.Parallel()

	cause := stderrors.New("boom")
	ae := errors.Internal("failed").WithCause(cause)
	assert.True(t, stderrors.Is(ae, cause))

	var nilErr *errors.AppError
	assert.Nil(t, nilErr.WithCause(cause))
	assert.Nil(t, nilErr.WithDetail("x"))
}

func TestIsCode_WalksChain(t *testing.T) {
	t.Parallel()

	base := errors.New(errors.ErrCodeOracleInternal, "bad model")
	wrapped := fmt.Errorf("round 2: %w", errors.Wrap(base, errors.ErrCodeInternal, "generate"))

	assert.True(t, errors.IsCode(wrapped, errors.ErrCodeInternal))
	assert.True(t, errors.IsCode(wrapped, errors.ErrCodeOracleInternal))
	assert.False(t, errors.IsCode(wrapped, errors.ErrCodeInvalidConfig))
	assert.False(t, errors.IsCode(nil, errors.ErrCodeInternal))
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		err      error
		expected bool
	}{
		{"generic", errors.NotFound("missing"), true},
		{"catalog", errors.New(errors.ErrCodeCatalogNotFound, "no such catalog"), true},
		{"wrapped catalog", fmt.Errorf("get: %w", errors.New(errors.ErrCodeCatalogNotFound, "x")), true},
		{"invalid config", errors.InvalidConfig("bad"), false},
		{"plain", stderrors.New("not found"), false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, errors.IsNotFound(tc.err))
		})
	}
}

func TestGetCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, errors.CodeOK, errors.GetCode(nil))
	assert.Equal(t, errors.CodeUnknown, errors.GetCode(stderrors.New("plain")))
	assert.Equal(t, errors.ErrCodeInvalidConfig, errors.GetCode(errors.InvalidConfig("x")))
	assert.True(t, errors.IsInvalidConfig(fmt.Errorf("ctx: %w", errors.InvalidConfig("x"))))
}

func TestConvenienceConstructors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  *errors.AppError
		code errors.ErrorCode
	}{
		{errors.InvalidConfig("a"), errors.ErrCodeInvalidConfig},
		{errors.NotFound("b"), errors.ErrCodeNotFound},
		{errors.InvalidParam("c"), errors.ErrCodeBadRequest},
		{errors.Internal("d"), errors.ErrCodeInternal},
		{errors.Conflict("e"), errors.ErrCodeConflict},
		{errors.RateLimit("f"), errors.ErrCodeTooManyRequests},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, tc.err.Code)
		assert.True(t, strings.HasPrefix(tc.err.Error(), "["+string(tc.code)+"]"))
	}
}

func TestAs(t *testing.T) {
	t.Parallel()

	var target *errors.AppError
	err := fmt.Errorf("outer: %w", errors.Conflict("dup"))
	require.True(t, errors.As(err, &target))
	assert.Equal(t, errors.ErrCodeConflict, target.Code)
	assert.True(t, errors.Is(err, target))
}
