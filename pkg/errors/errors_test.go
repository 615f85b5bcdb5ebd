package errors_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coffererr "github.com/mrz1836/coffer/pkg/errors"
)

var (
	errInner = errors.New("inner")
	errPlain = errors.New("plain error")
	errRPC   = errors.New("execution reverted")
)

func TestExitCodes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"success", nil, coffererr.ExitSuccess},
		{"general error", coffererr.ErrGeneral, coffererr.ExitGeneral},
		{"invalid amount", coffererr.ErrInvalidAmount, coffererr.ExitInput},
		{"decryption", coffererr.ErrDecryptionFailed, coffererr.ExitAuth},
		{"wallet not found", coffererr.ErrWalletNotFound, coffererr.ExitNotFound},
		{"insufficient balance", coffererr.ErrInsufficientBalance, coffererr.ExitPermission},
		{"rejected", coffererr.ErrTxRejected, coffererr.ExitChain},
		{"reverted", coffererr.ErrConfirmationFailed, coffererr.ExitChain},
		{"plain error", errPlain, coffererr.ExitGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, coffererr.ExitCode(tt.err))
		})
	}
}

func TestSentinelsSurviveWrap(t *testing.T) {
	t.Parallel()
	sentinels := []*coffererr.CofferError{
		coffererr.ErrInvalidAmount,
		coffererr.ErrInsufficientBalance,
		coffererr.ErrPreparationFailed,
		coffererr.ErrTxRejected,
		coffererr.ErrConfirmationFailed,
		coffererr.ErrTimeout,
		coffererr.ErrTxInFlight,
		coffererr.ErrNotEnabled,
		coffererr.ErrNotConnected,
	}
	for _, s := range sentinels {
		t.Run(s.Code, func(t *testing.T) {
			t.Parallel()
			wrapped := coffererr.Wrap(s, "deposit")
			require.ErrorIs(t, wrapped, s)
			assert.Equal(t, s.ExitCode, coffererr.ExitCode(wrapped))
			assert.Equal(t, s.Code, coffererr.Code(wrapped))
		})
	}
}

func TestWithCause(t *testing.T) {
	t.Parallel()
	err := coffererr.WithCause(coffererr.ErrPreparationFailed, errRPC)

	require.ErrorIs(t, err, coffererr.ErrPreparationFailed)
	require.ErrorIs(t, err, errRPC)
	assert.Equal(t, "transaction preparation failed: execution reverted", err.Error())
	assert.NotErrorIs(t, err, coffererr.ErrTxRejected)
}

func TestCofferError_Error(t *testing.T) {
	t.Parallel()

	t.Run("message only", func(t *testing.T) {
		t.Parallel()
		err := &coffererr.CofferError{Code: "TEST", Message: "something failed"}
		assert.Equal(t, "something failed", err.Error())
	})

	t.Run("with details sorted", func(t *testing.T) {
		t.Parallel()
		err := &coffererr.CofferError{
			Code:    "TEST",
			Message: "failed",
			Details: map[string]string{"beta": "2", "alpha": "1"},
		}
		assert.Equal(t, "failed (alpha: 1) (beta: 2)", err.Error())
	})

	t.Run("with details and cause", func(t *testing.T) {
		t.Parallel()
		err := &coffererr.CofferError{
			Code:    "TEST",
			Message: "outer",
			Details: map[string]string{"key": "val"},
			Cause:   errInner,
		}
		assert.Equal(t, "outer (key: val): inner", err.Error())
		assert.Equal(t, errInner, err.Unwrap())
	})
}

func TestCofferError_Is(t *testing.T) {
	t.Parallel()
	a := &coffererr.CofferError{Code: "SAME_CODE", Message: "a"}
	b := &coffererr.CofferError{Code: "SAME_CODE", Message: "b"}
	c := &coffererr.CofferError{Code: "OTHER", Message: "c"}

	assert.True(t, a.Is(b))
	assert.False(t, a.Is(c))
	assert.False(t, a.Is(errPlain))
}

func TestWrap_edgeCases(t *testing.T) {
	t.Parallel()

	t.Run("nil input", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, coffererr.Wrap(nil, "context"))
	})

	t.Run("non-CofferError", func(t *testing.T) {
		t.Parallel()
		wrapped := coffererr.Wrap(errPlain, "context")
		var ce *coffererr.CofferError
		require.ErrorAs(t, wrapped, &ce)
		assert.Equal(t, "GENERAL_ERROR", ce.Code)
		assert.Equal(t, "context", ce.Message)
		assert.Equal(t, errPlain, ce.Cause)
	})

	t.Run("field preservation", func(t *testing.T) {
		t.Parallel()
		original := coffererr.WithDetails(coffererr.ErrInsufficientBalance, map[string]string{"ceiling": "1.5"})
		original = coffererr.WithSuggestion(original, "withdraw less")
		wrapped := coffererr.Wrap(original, "withdraw %s", "2")

		var ce *coffererr.CofferError
		require.ErrorAs(t, wrapped, &ce)
		assert.Equal(t, "INSUFFICIENT_BALANCE", ce.Code)
		assert.Equal(t, map[string]string{"ceiling": "1.5"}, ce.Details)
		assert.Equal(t, "withdraw less", ce.Suggestion)
		assert.Contains(t, wrapped.Error(), "withdraw 2")
	})
}

func TestWithDetailsAndSuggestion_nonCoffer(t *testing.T) {
	t.Parallel()
	assert.NoError(t, coffererr.WithDetails(nil, map[string]string{"k": "v"}))
	assert.NoError(t, coffererr.WithSuggestion(nil, "x"))

	withDetails := coffererr.WithDetails(errPlain, map[string]string{"k": "v"})
	var ce *coffererr.CofferError
	require.ErrorAs(t, withDetails, &ce)
	assert.Equal(t, "plain error", ce.Message)
	assert.Equal(t, errPlain, ce.Cause)

	withSuggestion := coffererr.WithSuggestion(errPlain, "try this")
	require.ErrorAs(t, withSuggestion, &ce)
	assert.Equal(t, "try this", ce.Suggestion)
}

func TestNew(t *testing.T) {
	t.Parallel()
	err := coffererr.New("CUSTOM_ERROR", "custom error message")
	assert.Equal(t, "custom error message", err.Error())
	assert.Equal(t, coffererr.ExitGeneral, coffererr.ExitCode(err))
}
