package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptimizerError_Format(t *testing.T) {
	err := NewTradeError("backtest", 7, ErrCandleNotFound).WithContext("time", "2024-01-01 00:00")
	assert.Equal(t,
		"[TRADE:backtest] simulate: trade skipped (time=2024-01-01 00:00, trade=7): timestamp not found in candle series",
		err.Error())
}

func TestOptimizerError_Unwrap(t *testing.T) {
	wrapped := fmt.Errorf("replay: %w", NewTradeError("backtest", 1, ErrCandleNotFound))
	assert.True(t, stderrors.Is(wrapped, ErrCandleNotFound))
	assert.True(t, IsCategory(wrapped, ErrorCategoryTrade))
	assert.False(t, IsCategory(wrapped, ErrorCategoryData))

	var oe *OptimizerError
	require.True(t, stderrors.As(wrapped, &oe))
	assert.Equal(t, 1, oe.Context["trade"])

	assert.True(t, stderrors.Is(NewParameterError("optimization", "validate", "sl < 0"), ErrInvalidParams))
	assert.False(t, IsCategory(stderrors.New("plain"), ErrorCategoryTrade))
}

func TestWrapError_Nil(t *testing.T) {
	assert.Nil(t, WrapError(nil, ErrorCategoryData, "data", "load"))
}

func TestCategories(t *testing.T) {
	cases := []struct {
		err       *OptimizerError
		category  ErrorCategory
		fatal     bool
		retryable bool
	}{
		{NewDataError("data", "load", ErrNoTrades), ErrorCategoryData, true, false},
		{NewConfigurationError("config", "validate", "bad"), ErrorCategoryConfiguration, true, false},
		{NewEvaluationError("optimization", "evaluate", stderrors.New("boom")), ErrorCategoryEvaluation, false, false},
		{NewTimeoutError("optimization", "evaluate", ErrEvaluationTimeout), ErrorCategoryTimeout, false, true},
		{NewStorageError("storage", "save", stderrors.New("locked")), ErrorCategoryStorage, false, true},
		{NewNumericError("backtest", "pnl", "NaN"), ErrorCategoryNumeric, false, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.category), func(t *testing.T) {
			assert.Equal(t, tc.category, tc.err.Category)
			assert.Equal(t, tc.fatal, tc.err.IsFatal())
			assert.Equal(t, tc.retryable, tc.err.IsRetryable())
		})
	}
}
