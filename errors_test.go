package takarakuji

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLotteryError_Error(t *testing.T) {
	err := ErrFetchFailed.WithDetails("GET https://example.com/name.txt")
	assert.Contains(t, err.Error(), string(ErrCodeFetchFailed))
	assert.Contains(t, err.Error(), "GET https://example.com/name.txt")

	plain := ErrDrawNotFound
	assert.Contains(t, plain.Error(), string(ErrCodeDrawNotFound))
}

func TestLotteryError_IsMatchesByCode(t *testing.T) {
	decorated := ErrParseFailed.
		WithDetails("row 3").
		WithSourceURL("https://example.com/a.csv").
		WithCause(fmt.Errorf("boom"))

	assert.ErrorIs(t, decorated, ErrParseFailed)
	assert.NotErrorIs(t, decorated, ErrFetchFailed)
}

func TestLotteryError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := ErrFetchFailed.WithCause(cause)

	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestLotteryError_BuildersDoNotMutate(t *testing.T) {
	base := ErrFetchFailed
	decorated := base.WithDetails("detail").WithSourceURL("https://example.com").WithMetadata("game", "loto6")

	assert.Empty(t, base.Details)
	assert.Empty(t, base.SourceURL)
	assert.Nil(t, base.Metadata)

	assert.Equal(t, "detail", decorated.Details)
	assert.Equal(t, "https://example.com", decorated.SourceURL)
	assert.Equal(t, "loto6", decorated.Metadata["game"])
}

func TestErrorClassPredicates(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		class      ErrorClass
		fetch      bool
		parse      bool
		validation bool
		notFound   bool
	}{
		{name: "fetch", err: ErrFetchFailed, class: ClassFetch, fetch: true},
		{name: "fetch timeout", err: ErrFetchTimeout, class: ClassFetch, fetch: true},
		{name: "rejected is still fetch class", err: ErrFetchRejected, class: ClassFetch, fetch: true},
		{name: "parse", err: ErrParseFailed, class: ClassParse, parse: true},
		{name: "bad cell is parse class", err: ErrBadNumberCell, class: ClassParse, parse: true},
		{name: "validation", err: ErrInvalidTicket, class: ClassValidation, validation: true},
		{name: "not found", err: ErrPeriodNotFound, class: ClassNotFound, notFound: true},
		{name: "plain error is internal", err: fmt.Errorf("boom"), class: ClassInternal},
		{name: "wrapped keeps its class", err: fmt.Errorf("wrapped: %w", ErrParseFailed), class: ClassParse, parse: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.class, ClassOf(tt.err))
			assert.Equal(t, tt.fetch, IsFetchError(tt.err))
			assert.Equal(t, tt.parse, IsParseError(tt.err))
			assert.Equal(t, tt.validation, IsValidationError(tt.err))
			assert.Equal(t, tt.notFound, IsNotFoundError(tt.err))
		})
	}
}

func TestFetchAndParseStayDistinct(t *testing.T) {
	// The operational taxonomy hinges on never conflating "provider is
	// down" with "provider changed its format".
	assert.False(t, IsParseError(ErrFetchFailed))
	assert.False(t, IsFetchError(ErrParseFailed))
	assert.True(t, ErrFetchFailed.Retryable)
	assert.False(t, ErrParseFailed.Retryable)
	assert.False(t, ErrFetchRejected.Retryable, "4xx responses are terminal")
}

func TestDefaultErrorHandler_ShouldRetry(t *testing.T) {
	handler := NewDefaultErrorHandler(NewSilentLogger())

	assert.True(t, handler.ShouldRetry(ErrFetchFailed))
	assert.True(t, handler.ShouldRetry(ErrFetchTimeout))
	assert.False(t, handler.ShouldRetry(ErrFetchRejected))
	assert.False(t, handler.ShouldRetry(ErrParseFailed))
	assert.False(t, handler.ShouldRetry(ErrInvalidTicket))
	assert.True(t, handler.ShouldRetry(fmt.Errorf("dial tcp 10.0.0.1:443: i/o timeout")))
	assert.False(t, handler.ShouldRetry(fmt.Errorf("boom")))
}

func TestDefaultErrorHandler_GetRetryDelay(t *testing.T) {
	handler := NewErrorHandlerWithBackoff(NewSilentLogger(), 100*time.Millisecond, 1*time.Second)

	prev := time.Duration(0)
	for attempt := 1; attempt <= 6; attempt++ {
		delay := handler.GetRetryDelay(attempt, ErrFetchFailed)
		assert.LessOrEqual(t, delay, 1*time.Second, "attempt %d exceeds the cap", attempt)
		assert.Positive(t, delay)
		if attempt <= 3 {
			// Below the cap the curve grows despite jitter.
			assert.Greater(t, delay, prev/2)
		}
		prev = delay
	}
}

func TestErrorRecovery_RetriesUntilSuccess(t *testing.T) {
	handler := NewErrorHandlerWithBackoff(NewSilentLogger(), time.Millisecond, 2*time.Millisecond)
	recovery := NewErrorRecovery(handler, 3, NewSilentLogger())

	attempts := 0
	err := recovery.ExecuteWithRetry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return ErrFetchFailed
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestErrorRecovery_StopsOnNonRetryable(t *testing.T) {
	handler := NewErrorHandlerWithBackoff(NewSilentLogger(), time.Millisecond, 2*time.Millisecond)
	recovery := NewErrorRecovery(handler, 5, NewSilentLogger())

	attempts := 0
	err := recovery.ExecuteWithRetry(context.Background(), func() error {
		attempts++
		return ErrParseFailed
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParseFailed)
	assert.Equal(t, 1, attempts, "parse errors must not be retried")
}

func TestErrorRecovery_ExhaustsBudget(t *testing.T) {
	handler := NewErrorHandlerWithBackoff(NewSilentLogger(), time.Millisecond, 2*time.Millisecond)
	recovery := NewErrorRecovery(handler, 2, NewSilentLogger())

	attempts := 0
	err := recovery.ExecuteWithRetry(context.Background(), func() error {
		attempts++
		return ErrFetchFailed
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.Equal(t, 3, attempts, "one initial attempt plus two retries")
}

func TestErrorRecovery_HonorsCancellation(t *testing.T) {
	handler := NewErrorHandlerWithBackoff(NewSilentLogger(), 50*time.Millisecond, 100*time.Millisecond)
	recovery := NewErrorRecovery(handler, 5, NewSilentLogger())

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := recovery.ExecuteWithRetry(ctx, func() error {
		attempts++
		return ErrFetchFailed
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetchTimeout)
	assert.LessOrEqual(t, attempts, 2)
}
