package takarakuji

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

// ErrorCode identifies a failure condition.
type ErrorCode string

const (
	// System errors (1000-1999)
	ErrCodeSystem          ErrorCode = "TAKARA_1000"
	ErrCodeConfigInvalid   ErrorCode = "TAKARA_1001"
	ErrCodeRedisConnection ErrorCode = "TAKARA_1002"

	// Validation errors (2000-2999)
	ErrCodeInvalidGame       ErrorCode = "TAKARA_2000"
	ErrCodeInvalidTicket     ErrorCode = "TAKARA_2001"
	ErrCodeInvalidPeriod     ErrorCode = "TAKARA_2002"
	ErrCodeInvalidParameters ErrorCode = "TAKARA_2003"

	// Fetch errors (3000-3999)
	ErrCodeFetchFailed        ErrorCode = "TAKARA_3000"
	ErrCodeFetchTimeout       ErrorCode = "TAKARA_3001"
	ErrCodeFetchRejected      ErrorCode = "TAKARA_3002"
	ErrCodeEmptyPayload       ErrorCode = "TAKARA_3003"
	ErrCodeCircuitBreakerOpen ErrorCode = "TAKARA_3004"

	// Parse errors (4000-4999)
	ErrCodeParseFailed   ErrorCode = "TAKARA_4000"
	ErrCodeBadNumberCell ErrorCode = "TAKARA_4001"
	ErrCodeBadDrawTitle  ErrorCode = "TAKARA_4002"
	ErrCodeEmptyPrizeSet ErrorCode = "TAKARA_4003"

	// Not-found errors (5000-5999)
	ErrCodeDrawNotFound   ErrorCode = "TAKARA_5000"
	ErrCodePeriodNotFound ErrorCode = "TAKARA_5001"

	// Internal invariant errors (6000-6999)
	ErrCodePrizeTableBroken ErrorCode = "TAKARA_6000"
)

// ErrorClass groups error codes into the caller-facing failure classes.
// The HTTP layer and the logs route on the class, never on individual codes.
type ErrorClass string

const (
	ClassValidation ErrorClass = "validation"
	ClassFetch      ErrorClass = "fetch"
	ClassParse      ErrorClass = "parse"
	ClassNotFound   ErrorClass = "not_found"
	ClassInternal   ErrorClass = "internal"
)

// ErrorSeverity ranks how loudly a failure should be reported.
type ErrorSeverity string

const (
	SeverityCritical ErrorSeverity = "critical"
	SeverityHigh     ErrorSeverity = "high"
	SeverityMedium   ErrorSeverity = "medium"
	SeverityLow      ErrorSeverity = "low"
)

// LotteryError is the error type used across the checker.
type LotteryError struct {
	Code      ErrorCode      `json:"code"`
	Class     ErrorClass     `json:"class"`
	Message   string         `json:"message"`
	Details   string         `json:"details,omitempty"`
	Severity  ErrorSeverity  `json:"severity"`
	SourceURL string         `json:"source_url,omitempty"`
	Cause     error          `json:"-"`
	Retryable bool           `json:"retryable"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Error implements the error interface.
func (e *LotteryError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap.
func (e *LotteryError) Unwrap() error {
	return e.Cause
}

// Is matches errors by code so sentinel comparisons survive decoration.
func (e *LotteryError) Is(target error) bool {
	if t, ok := target.(*LotteryError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithCause returns a copy carrying the underlying error.
func (e *LotteryError) WithCause(cause error) *LotteryError {
	clone := *e
	clone.Cause = cause
	return &clone
}

// WithDetails returns a copy carrying extra context.
func (e *LotteryError) WithDetails(details string) *LotteryError {
	clone := *e
	clone.Details = details
	return &clone
}

// WithDetailsf is WithDetails with formatting.
func (e *LotteryError) WithDetailsf(format string, args ...any) *LotteryError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// WithSourceURL returns a copy carrying the provider URL involved.
func (e *LotteryError) WithSourceURL(url string) *LotteryError {
	clone := *e
	clone.SourceURL = url
	return &clone
}

// WithMetadata returns a copy with one metadata entry added.
func (e *LotteryError) WithMetadata(key string, value any) *LotteryError {
	clone := *e
	clone.Metadata = make(map[string]any, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		clone.Metadata[k] = v
	}
	clone.Metadata[key] = value
	return &clone
}

// NewValidationError creates a caller-input error. Never retried.
func NewValidationError(code ErrorCode, message string) *LotteryError {
	return &LotteryError{
		Code:     code,
		Class:    ClassValidation,
		Message:  message,
		Severity: SeverityLow,
	}
}

// NewFetchError creates a network-class error. Retryable by default.
func NewFetchError(code ErrorCode, message string) *LotteryError {
	return &LotteryError{
		Code:      code,
		Class:     ClassFetch,
		Message:   message,
		Severity:  SeverityMedium,
		Retryable: true,
	}
}

// NewTerminalFetchError creates a network-class error that must not be
// retried, such as a provider 4xx response.
func NewTerminalFetchError(code ErrorCode, message string) *LotteryError {
	return &LotteryError{
		Code:     code,
		Class:    ClassFetch,
		Message:  message,
		Severity: SeverityMedium,
	}
}

// NewParseError creates a format-drift error. Never retried: the payload
// arrived fine, its shape did not match expectations.
func NewParseError(code ErrorCode, message string) *LotteryError {
	return &LotteryError{
		Code:     code,
		Class:    ClassParse,
		Message:  message,
		Severity: SeverityHigh,
	}
}

// NewNotFoundError creates an error for a period that does not exist yet.
func NewNotFoundError(code ErrorCode, message string) *LotteryError {
	return &LotteryError{
		Code:     code,
		Class:    ClassNotFound,
		Message:  message,
		Severity: SeverityLow,
	}
}

// NewInternalError creates a programmer-error-class invariant violation.
func NewInternalError(code ErrorCode, message string) *LotteryError {
	return &LotteryError{
		Code:     code,
		Class:    ClassInternal,
		Message:  message,
		Severity: SeverityCritical,
	}
}

// Predefined error instances.
var (
	// System
	ErrSystemError           = NewInternalError(ErrCodeSystem, "system error occurred")
	ErrConfigInvalid         = NewInternalError(ErrCodeConfigInvalid, "configuration is invalid")
	ErrRedisConnectionFailed = &LotteryError{
		Code: ErrCodeRedisConnection, Class: ClassInternal,
		Message: "Redis connection failed", Severity: SeverityMedium, Retryable: true,
	}

	// Validation
	ErrInvalidGame       = NewValidationError(ErrCodeInvalidGame, "unsupported game")
	ErrInvalidTicket     = NewValidationError(ErrCodeInvalidTicket, "ticket input is not valid")
	ErrInvalidPeriod     = NewValidationError(ErrCodeInvalidPeriod, "draw period must be a positive number")
	ErrInvalidParameters = NewValidationError(ErrCodeInvalidParameters, "invalid parameters provided")

	// Fetch
	ErrFetchFailed        = NewFetchError(ErrCodeFetchFailed, "provider request failed")
	ErrFetchTimeout       = NewFetchError(ErrCodeFetchTimeout, "provider request timed out")
	ErrFetchRejected      = NewTerminalFetchError(ErrCodeFetchRejected, "provider rejected the request")
	ErrEmptyPayload       = NewTerminalFetchError(ErrCodeEmptyPayload, "provider returned an empty payload")
	ErrCircuitBreakerOpen = NewFetchError(ErrCodeCircuitBreakerOpen, "provider circuit breaker is open")

	// Parse
	ErrParseFailed   = NewParseError(ErrCodeParseFailed, "draw payload does not match the expected format")
	ErrBadNumberCell = NewParseError(ErrCodeBadNumberCell, "draw number cell is not numeric")
	ErrBadDrawTitle  = NewParseError(ErrCodeBadDrawTitle, "draw period missing from title")
	ErrEmptyPrizeSet = NewParseError(ErrCodeEmptyPrizeSet, "no prize tiers found in payload")

	// Not found
	ErrDrawNotFound   = NewNotFoundError(ErrCodeDrawNotFound, "draw data not found")
	ErrPeriodNotFound = NewNotFoundError(ErrCodePeriodNotFound, "requested period is not published")

	// Internal invariants
	ErrPrizeTableBroken = NewInternalError(ErrCodePrizeTableBroken, "prize table is missing an amount for a matched tier")
)

// ClassOf reports the failure class of an error, ClassInternal for
// anything outside the checker's taxonomy.
func ClassOf(err error) ErrorClass {
	var lerr *LotteryError
	if errors.As(err, &lerr) {
		return lerr.Class
	}
	return ClassInternal
}

// IsFetchError reports whether err is a network-class failure.
func IsFetchError(err error) bool { return ClassOf(err) == ClassFetch }

// IsParseError reports whether err signals provider format drift.
func IsParseError(err error) bool { return ClassOf(err) == ClassParse }

// IsValidationError reports whether err stems from caller input.
func IsValidationError(err error) bool { return ClassOf(err) == ClassValidation }

// IsNotFoundError reports whether err means the requested draw is absent.
func IsNotFoundError(err error) bool { return ClassOf(err) == ClassNotFound }

// ErrorHandler decides retry policy and records failures.
type ErrorHandler interface {
	HandleError(ctx context.Context, err error) error
	ShouldRetry(err error) bool
	GetRetryDelay(attempt int, err error) time.Duration
}

// DefaultErrorHandler retries retryable errors with exponential backoff
// and jitter.
type DefaultErrorHandler struct {
	logger        Logger
	baseDelay     time.Duration
	maxDelay      time.Duration
	backoffFactor float64
}

// NewDefaultErrorHandler creates a handler with the default backoff curve.
func NewDefaultErrorHandler(logger Logger) *DefaultErrorHandler {
	return NewErrorHandlerWithBackoff(logger, DefaultRetryInterval, 30*time.Second)
}

// NewErrorHandlerWithBackoff creates a handler with a custom backoff curve.
func NewErrorHandlerWithBackoff(logger Logger, baseDelay, maxDelay time.Duration) *DefaultErrorHandler {
	if baseDelay <= 0 {
		baseDelay = DefaultRetryInterval
	}
	if maxDelay < baseDelay {
		maxDelay = baseDelay
	}
	return &DefaultErrorHandler{
		logger:        logger,
		baseDelay:     baseDelay,
		maxDelay:      maxDelay,
		backoffFactor: 2.0,
	}
}

// HandleError normalizes err into a LotteryError and logs it by severity.
func (h *DefaultErrorHandler) HandleError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	var lerr *LotteryError
	if !errors.As(err, &lerr) {
		lerr = ErrSystemError.WithDetails(err.Error()).WithCause(err)
	}

	h.logError(lerr)
	return lerr
}

// ShouldRetry reports whether the operation may be attempted again.
func (h *DefaultErrorHandler) ShouldRetry(err error) bool {
	var lerr *LotteryError
	if errors.As(err, &lerr) {
		return lerr.Retryable
	}
	return IsRetryableError(err)
}

// GetRetryDelay computes the backoff delay for the given attempt.
func (h *DefaultErrorHandler) GetRetryDelay(attempt int, err error) time.Duration {
	if attempt <= 0 {
		return h.baseDelay
	}

	delay := time.Duration(float64(h.baseDelay) * math.Pow(h.backoffFactor, float64(attempt-1)))

	// Jitter of +/-25% keeps concurrent retries from synchronizing.
	jitter := time.Duration(float64(delay) * 0.25 * (2*rand.Float64() - 1))
	delay += jitter

	if delay > h.maxDelay {
		delay = h.maxDelay
	}
	return delay
}

func (h *DefaultErrorHandler) logError(err *LotteryError) {
	switch err.Class {
	case ClassParse:
		// Format drift needs its own alerting trail, distinct from
		// network failures.
		h.logger.Error("format drift: %s (source=%s)", err.Error(), err.SourceURL)
	case ClassFetch:
		h.logger.Error("provider unreachable: %s (source=%s)", err.Error(), err.SourceURL)
	case ClassValidation:
		h.logger.Debug("rejected input: %s", err.Error())
	case ClassNotFound:
		h.logger.Info("draw not available: %s", err.Error())
	default:
		h.logger.Error("internal error: %s", err.Error())
	}
}

// IsRetryableError checks an arbitrary error for transient network symptoms.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"network is unreachable",
		"temporary failure",
		"server closed",
		"broken pipe",
		"i/o timeout",
		"dial tcp",
		"read tcp",
		"write tcp",
		"connection timed out",
		"no route to host",
		"host is down",
		"connection aborted",
		"socket is not connected",
		"operation timed out",
		"redis: connection pool timeout",
		"redis: client is closed",
		"context deadline exceeded",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// ErrorRecovery runs operations under a bounded retry budget.
type ErrorRecovery struct {
	handler    ErrorHandler
	maxRetries int
	logger     Logger
}

// NewErrorRecovery creates a retry executor. maxRetries counts the
// attempts after the first one.
func NewErrorRecovery(handler ErrorHandler, maxRetries int, logger Logger) *ErrorRecovery {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if maxRetries > MaxFetchRetries {
		maxRetries = MaxFetchRetries
	}
	return &ErrorRecovery{
		handler:    handler,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// ExecuteWithRetry runs operation until it succeeds, its error becomes
// non-retryable, or the retry budget is exhausted. The final error is
// returned as-is so the caller still sees its class.
func (r *ErrorRecovery) ExecuteWithRetry(ctx context.Context, operation func() error) error {
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ErrFetchTimeout.WithDetails("operation cancelled").WithCause(ctx.Err())
		default:
		}

		err := operation()
		if err == nil {
			if attempt > 0 {
				r.logger.Info("operation succeeded after %d retries", attempt)
			}
			return nil
		}

		lastErr = r.handler.HandleError(ctx, err)

		if !r.handler.ShouldRetry(lastErr) {
			r.logger.Debug("error is not retryable: %v", lastErr)
			break
		}

		if attempt < r.maxRetries {
			delay := r.handler.GetRetryDelay(attempt+1, lastErr)
			r.logger.Debug("retrying in %v (attempt %d/%d)", delay, attempt+1, r.maxRetries)

			select {
			case <-ctx.Done():
				return ErrFetchTimeout.WithDetails("operation cancelled during retry").WithCause(ctx.Err())
			case <-time.After(delay):
			}
		}
	}

	return lastErr
}
