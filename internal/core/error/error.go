package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "redis key not found"

	UnknownToolMessage     = "unknown tool"
	MissingTextMessage     = "This tool needs existing lyrics to work with. Write or paste some lyrics first."
	NetworkErrorMessage    = "Something went wrong while contacting the assistant. Please try again."
	RateLimitMessage       = "Too many requests right now. Please wait a moment and try again."
	PaymentRequiredMessage = "You have run out of AI credits. Top up your workspace to keep going."
)

// Kinds of failure surfaced by the tool invoker. Match them with errors.Is.
var (
	ErrUnknownTool     = errors.New("unknown tool")
	ErrMissingText     = errors.New("existing text required")
	ErrNetwork         = errors.New("network error")
	ErrRateLimited     = errors.New("rate limited")
	ErrPaymentRequired = errors.New("payment required")
)

// AppError wraps an underlying error with an HTTP status, a failure kind and a safe message.
type AppError struct {
	Err     error
	Kind    error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// Is reports whether the target is the error kind or matches the underlying error.
func (e *AppError) Is(target error) bool {
	if e.Kind != nil && e.Kind == target {
		return true
	}
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return false
}

// UnknownTool is raised locally before any remote call is attempted.
func UnknownTool(toolID string) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %q", ErrUnknownTool, toolID),
		Kind:    ErrUnknownTool,
		Status:  http.StatusNotFound,
		Message: UnknownToolMessage,
	}
}

// MissingText is raised when a tool that edits existing lyrics is called without any.
func MissingText(toolID string) *AppError {
	return &AppError{
		Err:     fmt.Errorf("tool %q: %w", toolID, ErrMissingText),
		Kind:    ErrMissingText,
		Status:  http.StatusUnprocessableEntity,
		Message: MissingTextMessage,
	}
}

// FromStatus classifies a failed backend call. 429 and 402 keep their own
// kinds; every other status (including 0 for transport failures) is a network error.
func FromStatus(status int, err error) *AppError {
	switch status {
	case http.StatusTooManyRequests:
		return &AppError{Err: err, Kind: ErrRateLimited, Status: status, Message: RateLimitMessage}
	case http.StatusPaymentRequired:
		return &AppError{Err: err, Kind: ErrPaymentRequired, Status: status, Message: PaymentRequiredMessage}
	}
	if status == 0 {
		status = http.StatusBadGateway
	}
	return &AppError{Err: err, Kind: ErrNetwork, Status: status, Message: NetworkErrorMessage}
}

// Classify returns err unchanged when it already carries a backend failure
// kind, and wraps it as a network error otherwise.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Kind != nil {
		return err
	}
	return FromStatus(0, err)
}

// UserMessage picks the text shown in place of a failed assistant reply.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrRateLimited):
		return RateLimitMessage
	case errors.Is(err, ErrPaymentRequired):
		return PaymentRequiredMessage
	case errors.Is(err, ErrMissingText):
		return MissingTextMessage
	default:
		return NetworkErrorMessage
	}
}
