package analysis

import (
	"errors"
	"fmt"
)

// Kind classifies analysis failures. Everything except KindInvalidCredential
// is safe for the caller to retry; nothing is retried internally.
type Kind int

const (
	KindInvalidCredential Kind = iota
	KindNetworkError
	KindInvalidResponse
	KindAPIError
	KindRateLimited
	KindTokenLimitExceeded
)

func (k Kind) String() string {
	switch k {
	case KindInvalidCredential:
		return "invalid_credential"
	case KindNetworkError:
		return "network_error"
	case KindInvalidResponse:
		return "invalid_response"
	case KindAPIError:
		return "api_error"
	case KindRateLimited:
		return "rate_limited"
	case KindTokenLimitExceeded:
		return "token_limit_exceeded"
	default:
		return "unknown"
	}
}

// Error is the typed failure surfaced by the analysis client. Response-shape
// defects never become an Error; they resolve through the fallback path.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindInvalidCredential:
		return "The analysis service is not configured. Please contact support."
	case KindNetworkError:
		return "A network error occurred. Please check your connection and try again."
	case KindInvalidResponse:
		return "The analysis service returned an unexpected response. Please try again."
	case KindAPIError:
		if e.Message != "" {
			return e.Message
		}
		return fmt.Sprintf("The analysis service reported an error (HTTP %d). Please try again.", e.StatusCode)
	case KindRateLimited:
		return "Too many requests right now. Please wait a moment and try again."
	case KindTokenLimitExceeded:
		return "Document too long. Try a shorter document."
	default:
		return "The analysis could not be completed. Please try again."
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the caller may reasonably retry the operation.
func (e *Error) Retryable() bool { return e.Kind != KindInvalidCredential }

// IsKind reports whether err is an analysis Error of the given kind.
func IsKind(err error, k Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == k
}
