package errors

// ErrorCategory classifies errors by their nature.
type ErrorCategory string

const (
	// CategoryTransient indicates a failure that may not repeat, such as a
	// hop timing out or a peer being unreachable. Hops are still not retried.
	CategoryTransient ErrorCategory = "transient"

	// CategoryPermanent indicates a failure that will repeat for the same
	// input: unknown tag, bad descriptor, unparseable reply.
	CategoryPermanent ErrorCategory = "permanent"

	// CategoryResource indicates quota or rate exhaustion at a collaborator.
	CategoryResource ErrorCategory = "resource"

	// CategoryInternal indicates a bug or corrupted state.
	CategoryInternal ErrorCategory = "internal"
)

// String returns the string representation of the category.
func (c ErrorCategory) String() string {
	return string(c)
}

// IsRetryable reports whether a caller could reasonably try again later.
// The pipeline itself never retries a hop.
func (c ErrorCategory) IsRetryable() bool {
	switch c {
	case CategoryTransient, CategoryResource:
		return true
	default:
		return false
	}
}

// ErrorCode identifies a specific failure.
type ErrorCode string

const (
	// Transport
	ErrCodeTimeout     ErrorCode = "TIMEOUT"
	ErrCodeUnavailable ErrorCode = "UNAVAILABLE"
	ErrCodeNetworkErr  ErrorCode = "NETWORK_ERR"
	ErrCodeCanceled    ErrorCode = "CANCELED"

	// Input and lookup
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// Collaborators
	ErrCodeRateLimit     ErrorCode = "RATE_LIMITED"
	ErrCodeQuotaExceeded ErrorCode = "QUOTA_EXCEEDED"
	ErrCodeNoContent     ErrorCode = "NO_CONTENT"
	ErrCodeGeneration    ErrorCode = "GENERATION_FAILED"

	// Internal
	ErrCodeInternal ErrorCode = "INTERNAL"
	ErrCodePanic    ErrorCode = "PANIC"

	// Discovery and hops
	ErrCodeRegistrationFailed ErrorCode = "REGISTRATION_FAILED" // self-registration did not reach the registry
	ErrCodeCapabilityMissing  ErrorCode = "CAPABILITY_MISSING"  // no agent registered under the tag
	ErrCodeRemoteInvocation   ErrorCode = "REMOTE_INVOCATION"   // hop failed in transport or returned non-2xx
	ErrCodeMalformedResponse  ErrorCode = "MALFORMED_RESPONSE"  // hop reply could not be interpreted
)

// String returns the string representation of the error code.
func (c ErrorCode) String() string {
	return string(c)
}

// DefaultCategory returns the default category for an error code.
func (c ErrorCode) DefaultCategory() ErrorCategory {
	switch c {
	case ErrCodeTimeout, ErrCodeUnavailable, ErrCodeNetworkErr,
		ErrCodeRegistrationFailed, ErrCodeRemoteInvocation:
		return CategoryTransient

	case ErrCodeNotFound, ErrCodeInvalidInput, ErrCodeUnauthorized, ErrCodeCanceled,
		ErrCodeNoContent, ErrCodeCapabilityMissing, ErrCodeMalformedResponse, ErrCodeGeneration:
		return CategoryPermanent

	case ErrCodeRateLimit, ErrCodeQuotaExceeded:
		return CategoryResource

	default:
		return CategoryInternal
	}
}

var codeDescriptions = map[ErrorCode]string{
	ErrCodeTimeout:            "operation timed out",
	ErrCodeUnavailable:        "service temporarily unavailable",
	ErrCodeNetworkErr:         "network connectivity error",
	ErrCodeCanceled:           "operation canceled",
	ErrCodeNotFound:           "resource not found",
	ErrCodeInvalidInput:       "invalid input provided",
	ErrCodeUnauthorized:       "authentication required",
	ErrCodeRateLimit:          "rate limit exceeded",
	ErrCodeQuotaExceeded:      "quota exceeded",
	ErrCodeNoContent:          "no usable content",
	ErrCodeGeneration:         "text generation failed",
	ErrCodeInternal:           "internal error",
	ErrCodePanic:              "recovered from panic",
	ErrCodeRegistrationFailed: "registration failed",
	ErrCodeCapabilityMissing:  "required capability missing",
	ErrCodeRemoteInvocation:   "remote invocation failed",
	ErrCodeMalformedResponse:  "malformed response",
}

// Description returns a human-readable description for the error code.
func (c ErrorCode) Description() string {
	if desc, ok := codeDescriptions[c]; ok {
		return desc
	}
	return "unknown error"
}
