package errors

import (
	"encoding/json"
	"fmt"
	"time"
)

// Error is a structured failure carrying a code, a category and the hop it
// happened on.
type Error struct {
	code      ErrorCode
	category  ErrorCategory
	message   string
	cause     error
	metadata  map[string]string
	timestamp time.Time
	tag       string // capability tag of the hop, if any
	runID     string
}

var (
	_ json.Marshaler   = (*Error)(nil)
	_ json.Unmarshaler = (*Error)(nil)
)

// Error returns the error message.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Code returns the error code.
func (e *Error) Code() ErrorCode {
	return e.code
}

// Category returns the error category.
func (e *Error) Category() ErrorCategory {
	return e.category
}

// Retryable reports whether the category allows a later attempt.
func (e *Error) Retryable() bool {
	return e.category.IsRetryable()
}

// Message returns the message without the cause.
func (e *Error) Message() string {
	return e.message
}

// Metadata returns a copy of the error metadata.
func (e *Error) Metadata() map[string]string {
	result := make(map[string]string, len(e.metadata))
	for k, v := range e.metadata {
		result[k] = v
	}
	return result
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// Timestamp returns when the error occurred.
func (e *Error) Timestamp() time.Time {
	return e.timestamp
}

// Tag returns the capability tag of the failing hop, if set.
func (e *Error) Tag() string {
	return e.tag
}

// RunID returns the pipeline run the error belongs to, if set.
func (e *Error) RunID() string {
	return e.runID
}

type errorJSON struct {
	Code      ErrorCode         `json:"code"`
	Category  ErrorCategory     `json:"category"`
	Message   string            `json:"message"`
	Cause     string            `json:"cause,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp string            `json:"timestamp,omitempty"`
	Tag       string            `json:"tag,omitempty"`
	RunID     string            `json:"run_id,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (e *Error) MarshalJSON() ([]byte, error) {
	j := errorJSON{
		Code:     e.code,
		Category: e.category,
		Message:  e.message,
		Metadata: e.metadata,
		Tag:      e.tag,
		RunID:    e.runID,
	}
	if e.cause != nil {
		j.Cause = e.cause.Error()
	}
	if !e.timestamp.IsZero() {
		j.Timestamp = e.timestamp.Format(time.RFC3339Nano)
	}
	return json.Marshal(j)
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Error) UnmarshalJSON(data []byte) error {
	var j errorJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	e.code = j.Code
	e.category = j.Category
	e.message = j.Message
	e.metadata = j.Metadata
	e.tag = j.Tag
	e.runID = j.RunID
	if j.Cause != "" {
		e.cause = fmt.Errorf("%s", j.Cause)
	}
	if j.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339Nano, j.Timestamp); err == nil {
			e.timestamp = t
		}
	}
	return nil
}

// Option configures an Error.
type Option func(*Error)

// WithCategory overrides the default category.
func WithCategory(cat ErrorCategory) Option {
	return func(e *Error) {
		e.category = cat
	}
}

// WithMetadata adds a metadata key-value pair.
func WithMetadata(key, value string) Option {
	return func(e *Error) {
		if e.metadata == nil {
			e.metadata = make(map[string]string)
		}
		e.metadata[key] = value
	}
}

// WithTag sets the capability tag of the failing hop.
func WithTag(tag string) Option {
	return func(e *Error) {
		e.tag = tag
	}
}

// WithRunID sets the pipeline run ID.
func WithRunID(id string) Option {
	return func(e *Error) {
		e.runID = id
	}
}

// WithCause sets the underlying cause.
func WithCause(cause error) Option {
	return func(e *Error) {
		e.cause = cause
	}
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string, opts ...Option) *Error {
	e := &Error{
		code:      code,
		category:  code.DefaultCategory(),
		message:   message,
		timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Newf creates a new Error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// FromCode creates an error with the default description for the code.
func FromCode(code ErrorCode, opts ...Option) *Error {
	return New(code, code.Description(), opts...)
}

// NotFound creates a not found error.
func NotFound(message string, opts ...Option) *Error {
	return New(ErrCodeNotFound, message, opts...)
}

// InvalidInput creates an invalid input error.
func InvalidInput(message string, opts ...Option) *Error {
	return New(ErrCodeInvalidInput, message, opts...)
}

// Internal creates an internal error.
func Internal(message string, opts ...Option) *Error {
	return New(ErrCodeInternal, message, opts...)
}

// RegistrationFailure reports that an agent could not register itself.
func RegistrationFailure(registryURL string, cause error) *Error {
	return New(ErrCodeRegistrationFailed,
		fmt.Sprintf("register with %s", registryURL),
		WithCause(cause), WithMetadata("registry", registryURL))
}

// ResolutionFailure reports that no agent is registered under tag.
func ResolutionFailure(tag string, cause error) *Error {
	return New(ErrCodeCapabilityMissing,
		fmt.Sprintf("no agent for tag %q", tag),
		WithCause(cause), WithTag(tag))
}

// RemoteInvocationFailure reports a hop that failed in transport.
// Deadline errors keep the TIMEOUT code.
func RemoteInvocationFailure(tag string, cause error) *Error {
	if e := Wrap(cause, fmt.Sprintf("invoke %s", tag), WithTag(tag)); e != nil && e.code == ErrCodeTimeout {
		return e
	}
	return New(ErrCodeRemoteInvocation, fmt.Sprintf("invoke %s", tag), WithCause(cause), WithTag(tag))
}

// MalformedResponse reports a hop reply that could not be interpreted.
func MalformedResponse(tag, detail string) *Error {
	return New(ErrCodeMalformedResponse, fmt.Sprintf("%s reply: %s", tag, detail), WithTag(tag))
}
