package errors

import (
	"fmt"
	"strings"
)

// Kind identifies the payment lifecycle stage that produced an error
type Kind string

const (
	KindCredential  Kind = "credential"
	KindChannel     Kind = "channel"
	KindSubmission  Kind = "submission"
	KindPoll        Kind = "poll"
	KindPollTimeout Kind = "poll_timeout"
)

// Outcome describes what is known about the remote payment after a failed submission
type Outcome string

const (
	// OutcomeNotCreated means the provider rejected the request or it was never sent
	OutcomeNotCreated Outcome = "not_created"
	// OutcomeUnknown means the payment may exist on the provider side; do not resubmit
	OutcomeUnknown Outcome = "unknown"
)

// ProviderError is a single entry of the provider's error list
type ProviderError struct {
	Code                  string `json:"errorCode"`
	Message               string `json:"errorMessage"`
	AdditionalInformation string `json:"additionalInformation,omitempty"`
}

// StageError represents a failure in one stage of the payment lifecycle
type StageError struct {
	Kind           Kind
	Code           string
	Message        string
	Outcome        Outcome // submission only
	StatusCode     int     // provider HTTP status, 0 when no response was received
	ProviderErrors []ProviderError
	Err            error
}

func (e *StageError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s: %s", e.Kind, e.Code, e.Message)
	if e.Outcome != "" {
		fmt.Fprintf(&b, " (outcome: %s)", e.Outcome)
	}
	if len(e.ProviderErrors) > 0 {
		codes := make([]string, len(e.ProviderErrors))
		for i, pe := range e.ProviderErrors {
			codes[i] = pe.Code
		}
		fmt.Fprintf(&b, " (provider: %s)", strings.Join(codes, ","))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Is matches any StageError of the same kind, so the Err* sentinels work with errors.Is
func (e *StageError) Is(target error) bool {
	t, ok := target.(*StageError)
	if !ok {
		return false
	}
	return t.Code == "" && t.Kind == e.Kind
}

// Sentinels for errors.Is checks
var (
	ErrCredential  = &StageError{Kind: KindCredential}
	ErrChannel     = &StageError{Kind: KindChannel}
	ErrSubmission  = &StageError{Kind: KindSubmission}
	ErrPoll        = &StageError{Kind: KindPoll}
	ErrPollTimeout = &StageError{Kind: KindPollTimeout}
)

// NewCredentialError creates an error for an unusable credential bundle
func NewCredentialError(code, message string, err error) *StageError {
	return &StageError{Kind: KindCredential, Code: code, Message: message, Err: err}
}

// NewChannelError creates an error for unusable trust material
func NewChannelError(code, message string, err error) *StageError {
	return &StageError{Kind: KindChannel, Code: code, Message: message, Err: err}
}

// NewSubmissionError creates a payment creation error
func NewSubmissionError(code, message string, outcome Outcome, err error) *StageError {
	return &StageError{Kind: KindSubmission, Code: code, Message: message, Outcome: outcome, Err: err}
}

// NewPollError creates a status polling error
func NewPollError(code, message string, err error) *StageError {
	return &StageError{Kind: KindPoll, Code: code, Message: message, Err: err}
}

// NewPollTimeoutError creates an error for a payment that stayed pending past the poll bounds
func NewPollTimeoutError(message string, err error) *StageError {
	return &StageError{Kind: KindPollTimeout, Code: "POLL_TIMEOUT", Message: message, Err: err}
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
