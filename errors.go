package kompas

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure scenarios
var (
	// ErrMissingClientID is returned when bootstrap runs without a client identifier
	ErrMissingClientID = errors.New("kompas: missing client id")

	// ErrNoInitialData is returned when no initial document is cached
	ErrNoInitialData = errors.New("kompas: no initial data in store")

	// ErrNoExternalData is returned when no external document is cached
	ErrNoExternalData = errors.New("kompas: no external data in store")
)

// Error type identifiers carried by ClientError.Type.
const (
	ErrorTypeConfiguration = "configuration"
	ErrorTypeValidation    = "validation"
	ErrorTypeTransport     = "transport"
	ErrorTypeServer        = "server"
	ErrorTypeDecode        = "decode"
	ErrorTypePrecondition  = "precondition"
	ErrorTypeStorage       = "storage"
)

// IsTransient determines if an error represents a transient failure that might succeed on retry.
// Returns true for transport failures, 5xx server responses, and rate limiting (429).
// Returns false for configuration, validation, decode, and precondition errors.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		switch clientErr.Type {
		case ErrorTypeTransport:
			return true
		case ErrorTypeServer:
			return clientErr.StatusCode >= 500 || clientErr.StatusCode == 429
		default:
			return false
		}
	}

	return false
}

// Error implements error interface.
func (e *ClientError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		msg := fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Cause)
		if e.RequestID != "" {
			msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
		}
		return msg
	}

	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ClientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error types for errors.Is.
func (e *ClientError) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*ClientError); ok {
		return e.Type == targetErr.Type
	}
	return false
}

// DebugInfo renders a multi-line string with diagnostic context.
func (e *ClientError) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	info := fmt.Sprintf("Error Type: %s\n", e.Type)
	info += fmt.Sprintf("Message: %s\n", e.Message)
	if e.RequestID != "" {
		info += fmt.Sprintf("Request ID: %s\n", e.RequestID)
	}
	if e.Operation != "" {
		info += fmt.Sprintf("Operation: %s\n", e.Operation)
	}
	if e.URL != "" {
		info += fmt.Sprintf("URL: %s\n", e.URL)
	}
	if e.StatusCode > 0 {
		info += fmt.Sprintf("Status Code: %d\n", e.StatusCode)
	}
	if !e.Timestamp.IsZero() {
		info += fmt.Sprintf("Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Duration > 0 {
		info += fmt.Sprintf("Duration: %v\n", e.Duration)
	}
	if e.Cause != nil {
		info += fmt.Sprintf("Cause: %v\n", e.Cause)
	}
	return info
}
