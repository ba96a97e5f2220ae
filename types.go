package kompas

import (
	"time"
)

// Option represents a configuration option
type Option func(*Coordinator)

// ClientError represents an error from the coordinator, carrying the
// operation and request context it occurred in.
type ClientError struct {
	Type       string
	Message    string
	Cause      error
	RequestID  string
	Operation  string
	URL        string
	StatusCode int
	Timestamp  time.Time
	Duration   time.Duration
}
