package domain

import (
	"errors"
	"fmt"
)

// ErrUnintelligible is returned by a recognizer that received the audio but
// could not understand any speech in it.
var ErrUnintelligible = errors.New("recognizer could not understand audio")

// ServiceError reports a failed request to the recognition service.
type ServiceError struct {
	StatusCode int
	Retryable  bool
	Message    string
	Err        error
}

// Error formats service failures with the HTTP status when known.
func (e *ServiceError) Error() string {
	if e == nil {
		return ""
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("recognition service error (status %d): %s", e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("recognition service error: %s: %v", e.Message, e.Err)
	}
	return "recognition service error: " + e.Message
}

// Unwrap exposes the transport error for errors.Is / errors.As.
func (e *ServiceError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
