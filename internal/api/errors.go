package api

import (
	"errors"
	"fmt"
)

// NetworkError means the request never produced a usable answer: transport
// failure, timeout, a 5xx status or an undecodable body.
type NetworkError struct {
	Op     string
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: server returned %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ValidationError means the server rejected the input of a mutation.
type ValidationError struct {
	Op      string
	Message string
}

func (e *ValidationError) Error() string { return fmt.Sprintf("%s: %s", e.Op, e.Message) }

// NotFoundError means the target id does not exist server-side.
type NotFoundError struct {
	Op string
	ID string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s: track %q not found", e.Op, e.ID) }

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
