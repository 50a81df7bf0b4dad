package metric

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// FetchError is returned when the metrics API answered with a non 2xx status.
type FetchError struct {
	StatusCode int
	Status     string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("API %d: %s", e.StatusCode, e.Status)
}

// NetworkError is returned when the request could not be completed at the
// transport level (DNS, connection refused, aborted...).
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %s", e.Err)
}

// Unwrap returns the transport error.
func (e *NetworkError) Unwrap() error { return e.Err }

// Cause returns the transport error, used by github.com/pkg/errors.
func (e *NetworkError) Cause() error { return e.Err }

// DecodeError is returned when the response body is not a valid payload.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("invalid metrics payload: %s", e.Err)
}

// Unwrap returns the decoding error.
func (e *DecodeError) Unwrap() error { return e.Err }

// IsCanceled returns true when the error comes from a cancelled request.
// Cancelled requests are expected and should never reach the user.
func IsCanceled(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Cause(err) == context.Canceled
}
