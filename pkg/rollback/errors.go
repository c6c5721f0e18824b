package rollback

import "fmt"

// TimeoutError reports that the exchange did not complete within the
// configured timeout. Distinct from an HTTP-level failure.
type TimeoutError struct {
	URL string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("rollback: request to %s timed out: %v", e.URL, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// TransportError reports an HTTP-level failure: a non-2xx status, or a
// connection failure before any response arrived (Status == 0).
type TransportError struct {
	Status int
	Body   string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("rollback: transport failure: %v", e.Err)
	}
	return fmt.Sprintf("rollback: provider returned HTTP %d: %s", e.Status, e.Body)
}

func (e *TransportError) Unwrap() error { return e.Err }

// SchemaError reports a 2xx response whose body is missing a required
// field or carries a wrong type. It distinguishes a malformed provider
// from one signaling a business failure via success:false.
type SchemaError struct {
	Reason string
	Err    error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("rollback: invalid provider response: %s", e.Reason)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// RetryExhaustedError aggregates a failed retry run.
type RetryExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("rollback: all %d attempts failed, last error: %v", e.Attempts, e.Last)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Last }
