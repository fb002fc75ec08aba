package delivery

import (
	"errors"
	"fmt"
)

var (
	ErrTimeout          = errors.New("delivery timed out")
	ErrUnexpectedStatus = errors.New("delivery rejected by endpoint")
	ErrTooManyRedirects = errors.New("delivery exceeded redirect limit")
	ErrInvalidRedirect  = errors.New("delivery redirect location is invalid")
)

// ErrorKind classifies a failed delivery.
type ErrorKind string

const (
	KindTimeout          ErrorKind = "timeout"
	KindStatus           ErrorKind = "status"
	KindTransport        ErrorKind = "transport"
	KindTooManyRedirects ErrorKind = "too_many_redirects"
	KindInvalidRedirect  ErrorKind = "invalid_redirect"
)

// Error describes why a delivery failed. Err is one of the package
// sentinels, or the underlying transport error for KindTransport.
type Error struct {
	Kind    ErrorKind
	Attempt string
	URL     string
	Status  int
	Hops    int
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("delivery %s: %s responded with status %d", e.Attempt, e.URL, e.Status)
	case KindTooManyRedirects:
		return fmt.Sprintf("delivery %s: gave up after %d redirects at %s", e.Attempt, e.Hops, e.URL)
	default:
		return fmt.Sprintf("delivery %s: %s: %v", e.Attempt, e.URL, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}
