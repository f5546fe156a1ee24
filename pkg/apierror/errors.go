// Package apierror defines the error kinds returned by every layer of the
// cryptoless SDK.
//
// Kinds are sentinels meant to be matched with errors.Is, while the errors
// produced from a remote response (DomainError, StatusCodeError) are concrete
// types meant to be extracted with errors.As.
package apierror

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned on caller misuse, ie. a reserved parameter
	// key collision or an invalid argument detected before any I/O.
	ErrConfiguration = errors.New("configuration error")
	// ErrSigning is returned when the signer fails to produce a signature.
	// It is fatal to the request it belongs to.
	ErrSigning = errors.New("signing error")
	// ErrTransport is returned on connect/send failures of either the HTTP or
	// the realtime channel.
	ErrTransport = errors.New("transport error")
	// ErrDecode is returned when a payload does not match the expected shape.
	ErrDecode = errors.New("decode error")
)

// Configuration returns an ErrConfiguration with the given message.
func Configuration(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// Signing wraps err as an ErrSigning, err stays reachable with errors.Is/As.
func Signing(err error) error {
	return fmt.Errorf("%w: %w", ErrSigning, err)
}

// Transport wraps err as an ErrTransport.
func Transport(err error) error {
	return fmt.Errorf("%w: %w", ErrTransport, err)
}

// Decode wraps err as an ErrDecode.
func Decode(err error) error {
	return fmt.Errorf("%w: %w", ErrDecode, err)
}

// DomainError is the structured error object returned by the API along with a
// non-2xx status code.
type DomainError struct {
	StatusCode int    `json:"-"`
	Code       int    `json:"code"`
	Message    string `json:"message"`
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("cryptoless error %d (status %d): %s", e.Code, e.StatusCode, e.Message)
}

// StatusCodeError is returned for a non-2xx response whose body is not a
// DomainError.
type StatusCodeError struct {
	StatusCode int
	Body       string
}

func (e *StatusCodeError) Error() string {
	return fmt.Sprintf("unexpected status code %d: %s", e.StatusCode, e.Body)
}
