package gateway

import (
	"errors"
	"fmt"
)

var (
	ErrNoCredential       = errors.New("no access token")
	ErrReloginUnavailable = errors.New("access token rejected and no cached credentials")
	ErrReloginFailed      = errors.New("silent re-login failed")
	ErrTransport          = errors.New("transport failure")
)

// NoCredentialError is returned when no access token is persisted. The call is never sent.
type NoCredentialError struct{}

func (NoCredentialError) Error() string { return "gateway: " + ErrNoCredential.Error() }

func (NoCredentialError) Is(target error) bool { return target == ErrNoCredential }

// ReloginUnavailableError is returned when the server rejected the access token and the
// credential cache is empty.
type ReloginUnavailableError struct {
	Status int // status of the rejected call
}

func (e ReloginUnavailableError) Error() string {
	return fmt.Sprintf("gateway: %s (http %d)", ErrReloginUnavailable, e.Status)
}

func (ReloginUnavailableError) Is(target error) bool { return target == ErrReloginUnavailable }

// ReloginFailedError is returned when the silent login call itself failed. Status is the
// login response status, zero when the login never produced one.
type ReloginFailedError struct {
	Status int
	Cause  error
}

func (e ReloginFailedError) Error() string {
	msg := "gateway: " + ErrReloginFailed.Error()
	if e.Status != 0 {
		msg += fmt.Sprintf(" (http %d)", e.Status)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e ReloginFailedError) Unwrap() error { return e.Cause }

func (ReloginFailedError) Is(target error) bool { return target == ErrReloginFailed }

// TransportError wraps a connectivity failure of the original call or of its retry.
type TransportError struct {
	Op    string
	Cause error
}

func (e TransportError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("gateway: %s: %s", e.Op, ErrTransport)
	}
	return fmt.Sprintf("gateway: %s: %s: %v", e.Op, ErrTransport, e.Cause)
}

func (e TransportError) Unwrap() error { return e.Cause }

func (TransportError) Is(target error) bool { return target == ErrTransport }

// statusCoder is implemented by login errors that carry an HTTP status.
type statusCoder interface {
	StatusCode() int
}

func statusOf(err error) int {
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return 0
}

// SessionEnded reports whether err means the gateway terminated the session and the user
// must sign in again.
func SessionEnded(err error) bool {
	return errors.Is(err, ErrNoCredential) || errors.Is(err, ErrReloginUnavailable) || errors.Is(err, ErrReloginFailed)
}
