// Package fserrors provides errors and error handling
package fserrors

import (
	"context"
	"io"
	"net"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// Fataler is an optional interface for error as to whether the
// operation has destroyed the session it was run on.
//
// A connect failure, a rejected banner, a lost peer or a failed
// abort sequence are all fatal - the caller must reconnect.
type Fataler interface {
	error
	Fatal() bool
}

// wrappedFatalError is an error wrapped so it will satisfy the
// Fataler interface and return true
type wrappedFatalError struct {
	error
}

// Fatal interface
func (err wrappedFatalError) Fatal() bool {
	return true
}

// Cause returns the underlying error
func (err wrappedFatalError) Cause() error {
	return err.error
}

// Unwrap returns the underlying error
func (err wrappedFatalError) Unwrap() error {
	return err.error
}

// Check interface
var _ Fataler = wrappedFatalError{error(nil)}

// FatalError makes an error which indicates the session it happened
// on is no longer usable
func FatalError(err error) error {
	if err == nil {
		err = errors.New("fatal error")
	}
	return wrappedFatalError{err}
}

// IsFatalError returns true if err conforms to the Fatal interface
// and calling the Fatal method returns true.
func IsFatalError(err error) (isFatal bool) {
	walk(err, func(c error) bool {
		if f, ok := c.(Fataler); ok && f.Fatal() {
			isFatal = true
			return true
		}
		return false
	})
	return isFatal
}

// NoRetrier is an optional interface for error as to whether the
// operation should not be retried at a high level.
//
// Protocol errors (a malformed PASV reply, an unexpected reply code)
// and local transfer errors are of this kind.  The control connection
// is usually still usable after one of them.
type NoRetrier interface {
	error
	NoRetry() bool
}

// wrappedNoRetryError is an error wrapped so it will satisfy the
// NoRetrier interface and return true
type wrappedNoRetryError struct {
	error
}

// NoRetry interface
func (err wrappedNoRetryError) NoRetry() bool {
	return true
}

// Cause returns the underlying error
func (err wrappedNoRetryError) Cause() error {
	return err.error
}

// Unwrap returns the underlying error
func (err wrappedNoRetryError) Unwrap() error {
	return err.error
}

// Check interface
var _ NoRetrier = wrappedNoRetryError{error(nil)}

// NoRetryError makes an error which indicates the operation
// shouldn't be retried
func NoRetryError(err error) error {
	if err == nil {
		err = errors.New("no retry error")
	}
	return wrappedNoRetryError{err}
}

// IsNoRetryError returns true if err conforms to the NoRetry
// interface and calling the NoRetry method returns true.
func IsNoRetryError(err error) (isNoRetry bool) {
	walk(err, func(c error) bool {
		if r, ok := c.(NoRetrier); ok && r.NoRetry() {
			isNoRetry = true
			return true
		}
		return false
	})
	return isNoRetry
}

// walk calls f on err and each error it wraps until f returns true
func walk(err error, f func(error) bool) {
	for prev := error(nil); err != nil && err != prev; {
		if f(err) {
			return
		}
		prev = err
		switch x := err.(type) {
		case interface{ Cause() error }:
			err = x.Cause()
		case interface{ Unwrap() error }:
			err = x.Unwrap()
		}
	}
}

// Cause is a souped up errors.Cause which can unwrap some standard
// library errors too.  It returns true if any of the intermediate
// errors had a Timeout() or Temporary() method which returned true.
func Cause(cause error) (retriable bool, err error) {
	walk(cause, func(c error) bool {
		// Check for net error Timeout()
		if x, ok := c.(interface {
			Timeout() bool
		}); ok && x.Timeout() {
			retriable = true
		}

		// Check for net error Temporary()
		if x, ok := c.(interface {
			Temporary() bool
		}); ok && x.Temporary() {
			retriable = true
		}
		err = c
		return false
	})
	return
}

// retriableErrorStrings is a list of phrases which when we find it
// in an error, we know it is a networking error which should be
// retried.
var retriableErrorStrings = []string{
	"use of closed network connection", // internal/poll/fd.go
	"unexpected EOF reading trailer",   // net/http/transfer.go
	"transport connection broken",      // net/http/transport.go
	"http: ContentLength=",             // net/http/transfer.go
	"server closed idle connection",    // net/http/transport.go
	"bad record MAC",                   // crypto/tls/alert.go
	"stream error:",                    // net/http/h2_bundle.go
}

// retriableErrors is a list of errors which the syscall layer can
// give which should be retried.  More are added by the platform
// specific files.
var retriableErrors = []error{
	io.EOF,
	io.ErrUnexpectedEOF,
}

// ShouldRetry looks at an error and tries to work out if retrying the
// operation that caused it would be a good idea. It returns true if
// the error implements Timeout() or Temporary() or if the error
// indicates a premature closing of the connection.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}

	// If error has been marked to NoRetry then don't retry
	if IsNoRetryError(err) {
		return false
	}

	// Find root cause if available
	retriable, err := Cause(err)
	if retriable {
		return true
	}

	// Check if it is a retriable error
	for _, retriableErr := range retriableErrors {
		if err == retriableErr {
			return true
		}
	}

	// Check error strings (yuch!) too
	errString := err.Error()
	for _, phrase := range retriableErrorStrings {
		if strings.Contains(errString, phrase) {
			return true
		}
	}

	return false
}

// IsTimeout returns true if err or anything it wraps is a network
// timeout.
func IsTimeout(err error) (isTimeout bool) {
	walk(err, func(c error) bool {
		if x, ok := c.(net.Error); ok && x.Timeout() {
			isTimeout = true
			return true
		}
		if x, ok := c.(*url.Error); ok && x.Timeout() {
			isTimeout = true
			return true
		}
		return false
	})
	return isTimeout
}

// ContextError checks to see if ctx is in error.
//
// If it is in error then it overwrites *perr with the context error
// if *perr was nil and returns true.
//
// Otherwise it returns false.
func ContextError(ctx context.Context, perr *error) bool {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if *perr == nil {
			*perr = ctxErr
		}
		return true
	}
	return false
}
