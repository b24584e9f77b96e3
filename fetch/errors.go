package fetch

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/rclone/ftpfetch/fs/fserrors"
)

// Errors returned by Fetch
var (
	ErrTooManyRedirects  = fserrors.NoRetryError(errors.New("too many redirections requested"))
	ErrRestartMismatch   = fserrors.NoRetryError(errors.New("server did not resume from the requested offset"))
	ErrUnsupportedScheme = fserrors.NoRetryError(errors.New("unsupported URL scheme"))
	ErrDirectoryListing  = fserrors.NoRetryError(errors.New("directory listings (;type=d) are not supported"))
	ErrNoFile            = fserrors.NoRetryError(errors.New("no file name given"))
	ErrAuthFailed        = fserrors.NoRetryError(errors.New("authorization failed"))
)

// HTTPError is returned for an HTTP status which can't be acted on
type HTTPError struct {
	Code   int
	Status string // status line from the server without the protocol
}

// Error satisfies the error interface
func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error: %s", e.Status)
}

// NoRetry is true unless the server reported a failure of its own
func (e *HTTPError) NoRetry() bool {
	return e.Code < 500
}

// ProtocolError is returned when a server breaks the HTTP protocol
type ProtocolError struct {
	Msg string
}

// Error satisfies the error interface
func (e *ProtocolError) Error() string {
	return "http protocol error: " + e.Msg
}

func protocolErrorf(format string, args ...interface{}) error {
	return &ProtocolError{Msg: fmt.Sprintf(format, args...)}
}
