package ftp

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/rclone/ftpfetch/fs/fserrors"
)

// Errors returned by the session
var (
	ErrNotConnected       = errors.New("not connected")
	ErrConnectionLost     = fserrors.FatalError(errors.New("lost connection to remote server"))
	ErrTimeout            = errors.New("timed out waiting for the server")
	ErrAborted            = errors.New("transfer aborted")
	ErrRestartUnsupported = fserrors.NoRetryError(errors.New("restart not possible on this stream"))
	ErrDataConnBusy       = errors.New("a data connection is already open")
	ErrReplyTooLong       = fserrors.NoRetryError(errors.New("reply line too long"))
	ErrUnsupported        = fserrors.NoRetryError(errors.New("command not supported by the server"))
	ErrNoProxy            = errors.New("no proxy connection")
)

// ReplyError is returned when the server answers a command with a
// reply of the wrong class.
type ReplyError struct {
	Cmd  string // the verb which was sent
	Code int
	Text string // first line of the reply
}

// Error satisfies the error interface
func (e *ReplyError) Error() string {
	text := e.Text
	if text == "" {
		text = StatusText(e.Code)
	}
	return fmt.Sprintf("%s: %d %s", e.Cmd, e.Code, text)
}

// NoRetry means the same command would fail again
func (e *ReplyError) NoRetry() bool {
	return e.Code/100 == ClassError
}

// ConnectError is returned when no connection to the server could be
// made, or the server refused us in its banner.
type ConnectError struct {
	Host string
	Err  error
}

// Error satisfies the error interface
func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.Host, e.Err)
}

// Fatal as there is no session to carry on with
func (e *ConnectError) Fatal() bool { return true }

// Cause returns the underlying error
func (e *ConnectError) Cause() error { return e.Err }

// Unwrap returns the underlying error
func (e *ConnectError) Unwrap() error { return e.Err }

// DataConnectionError is returned when the data connection can't be
// set up or breaks.  The control connection remains usable.
type DataConnectionError struct {
	Op  string
	Err error
}

// Error satisfies the error interface
func (e *DataConnectionError) Error() string {
	return fmt.Sprintf("data connection %s: %v", e.Op, e.Err)
}

// Cause returns the underlying error
func (e *DataConnectionError) Cause() error { return e.Err }

// Unwrap returns the underlying error
func (e *DataConnectionError) Unwrap() error { return e.Err }

// ProtocolError is returned when the server sends something we can't
// make sense of.
type ProtocolError struct {
	Msg string
}

// Error satisfies the error interface
func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Msg
}

// NoRetry as the server will say the same again
func (e *ProtocolError) NoRetry() bool { return true }

func protocolErrorf(format string, args ...interface{}) error {
	return &ProtocolError{Msg: fmt.Sprintf(format, args...)}
}

// Check interfaces
var (
	_ fserrors.Fataler   = (*ConnectError)(nil)
	_ fserrors.NoRetrier = (*ProtocolError)(nil)
	_ fserrors.NoRetrier = (*ReplyError)(nil)
)
