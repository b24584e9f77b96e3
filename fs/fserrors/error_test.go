package fserrors

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

// make a plausible network error with the underlying errno
func makeNetErr(errno syscall.Errno) error {
	return &net.OpError{
		Op:     "write",
		Net:    "tcp",
		Source: &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 123},
		Addr:   &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 21},
		Err: &os.SyscallError{
			Syscall: "write",
			Err:     errno,
		},
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return false }

func TestFatalError(t *testing.T) {
	base := errors.New("banner rejected")
	err := FatalError(base)
	assert.True(t, IsFatalError(err))
	assert.Equal(t, "banner rejected", err.Error())
	assert.True(t, errors.Is(err, base))

	wrapped := errors.Wrap(err, "connect")
	assert.True(t, IsFatalError(wrapped))
	assert.True(t, IsFatalError(fmt.Errorf("outer: %w", err)))

	assert.False(t, IsFatalError(base))
	assert.False(t, IsFatalError(nil))
	assert.True(t, IsFatalError(FatalError(nil)))
}

func TestNoRetryError(t *testing.T) {
	base := errors.New("bad PASV reply")
	err := NoRetryError(base)
	assert.True(t, IsNoRetryError(err))
	assert.True(t, IsNoRetryError(errors.Wrap(err, "negotiate")))
	assert.False(t, IsNoRetryError(base))
	assert.False(t, IsFatalError(err))
	assert.False(t, ShouldRetry(err))
}

func TestCause(t *testing.T) {
	e3 := timeoutError{}
	e2 := errors.Wrap(e3, "read reply")
	e1 := fmt.Errorf("session: %w", e2)
	retriable, cause := Cause(e1)
	assert.True(t, retriable)
	assert.Equal(t, e3, cause)

	plain := errors.New("plain")
	retriable, cause = Cause(plain)
	assert.False(t, retriable)
	assert.Equal(t, plain, cause)

	retriable, cause = Cause(nil)
	assert.False(t, retriable)
	assert.Nil(t, cause)
}

func TestShouldRetry(t *testing.T) {
	for i, test := range []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("potato"), false},
		{io.EOF, true},
		{io.ErrUnexpectedEOF, true},
		{errors.Wrap(io.EOF, "reading reply"), true},
		{makeNetErr(syscall.ECONNRESET), true},
		{makeNetErr(syscall.ECONNREFUSED), true},
		{makeNetErr(syscall.EPIPE), true},
		{makeNetErr(syscall.Errno(123123123)), false},
		{errors.New("read tcp: use of closed network connection"), true},
		{timeoutError{}, true},
		{NoRetryError(io.EOF), false},
	} {
		got := ShouldRetry(test.err)
		assert.Equal(t, test.want, got, fmt.Sprintf("test #%d: %v", i, test.err))
	}
}

func TestIsTimeout(t *testing.T) {
	assert.True(t, IsTimeout(timeoutError{}))
	assert.True(t, IsTimeout(errors.Wrap(timeoutError{}, "control read")))
	assert.False(t, IsTimeout(io.EOF))
	assert.False(t, IsTimeout(nil))
}

func TestContextError(t *testing.T) {
	var err = io.EOF
	ctx, cancel := context.WithCancel(context.Background())

	assert.False(t, ContextError(ctx, &err))
	assert.Equal(t, io.EOF, err)

	cancel()

	assert.True(t, ContextError(ctx, &err))
	assert.Equal(t, io.EOF, err)

	err = nil

	assert.True(t, ContextError(ctx, &err))
	assert.Equal(t, context.Canceled, err)
}
