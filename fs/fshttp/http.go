// Package fshttp contains the connection plumbing shared by the ftp
// and http clients.
package fshttp

import (
	"bytes"
	"context"
	"net"
	"time"

	"github.com/rclone/ftpfetch/fs"
)

const (
	separatorReq  = ">>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>"
	separatorResp = "<<<<<<<<<<<<<<<<<<<<<<<<<<<<<<<<<<<<<<<<<<<<<<<<<<<<<<<<<<<<<<<<"
)

// A net.Conn that sets a deadline for every Read or Write operation
type timeoutConn struct {
	net.Conn
	timeout time.Duration
}

// create a timeoutConn using the timeout
func newTimeoutConn(conn net.Conn, timeout time.Duration) (c *timeoutConn, err error) {
	c = &timeoutConn{
		Conn:    conn,
		timeout: timeout,
	}
	err = c.nudgeDeadline()
	return
}

// NewTimeoutConn wraps conn so that every successful Read or Write
// pushes its deadline timeout into the future.  A timeout of 0 sets
// no deadline.
func NewTimeoutConn(conn net.Conn, timeout time.Duration) (net.Conn, error) {
	return newTimeoutConn(conn, timeout)
}

// Nudge the deadline for an idle timeout on by c.timeout if non-zero
func (c *timeoutConn) nudgeDeadline() (err error) {
	if c.timeout == 0 {
		return nil
	}
	when := time.Now().Add(c.timeout)
	return c.Conn.SetDeadline(when)
}

// readOrWrite bytes doing idle timeouts
func (c *timeoutConn) readOrWrite(f func([]byte) (int, error), b []byte) (n int, err error) {
	n, err = f(b)
	// Don't nudge if no bytes or an error
	if n == 0 || err != nil {
		return
	}
	// Nudge the deadline on successful Read or Write
	err = c.nudgeDeadline()
	return
}

// Read bytes doing idle timeouts
func (c *timeoutConn) Read(b []byte) (n int, err error) {
	return c.readOrWrite(c.Conn.Read, b)
}

// Write bytes doing idle timeouts
func (c *timeoutConn) Write(b []byte) (n int, err error) {
	return c.readOrWrite(c.Conn.Write, b)
}

// NewDialer creates a net.Dialer structure with Timeout, Keepalive
// and LocalAddr set from the config.
func NewDialer(ci *fs.ConfigInfo) *net.Dialer {
	dialer := &net.Dialer{
		Timeout:   ci.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}
	if ci.BindAddr != nil {
		dialer.LocalAddr = &net.TCPAddr{IP: ci.BindAddr}
	}
	return dialer
}

// DialTimeout dials address and wraps the connection so that it
// times out if idle for longer than the configured Timeout.
func DialTimeout(ctx context.Context, network, address string) (net.Conn, error) {
	ci := fs.GetConfig(ctx)
	c, err := NewDialer(ci).DialContext(ctx, network, address)
	if err != nil {
		return c, err
	}
	return newTimeoutConn(c, ci.Timeout)
}

// cleanAuth gets rid of one authBuf header within the first 4k
func cleanAuth(buf, authBuf []byte) []byte {
	// Find how much buffer to check
	n := 4096
	if len(buf) < n {
		n = len(buf)
	}
	// See if there is an Authorization: header
	i := bytes.Index(buf[:n], authBuf)
	if i < 0 {
		return buf
	}
	i += len(authBuf)
	// Overwrite the next 4 chars with 'X'
	for j := 0; i < len(buf) && j < 4; j++ {
		if buf[i] == '\n' || buf[i] == '\r' {
			break
		}
		buf[i] = 'X'
		i++
	}
	// Snip out to the end of the line
	j := bytes.IndexAny(buf[i:], "\r\n")
	if j < 0 {
		return buf[:i]
	}
	n = copy(buf[i:], buf[i+j:])
	return buf[:i+n]
}

var authBufs = [][]byte{
	[]byte("\nAuthorization: "),
	[]byte("\nProxy-Authorization: "),
}

// cleanAuths gets rid of all the possible Auth headers
func cleanAuths(buf []byte) []byte {
	for _, authBuf := range authBufs {
		buf = cleanAuth(buf, authBuf)
	}
	return buf
}

// DumpRequest logs a raw request header block at debug level if
// dumping is enabled.  Credentials are blanked unless --dump auth is
// set.
func DumpRequest(ctx context.Context, o interface{}, req []byte) {
	dump := fs.GetConfig(ctx).Dump
	if dump&(fs.DumpHeaders|fs.DumpBodies|fs.DumpAuth) == 0 {
		return
	}
	buf := append([]byte(nil), req...)
	if dump&fs.DumpAuth == 0 {
		buf = cleanAuths(buf)
	}
	fs.Debugf(o, "%s", separatorReq)
	fs.Debugf(o, "HTTP REQUEST")
	fs.Debugf(o, "%s", buf)
	fs.Debugf(o, "%s", separatorReq)
}

// DumpResponse logs a raw response header block at debug level if
// dumping is enabled.
func DumpResponse(ctx context.Context, o interface{}, resp []byte) {
	dump := fs.GetConfig(ctx).Dump
	if dump&(fs.DumpHeaders|fs.DumpBodies|fs.DumpAuth) == 0 {
		return
	}
	fs.Debugf(o, "%s", separatorResp)
	fs.Debugf(o, "HTTP RESPONSE")
	fs.Debugf(o, "%s", resp)
	fs.Debugf(o, "%s", separatorResp)
}
