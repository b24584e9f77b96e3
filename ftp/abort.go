package ftp

import (
	"context"
	"io"
	"time"

	"github.com/rclone/ftpfetch/fs"
	"github.com/rclone/ftpfetch/lib/telnet"
)

// abort stops the transfer in progress.
//
// The server is interrupted with Telnet IP and Synch before ABOR is
// sent, whatever is left on the data connection is thrown away and
// then the replies for the transfer and for the ABOR are read.  If
// any of that fails the connection is dropped.
func (s *Session) abort(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	conn := s.conn
	if conn == nil {
		_ = s.closeData()
		return ErrConnectionLost
	}
	fs.Debugf(s, "---> ABOR")
	urgent, inband := telnet.Synch("ABOR")
	err := sendUrgent(conn, urgent)
	if err == nil {
		_, err = s.w.Write(inband)
	}
	if err == nil {
		err = s.w.Flush()
	}
	if err != nil {
		return s.abortFailed(err)
	}

	s.mu.Lock()
	d := s.data
	s.mu.Unlock()
	if d != nil && d.sending {
		// nothing to read back, and the server may be waiting for the close
		_ = s.closeData()
	} else if d != nil && d.raw != nil {
		_ = d.raw.SetReadDeadline(time.Now().Add(s.ci.AbortTimeout))
		n, _ := io.Copy(io.Discard, d.raw)
		if n > 0 {
			fs.Debugf(s, "discarded %d bytes of data", n)
		}
	}
	_ = s.closeData()

	s.pending = true
	reply, err := s.getReply(ctx, false)
	if err != nil {
		return s.abortFailed(err)
	}
	if reply.Code == StatusExceededStorage {
		// 552 may come before the transfer reply on a send
		if reply, err = s.getReply(ctx, false); err != nil {
			return s.abortFailed(err)
		}
		if reply.Class() == ClassComplete {
			return nil
		}
	}
	if _, err = s.getReply(ctx, false); err != nil {
		return s.abortFailed(err)
	}
	return nil
}

// abortFailed gives up on the connection
func (s *Session) abortFailed(err error) error {
	if err != ErrConnectionLost {
		fs.Errorf(s, "abort failed: %v", err)
		s.lostPeer()
	}
	return ErrConnectionLost
}
