package ftp

import (
	"context"
	"net"
	"regexp"
	"time"

	"github.com/rclone/ftpfetch/fs"
	"github.com/rclone/ftpfetch/fs/fshttp"
)

// dataState is where a data connection has got to
type dataState byte

const (
	dataIdle dataState = iota
	dataNegotiatingPassive
	dataListening
	dataAwaitingPeer
	dataConnected
	dataClosed
)

var dataStateToString = []string{
	dataIdle:               "idle",
	dataNegotiatingPassive: "negotiating passive",
	dataListening:          "listening",
	dataAwaitingPeer:       "awaiting peer",
	dataConnected:          "connected",
	dataClosed:             "closed",
}

func (st dataState) String() string {
	return dataStateToString[st]
}

// dataConn is the data connection of one transfer.  A session has at
// most one.
type dataConn struct {
	state    dataState
	passive  bool
	addr     *net.TCPAddr // the address connected to or listened on
	listener net.Listener
	raw      net.Conn // the socket itself
	conn     net.Conn // raw with the idle timeout applied
	sending  bool     // data goes to the server
}

// close closes the sockets.  It is safe to call more than once and
// from Kill.
func (d *dataConn) close() error {
	var err error
	if d.listener != nil {
		err = d.listener.Close()
	}
	if d.raw != nil {
		if cerr := d.raw.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// setConn installs the connected socket
func (s *Session) setConn(d *dataConn, conn net.Conn) {
	timed, _ := fshttp.NewTimeoutConn(conn, s.ci.Timeout)
	s.mu.Lock()
	d.raw = conn
	d.conn = timed
	d.state = dataConnected
	s.mu.Unlock()
}

// closeData closes and forgets the data connection if there is one
func (s *Session) closeData() error {
	s.mu.Lock()
	d := s.data
	s.data = nil
	s.mu.Unlock()
	if d == nil {
		return nil
	}
	err := d.close()
	d.state = dataClosed
	return err
}

// isControlError is true for errors which leave the control
// connection unusable for now, so nothing else should be tried.
func isControlError(err error) bool {
	switch err {
	case ErrConnectionLost, ErrNotConnected, ErrAborted, ErrTimeout:
		return true
	}
	return false
}

// openData negotiates the data connection for the next transfer.
//
// In passive mode the connection is made straight away.  In active
// mode it is left listening until acceptData is called after the
// transfer command.
func (s *Session) openData(ctx context.Context) (*dataConn, error) {
	s.mu.Lock()
	busy := s.data != nil
	s.mu.Unlock()
	if busy {
		return nil, ErrDataConnBusy
	}
	if !s.Connected() || s.peer == nil || s.local == nil {
		return nil, ErrNotConnected
	}
	d := &dataConn{}
	s.mu.Lock()
	s.data = d
	s.mu.Unlock()
	var err error
	if s.passive {
		err = s.passiveData(ctx, d)
		if err != nil && !isControlError(err) && s.opt.ActiveFallback {
			fs.Logf(s, "Passive mode failed, trying active mode: %v", err)
			_ = d.close()
			s.passive = false
			*d = dataConn{}
			err = s.activeData(ctx, d)
		}
	} else {
		err = s.activeData(ctx, d)
	}
	if err != nil {
		_ = s.closeData()
		return nil, err
	}
	return d, nil
}

// passiveData asks the server for an address with EPSV, PASV or LPSV
// and connects to it
func (s *Session) passiveData(ctx context.Context, d *dataConn) error {
	d.passive = true
	d.state = dataNegotiatingPassive
	ipv6 := s.peer.IP.To4() == nil
	var (
		addr *net.TCPAddr
		err  error
	)
	if ipv6 && s.opt.EPSV6 && !s.epsv6Bad || !ipv6 && s.opt.EPSV4 && !s.epsv4Bad {
		addr, err = s.epsv(ctx)
		if isControlError(err) {
			return err
		}
		if err != nil {
			fs.Debugf(s, "not using EPSV again: %v", err)
			if ipv6 {
				s.epsv6Bad = true
			} else {
				s.epsv4Bad = true
			}
		}
	}
	if addr == nil {
		if ipv6 {
			addr, err = s.lpsv(ctx)
		} else {
			addr, err = s.pasv(ctx)
		}
		if err != nil {
			return err
		}
	}
	d.addr = addr
	fs.Debugf(s, "data connection to %v", addr)
	conn, err := fshttp.NewDialer(s.ci).DialContext(ctx, "tcp", addr.String())
	if err != nil {
		if ctx.Err() != nil {
			return ErrAborted
		}
		return &DataConnectionError{Op: "connect", Err: err}
	}
	s.setConn(d, conn)
	return nil
}

// epsv sends EPSV and returns the server's address with the port it
// gave
func (s *Session) epsv(ctx context.Context) (*net.TCPAddr, error) {
	reply, err := s.Command(ctx, "EPSV")
	if err != nil {
		return nil, err
	}
	if reply.Code != StatusExtendedPassiveMode {
		return nil, &ReplyError{Cmd: "EPSV", Code: reply.Code, Text: reply.Text()}
	}
	port, err := parseEPSV(reply.Addr)
	if err != nil {
		return nil, err
	}
	return &net.TCPAddr{IP: s.peer.IP, Port: port, Zone: s.peer.Zone}, nil
}

// pasvNumbers finds h1,h2,h3,h4,p1,p2 in a 227 reply which doesn't
// put it in parentheses
var pasvNumbers = regexp.MustCompile(`\d+,\d+,\d+,\d+,\d+,\d+`)

// pasv sends PASV and returns the address the server gave
func (s *Session) pasv(ctx context.Context) (*net.TCPAddr, error) {
	reply, err := s.Command(ctx, "PASV")
	if err != nil {
		return nil, err
	}
	if reply.Code != StatusPassiveMode {
		return nil, &ReplyError{Cmd: "PASV", Code: reply.Code, Text: reply.Text()}
	}
	body := reply.Addr
	if body == "" {
		body = pasvNumbers.FindString(reply.Text())
	}
	return parsePASV(body)
}

// lpsv sends LPSV and returns the address the server gave
func (s *Session) lpsv(ctx context.Context) (*net.TCPAddr, error) {
	reply, err := s.Command(ctx, "LPSV")
	if err != nil {
		return nil, err
	}
	if reply.Code != StatusLongPassiveMode {
		return nil, &ReplyError{Cmd: "LPSV", Code: reply.Code, Text: reply.Text()}
	}
	return parseLPSV(reply.Addr, s.peer.IP.To4() == nil)
}

// activeData listens for the server and tells it where
func (s *Session) activeData(ctx context.Context, d *dataConn) error {
	d.passive = false
	switch {
	case s.sendPort == SendPortOff:
		// RFC 959 default data port, the port of the control connection
		if err := s.listen(ctx, d, s.local.Port, false); err != nil {
			return err
		}
		d.state = dataAwaitingPeer
		return nil
	case s.opt.DataPort > 0:
		if err := s.listen(ctx, d, s.opt.DataPort, true); err != nil {
			return err
		}
	default:
		if err := s.listen(ctx, d, 0, false); err != nil {
			return err
		}
	}
	err := s.sendPortCommand(ctx, d.addr, false)
	if err != nil && !isControlError(err) && s.sendPort == SendPortDefault {
		fs.Debugf(s, "%v: trying again with a new port", err)
		_ = d.listener.Close()
		d.listener = nil
		if err = s.listen(ctx, d, 0, false); err != nil {
			return err
		}
		err = s.sendPortCommand(ctx, d.addr, true)
	}
	if err != nil {
		return err
	}
	d.state = dataAwaitingPeer
	return nil
}

// listen opens the listener on the control connection's local
// address.  A port chosen by the user is bound without address reuse.
func (s *Session) listen(ctx context.Context, d *dataConn, port int, explicit bool) error {
	d.state = dataListening
	lc := net.ListenConfig{}
	if explicit {
		lc.Control = noReuseAddr
	}
	address := (&net.TCPAddr{IP: s.local.IP, Port: port, Zone: s.local.Zone}).String()
	ln, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return &DataConnectionError{Op: "listen", Err: err}
	}
	s.mu.Lock()
	d.listener = ln
	s.mu.Unlock()
	d.addr = ln.Addr().(*net.TCPAddr)
	return nil
}

// sendPortCommand tells the server the address to connect to with
// EPRT, PORT or LPRT.  If plain is set EPRT isn't tried.
func (s *Session) sendPortCommand(ctx context.Context, addr *net.TCPAddr, plain bool) error {
	ipv4 := addr.IP.To4() != nil
	if !plain && (ipv4 && s.opt.EPSV4 && !s.epsv4Bad || !ipv4 && s.opt.EPSV6 && !s.epsv6Bad) {
		reply, err := s.Command(ctx, "EPRT %s", formatEPRT(addr))
		if err != nil {
			return err
		}
		if reply.Class() == ClassComplete {
			return nil
		}
		fs.Debugf(s, "not using EPRT again: %s", reply)
		if ipv4 {
			s.epsv4Bad = true
		} else {
			s.epsv6Bad = true
		}
	}
	verb, arg := "PORT", ""
	if ipv4 {
		arg = formatPASV(addr)
	} else {
		verb, arg = "LPRT", formatLPRT(addr)
	}
	_, err := s.expect(ctx, ClassComplete, "%s %s", verb, arg)
	return err
}

// acceptData waits for the server to connect in active mode.  It
// does nothing for a passive connection.
func (s *Session) acceptData(ctx context.Context, d *dataConn) error {
	if d.passive || d.raw != nil {
		return nil
	}
	ln := d.listener.(*net.TCPListener)
	if s.ci.Timeout > 0 {
		_ = ln.SetDeadline(time.Now().Add(s.ci.Timeout))
	}
	stop := context.AfterFunc(ctx, func() {
		_ = ln.SetDeadline(aLongTimeAgo)
	})
	conn, err := ln.Accept()
	stop()
	_ = ln.Close()
	if err != nil {
		if ctx.Err() != nil {
			return ErrAborted
		}
		return &DataConnectionError{Op: "accept", Err: err}
	}
	fs.Debugf(s, "data connection from %v", conn.RemoteAddr())
	s.setConn(d, conn)
	return nil
}
