// Package ftp implements the client side of the FTP protocol: the
// control session, data connection negotiation and the transfer
// engine.
package ftp

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rclone/ftpfetch/fs"
	"github.com/rclone/ftpfetch/fs/accounting"
	"github.com/rclone/ftpfetch/fs/fserrors"
	"github.com/rclone/ftpfetch/fs/fshttp"
	"github.com/rclone/ftpfetch/lib/telnet"
)

// DefaultPort is the well known FTP control port
const DefaultPort = 21

// aLongTimeAgo is a deadline in the past used to unblock reads
var aLongTimeAgo = time.Unix(1, 0)

// Session is a control connection to an FTP server and the state
// which goes with it.
//
// A Session isn't safe for concurrent use except for Kill.
type Session struct {
	opt  Options
	ci   *fs.ConfigInfo
	host string
	port int

	mu   sync.Mutex // protects conn and data so Kill can close them
	conn net.Conn
	data *dataConn

	w     *bufio.Writer
	rr    *replyReader
	peer  *net.TCPAddr
	local *net.TCPAddr

	pending  bool   // a reply is still to be read
	last     *Reply // the last reply read
	curType  TransferType
	reqType  TransferType
	mode     byte
	stru     byte
	passive  bool
	sendPort SendPortMode
	epsv4Bad bool
	epsv6Bad bool
	features map[Feature]FeatureState
	restart  int64
	system   string
	rateGet  *accounting.TokenBucket
	ratePut  *accounting.TokenBucket
}

// newSession makes an unconnected session
func newSession(ci *fs.ConfigInfo, host string, port int, opt Options) *Session {
	if port == 0 {
		port = DefaultPort
	}
	return &Session{
		opt:      opt,
		ci:       ci,
		host:     host,
		port:     port,
		curType:  TypeASCII,
		reqType:  TypeASCII,
		mode:     'S',
		stru:     'F',
		passive:  opt.Passive,
		sendPort: opt.SendPort,
		features: make(map[Feature]FeatureState),
		rateGet:  accounting.NewTokenBucket(opt.RateGet, opt.RateStep),
		ratePut:  accounting.NewTokenBucket(opt.RatePut, opt.RateStep),
	}
}

// lookup resolves host to the addresses to try in order.
//
// IPv4 mapped IPv6 addresses are dropped as the address family of
// the control connection decides which data connection commands are
// used.
func lookup(ctx context.Context, host string) ([]netip.Addr, error) {
	if ip, err := netip.ParseAddr(strings.Trim(host, "[]")); err == nil {
		return []netip.Addr{ip.Unmap()}, nil
	}
	resolved, err := net.DefaultResolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return nil, err
	}
	addrs := resolved[:0]
	for _, addr := range resolved {
		if addr.Is4In6() {
			continue
		}
		addrs = append(addrs, addr)
	}
	if len(addrs) == 0 {
		return nil, errors.Errorf("no usable address for %q", host)
	}
	return addrs, nil
}

// Connect makes a control connection to host:port and reads the
// server's banner.  A port of 0 means the default port.
//
// Each address host resolves to is tried in turn.  The session starts
// in ASCII type, stream mode and file structure.
func Connect(ctx context.Context, host string, port int, opt Options) (*Session, error) {
	ci := fs.GetConfig(ctx)
	s := newSession(ci, host, port, opt)
	addrs, err := lookup(ctx, host)
	if err != nil {
		return nil, &ConnectError{Host: host, Err: err}
	}
	dialer := fshttp.NewDialer(ci)
	var conn net.Conn
	for i, addr := range addrs {
		address := net.JoinHostPort(addr.String(), strconv.Itoa(s.port))
		conn, err = dialer.DialContext(ctx, "tcp", address)
		if err == nil {
			break
		}
		fs.Infof(s, "connect to address %s: %v", addr, err)
		if i+1 < len(addrs) {
			fs.Infof(s, "Trying %s...", addrs[i+1])
		}
	}
	if conn == nil {
		return nil, &ConnectError{Host: host, Err: err}
	}
	s.attach(conn)
	banner, err := s.getReply(ctx, false)
	if err == nil && banner.Class() >= ClassContinue {
		err = &ReplyError{Cmd: "connect", Code: banner.Code, Text: banner.Text()}
	}
	if err != nil {
		s.lostPeer()
		return nil, &ConnectError{Host: host, Err: err}
	}
	fs.Infof(s, "Connected to %s", conn.RemoteAddr())
	return s, nil
}

// attach conn as the control connection
func (s *Session) attach(conn net.Conn) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	r := bufio.NewReader(conn)
	s.w = bufio.NewWriter(conn)
	s.rr = &replyReader{f: telnet.NewFilter(r, s.w), maxLine: s.opt.MaxReplyLine}
	s.peer, _ = conn.RemoteAddr().(*net.TCPAddr)
	s.local, _ = conn.LocalAddr().(*net.TCPAddr)
}

// String returns a description of the session for logging
func (s *Session) String() string {
	return "ftp://" + net.JoinHostPort(s.host, strconv.Itoa(s.port))
}

// Host returns the host name the session was made with
func (s *Session) Host() string {
	return s.host
}

// Connected returns whether the control connection is open
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Pending returns whether a reply is still to be read
func (s *Session) Pending() bool {
	return s.pending
}

// LastReply returns the last reply read or nil
func (s *Session) LastReply() *Reply {
	return s.last
}

// System returns the SYST reply text seen at login
func (s *Session) System() string {
	return s.system
}

// Passive returns whether passive data connections are used
func (s *Session) Passive() bool {
	return s.passive
}

// SetPassive chooses passive or active data connections
func (s *Session) SetPassive(passive bool) {
	s.passive = passive
}

// Type returns the transfer type used for file transfers
func (s *Session) Type() TransferType {
	return s.reqType
}

// SetTransferType sets the type used for the following file
// transfers.  The TYPE command is sent when a transfer needs it.
func (s *Session) SetTransferType(t TransferType) {
	s.reqType = t
}

// SetRestart sets the offset the next transfer starts at.  It is
// reset to 0 by every transfer attempt.
func (s *Session) SetRestart(offset int64) {
	s.restart = offset
}

// StepRate raises or lowers both rate limits by their step
func (s *Session) StepRate(up bool) {
	for _, tb := range []*accounting.TokenBucket{s.rateGet, s.ratePut} {
		if up {
			tb.StepUp()
		} else {
			tb.StepDown()
		}
	}
}

// redact hides the argument of commands carrying secrets
func redact(line string) string {
	verb := strings.ToUpper(line)
	for _, secret := range []string{"PASS ", "ACCT "} {
		if strings.HasPrefix(verb, secret) {
			return line[:len(secret)] + "XXXX"
		}
	}
	return line
}

// verbOf returns the command verb of line in upper case
func verbOf(line string) string {
	verb := line
	if i := strings.IndexByte(line, ' '); i >= 0 {
		verb = line[:i]
	}
	return strings.ToUpper(verb)
}

// Command formats and sends a command then reads its reply.
//
// Any reply left unread by an earlier interrupted command is read
// first.  The reply is returned whatever its class.  An error means
// the command's outcome is unknown: the connection was lost
// (ErrConnectionLost), the wait was cancelled (ErrAborted) or timed
// out (ErrTimeout).  After the last two the reply is still pending
// and is drained by the next command.
func (s *Session) Command(ctx context.Context, format string, args ...interface{}) (*Reply, error) {
	if !s.Connected() {
		return &Reply{Code: -1}, ErrNotConnected
	}
	if s.pending {
		if err := s.Drain(ctx); err != nil {
			return nil, err
		}
	}
	line := fmt.Sprintf(format, args...)
	fs.Debugf(s, "---> %s", redact(line))
	if err := s.send(line); err != nil {
		return nil, err
	}
	s.pending = true
	return s.getReply(ctx, verbOf(line) == "QUIT")
}

// send writes line to the control connection
func (s *Session) send(line string) error {
	if s.ci.Timeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.ci.Timeout))
	}
	_, err := s.w.WriteString(telnet.Escape(line) + "\r\n")
	if err == nil {
		err = s.w.Flush()
	}
	_ = s.conn.SetWriteDeadline(time.Time{})
	if err != nil {
		fs.Errorf(s, "lost connection sending command: %v", err)
		s.lostPeer()
		return ErrConnectionLost
	}
	return nil
}

// readControl runs fn which reads from the control connection,
// bounding it by the timeout and cancelling it with ctx.
func (s *Session) readControl(ctx context.Context, fn func() error) error {
	conn := s.conn
	if conn == nil {
		return ErrNotConnected
	}
	if ctx.Err() != nil {
		return ErrAborted
	}
	if s.ci.Timeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.ci.Timeout))
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(aLongTimeAgo)
	})
	err := fn()
	stop()
	_ = conn.SetReadDeadline(time.Time{})
	if err == nil {
		return nil
	}
	switch {
	case ctx.Err() != nil:
		fs.Debugf(s, "reply wait interrupted")
		return ErrAborted
	case fserrors.IsTimeout(err):
		fs.Errorf(s, "timed out waiting for reply")
		return ErrTimeout
	case err == ErrReplyTooLong:
		return err
	}
	if _, ok := err.(*ProtocolError); ok {
		return err
	}
	fs.Errorf(s, "lost connection: %v", err)
	s.lostPeer()
	return ErrConnectionLost
}

// getReply reads one reply.
//
// A 421 reply means the server is closing the connection so the
// session is shut down too.
func (s *Session) getReply(ctx context.Context, expectEOF bool) (reply *Reply, err error) {
	err = s.readControl(ctx, func() (err error) {
		reply, err = s.rr.read(expectEOF)
		return err
	})
	if err != nil {
		return nil, err
	}
	for _, line := range reply.Lines {
		fs.Debugf(s, "<--- %s", line)
	}
	accounting.DefaultMetrics.OnReply(reply.Code)
	s.last = reply
	s.pending = reply.Class() == ClassPrelim
	if reply.Code == StatusNotAvailable {
		fs.Errorf(s, "%s", reply)
		s.lostPeer()
		return reply, ErrConnectionLost
	}
	return reply, nil
}

// Drain reads and discards replies left unread by an interrupted
// command until no reply is pending.
func (s *Session) Drain(ctx context.Context) error {
	for s.pending {
		var code int
		err := s.readControl(ctx, func() (err error) {
			code, err = s.rr.skip()
			return err
		})
		if err != nil {
			return err
		}
		fs.Debugf(s, "discarded reply %d", code)
		s.pending = code/100 == ClassPrelim
	}
	return nil
}

// expect sends a command and checks its reply has the class wanted
func (s *Session) expect(ctx context.Context, class int, format string, args ...interface{}) (*Reply, error) {
	reply, err := s.Command(ctx, format, args...)
	if err != nil {
		return reply, err
	}
	if reply.Class() != class {
		return reply, replyError(format, args, reply)
	}
	return reply, nil
}

// replyError makes a ReplyError naming the verb of the command
func replyError(format string, args []interface{}, reply *Reply) error {
	return &ReplyError{
		Cmd:  verbOf(fmt.Sprintf(format, args...)),
		Code: reply.Code,
		Text: reply.Text(),
	}
}

// lostPeer shuts the session down after the connection has gone
func (s *Session) lostPeer() {
	s.kill()
	s.mu.Lock()
	s.conn = nil
	s.data = nil
	s.mu.Unlock()
	s.pending = false
}

// kill closes the sockets without touching any other state
func (s *Session) kill() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data != nil {
		_ = s.data.close()
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
}

// Kill closes the control and any data connection at once.
//
// It may be called from another goroutine to break out of a stuck
// transfer or abort.  The blocked call then fails and the session is
// left unconnected.
func (s *Session) Kill() {
	fs.Logf(s, "closing connection")
	s.kill()
}

// Quit says goodbye to the server and closes the session
func (s *Session) Quit(ctx context.Context) error {
	if !s.Connected() {
		return nil
	}
	_, err := s.Command(ctx, "QUIT")
	s.lostPeer()
	if err == ErrConnectionLost {
		err = nil
	}
	return err
}

// Close shuts the connection down without saying goodbye
func (s *Session) Close() error {
	s.lostPeer()
	return nil
}
