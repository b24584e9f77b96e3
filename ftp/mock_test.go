package ftp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rclone/ftpfetch/fs"
	"github.com/stretchr/testify/require"
)

// mockHandler answers one command on a mock connection
type mockHandler func(c *mockConn, arg string)

// mockServer is a scriptable FTP server for testing the client
// against.  Commands without a handler set get the default behaviour
// of a simple UNIX server.
type mockServer struct {
	t  *testing.T
	ln net.Listener

	mu       sync.Mutex
	banner   string
	commands []string
	handlers map[string]mockHandler
	files    map[string][]byte
	mdtm     map[string]string
	stored   map[string][]byte
	listing  string
	conns    []net.Conn
}

func newMockServer(t *testing.T) *mockServer {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &mockServer{
		t:        t,
		ln:       ln,
		banner:   "220 mock FTP server ready",
		handlers: make(map[string]mockHandler),
		files:    make(map[string][]byte),
		mdtm:     make(map[string]string),
		stored:   make(map[string][]byte),
		listing:  "file1\r\nfile2\r\n",
	}
	go srv.serve()
	t.Cleanup(srv.close)
	return srv
}

func (srv *mockServer) serve() {
	for {
		conn, err := srv.ln.Accept()
		if err != nil {
			return
		}
		srv.mu.Lock()
		srv.conns = append(srv.conns, conn)
		srv.mu.Unlock()
		c := &mockConn{srv: srv, conn: conn, r: bufio.NewReader(conn)}
		go c.serve()
	}
}

func (srv *mockServer) close() {
	_ = srv.ln.Close()
	srv.mu.Lock()
	defer srv.mu.Unlock()
	for _, conn := range srv.conns {
		_ = conn.Close()
	}
}

func (srv *mockServer) port() int {
	return srv.ln.Addr().(*net.TCPAddr).Port
}

// handle sets the handler for verb
func (srv *mockServer) handle(verb string, h mockHandler) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	srv.handlers[verb] = h
}

// reject makes the server refuse verb with reply
func (srv *mockServer) reject(verb, reply string) {
	srv.handle(verb, func(c *mockConn, arg string) {
		c.reply("%s", reply)
	})
}

func (srv *mockServer) setFile(name string, data []byte, mdtm string) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	srv.files[name] = data
	if mdtm != "" {
		srv.mdtm[name] = mdtm
	}
}

func (srv *mockServer) file(name string) ([]byte, bool) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	data, ok := srv.files[name]
	return data, ok
}

func (srv *mockServer) storedFile(name string) []byte {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return srv.stored[name]
}

// received returns the command lines read so far
func (srv *mockServer) received() []string {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return append([]string(nil), srv.commands...)
}

// verbs returns the verbs of the commands read so far
func (srv *mockServer) verbs() []string {
	var verbs []string
	for _, line := range srv.received() {
		verbs = append(verbs, verbOf(line))
	}
	return verbs
}

// mockConn is one client connection to the mock server
type mockConn struct {
	srv  *mockServer
	conn net.Conn
	r    *bufio.Reader
	wmu  sync.Mutex

	pasv net.Listener // passive listener waiting for the client
	port string       // active address to connect to
	rest int64

	dmu     sync.Mutex
	dc      net.Conn
	done    chan struct{}
	aborted bool
}

func (c *mockConn) reply(format string, args ...interface{}) {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_, _ = fmt.Fprintf(c.conn, format+"\r\n", args...)
}

// readCommand reads a command line, dropping any telnet IP and
// synch bytes in front of it
func (c *mockConn) readCommand() (string, error) {
	line, err := c.r.ReadString('\n')
	if err != nil {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	i := 0
	for i < len(line) && line[i] >= 0x80 {
		i++
	}
	return line[i:], nil
}

func (c *mockConn) serve() {
	c.srv.mu.Lock()
	banner := c.srv.banner
	c.srv.mu.Unlock()
	c.reply("%s", banner)
	for {
		line, err := c.readCommand()
		if err != nil {
			return
		}
		verb, arg := line, ""
		if i := strings.IndexByte(line, ' '); i >= 0 {
			verb, arg = line[:i], line[i+1:]
		}
		verb = strings.ToUpper(verb)
		c.srv.mu.Lock()
		c.srv.commands = append(c.srv.commands, line)
		h := c.srv.handlers[verb]
		c.srv.mu.Unlock()
		if h == nil {
			h = mockHandlers[verb]
		}
		if h == nil {
			c.reply("500 '%s': command not understood.", verb)
			continue
		}
		h(c, arg)
		if verb == "QUIT" {
			_ = c.conn.Close()
			return
		}
	}
}

// listen opens a passive listener
func (c *mockConn) listen() (*net.TCPAddr, error) {
	if c.pasv != nil {
		_ = c.pasv.Close()
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	c.pasv = ln
	c.port = ""
	return ln.Addr().(*net.TCPAddr), nil
}

// openData makes the data connection set up by the last PASV, EPSV,
// PORT or EPRT
func (c *mockConn) openData() (net.Conn, error) {
	if c.pasv != nil {
		ln := c.pasv.(*net.TCPListener)
		c.pasv = nil
		defer func() {
			_ = ln.Close()
		}()
		_ = ln.SetDeadline(time.Now().Add(5 * time.Second))
		return ln.Accept()
	}
	if c.port != "" {
		address := c.port
		c.port = ""
		return net.DialTimeout("tcp", address, 5*time.Second)
	}
	return nil, errors.New("no data connection set up")
}

// transfer runs fn on the data connection in the background then
// sends the final reply
func (c *mockConn) transfer(fn func(dc net.Conn) error) {
	c.reply("150 Opening BINARY mode data connection.")
	dc, err := c.openData()
	if err != nil {
		c.reply("425 Can't open data connection.")
		return
	}
	done := make(chan struct{})
	c.dmu.Lock()
	c.dc, c.done, c.aborted = dc, done, false
	c.dmu.Unlock()
	go func() {
		defer close(done)
		err := fn(dc)
		_ = dc.Close()
		c.dmu.Lock()
		aborted := c.aborted
		c.dc, c.done = nil, nil
		c.dmu.Unlock()
		if aborted {
			return
		}
		if err != nil {
			c.reply("426 Connection closed; transfer aborted.")
			return
		}
		c.reply("226 Transfer complete.")
	}()
}

// waitTransfer waits for the running transfer to finish
func (c *mockConn) waitTransfer() {
	c.dmu.Lock()
	done := c.done
	c.dmu.Unlock()
	if done != nil {
		<-done
	}
}

// sendData sends data, or loops sending it forever if forever is set
func sendData(data []byte, forever bool) func(dc net.Conn) error {
	return func(dc net.Conn) error {
		for {
			if _, err := dc.Write(data); err != nil {
				return err
			}
			if !forever {
				return nil
			}
		}
	}
}

var mockHandlers map[string]mockHandler

func init() {
	ok := func(reply string) mockHandler {
		return func(c *mockConn, arg string) {
			c.reply("%s", reply)
		}
	}
	mockHandlers = map[string]mockHandler{
		"USER": ok("331 Password required."),
		"PASS": ok("230 User logged in."),
		"ACCT": ok("230 Account accepted."),
		"SYST": ok("215 UNIX Type: L8"),
		"NOOP": ok("200 NOOP command successful."),
		"CWD":  ok("250 CWD command successful."),
		"CDUP": ok("250 CDUP command successful."),
		"MKD":  ok(`257 "new" directory created.`),
		"RMD":  ok("250 RMD command successful."),
		"DELE": ok("250 DELE command successful."),
		"RNFR": ok("350 File exists, ready for destination name."),
		"RNTO": ok("250 RNTO command successful."),
		"PWD":  ok(`257 "/home/""quoted""" is the current directory.`),
		"QUIT": ok("221 Goodbye."),
		"TYPE": func(c *mockConn, arg string) {
			c.reply("200 Type set to %s.", arg)
		},
		"FEAT": func(c *mockConn, arg string) {
			c.reply("211-Features:")
			c.reply(" MDTM")
			c.reply(" REST STREAM")
			c.reply(" SIZE")
			c.reply("211 End")
		},
		"PASV": func(c *mockConn, arg string) {
			addr, err := c.listen()
			if err != nil {
				c.reply("425 Can't open passive connection.")
				return
			}
			c.reply("227 Entering Passive Mode (%s).", formatPASV(addr))
		},
		"EPSV": func(c *mockConn, arg string) {
			addr, err := c.listen()
			if err != nil {
				c.reply("425 Can't open passive connection.")
				return
			}
			c.reply("229 Entering Extended Passive Mode (|||%d|)", addr.Port)
		},
		"PORT": func(c *mockConn, arg string) {
			addr, err := parsePASV(arg)
			if err != nil {
				c.reply("501 Illegal PORT command.")
				return
			}
			c.port = addr.String()
			c.reply("200 PORT command successful.")
		},
		"EPRT": func(c *mockConn, arg string) {
			fields := strings.Split(strings.Trim(arg, "|"), "|")
			if len(fields) != 3 {
				c.reply("501 Illegal EPRT command.")
				return
			}
			c.port = net.JoinHostPort(fields[1], fields[2])
			c.reply("200 EPRT command successful.")
		},
		"REST": func(c *mockConn, arg string) {
			n, err := strconv.ParseInt(arg, 10, 64)
			if err != nil {
				c.reply("501 Bad restart point.")
				return
			}
			c.rest = n
			c.reply("350 Restarting at %d. Send STORE or RETRIEVE to initiate transfer.", n)
		},
		"SIZE": func(c *mockConn, arg string) {
			data, ok := c.srv.file(arg)
			if !ok {
				c.reply("550 %s: No such file or directory.", arg)
				return
			}
			c.reply("213 %d", len(data))
		},
		"MDTM": func(c *mockConn, arg string) {
			c.srv.mu.Lock()
			ts, ok := c.srv.mdtm[arg]
			c.srv.mu.Unlock()
			if !ok {
				c.reply("550 %s: No such file or directory.", arg)
				return
			}
			c.reply("213 %s", ts)
		},
		"RETR": func(c *mockConn, arg string) {
			data, ok := c.srv.file(arg)
			if !ok {
				c.rest = 0
				c.reply("550 %s: No such file or directory.", arg)
				return
			}
			rest := c.rest
			c.rest = 0
			if rest > int64(len(data)) {
				rest = int64(len(data))
			}
			c.transfer(sendData(data[rest:], false))
		},
		"LIST": func(c *mockConn, arg string) {
			c.srv.mu.Lock()
			listing := c.srv.listing
			c.srv.mu.Unlock()
			c.transfer(sendData([]byte(listing), false))
		},
		"STOR": mockStore(false),
		"APPE": mockStore(true),
		"STOU": func(c *mockConn, arg string) {
			c.reply("150 FILE: %s.1", arg)
			c.storeData(arg+".1", 0, false)
		},
		"ABOR": func(c *mockConn, arg string) {
			c.dmu.Lock()
			done := c.done
			if c.dc != nil {
				c.aborted = true
				_ = c.dc.Close()
			}
			c.dmu.Unlock()
			if done == nil {
				c.reply("225 ABOR command successful.")
				return
			}
			<-done
			c.reply("426 Transfer aborted. Data connection closed.")
			c.reply("226 Abort successful.")
		},
	}
	// NLST sends the same as LIST
	mockHandlers["NLST"] = mockHandlers["LIST"]
}

func mockStore(appendMode bool) mockHandler {
	return func(c *mockConn, arg string) {
		rest := c.rest
		c.rest = 0
		c.reply("150 Opening BINARY mode data connection for %s.", arg)
		c.storeData(arg, rest, appendMode)
	}
}

// storeData reads the data connection into the stored file.  The 150
// reply must have been sent already.
func (c *mockConn) storeData(name string, rest int64, appendMode bool) {
	dc, err := c.openData()
	if err != nil {
		c.reply("425 Can't open data connection.")
		return
	}
	go func() {
		data, err := io.ReadAll(dc)
		_ = dc.Close()
		c.srv.mu.Lock()
		old := c.srv.stored[name]
		switch {
		case appendMode:
			data = append(append([]byte(nil), old...), data...)
		case rest > 0 && rest <= int64(len(old)):
			data = append(append([]byte(nil), old[:rest]...), data...)
		}
		c.srv.stored[name] = data
		c.srv.mu.Unlock()
		if err != nil {
			c.reply("426 Connection closed; transfer aborted.")
			return
		}
		c.reply("226 Transfer complete.")
	}()
}

// testContext returns a context with short timeouts
func testContext(t *testing.T) context.Context {
	ctx, ci := fs.AddConfig(context.Background())
	ci.Timeout = 5 * time.Second
	ci.ConnectTimeout = 5 * time.Second
	ci.AbortTimeout = 5 * time.Second
	return ctx
}

// testOptions returns session options which keep the output quiet
func testOptions() Options {
	opt := DefaultOptions()
	opt.Feedback = io.Discard
	return opt
}

// connect makes a session to srv
func connect(t *testing.T, srv *mockServer, opt Options) *Session {
	s, err := Connect(testContext(t), "127.0.0.1", srv.port(), opt)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

// login makes a logged in session to srv
func login(t *testing.T, srv *mockServer, opt Options) *Session {
	s := connect(t, srv, opt)
	require.NoError(t, s.Login(testContext(t), "user", "secret", ""))
	return s
}
