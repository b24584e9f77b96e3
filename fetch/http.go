package fetch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rclone/ftpfetch/fs"
	"github.com/rclone/ftpfetch/fs/fshttp"
	"github.com/rclone/ftpfetch/ftp"
)

// maxRedirects is how many redirects a single Fetch follows
const maxRedirects = 5

// aLongTimeAgo is a deadline in the past used to unblock reads
var aLongTimeAgo = time.Unix(1, 0)

// response is the status and header of an HTTP response with the
// connection its body is still to be read from
type response struct {
	code   int
	status string
	header textproto.MIMEHeader
	body   *bufio.Reader
	raw    net.Conn
	stop   func() bool
}

func (r *response) close() {
	r.stop()
	_ = r.raw.Close()
}

// dialAddress returns host:port to connect to for u
func dialAddress(u *url.URL) string {
	port := u.Port()
	if port == "" {
		port = strconv.Itoa(DefaultHTTPPort)
	}
	return net.JoinHostPort(u.Hostname(), port)
}

// hostHeader returns the Host header for u, without any IPv6 zone
func hostHeader(u *url.URL) string {
	host := u.Hostname()
	if i := strings.IndexByte(host, '%'); i >= 0 {
		host = host[:i]
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port := u.Port(); port != "" {
		host += ":" + port
	}
	return host
}

// userAgent returns the User-Agent to send
func (f *Fetcher) userAgent(ctx context.Context) string {
	if f.opt.UserAgent != "" {
		return f.opt.UserAgent
	}
	return fs.GetConfig(ctx).UserAgent
}

// request makes the request header block to GET u
func (f *Fetcher) request(ctx context.Context, u, proxy *url.URL, restart int64, auth, proxyAuth string) string {
	var b strings.Builder
	if proxy != nil {
		full := *u
		full.User = nil
		fmt.Fprintf(&b, "GET %s HTTP/1.0\r\n", full.String())
	} else {
		fmt.Fprintf(&b, "GET %s HTTP/1.1\r\n", u.RequestURI())
		fmt.Fprintf(&b, "Host: %s\r\n", hostHeader(u))
	}
	fmt.Fprintf(&b, "Accept: */*\r\n")
	fmt.Fprintf(&b, "User-Agent: %s\r\n", f.userAgent(ctx))
	if restart > 0 {
		fmt.Fprintf(&b, "Range: bytes=%d-\r\n", restart)
	}
	if auth != "" {
		fmt.Fprintf(&b, "Authorization: %s\r\n", auth)
	}
	if proxyAuth != "" {
		fmt.Fprintf(&b, "Proxy-Authorization: %s\r\n", proxyAuth)
	}
	if proxy == nil {
		fmt.Fprintf(&b, "Connection: close\r\n")
	}
	b.WriteString("\r\n")
	return b.String()
}

// parseStatusLine splits "HTTP/1.1 200 OK" into 200 and "200 OK"
func parseStatusLine(line string) (code int, status string, err error) {
	proto, status, ok := strings.Cut(line, " ")
	if !ok || !strings.HasPrefix(proto, "HTTP/") {
		return 0, "", protocolErrorf("bad status line %q", line)
	}
	status = strings.TrimSpace(status)
	codeStr, _, _ := strings.Cut(status, " ")
	code, err = strconv.Atoi(codeStr)
	if err != nil || len(codeStr) != 3 {
		return 0, "", protocolErrorf("bad status code in %q", line)
	}
	return code, status, nil
}

// dumpHeader formats a status line and header for logging
func dumpHeader(line string, header textproto.MIMEHeader) []byte {
	var b strings.Builder
	b.WriteString(line)
	b.WriteString("\r\n")
	_ = http.Header(header).Write(&b)
	return []byte(b.String())
}

// netError turns err from the connection into ftp.ErrAborted if ctx
// was cancelled
func netError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ftp.ErrAborted
	}
	return err
}

// do sends a GET for u and reads the response header
func (f *Fetcher) do(ctx context.Context, u, proxy *url.URL, restart int64, auth, proxyAuth string) (*response, error) {
	ci := fs.GetConfig(ctx)
	address := dialAddress(u)
	if proxy != nil {
		address = dialAddress(proxy)
	}
	req := f.request(ctx, u, proxy, restart, auth, proxyAuth)
	fs.Infof(f, "Requesting %s", u.Redacted())
	raw, err := fshttp.NewDialer(ci).DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, &ftp.ConnectError{Host: address, Err: netError(ctx, err)}
	}
	f.setKill(func() { _ = raw.Close() })
	resp := &response{
		raw:  raw,
		stop: context.AfterFunc(ctx, func() { _ = raw.SetDeadline(aLongTimeAgo) }),
	}
	conn, err := fshttp.NewTimeoutConn(raw, ci.Timeout)
	if err != nil {
		resp.close()
		return nil, err
	}
	fshttp.DumpRequest(ctx, f, []byte(req))
	if _, err = io.WriteString(conn, req); err != nil {
		resp.close()
		return nil, netError(ctx, err)
	}
	resp.body = bufio.NewReader(conn)
	tp := textproto.NewReader(resp.body)
	line, err := tp.ReadLine()
	if err == nil {
		resp.code, resp.status, err = parseStatusLine(line)
	}
	if err == nil {
		resp.header, err = tp.ReadMIMEHeader()
	}
	if err != nil {
		resp.close()
		if err == io.EOF {
			err = protocolErrorf("connection closed before the response header")
		}
		return nil, netError(ctx, err)
	}
	fshttp.DumpResponse(ctx, f, dumpHeader(line, resp.header))
	fshttp.DefaultMetrics.OnResponse(u.Hostname(), resp.code)
	return resp, nil
}

// fetchHTTP fetches t with HTTP, directly or through proxy, to local
func (f *Fetcher) fetchHTTP(ctx context.Context, t *Target, proxy *url.URL, local string) error {
	u, err := url.Parse(t.URL())
	if err != nil {
		return errors.Wrap(err, "bad URL")
	}
	var userinfo *url.Userinfo
	if t.User != "" {
		userinfo = url.UserPassword(t.User, t.Pass)
	}
	restart, err := f.restartPoint(local)
	if err != nil {
		return err
	}
	var auth, proxyAuth string
	var authTries, proxyAuthTries int
	for {
		resp, err := f.do(ctx, u, proxy, restart, auth, proxyAuth)
		if err != nil {
			return err
		}
		switch resp.code {
		case http.StatusOK, http.StatusPartialContent:
			err = f.receive(ctx, resp, u, local, restart)
			resp.close()
			return err
		case http.StatusMultipleChoices, http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther, http.StatusUseProxy:
			resp.close()
			location := resp.header.Get("Location")
			if location == "" {
				return protocolErrorf("%s with no Location", resp.status)
			}
			next, err := u.Parse(location)
			if err != nil {
				return errors.Wrapf(err, "bad Location %q", location)
			}
			f.redirects++
			if f.redirects > maxRedirects {
				return ErrTooManyRedirects
			}
			if resp.code == http.StatusUseProxy {
				fs.Infof(f, "Using proxy %s", next.Redacted())
				proxy, proxyAuth, proxyAuthTries = next, "", 0
				continue
			}
			fs.Infof(f, "Redirected to %s", next.Redacted())
			return f.fetch(ctx, next.String())
		case http.StatusUnauthorized:
			resp.close()
			realm, err := parseRealm(resp.header.Get("WWW-Authenticate"))
			if err != nil {
				return errors.Wrap(err, resp.status)
			}
			if auth, err = f.authorize(u.Host, realm, userinfo, authTries > 0); err != nil {
				return err
			}
			authTries++
		case http.StatusProxyAuthRequired:
			resp.close()
			if proxy == nil {
				return &HTTPError{Code: resp.code, Status: resp.status}
			}
			realm, err := parseRealm(resp.header.Get("Proxy-Authenticate"))
			if err != nil {
				return errors.Wrap(err, resp.status)
			}
			if proxyAuth, err = f.authorize(proxy.Host, realm, proxy.User, proxyAuthTries > 0); err != nil {
				return err
			}
			proxyAuthTries++
		default:
			resp.close()
			return &HTTPError{Code: resp.code, Status: resp.status}
		}
	}
}

// parseContentRange parses "bytes start-end/total" where the range
// or the total may be "*".  Unknown values are returned as -1.
func parseContentRange(s string) (start, end, total int64, err error) {
	start, end, total = -1, -1, -1
	unit, spec, ok := strings.Cut(strings.TrimSpace(s), " ")
	if !ok || !strings.EqualFold(unit, "bytes") {
		return 0, 0, 0, protocolErrorf("bad Content-Range %q", s)
	}
	rng, totalStr, ok := strings.Cut(strings.TrimSpace(spec), "/")
	if !ok {
		return 0, 0, 0, protocolErrorf("bad Content-Range %q", s)
	}
	if rng != "*" {
		startStr, endStr, ok := strings.Cut(rng, "-")
		if !ok {
			return 0, 0, 0, protocolErrorf("bad Content-Range %q", s)
		}
		if start, err = strconv.ParseInt(startStr, 10, 64); err != nil {
			return 0, 0, 0, protocolErrorf("bad Content-Range %q", s)
		}
		if end, err = strconv.ParseInt(endStr, 10, 64); err != nil || end < start {
			return 0, 0, 0, protocolErrorf("bad Content-Range %q", s)
		}
	}
	if totalStr != "*" {
		if total, err = strconv.ParseInt(totalStr, 10, 64); err != nil || (end >= 0 && total <= end) {
			return 0, 0, 0, protocolErrorf("bad Content-Range %q", s)
		}
	}
	return start, end, total, nil
}

// receive reads the body of a 200 or 206 response into local
func (f *Fetcher) receive(ctx context.Context, resp *response, u *url.URL, local string, restart int64) (err error) {
	h := resp.header
	if resp.code == http.StatusPartialContent && restart == 0 {
		return protocolErrorf("%s to a request without a range", resp.status)
	}
	length := int64(-1)
	if cl := h.Get("Content-Length"); cl != "" {
		length, err = strconv.ParseInt(strings.TrimSpace(cl), 10, 64)
		if err != nil || length < 0 {
			return protocolErrorf("bad Content-Length %q", cl)
		}
	}
	size := length
	if cr := h.Get("Content-Range"); cr != "" {
		start, end, total, err := parseContentRange(cr)
		if err != nil {
			return err
		}
		if start != restart {
			return errors.Wrapf(ErrRestartMismatch, "asked for offset %d, got %q", restart, cr)
		}
		switch {
		case total >= 0:
			size = total
		case end >= 0:
			size = end + 1
		default:
			size = -1
		}
	} else if resp.code == http.StatusPartialContent {
		return protocolErrorf("%s with no Content-Range", resp.status)
	} else if restart > 0 {
		fs.Logf(f, "Server can't resume %s, fetching it from the start", u.Redacted())
		restart = 0
	}

	var mtime time.Time
	if lm := h.Get("Last-Modified"); lm != "" {
		if mtime, err = http.ParseTime(lm); err != nil {
			fs.Debugf(f, "Ignoring Last-Modified %q: %v", lm, err)
			mtime = time.Time{}
		}
	}

	var body io.Reader = resp.body
	switch te := strings.ToLower(strings.TrimSpace(h.Get("Transfer-Encoding"))); te {
	case "chunked":
		body, length = newChunkedReader(resp.body), -1
	case "binary":
		fs.Logf(f, "Ignoring Transfer-Encoding: binary")
		fallthrough
	case "":
		if length >= 0 {
			body = io.LimitReader(body, length)
		}
	default:
		return protocolErrorf("unsupported Transfer-Encoding %q", te)
	}
	name := u.Redacted()
	return f.save(ctx, body, name, local, size, restart, length, mtime)
}
