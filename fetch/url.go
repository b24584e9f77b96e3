package fetch

import (
	"net"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rclone/ftpfetch/ftp"
	"golang.org/x/net/idna"
)

// Scheme says how a Target is fetched
type Scheme string

// Schemes understood by Parse
const (
	SchemeFTP     Scheme = "ftp"
	SchemeHTTP    Scheme = "http"
	SchemeFile    Scheme = "file"
	SchemeClassic Scheme = "classic" // [user@]host:[path]
)

// Default ports
const (
	DefaultFTPPort  = 21
	DefaultHTTPPort = 80
)

// Target is a parsed fetch argument.
//
// Path is held still escaped. In the URL forms it starts with the
// slash which ended the host, in the classic form it is everything
// after the colon.
type Target struct {
	Scheme  Scheme
	User    string
	Pass    string
	HasPass bool
	Host    string // IPv6 literals without brackets, zone unescaped
	Port    int    // 0 for the default
	Path    string
	Type    ftp.TransferType // from ;type=, 0 if not given
}

// Parse a fetch argument.
//
// ftp://, http:// and file:// are recognised in any case.  Anything
// else with a colon before its first slash is taken as the classic
// [user@]host:[path] form.
func Parse(s string) (*Target, error) {
	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "ftp://"):
		return parseURL(SchemeFTP, s[len("ftp://"):])
	case strings.HasPrefix(lower, "http://"):
		return parseURL(SchemeHTTP, s[len("http://"):])
	case strings.HasPrefix(lower, "file://"):
		return parseFile(s[len("file://"):])
	case strings.Contains(lower, "://"):
		return nil, errors.Wrapf(ErrUnsupportedScheme, "%q", s)
	}
	colon := strings.IndexByte(s, ':')
	slash := strings.IndexByte(s, '/')
	if colon > 0 && (slash < 0 || colon < slash) {
		return parseClassic(s)
	}
	return nil, errors.Errorf("%q is not a URL or host:path", s)
}

func parseURL(scheme Scheme, rest string) (t *Target, err error) {
	t = &Target{Scheme: scheme}
	hostPart, p := rest, ""
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		hostPart, p = rest[:i], rest[i:]
	}
	if i := strings.LastIndexByte(hostPart, '@'); i >= 0 {
		userinfo := hostPart[:i]
		hostPart = hostPart[i+1:]
		user, pass, hasPass := strings.Cut(userinfo, ":")
		if user == "" {
			return nil, errors.New("empty user name in URL")
		}
		if t.User, err = url.PathUnescape(user); err != nil {
			return nil, errors.Wrap(err, "bad user name in URL")
		}
		if t.Pass, err = url.PathUnescape(pass); err != nil {
			return nil, errors.Wrap(err, "bad password in URL")
		}
		t.HasPass = hasPass
	}
	if t.Host, t.Port, err = splitHostPort(hostPart); err != nil {
		return nil, err
	}
	if scheme == SchemeFTP {
		if p, t.Type, err = splitType(p); err != nil {
			return nil, err
		}
	}
	t.Path = p
	return t, nil
}

// splitHostPort splits host[:port] allowing [v6]:port
func splitHostPort(hostPort string) (host string, port int, err error) {
	var portStr string
	if strings.HasPrefix(hostPort, "[") {
		end := strings.IndexByte(hostPort, ']')
		if end < 0 {
			return "", 0, errors.Errorf("missing ] in %q", hostPort)
		}
		host = hostPort[1:end]
		rest := hostPort[end+1:]
		if rest != "" {
			if rest[0] != ':' {
				return "", 0, errors.Errorf("junk after ] in %q", hostPort)
			}
			portStr = rest[1:]
		}
		if host, err = url.PathUnescape(host); err != nil {
			return "", 0, errors.Wrap(err, "bad IPv6 address")
		}
		if net.ParseIP(strings.SplitN(host, "%", 2)[0]) == nil {
			return "", 0, errors.Errorf("bad IPv6 address %q", host)
		}
	} else {
		host, portStr, _ = strings.Cut(hostPort, ":")
		if net.ParseIP(host) == nil && host != "" {
			if host, err = idna.ToASCII(host); err != nil {
				return "", 0, errors.Wrapf(err, "bad host name %q", hostPort)
			}
		}
	}
	if host == "" {
		return "", 0, errors.New("no host name")
	}
	if portStr != "" {
		n, err := strconv.ParseUint(portStr, 10, 16)
		if err != nil || n == 0 {
			return "", 0, errors.Errorf("bad port %q", portStr)
		}
		port = int(n)
	}
	return host, port, nil
}

// splitType removes a trailing ;type=X from an ftp path
func splitType(p string) (string, ftp.TransferType, error) {
	i := strings.LastIndex(p, ";type=")
	if i < 0 {
		return p, 0, nil
	}
	code := p[i+len(";type="):]
	p = p[:i]
	switch strings.ToLower(code) {
	case "a":
		return p, ftp.TypeASCII, nil
	case "i":
		return p, ftp.TypeImage, nil
	case "d":
		return "", 0, ErrDirectoryListing
	}
	return "", 0, errors.Errorf("unknown transfer type %q", code)
}

func parseFile(rest string) (*Target, error) {
	host, p := rest, ""
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		host, p = rest[:i], rest[i:]
	}
	if host != "" && !strings.EqualFold(host, "localhost") {
		return nil, errors.Errorf("file:// URLs can only refer to localhost, not %q", host)
	}
	if p == "" {
		return nil, ErrNoFile
	}
	return &Target{Scheme: SchemeFile, Host: host, Path: p}, nil
}

func parseClassic(s string) (*Target, error) {
	colon := strings.IndexByte(s, ':')
	hostPart, p := s[:colon], s[colon+1:]
	t := &Target{Scheme: SchemeClassic, Path: p}
	if i := strings.LastIndexByte(hostPart, '@'); i >= 0 {
		t.User, hostPart = hostPart[:i], hostPart[i+1:]
		if t.User == "" {
			return nil, errors.Errorf("empty user name in %q", s)
		}
	}
	if hostPart == "" {
		return nil, errors.Errorf("no host name in %q", s)
	}
	t.Host = hostPart
	return t, nil
}

// Split returns the directories to change into in turn and the file
// to fetch.
//
// A URL path is split on literal slashes after the one which ended
// the host, and each part is unescaped afterwards, so %2F stays
// inside its part.  An empty part gives a CWD with no argument.
//
// A classic path is used as written: its whole directory part is a
// single CWD, which is "/" for a file in the root.
func (t *Target) Split() (dirs []string, file string, err error) {
	if t.Scheme == SchemeClassic {
		i := strings.LastIndexByte(t.Path, '/')
		if i < 0 {
			return nil, t.Path, nil
		}
		dir := t.Path[:i]
		if dir == "" {
			dir = "/"
		}
		return []string{dir}, t.Path[i+1:], nil
	}
	p := strings.TrimPrefix(t.Path, "/")
	if p == "" {
		return nil, "", nil
	}
	parts := strings.Split(p, "/")
	for i, part := range parts {
		if parts[i], err = url.PathUnescape(part); err != nil {
			return nil, "", errors.Wrapf(err, "bad path %q", t.Path)
		}
	}
	return parts[:len(parts)-1], parts[len(parts)-1], nil
}

// LocalPath returns the unescaped path of a file:// target
func (t *Target) LocalPath() (string, error) {
	return url.PathUnescape(t.Path)
}

// DefaultPort returns the port used when none is given
func (t *Target) DefaultPort() int {
	if t.Scheme == SchemeHTTP {
		return DefaultHTTPPort
	}
	return DefaultFTPPort
}

// Address returns host:port to dial
func (t *Target) Address() string {
	port := t.Port
	if port == 0 {
		port = t.DefaultPort()
	}
	return net.JoinHostPort(t.Host, strconv.Itoa(port))
}

// URL returns t as an absolute URL without any credentials
func (t *Target) URL() string {
	scheme := t.Scheme
	if scheme == SchemeClassic {
		scheme = SchemeFTP
	}
	host := t.Host
	if strings.Contains(host, ":") {
		host = "[" + strings.ReplaceAll(host, "%", "%25") + "]"
	}
	if t.Port != 0 {
		host += ":" + strconv.Itoa(t.Port)
	}
	p := t.Path
	if t.Scheme == SchemeClassic {
		p = "/" + p
	}
	if p == "" {
		p = "/"
	}
	switch t.Type {
	case ftp.TypeASCII:
		p += ";type=a"
	case ftp.TypeImage:
		p += ";type=i"
	}
	return string(scheme) + "://" + host + p
}

// localName works out the local file to write for remote file name
// file, output overriding it if set.
func localName(output, file string) (string, error) {
	if output != "" {
		return output, nil
	}
	name := path.Base(strings.ReplaceAll(file, "\\", "/"))
	if file == "" || name == "/" || name == "." || name == ".." {
		return "", ErrNoFile
	}
	return name, nil
}
