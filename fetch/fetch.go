// Package fetch fetches files named by ftp://, http:// and file://
// URLs, or by the classic [user@]host:path form, to local files.
package fetch

import (
	"context"
	"sync"

	"github.com/patrickmn/go-cache"
	"github.com/rclone/ftpfetch/fs"
	"github.com/rclone/ftpfetch/fs/accounting"
	"github.com/rclone/ftpfetch/fs/config/configstruct"
	"github.com/rclone/ftpfetch/ftp"
	"github.com/rclone/ftpfetch/lib/env"
)

// Options control a Fetcher
type Options struct {
	Proxy     string      `config:"proxy"`      // overrides ftp_proxy and http_proxy
	FTPProxy  string      `config:"ftp_proxy"`  // http proxy for ftp:// URLs
	HTTPProxy string      `config:"http_proxy"` // http proxy for http:// URLs
	NoProxy   string      `config:"no_proxy"`   // hosts to reach directly
	UserAgent string      `config:"user_agent"` // empty for the default
	Resume    bool        `config:"resume"`
	Output    string      `config:"output"` // local name, "-" for stdout
	FTP       ftp.Options `config:"-"`
}

// DefaultOptions returns the options with nothing set by the user
func DefaultOptions() Options {
	return Options{
		FTP: ftp.DefaultOptions(),
	}
}

// envNames are the options read from conventional variables
var envNames = map[string]string{
	"ftp_proxy":  "ftp_proxy",
	"http_proxy": "http_proxy",
	"no_proxy":   "no_proxy",
	"user_agent": "FTPUSERAGENT",
	"anon_pass":  "FTPANONPASS",
}

// NewOptionsFromEnv returns the default options updated from the
// environment
func NewOptionsFromEnv() (Options, error) {
	opt := DefaultOptions()
	getter := env.Getter{Prefix: fs.EnvPrefix, Names: envNames}
	if err := configstruct.Set(getter, &opt); err != nil {
		return opt, err
	}
	if err := configstruct.Set(getter, &opt.FTP); err != nil {
		return opt, err
	}
	return opt, nil
}

// Fetcher fetches targets one at a time
type Fetcher struct {
	opt    Options
	prompt Prompter
	creds  ftp.Credentials
	auth   *cache.Cache // Basic credentials by host and realm
	rate   *accounting.TokenBucket

	mu        sync.Mutex
	kill      func()       // drops the connection of the running fetch
	session   *ftp.Session // running ftp session if any
	redirects int
}

// NewFetcher makes a Fetcher.  prompt and creds may be nil.
func NewFetcher(opt Options, prompt Prompter, creds ftp.Credentials) *Fetcher {
	return &Fetcher{
		opt:    opt,
		prompt: prompt,
		creds:  creds,
		auth:   cache.New(cache.NoExpiration, 0),
		rate:   accounting.NewTokenBucket(opt.FTP.RateGet, opt.FTP.RateStep),
	}
}

// String is used in log messages
func (f *Fetcher) String() string {
	return "fetch"
}

// setKill sets what Kill does, nil for nothing
func (f *Fetcher) setKill(kill func()) {
	f.mu.Lock()
	f.kill = kill
	f.mu.Unlock()
}

// Kill drops the connection of the running fetch without waiting
// for anything
func (f *Fetcher) Kill() {
	f.mu.Lock()
	kill := f.kill
	f.mu.Unlock()
	if kill != nil {
		kill()
	}
}

// setSession sets the running ftp session, nil for none
func (f *Fetcher) setSession(s *ftp.Session) {
	f.mu.Lock()
	f.session = s
	f.mu.Unlock()
	if s != nil {
		f.setKill(s.Kill)
	}
}

// StepRate raises or lowers the rate limits by their step
func (f *Fetcher) StepRate(up bool) {
	if up {
		f.rate.StepUp()
	} else {
		f.rate.StepDown()
	}
	f.mu.Lock()
	s := f.session
	f.mu.Unlock()
	if s != nil {
		s.StepRate(up)
	}
}

// Fetch fetches target to a local file.
//
// The local name is the Output option if set, otherwise the last
// part of the target's path.
func (f *Fetcher) Fetch(ctx context.Context, target string) error {
	f.redirects = 0
	return f.fetch(ctx, target)
}

// fetch is Fetch without resetting the redirect count
func (f *Fetcher) fetch(ctx context.Context, target string) error {
	t, err := Parse(target)
	if err != nil {
		return err
	}
	_, file, err := t.Split()
	if err != nil {
		return err
	}
	if file == "" && t.Scheme != SchemeHTTP {
		return ErrNoFile
	}
	local, err := localName(f.opt.Output, file)
	if err != nil {
		return err
	}
	switch t.Scheme {
	case SchemeHTTP:
		proxy, err := f.proxyFor(t)
		if err != nil {
			return err
		}
		return f.fetchHTTP(ctx, t, proxy, local)
	case SchemeFTP:
		proxy, err := f.proxyFor(t)
		if err != nil {
			return err
		}
		if proxy != nil {
			return f.fetchHTTP(ctx, t, proxy, local)
		}
		return f.fetchFTP(ctx, t, local)
	case SchemeClassic:
		return f.fetchFTP(ctx, t, local)
	case SchemeFile:
		return f.fetchFile(ctx, t, local)
	}
	return ErrUnsupportedScheme
}
