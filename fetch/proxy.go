package fetch

import (
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/http/httpproxy"
)

// noProxyList turns a no_proxy value separated by spaces and/or
// commas into the comma separated form httpproxy wants.
func noProxyList(s string) string {
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ','
	}), ",")
}

// proxyFor returns the HTTP proxy to fetch t through or nil to go
// direct.
//
// The explicit Proxy option wins over http_proxy and ftp_proxy.
// Hosts matching no_proxy, and loopback addresses, are never proxied.
func (f *Fetcher) proxyFor(t *Target) (*url.URL, error) {
	var proxy string
	switch t.Scheme {
	case SchemeHTTP:
		proxy = f.opt.HTTPProxy
	case SchemeFTP:
		proxy = f.opt.FTPProxy
	default:
		return nil, nil
	}
	if f.opt.Proxy != "" {
		proxy = f.opt.Proxy
	}
	if proxy == "" {
		return nil, nil
	}
	cfg := httpproxy.Config{
		HTTPProxy: proxy,
		NoProxy:   noProxyList(f.opt.NoProxy),
	}
	// the proxy is always asked over http whatever the target scheme
	u, err := cfg.ProxyFunc()(&url.URL{Scheme: "http", Host: t.Address()})
	if err != nil {
		return nil, errors.Wrapf(err, "bad proxy %q", proxy)
	}
	if u != nil && u.Scheme != "http" {
		return nil, errors.Errorf("proxy %q: only http proxies are supported", proxy)
	}
	return u, nil
}
