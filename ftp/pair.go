package ftp

import (
	"context"
	"sync"

	"github.com/rclone/ftpfetch/fs"
)

// Pair is a primary session and an optional proxy session for third
// party transfers.  Switch swaps which of them is the primary.
type Pair struct {
	mu      sync.Mutex
	primary *Session
	proxy   *Session
}

// NewPair makes a Pair with primary and no proxy
func NewPair(primary *Session) *Pair {
	return &Pair{primary: primary}
}

// SetProxy sets the proxy session returning the one it replaces
func (p *Pair) SetProxy(s *Session) *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	old := p.proxy
	p.proxy = s
	return old
}

// Primary returns the session commands go to
func (p *Pair) Primary() *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.primary
}

// Proxy returns the other session or nil
func (p *Pair) Proxy() *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.proxy
}

// Switch swaps the primary and proxy sessions
func (p *Pair) Switch() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.proxy == nil {
		return ErrNoProxy
	}
	p.primary, p.proxy = p.proxy, p.primary
	return nil
}

// ThirdParty moves a file directly between the two servers.
//
// The proxy is put in passive mode and the primary is told to
// connect to it with PORT.  The primary then runs srcVerb on src and
// the proxy dstVerb on dst, one of them being RETR and the other
// STOR, STOU or APPE.  Both use the primary's transfer type.
//
// It is for an interactive client driving two connections; fetches
// never make a Pair.
func (p *Pair) ThirdParty(ctx context.Context, srcVerb, src, dstVerb, dst string) error {
	primary, proxy := p.Primary(), p.Proxy()
	if proxy == nil {
		return ErrNoProxy
	}
	if !primary.Connected() || !proxy.Connected() {
		return ErrNotConnected
	}
	t := primary.reqType
	if err := proxy.SetType(ctx, t); err != nil {
		return err
	}
	if err := primary.SetType(ctx, t); err != nil {
		return err
	}
	addr, err := proxy.pasv(ctx)
	if err != nil {
		fs.Errorf(proxy, "proxy server does not support third party transfers: %v", err)
		return err
	}
	if _, err = primary.expect(ctx, ClassComplete, "PORT %s", formatPASV(addr)); err != nil {
		return err
	}
	if _, err = primary.expect(ctx, ClassPrelim, "%s %s", srcVerb, src); err != nil {
		return err
	}
	if _, err = proxy.expect(ctx, ClassPrelim, "%s %s", dstVerb, dst); err != nil {
		if !isControlError(err) {
			p.abortBoth(ctx)
		}
		return err
	}
	for i, s := range []*Session{proxy, primary} {
		reply, err := s.getReply(ctx, false)
		if err == ErrAborted {
			p.abortBoth(ctx)
			return err
		}
		if err != nil {
			return err
		}
		if reply.Class() != ClassComplete {
			return &ReplyError{Cmd: []string{dstVerb, srcVerb}[i], Code: reply.Code, Text: reply.Text()}
		}
	}
	return nil
}

// abortBoth aborts whichever sessions are still in a transfer
func (p *Pair) abortBoth(ctx context.Context) {
	for _, s := range []*Session{p.Primary(), p.Proxy()} {
		if s != nil && s.Connected() && s.pending {
			_ = s.abort(ctx)
		}
	}
}
