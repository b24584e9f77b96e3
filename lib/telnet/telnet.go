// Package telnet handles the telnet escapes which may appear on an
// FTP control connection.
//
// The control connection is a minimal telnet (RFC 854) stream.  The
// server may embed option negotiation in it which we refuse, and the
// client uses the telnet synch sequence to interrupt a transfer.
package telnet

import (
	"bufio"
	"io"
)

// Telnet command bytes
const (
	SE   = 240 // end of subnegotiation
	DM   = 242 // data mark, the synch marker
	IP   = 244 // interrupt process
	SB   = 250 // start of subnegotiation
	WILL = 251
	WONT = 252
	DO   = 253
	DONT = 254
	IAC  = 255 // interpret as command
)

// Filter reads data bytes from a telnet stream, stripping and
// answering any commands embedded in it.
//
// Offers from the server are always refused: WILL and WONT are
// answered with DONT, DO and DONT with WONT.  Each answer is written
// and flushed to the peer as soon as it is seen.
type Filter struct {
	r *bufio.Reader
	w io.Writer
}

// NewFilter makes a Filter reading r and writing negotiation
// answers to w.  w may be nil in which case nothing is answered.
func NewFilter(r *bufio.Reader, w io.Writer) *Filter {
	return &Filter{r: r, w: w}
}

// answer sends IAC verb opt to the peer
func (f *Filter) answer(verb, opt byte) error {
	if f.w == nil {
		return nil
	}
	_, err := f.w.Write([]byte{IAC, verb, opt})
	if err != nil {
		return err
	}
	if fl, ok := f.w.(interface{ Flush() error }); ok {
		return fl.Flush()
	}
	return nil
}

// ReadByte returns the next data byte of the stream.
//
// An escaped IAC IAC is returned as a single 255 data byte.
func (f *Filter) ReadByte() (byte, error) {
	for {
		c, err := f.r.ReadByte()
		if err != nil {
			return 0, err
		}
		if c != IAC {
			return c, nil
		}
		verb, err := f.r.ReadByte()
		if err != nil {
			return 0, err
		}
		switch verb {
		case IAC:
			return IAC, nil
		case WILL, WONT:
			opt, err := f.r.ReadByte()
			if err != nil {
				return 0, err
			}
			if err = f.answer(DONT, opt); err != nil {
				return 0, err
			}
		case DO, DONT:
			opt, err := f.r.ReadByte()
			if err != nil {
				return 0, err
			}
			if err = f.answer(WONT, opt); err != nil {
				return 0, err
			}
		case SB:
			if err = f.skipSubnegotiation(); err != nil {
				return 0, err
			}
		default:
			// other commands carry no data
		}
	}
}

// skipSubnegotiation discards everything up to and including IAC SE
func (f *Filter) skipSubnegotiation() error {
	foundIAC := false
	for {
		c, err := f.r.ReadByte()
		if err != nil {
			return err
		}
		if foundIAC {
			if c == SE {
				return nil
			}
			foundIAC = false
		} else if c == IAC {
			foundIAC = true
		}
	}
}

// Synch returns the two halves of the telnet synch sequence used to
// abort a transfer.
//
// urgent is IAC IP IAC which must be sent as out of band data so the
// final IAC becomes the urgent byte.  inband is DM followed by the
// command line, sent normally straight afterwards.
func Synch(command string) (urgent, inband []byte) {
	urgent = []byte{IAC, IP, IAC}
	inband = make([]byte, 0, len(command)+3)
	inband = append(inband, DM)
	inband = append(inband, command...)
	inband = append(inband, '\r', '\n')
	return urgent, inband
}

// Escape doubles any IAC bytes in s so it can be sent as data on the
// control connection.
func Escape(s string) string {
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] == IAC {
			n++
		}
	}
	if n == 0 {
		return s
	}
	out := make([]byte, 0, len(s)+n)
	for i := 0; i < len(s); i++ {
		out = append(out, s[i])
		if s[i] == IAC {
			out = append(out, IAC)
		}
	}
	return string(out)
}
