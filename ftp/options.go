package ftp

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/rclone/ftpfetch/fs"
)

// SendPortMode says how the address for an active data connection
// is given to the server
type SendPortMode byte

// SendPortMode values
const (
	// SendPortDefault sends PORT or EPRT, retrying once with a plain
	// PORT on a fresh port if the server rejects it
	SendPortDefault SendPortMode = iota
	// SendPortOn always sends PORT or EPRT
	SendPortOn
	// SendPortOff sends nothing and listens on the control
	// connection's local port as RFC 959 describes
	SendPortOff
)

var sendPortModeToString = []string{
	SendPortDefault: "default",
	SendPortOn:      "on",
	SendPortOff:     "off",
}

// String turns a SendPortMode into a string
func (m SendPortMode) String() string {
	if int(m) >= len(sendPortModeToString) {
		return fmt.Sprintf("SendPortMode(%d)", m)
	}
	return sendPortModeToString[m]
}

// Set a SendPortMode
func (m *SendPortMode) Set(s string) error {
	for n, name := range sendPortModeToString {
		if strings.EqualFold(s, name) {
			*m = SendPortMode(n)
			return nil
		}
	}
	return errors.Errorf("unknown send port mode %q", s)
}

// Type of the value
func (m *SendPortMode) Type() string {
	return "string"
}

// Scan implements the fmt.Scanner interface
func (m *SendPortMode) Scan(s fmt.ScanState, ch rune) error {
	token, err := s.Token(true, nil)
	if err != nil {
		return err
	}
	return m.Set(string(token))
}

// TransferType is the representation type set with the TYPE command
type TransferType byte

// Transfer types
const (
	TypeASCII  TransferType = 'A'
	TypeImage  TransferType = 'I'
	TypeEBCDIC TransferType = 'E'
	TypeLocal  TransferType = 'L' // always sent as "L 8"
)

// String turns a TransferType into the name users know it by
func (t TransferType) String() string {
	switch t {
	case TypeASCII:
		return "ascii"
	case TypeImage:
		return "binary"
	case TypeEBCDIC:
		return "ebcdic"
	case TypeLocal:
		return "tenex"
	}
	return fmt.Sprintf("TransferType(%d)", t)
}

// arg is the argument to the TYPE command
func (t TransferType) arg() string {
	if t == TypeLocal {
		return "L 8"
	}
	return string(rune(t))
}

// Options control a session
type Options struct {
	Passive        bool          `config:"passive"`
	ActiveFallback bool          `config:"active_fallback"`
	EPSV4          bool          `config:"epsv4"`
	EPSV6          bool          `config:"epsv6"`
	SendPort       SendPortMode  `config:"send_port"`
	DataPort       int           `config:"data_port"`
	RateGet        fs.SizeSuffix `config:"rate_get"`
	RatePut        fs.SizeSuffix `config:"rate_put"`
	RateStep       fs.SizeSuffix `config:"rate_step"`
	Hash           bool          `config:"hash"`
	HashBytes      fs.SizeSuffix `config:"hash_bytes"`
	Progress       bool          `config:"progress"`
	Preserve       bool          `config:"preserve"`
	Runique        bool          `config:"runique"`
	Sunique        bool          `config:"sunique"`
	AnonPass       string        `config:"anon_pass"`
	MaxReplyLine   int           `config:"max_reply_line"`
	Feedback       io.Writer     `config:"-"` // hash marks and progress meter, stdout if nil
}

// DefaultOptions returns the options a new session uses
func DefaultOptions() Options {
	return Options{
		Passive:        true,
		ActiveFallback: true,
		EPSV4:          true,
		EPSV6:          true,
		SendPort:       SendPortDefault,
		HashBytes:      1024,
		Preserve:       true,
		MaxReplyLine:   DefaultMaxReplyLine,
	}
}
