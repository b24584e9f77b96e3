package ftp

import (
	"io"
	"strings"

	"github.com/rclone/ftpfetch/lib/telnet"
)

// Reply classes, the first digit of a reply code
const (
	ClassPrelim    = 1 // positive preliminary, another reply follows
	ClassComplete  = 2 // positive completion
	ClassContinue  = 3 // positive intermediate, send the next command
	ClassTransient = 4 // transient negative completion
	ClassError     = 5 // permanent negative completion
)

// DefaultMaxReplyLine is the longest reply line accepted
const DefaultMaxReplyLine = 8192

// Reply is one complete, possibly multi-line, server reply
type Reply struct {
	Code  int      // three digit reply code
	Lines []string // every line of the reply without line endings
	Addr  string   // text inside the parentheses of a 227, 228 or 229 reply
}

// Class returns the first digit of the code
func (r *Reply) Class() int {
	if r == nil || r.Code < 0 {
		return ClassError
	}
	return r.Code / 100
}

// String is the first line of the reply, code included
func (r *Reply) String() string {
	if r == nil || len(r.Lines) == 0 {
		return ""
	}
	return r.Lines[0]
}

// Text is the first line of the reply after the code and separator
func (r *Reply) Text() string {
	s := r.String()
	if len(s) < 4 {
		return ""
	}
	return s[4:]
}

// replyReader parses replies from the control connection
type replyReader struct {
	f       *telnet.Filter
	maxLine int
}

// readLine reads one line, dropping the CR LF or bare LF ending
//
// io.EOF is only returned if no bytes at all were read.
func (rr *replyReader) readLine() (string, error) {
	var line []byte
	tooLong := false
	maxLine := rr.maxLine
	if maxLine <= 0 {
		maxLine = DefaultMaxReplyLine
	}
	for {
		c, err := rr.f.ReadByte()
		if err != nil {
			if err == io.EOF && len(line) > 0 {
				err = io.ErrUnexpectedEOF
			}
			return "", err
		}
		if c == '\n' {
			break
		}
		if len(line) >= maxLine {
			tooLong = true
			continue
		}
		line = append(line, c)
	}
	if tooLong {
		return "", ErrReplyTooLong
	}
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return string(line), nil
}

// parseCode returns the reply code at the start of line or -1
func parseCode(line string) int {
	if len(line) < 3 {
		return -1
	}
	code := 0
	for i := 0; i < 3; i++ {
		c := line[i]
		if c < '0' || c > '9' {
			return -1
		}
		code = code*10 + int(c-'0')
	}
	if len(line) > 3 && line[3] != ' ' && line[3] != '-' {
		// accept anything after the code except a digit
		if line[3] >= '0' && line[3] <= '9' {
			return -1
		}
	}
	return code
}

// isContinued reports whether line starts a multi-line reply
func isContinued(line string) bool {
	return len(line) > 3 && line[3] == '-'
}

// captureAddr finds the text from the first '(' up to the ')' or
// the end of the line
func captureAddr(lines []string) string {
	for _, line := range lines {
		i := strings.IndexByte(line, '(')
		if i < 0 {
			continue
		}
		body := line[i+1:]
		if j := strings.IndexByte(body, ')'); j >= 0 {
			body = body[:j]
		}
		return body
	}
	return ""
}

// read reads one complete reply.
//
// If expectEOF is set then the server closing the connection before
// any reply counts as a 221 reply.  Otherwise it returns io.EOF for
// the caller to treat as a lost connection.
func (rr *replyReader) read(expectEOF bool) (*Reply, error) {
	line, err := rr.readLine()
	if err != nil {
		if err == io.EOF && expectEOF {
			return &Reply{Code: StatusClosing, Lines: []string{"221 Connection closed by server"}}, nil
		}
		return nil, err
	}
	code := parseCode(line)
	if code < 0 {
		return nil, protocolErrorf("bad reply line %q", line)
	}
	reply := &Reply{Code: code, Lines: []string{line}}
	if isContinued(line) {
		for {
			line, err = rr.readLine()
			if err != nil {
				if err == io.EOF {
					err = io.ErrUnexpectedEOF
				}
				return nil, err
			}
			reply.Lines = append(reply.Lines, line)
			if parseCode(line) == code && !isContinued(line) {
				break
			}
		}
	}
	switch code {
	case StatusPassiveMode, StatusLongPassiveMode, StatusExtendedPassiveMode:
		reply.Addr = captureAddr(reply.Lines)
	}
	return reply, nil
}

// skip reads lines up to and including the last line of a reply,
// returning its code.  It is used to resynchronise after a reply was
// only partly read.
//
// Once the first line of a multi-line reply has been seen only the
// same code without a '-' ends it.
func (rr *replyReader) skip() (int, error) {
	open := -1
	for {
		line, err := rr.readLine()
		if err != nil {
			return 0, err
		}
		code := parseCode(line)
		if code < 0 {
			continue
		}
		switch {
		case isContinued(line):
			if open < 0 {
				open = code
			}
		case open < 0 || code == open:
			return code, nil
		}
	}
}
