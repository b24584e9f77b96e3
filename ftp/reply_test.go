package ftp

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/rclone/ftpfetch/lib/telnet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReplyReader(in string, w io.Writer, maxLine int) *replyReader {
	r := bufio.NewReader(strings.NewReader(in))
	return &replyReader{f: telnet.NewFilter(r, w), maxLine: maxLine}
}

func TestReadReply(t *testing.T) {
	for _, test := range []struct {
		name  string
		in    string
		code  int
		first string
		lines int
		addr  string
	}{
		{"simple", "200 OK\r\n", 200, "200 OK", 1, ""},
		{"bare LF", "200 OK\n", 200, "200 OK", 1, ""},
		{"no text", "200\r\n", 200, "200", 1, ""},
		{"multi-line", "211-First\r\n line two\r\n211-still going\r\n211 End\r\n", 211, "211-First", 4, ""},
		{"other code inside", "230-Welcome\r\n220 not the end\r\n230 Done\r\n", 230, "230-Welcome", 3, ""},
		{"pasv", "227 Entering Passive Mode (192,0,2,47,4,7).\r\n", 227, "227 Entering Passive Mode (192,0,2,47,4,7).", 1, "192,0,2,47,4,7"},
		{"pasv no close", "227 Entering Passive Mode (192,0,2,47,4,7\r\n", 227, "227 Entering Passive Mode (192,0,2,47,4,7", 1, "192,0,2,47,4,7"},
		{"epsv", "229 Entering Extended Passive Mode (|||1031|)\r\n", 229, "229 Entering Extended Passive Mode (|||1031|)", 1, "|||1031|"},
		{"addr only for passive", "200 Command (ok)\r\n", 200, "200 Command (ok)", 1, ""},
		{"telnet escape", "200 \xff\xfbxOK\r\n", 200, "200 OK", 1, ""},
	} {
		t.Run(test.name, func(t *testing.T) {
			rr := newTestReplyReader(test.in, nil, 0)
			reply, err := rr.read(false)
			require.NoError(t, err)
			assert.Equal(t, test.code, reply.Code)
			assert.Equal(t, test.first, reply.String())
			assert.Len(t, reply.Lines, test.lines)
			assert.Equal(t, test.addr, reply.Addr)
		})
	}
}

func TestReadReplyBad(t *testing.T) {
	for _, in := range []string{
		"hello\r\n",
		"20\r\n",
		"2000 too many digits\r\n",
		"abc def\r\n",
	} {
		rr := newTestReplyReader(in, nil, 0)
		_, err := rr.read(false)
		require.Error(t, err, in)
		_, ok := err.(*ProtocolError)
		assert.True(t, ok, in)
	}
}

func TestReadReplyEOF(t *testing.T) {
	rr := newTestReplyReader("", nil, 0)
	_, err := rr.read(false)
	assert.Equal(t, io.EOF, err)

	rr = newTestReplyReader("", nil, 0)
	reply, err := rr.read(true)
	require.NoError(t, err)
	assert.Equal(t, 221, reply.Code)
	assert.Equal(t, ClassComplete, reply.Class())

	rr = newTestReplyReader("211-First\r\nmore\r\n", nil, 0)
	_, err = rr.read(true)
	assert.Equal(t, io.ErrUnexpectedEOF, err)

	rr = newTestReplyReader("200 no newline", nil, 0)
	_, err = rr.read(false)
	assert.Equal(t, io.ErrUnexpectedEOF, err)
}

func TestReadReplyTooLong(t *testing.T) {
	rr := newTestReplyReader("200 "+strings.Repeat("x", 100)+"\r\n220 next\r\n", nil, 20)
	_, err := rr.read(false)
	assert.Equal(t, ErrReplyTooLong, err)
	reply, err := rr.read(false)
	require.NoError(t, err)
	assert.Equal(t, 220, reply.Code)
}

func TestReadReplyAnswersNegotiation(t *testing.T) {
	var out bytes.Buffer
	rr := newTestReplyReader("\xff\xfd\x18220 ready\r\n", &out, 0)
	reply, err := rr.read(false)
	require.NoError(t, err)
	assert.Equal(t, "220 ready", reply.String())
	assert.Equal(t, []byte{telnet.IAC, telnet.WONT, 0x18}, out.Bytes())
}

func TestSkipReply(t *testing.T) {
	rr := newTestReplyReader("ing the end\r\n more\r\n226-almost\r\n226 Done\r\n200 OK\r\n", nil, 0)
	code, err := rr.skip()
	require.NoError(t, err)
	assert.Equal(t, 226, code)
	reply, err := rr.read(false)
	require.NoError(t, err)
	assert.Equal(t, 200, reply.Code)
}

func TestSkipReplyInnerCode(t *testing.T) {
	for _, test := range []struct {
		name string
		in   string
		want int
	}{
		{name: "inner code", in: "211-Status\r\n123 inner line\r\n211 End\r\n200 OK\r\n", want: 211},
		{name: "inner same prefix", in: "211-Status\r\n211-more\r\n212 other\r\n211 End\r\n200 OK\r\n", want: 211},
		{name: "single line", in: "150 Opening\r\n200 OK\r\n", want: 150},
		{name: "cut mid line", in: "tus text\r\n226 Done\r\n200 OK\r\n", want: 226},
	} {
		t.Run(test.name, func(t *testing.T) {
			rr := newTestReplyReader(test.in, nil, 0)
			code, err := rr.skip()
			require.NoError(t, err)
			assert.Equal(t, test.want, code)
			reply, err := rr.read(false)
			require.NoError(t, err)
			assert.Equal(t, 200, reply.Code)
		})
	}
}

func TestReplyAccessors(t *testing.T) {
	var nilReply *Reply
	assert.Equal(t, ClassError, nilReply.Class())
	assert.Equal(t, "", nilReply.String())
	r := &Reply{Code: -1}
	assert.Equal(t, ClassError, r.Class())
	r = &Reply{Code: 150, Lines: []string{"150 Opening data connection"}}
	assert.Equal(t, ClassPrelim, r.Class())
	assert.Equal(t, "Opening data connection", r.Text())
}
