package fetch

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// maxChunkLine bounds the chunk size line
const maxChunkLine = 4096

// chunkedReader decodes a chunked transfer encoded body.
//
// Chunk extensions and trailers aren't supported.  A single space
// after the size is allowed as some servers send one.
type chunkedReader struct {
	r    *bufio.Reader
	left int64 // bytes left in this chunk
	err  error
}

func newChunkedReader(r *bufio.Reader) *chunkedReader {
	return &chunkedReader{r: r}
}

// readLine reads a CRLF terminated line
func (cr *chunkedReader) readLine() (string, error) {
	line, err := cr.r.ReadSlice('\n')
	if err == bufio.ErrBufferFull || len(line) > maxChunkLine {
		return "", protocolErrorf("chunk size line too long")
	}
	if err == io.EOF {
		return "", io.ErrUnexpectedEOF
	}
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(string(line), "\r\n") {
		return "", protocolErrorf("chunk line %q not terminated by CRLF", line)
	}
	return string(line[:len(line)-2]), nil
}

// nextChunk reads the size line of the next chunk
func (cr *chunkedReader) nextChunk() error {
	line, err := cr.readLine()
	if err != nil {
		return err
	}
	line = strings.TrimSuffix(line, " ")
	size, err := strconv.ParseInt(line, 16, 64)
	if err != nil || size < 0 || line == "" || line[0] == '+' || line[0] == '-' {
		return protocolErrorf("bad chunk size %q", line)
	}
	cr.left = size
	if size == 0 {
		return io.EOF
	}
	return nil
}

// Read satisfies io.Reader
func (cr *chunkedReader) Read(p []byte) (n int, err error) {
	if cr.err != nil {
		return 0, cr.err
	}
	if cr.left == 0 {
		if cr.err = cr.nextChunk(); cr.err != nil {
			return 0, cr.err
		}
	}
	if int64(len(p)) > cr.left {
		p = p[:cr.left]
	}
	n, err = cr.r.Read(p)
	cr.left -= int64(n)
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	if err == nil && cr.left == 0 {
		var crlf string
		if crlf, err = cr.readLine(); err == nil && crlf != "" {
			err = protocolErrorf("missing CRLF after chunk")
		}
	}
	cr.err = err
	return n, err
}
