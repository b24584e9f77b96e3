package ftp

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/text/transform"
)

// toNetwork turns local line endings into CRLF for an ASCII send
type toNetwork struct{ transform.NopResetter }

// Transform implements transform.Transformer
func (toNetwork) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		c := src[nSrc]
		if c == '\n' {
			if nDst+2 > len(dst) {
				return nDst, nSrc, transform.ErrShortDst
			}
			dst[nDst] = '\r'
			dst[nDst+1] = '\n'
			nDst += 2
		} else {
			if nDst >= len(dst) {
				return nDst, nSrc, transform.ErrShortDst
			}
			dst[nDst] = c
			nDst++
		}
		nSrc++
	}
	return nDst, nSrc, nil
}

// fromNetwork turns CRLF into local line endings for an ASCII
// receive.  CR NUL is a bare CR.  A LF without a CR in front of it is
// passed through and counted.
type fromNetwork struct {
	bareLFs int64
}

// Reset implements transform.Transformer
func (t *fromNetwork) Reset() {
	t.bareLFs = 0
}

// Transform implements transform.Transformer
func (t *fromNetwork) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		if nDst >= len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		c := src[nSrc]
		switch c {
		case '\r':
			if nSrc+1 >= len(src) {
				if !atEOF {
					return nDst, nSrc, transform.ErrShortSrc
				}
				dst[nDst] = '\r'
				nSrc++
				break
			}
			switch src[nSrc+1] {
			case '\n':
				dst[nDst] = '\n'
				nSrc += 2
			case 0:
				dst[nDst] = '\r'
				nSrc += 2
			default:
				dst[nDst] = '\r'
				nSrc++
			}
		case '\n':
			t.bareLFs++
			dst[nDst] = '\n'
			nSrc++
		default:
			dst[nDst] = c
			nSrc++
		}
		nDst++
	}
	return nDst, nSrc, nil
}

// asciiSize returns how many bytes r takes up when sent in ASCII
// mode, each LF counting twice
func asciiSize(r io.Reader) (int64, error) {
	br := bufio.NewReader(r)
	var n int64
	for {
		c, err := br.ReadByte()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
		if c == '\n' {
			n++
		}
	}
}

// skipASCII returns a reader positioned offset bytes into the ASCII
// form of r
func skipASCII(r io.Reader, offset int64) (io.Reader, error) {
	br := bufio.NewReader(r)
	for n := int64(0); n < offset; n++ {
		c, err := br.ReadByte()
		if err == io.EOF {
			return nil, errors.Errorf("restart offset %d is past the end of the file", offset)
		}
		if err != nil {
			return nil, err
		}
		if c == '\n' {
			n++
		}
	}
	return br, nil
}
