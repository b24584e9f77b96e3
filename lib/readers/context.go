// Package readers provides io.Reader wrappers used by the transfer code
package readers

import (
	"context"
	"io"
)

// NewContextReader creates a reader, that returns any errors that ctx gives
//
// The context is checked before each Read, so a Read which is already
// blocked isn't interrupted.  Use a deadline on the underlying
// connection for that.
func NewContextReader(ctx context.Context, r io.Reader) io.Reader {
	return &contextReader{
		ctx: ctx,
		r:   r,
	}
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

// Read bytes as per io.Reader interface
func (cr *contextReader) Read(p []byte) (n int, err error) {
	err = cr.ctx.Err()
	if err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}

// NewContextWriter creates a writer, that returns any errors that ctx gives
func NewContextWriter(ctx context.Context, w io.Writer) io.Writer {
	return &contextWriter{
		ctx: ctx,
		w:   w,
	}
}

type contextWriter struct {
	ctx context.Context
	w   io.Writer
}

// Write bytes as per io.Writer interface
func (cw *contextWriter) Write(p []byte) (n int, err error) {
	err = cw.ctx.Err()
	if err != nil {
		return 0, err
	}
	return cw.w.Write(p)
}
