package ftp

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/rclone/ftpfetch/fs"
	"github.com/rclone/ftpfetch/fs/accounting"
	"github.com/rclone/ftpfetch/lib/readers"
	"golang.org/x/text/transform"
)

const bufferSize = 32 * 1024

// localError marks an error from the local side of a copy
type localError struct {
	err error
}

func (e localError) Error() string { return e.err.Error() }

// localWriter tags the errors of w as local
type localWriter struct {
	w io.Writer
}

func (lw localWriter) Write(p []byte) (int, error) {
	n, err := lw.w.Write(p)
	if err != nil {
		err = localError{err}
	}
	return n, err
}

// localReader tags the errors of r other than io.EOF as local
type localReader struct {
	r io.Reader
}

func (lr localReader) Read(p []byte) (int, error) {
	n, err := lr.r.Read(p)
	if err != nil && err != io.EOF {
		err = localError{err}
	}
	return n, err
}

// newAccount makes the Account for a transfer
func (s *Session) newAccount(ctx context.Context, name, direction string, size, restart int64) *accounting.Account {
	tb := s.rateGet
	if direction == accounting.Put {
		tb = s.ratePut
	}
	opt := accounting.Options{
		Progress: s.opt.Progress,
		Out:      s.opt.Feedback,
	}
	if s.opt.Hash {
		opt.HashBytes = s.opt.HashBytes
	}
	acc := accounting.NewAccount(ctx, name, direction, size, tb, opt)
	acc.SetRestart(restart)
	return acc
}

// startTransfer sends REST if needed and the transfer command then
// waits for the data connection.
//
// On failure the data connection is closed.
func (s *Session) startTransfer(ctx context.Context, d *dataConn, verb, arg string, restart int64) error {
	if restart > 0 {
		reply, err := s.Command(ctx, "REST %d", restart)
		if err != nil {
			_ = s.closeData()
			return err
		}
		if reply.Class() != ClassContinue {
			_ = s.closeData()
			return &ReplyError{Cmd: "REST", Code: reply.Code, Text: reply.Text()}
		}
	}
	reply, err := s.cmdArg(ctx, verb, arg)
	if err != nil {
		_ = s.closeData()
		return err
	}
	if reply.Class() != ClassPrelim {
		_ = s.closeData()
		return &ReplyError{Cmd: verb, Code: reply.Code, Text: reply.Text()}
	}
	if err = s.acceptData(ctx, d); err != nil {
		// the server is waiting for a connection which won't come
		if aerr := s.abort(ctx); aerr != nil {
			return aerr
		}
		return err
	}
	return nil
}

// finishTransfer closes the data connection and reads the final
// reply of verb
func (s *Session) finishTransfer(ctx context.Context, verb string) error {
	_ = s.closeData()
	reply, err := s.getReply(ctx, false)
	if err != nil {
		return err
	}
	if reply.Class() != ClassComplete {
		return &ReplyError{Cmd: verb, Code: reply.Code, Text: reply.Text()}
	}
	return nil
}

// transferFailed cleans up after the copy of a transfer went wrong.
//
// If ctx was cancelled or the local side failed the transfer is
// aborted.  If the data connection failed the server's reply is
// read as it will have noticed too.
func (s *Session) transferFailed(ctx context.Context, verb string, err error) error {
	if ctx.Err() != nil {
		if aerr := s.abort(ctx); aerr != nil {
			return aerr
		}
		return ErrAborted
	}
	if lerr, ok := err.(localError); ok {
		if aerr := s.abort(ctx); aerr != nil {
			return aerr
		}
		return lerr.err
	}
	if err == ErrConnectionLost {
		return err
	}
	op := "read"
	if verb != "RETR" && verb != "LIST" && verb != "NLST" {
		op = "write"
	}
	dataErr := &DataConnectionError{Op: op, Err: err}
	if ferr := s.finishTransfer(ctx, verb); isControlError(ferr) {
		return ferr
	}
	return dataErr
}

// watchData unblocks the data connection when ctx is cancelled
func watchData(ctx context.Context, d *dataConn) (stop func() bool) {
	raw := d.raw
	return context.AfterFunc(ctx, func() {
		_ = raw.SetDeadline(aLongTimeAgo)
	})
}

// Retrieve runs a command which sends data from the server, RETR,
// LIST or NLST, and copies the data to w.
//
// size is the expected size for feedback or -1.  The restart offset
// is used and reset.  LIST and NLST are always done in ASCII.  It
// returns the number of bytes which came over the network.
func (s *Session) Retrieve(ctx context.Context, verb, arg string, w io.Writer, size int64) (int64, error) {
	return s.retrieve(ctx, verb, arg, func() (io.Writer, error) { return w, nil }, size)
}

// retrieve is Retrieve with the writer made by open once the server
// has accepted the command
func (s *Session) retrieve(ctx context.Context, verb, arg string, open func() (io.Writer, error), size int64) (int64, error) {
	restart := s.restart
	s.restart = 0
	t := s.reqType
	if verb != "RETR" {
		t = TypeASCII
	}
	if err := s.SetType(ctx, t); err != nil {
		return 0, err
	}
	d, err := s.openData(ctx)
	if err != nil {
		return 0, err
	}
	if err = s.startTransfer(ctx, d, verb, arg, restart); err != nil {
		return 0, err
	}
	w, err := open()
	if err != nil {
		return 0, s.transferFailed(ctx, verb, localError{err})
	}
	acc := s.newAccount(ctx, arg, accounting.Get, size, restart)
	var in = acc.WrapReader(readers.NewContextReader(ctx, d.conn))
	var crlf *fromNetwork
	if t == TypeASCII {
		crlf = &fromNetwork{}
		in = transform.NewReader(in, crlf)
	}
	stop := watchData(ctx, d)
	_, err = io.CopyBuffer(localWriter{w}, in, make([]byte, bufferSize))
	stop()
	if err != nil {
		err = s.transferFailed(ctx, verb, err)
		acc.Done(err)
		return acc.Bytes(), err
	}
	if crlf != nil && crlf.bareLFs > 0 {
		fs.Logf(s, "WARNING! %d bare linefeeds received in ASCII mode.\nFile may not have transferred correctly.", crlf.bareLFs)
	}
	err = s.finishTransfer(ctx, verb)
	acc.Done(err)
	return acc.Bytes(), err
}

// Store runs a command which sends data to the server, STOR, APPE
// or STOU, with the data read from r.
//
// size is the expected size for feedback or -1.  A restart offset
// is only used by STOR and APPE: r is moved on by that much first,
// which needs an io.Seeker unless the type is ASCII.  It returns the
// number of bytes which went over the network.
func (s *Session) Store(ctx context.Context, verb, arg string, r io.Reader, size int64) (int64, error) {
	restart := s.restart
	s.restart = 0
	if verb != "STOR" && verb != "APPE" {
		restart = 0
	}
	t := s.reqType
	if restart > 0 {
		var err error
		if r, err = seekLocal(r, restart, t); err != nil {
			return 0, err
		}
	}
	if err := s.SetType(ctx, t); err != nil {
		return 0, err
	}
	d, err := s.openData(ctx)
	if err != nil {
		return 0, err
	}
	d.sending = true
	if err = s.startTransfer(ctx, d, verb, arg, restart); err != nil {
		return 0, err
	}
	acc := s.newAccount(ctx, arg, accounting.Put, size, restart)
	var in io.Reader = localReader{readers.NewContextReader(ctx, r)}
	if t == TypeASCII {
		in = transform.NewReader(in, toNetwork{})
	}
	in = acc.WrapReader(in)
	stop := watchData(ctx, d)
	_, err = io.CopyBuffer(d.conn, in, make([]byte, bufferSize))
	stop()
	if err != nil {
		err = s.transferFailed(ctx, verb, err)
		acc.Done(err)
		return acc.Bytes(), err
	}
	err = s.finishTransfer(ctx, verb)
	acc.Done(err)
	return acc.Bytes(), err
}

// seekLocal moves r on to offset in the form it will be sent in
func seekLocal(r io.Reader, offset int64, t TransferType) (io.Reader, error) {
	if t == TypeASCII {
		return skipASCII(r, offset)
	}
	seeker, ok := r.(io.Seeker)
	if !ok {
		return nil, ErrRestartUnsupported
	}
	if _, err := seeker.Seek(offset, io.SeekStart); err != nil {
		return nil, errors.Wrap(ErrRestartUnsupported, err.Error())
	}
	return r, nil
}

// List runs LIST or NLST on dir writing the listing to w
func (s *Session) List(ctx context.Context, verb, dir string, w io.Writer) error {
	_, err := s.Retrieve(ctx, verb, dir, w, -1)
	return err
}

// GetOptions modify how Get writes the local file
type GetOptions struct {
	Resume bool // carry on from the end of the local file
	Append bool // add to the end of the local file
}

// Get fetches remote into the local file, "-" meaning stdout.
//
// The remote size and time are asked for if the server has them.
// With Preserve set the local file gets the remote modification time
// when the whole file was fetched.
func (s *Session) Get(ctx context.Context, remote, local string, opt GetOptions) (n int64, err error) {
	toStdout := local == "-"
	if !toStdout {
		if s.opt.Runique && !opt.Resume && !opt.Append {
			if local, err = uniqueName(local); err != nil {
				return 0, err
			}
		}
		if err = checkWritable(local); err != nil {
			return 0, err
		}
	}
	if err = s.SetType(ctx, s.reqType); err != nil {
		return 0, err
	}
	size, err := s.Size(ctx, remote)
	if isControlError(err) {
		return 0, err
	}
	var mtime time.Time
	if s.opt.Preserve && !toStdout && !opt.Resume && !opt.Append {
		mtime, err = s.ModTime(ctx, remote)
		if isControlError(err) {
			return 0, err
		}
	}
	if toStdout {
		return s.Retrieve(ctx, "RETR", remote, os.Stdout, size)
	}

	if opt.Resume {
		var restart int64
		if restart, err = s.localOffset(local); err != nil {
			return 0, err
		}
		if size >= 0 && restart >= size {
			fs.Logf(s, "Local file %q is already complete", local)
			return 0, nil
		}
		s.SetRestart(restart)
	}
	// the local file is only touched once the server has the file
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if opt.Resume || opt.Append {
		flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}
	var f *os.File
	n, err = s.retrieve(ctx, "RETR", remote, func() (io.Writer, error) {
		var oerr error
		f, oerr = os.OpenFile(local, flags, 0666)
		if oerr != nil {
			return nil, errors.Wrap(oerr, "local")
		}
		return f, nil
	}, size)
	if f != nil {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, "local")
		}
	}
	if err != nil || mtime.IsZero() {
		return n, err
	}
	if fi, serr := os.Stat(local); serr == nil && fi.Mode().IsRegular() {
		if cerr := os.Chtimes(local, mtime, mtime); cerr != nil {
			fs.Logf(s, "Can't change modification time of %q to %v: %v", local, mtime, cerr)
		}
	}
	return n, nil
}

// localOffset returns where a fetch into local should restart, 0 if
// it doesn't exist
func (s *Session) localOffset(local string) (n int64, err error) {
	f, err := os.Open(local)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "local")
	}
	defer fs.CheckClose(f, &err)
	if s.reqType == TypeASCII {
		n, err = asciiSize(f)
	} else {
		var fi os.FileInfo
		if fi, err = f.Stat(); err == nil {
			n = fi.Size()
		}
	}
	if err != nil {
		return 0, errors.Wrap(err, "local")
	}
	return n, nil
}

// maxUnique is the highest suffix tried for a unique local name
const maxUnique = 99

// uniqueName returns name, or if that exists name.1 up to name.99
func uniqueName(name string) (string, error) {
	if _, err := os.Lstat(name); os.IsNotExist(err) {
		return name, nil
	}
	for i := 1; i <= maxUnique; i++ {
		candidate := name + "." + strconv.Itoa(i)
		if _, err := os.Lstat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
	return "", errors.Errorf("cannot find a unique name for %q", name)
}

// checkWritable checks local can be written, or made in its directory
func checkWritable(local string) error {
	err := writable(local)
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return errors.Wrapf(err, "local: %s", local)
	}
	dir := filepath.Dir(local)
	if err = writable(dir); err != nil {
		return errors.Wrapf(err, "local: %s", dir)
	}
	return nil
}

// Put sends the local file, "-" meaning stdin, to remote.
//
// STOR is used, APPE if appendMode is set or STOU with Sunique.
func (s *Session) Put(ctx context.Context, local, remote string, appendMode bool) (n int64, err error) {
	verb := "STOR"
	switch {
	case appendMode:
		verb = "APPE"
	case s.opt.Sunique:
		verb = "STOU"
	}
	if local == "-" {
		return s.Store(ctx, verb, remote, os.Stdin, -1)
	}
	f, err := os.Open(local)
	if err != nil {
		return 0, errors.Wrap(err, "local")
	}
	defer func() {
		_ = f.Close()
	}()
	size := int64(-1)
	if fi, serr := f.Stat(); serr == nil && fi.Mode().IsRegular() {
		size = fi.Size()
	}
	return s.Store(ctx, verb, remote, f, size)
}
