package fetch

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rclone/ftpfetch/fs"
	"github.com/rclone/ftpfetch/fs/accounting"
	"github.com/rclone/ftpfetch/ftp"
	"github.com/rclone/ftpfetch/lib/readers"
)

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// openLocal opens local for writing, "-" meaning stdout.  A non zero
// restart appends to what is there.
func openLocal(local string, restart int64) (io.WriteCloser, error) {
	if local == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if restart > 0 {
		flags = os.O_WRONLY | os.O_APPEND
	}
	out, err := os.OpenFile(local, flags, 0666)
	if err != nil {
		return nil, errors.Wrap(err, "local")
	}
	return out, nil
}

// restartPoint returns the offset to resume local from
func (f *Fetcher) restartPoint(local string) (int64, error) {
	if !f.opt.Resume || local == "-" {
		return 0, nil
	}
	fi, err := os.Stat(local)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "local")
	}
	if !fi.Mode().IsRegular() {
		return 0, nil
	}
	return fi.Size(), nil
}

// accountOptions returns the feedback the transfers give
func (f *Fetcher) accountOptions() accounting.Options {
	opt := accounting.Options{
		Progress: f.opt.FTP.Progress,
		Out:      f.opt.FTP.Feedback,
	}
	if f.opt.FTP.Hash {
		opt.HashBytes = f.opt.FTP.HashBytes
	}
	return opt
}

// save copies in to local, accounted as name.
//
// size is the size of the whole file and want the bytes in should
// give, either may be -1 if unknown.  mtime is set on local if
// known and the whole file was written.
func (f *Fetcher) save(ctx context.Context, in io.Reader, name, local string, size, restart, want int64, mtime time.Time) error {
	out, err := openLocal(local, restart)
	if err != nil {
		return err
	}
	acc := accounting.NewAccount(ctx, name, accounting.Get, size, f.rate, f.accountOptions())
	acc.SetRestart(restart)
	n, err := io.Copy(out, acc.WrapReader(readers.NewContextReader(ctx, in)))
	if cerr := out.Close(); err == nil && cerr != nil {
		err = errors.Wrap(cerr, "local")
	}
	if err == nil && want >= 0 && n < want {
		err = errors.Errorf("short read: got %d of %d bytes", n, want)
	}
	if err != nil && ctx.Err() != nil {
		err = ftp.ErrAborted
	}
	acc.Done(err)
	if err != nil {
		return err
	}
	if !f.opt.FTP.Preserve || mtime.IsZero() || local == "-" || restart != 0 {
		return nil
	}
	if err = os.Chtimes(local, mtime, mtime); err != nil {
		fs.Logf(f, "Can't change modification time of %q to %v: %v", local, mtime, err)
	}
	return nil
}

// fetchFile copies the local file named by t to local
func (f *Fetcher) fetchFile(ctx context.Context, t *Target, local string) (err error) {
	src, err := t.LocalPath()
	if err != nil {
		return errors.Wrap(err, "bad file URL")
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer fs.CheckClose(in, &err)
	fi, err := in.Stat()
	if err != nil {
		return err
	}
	if !fi.Mode().IsRegular() {
		return errors.Errorf("%q is not a regular file", src)
	}
	if local != "-" {
		if lfi, serr := os.Stat(local); serr == nil && os.SameFile(fi, lfi) {
			return errors.Errorf("%q and %q are the same file", src, local)
		}
	}
	restart, err := f.restartPoint(local)
	if err != nil {
		return err
	}
	switch {
	case restart > fi.Size():
		return errors.Wrapf(ErrRestartMismatch, "local file %q is longer than %q", local, src)
	case restart > 0 && restart == fi.Size():
		fs.Logf(f, "Local file %q is already complete", local)
		return nil
	}
	if _, err = in.Seek(restart, io.SeekStart); err != nil {
		return err
	}
	return f.save(ctx, in, src, local, fi.Size(), restart, fi.Size()-restart, fi.ModTime())
}
