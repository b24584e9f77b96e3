package fetch

import (
	"context"

	"github.com/rclone/ftpfetch/fs"
	"github.com/rclone/ftpfetch/ftp"
)

// login logs s in as the user of t.  Credentials from creds fill in
// what t leaves out, and with neither the login is anonymous.
func (f *Fetcher) login(ctx context.Context, s *ftp.Session, t *Target) error {
	user, pass, acct := t.User, t.Pass, ""
	if f.creds != nil {
		if u, p, a, ok := f.creds.Lookup(t.Host); ok && (user == "" || user == u) {
			user, acct = u, a
			if !t.HasPass {
				pass = p
			}
		}
	}
	return s.Login(ctx, user, pass, acct)
}

// fetchFTP fetches t over an ftp session to local
func (f *Fetcher) fetchFTP(ctx context.Context, t *Target, local string) (err error) {
	dirs, file, err := t.Split()
	if err != nil {
		return err
	}
	s, err := ftp.Connect(ctx, t.Host, t.Port, f.opt.FTP)
	if err != nil {
		return err
	}
	f.setSession(s)
	defer func() {
		f.setSession(nil)
		f.setKill(nil)
		if qerr := s.Quit(context.WithoutCancel(ctx)); qerr != nil {
			fs.Debugf(s, "Quit: %v", qerr)
		}
	}()
	if err = f.login(ctx, s, t); err != nil {
		return err
	}
	if t.Type != 0 {
		s.SetTransferType(t.Type)
	}
	for _, dir := range dirs {
		if err = s.Chdir(ctx, dir); err != nil {
			return err
		}
	}
	_, err = s.Get(ctx, file, local, ftp.GetOptions{Resume: f.opt.Resume})
	return err
}
