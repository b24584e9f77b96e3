package ftp

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/rclone/ftpfetch/fs"
	"github.com/rclone/ftpfetch/lib/env"
)

// Credentials looks up the login details for a host, as a .netrc
// file would
type Credentials interface {
	Lookup(host string) (user, pass, acct string, ok bool)
}

// StaticCredentials returns the same login for every host
type StaticCredentials struct {
	User, Pass, Acct string
}

// Lookup returns the login details
func (c StaticCredentials) Lookup(host string) (user, pass, acct string, ok bool) {
	return c.User, c.Pass, c.Acct, c.User != ""
}

// isAnonymous returns whether user is one of the anonymous logins
func isAnonymous(user string) bool {
	return user == "anonymous" || user == "ftp"
}

// anonPass is the password sent for an anonymous login
func (s *Session) anonPass() string {
	if s.opt.AnonPass != "" {
		return s.opt.AnonPass
	}
	return env.CurrentUser() + "@"
}

// Login logs in with user, pass and acct.  An empty user logs in
// anonymously.  pass and acct are only sent if the server asks.
//
// After logging in the server's system type is read.  A UNIX server
// with 8 bit bytes makes binary the default transfer type.
func (s *Session) Login(ctx context.Context, user, pass, acct string) error {
	if user == "" {
		user = "anonymous"
	}
	if pass == "" && isAnonymous(user) {
		pass = s.anonPass()
	}
	reply, err := s.Command(ctx, "USER %s", user)
	if err != nil {
		return err
	}
	if reply.Class() == ClassContinue {
		reply, err = s.Command(ctx, "PASS %s", pass)
		if err != nil {
			return err
		}
	}
	if reply.Class() == ClassContinue {
		if acct == "" {
			return errors.New("login: server wants an account and none was given")
		}
		reply, err = s.Command(ctx, "ACCT %s", acct)
		if err != nil {
			return err
		}
	}
	if reply.Class() != ClassComplete {
		return &ReplyError{Cmd: "login", Code: reply.Code, Text: reply.Text()}
	}
	fs.Infof(s, "Logged in as %s", user)
	return s.syst(ctx)
}

// LoginWith logs in with the details creds has for the host
func (s *Session) LoginWith(ctx context.Context, creds Credentials) error {
	user, pass, acct, ok := "", "", "", false
	if creds != nil {
		user, pass, acct, ok = creds.Lookup(s.host)
	}
	if !ok {
		user, pass, acct = "", "", ""
	}
	return s.Login(ctx, user, pass, acct)
}

// syst reads the system type, best effort
func (s *Session) syst(ctx context.Context) error {
	reply, err := s.Command(ctx, "SYST")
	if err != nil {
		return err
	}
	if reply.Class() != ClassComplete {
		return nil
	}
	s.system = reply.Text()
	fs.Infof(s, "Remote system type is %s", strings.Fields(s.system+" ?")[0])
	if strings.HasPrefix(reply.String(), "215 UNIX Type: L8") {
		s.reqType = TypeImage
		fs.Infof(s, "Using %v mode to transfer files.", s.reqType)
	}
	return nil
}
