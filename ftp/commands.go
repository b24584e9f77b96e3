package ftp

import (
	"context"
	"strings"

	"github.com/rclone/ftpfetch/fs"
)

// cmdArg sends verb with arg, or verb alone if arg is empty
func (s *Session) cmdArg(ctx context.Context, verb, arg string) (*Reply, error) {
	if arg == "" {
		return s.Command(ctx, "%s", verb)
	}
	return s.Command(ctx, "%s %s", verb, arg)
}

// withFallback sends verb and if the server doesn't recognise it
// sends the old X form of it instead
func (s *Session) withFallback(ctx context.Context, verb, arg string) (*Reply, error) {
	reply, err := s.cmdArg(ctx, verb, arg)
	if err != nil {
		return reply, err
	}
	if reply.Class() == ClassError && reply.Code == StatusBadCommand {
		xverb := "X" + verb[:3]
		if verb == "CDUP" {
			xverb = "XCUP"
		}
		fs.Debugf(s, "%s command not recognized, trying %s", verb, xverb)
		reply, err = s.cmdArg(ctx, xverb, arg)
	}
	return reply, err
}

// completeWithFallback runs withFallback requiring a complete reply
func (s *Session) completeWithFallback(ctx context.Context, verb, arg string) (*Reply, error) {
	reply, err := s.withFallback(ctx, verb, arg)
	if err != nil {
		return reply, err
	}
	if reply.Class() != ClassComplete {
		return reply, &ReplyError{Cmd: verb, Code: reply.Code, Text: reply.Text()}
	}
	return reply, nil
}

// Chdir changes the remote directory.  An empty dir sends CWD with
// no argument.
func (s *Session) Chdir(ctx context.Context, dir string) error {
	_, err := s.completeWithFallback(ctx, "CWD", dir)
	return err
}

// Cdup changes to the parent of the remote directory
func (s *Session) Cdup(ctx context.Context) error {
	_, err := s.completeWithFallback(ctx, "CDUP", "")
	return err
}

// Mkdir makes a remote directory
func (s *Session) Mkdir(ctx context.Context, dir string) error {
	_, err := s.completeWithFallback(ctx, "MKD", dir)
	return err
}

// Rmdir removes a remote directory
func (s *Session) Rmdir(ctx context.Context, dir string) error {
	_, err := s.completeWithFallback(ctx, "RMD", dir)
	return err
}

// Pwd returns the remote directory
func (s *Session) Pwd(ctx context.Context) (string, error) {
	reply, err := s.completeWithFallback(ctx, "PWD", "")
	if err != nil {
		return "", err
	}
	return parsePath(reply.Text()), nil
}

// parsePath extracts the quoted path from a 257 reply.  Quotes in the
// path are doubled.  Text without a quoted path is returned as is.
func parsePath(text string) string {
	start := strings.IndexByte(text, '"')
	if start < 0 {
		return text
	}
	var out strings.Builder
	for i := start + 1; i < len(text); i++ {
		c := text[i]
		if c == '"' {
			if i+1 < len(text) && text[i+1] == '"' {
				out.WriteByte('"')
				i++
				continue
			}
			return out.String()
		}
		out.WriteByte(c)
	}
	return text
}

// Delete removes a remote file
func (s *Session) Delete(ctx context.Context, name string) error {
	_, err := s.expect(ctx, ClassComplete, "DELE %s", name)
	return err
}

// Rename renames a remote file
func (s *Session) Rename(ctx context.Context, from, to string) error {
	if _, err := s.expect(ctx, ClassContinue, "RNFR %s", from); err != nil {
		return err
	}
	_, err := s.expect(ctx, ClassComplete, "RNTO %s", to)
	return err
}

// Site sends a SITE command
func (s *Session) Site(ctx context.Context, args string) (*Reply, error) {
	return s.cmdArg(ctx, "SITE", args)
}

// Quote sends a raw command line and returns its reply.  If the reply
// is preliminary the final reply is read too.
func (s *Session) Quote(ctx context.Context, line string) (*Reply, error) {
	reply, err := s.Command(ctx, "%s", line)
	if err != nil {
		return reply, err
	}
	if reply.Class() == ClassPrelim {
		return s.getReply(ctx, false)
	}
	return reply, nil
}

// Noop checks the server is still there
func (s *Session) Noop(ctx context.Context) error {
	_, err := s.expect(ctx, ClassComplete, "NOOP")
	return err
}

// SetType sends the TYPE command if the server isn't already using
// type t
func (s *Session) SetType(ctx context.Context, t TransferType) error {
	if s.curType == t {
		return nil
	}
	if _, err := s.expect(ctx, ClassComplete, "TYPE %s", t.arg()); err != nil {
		return err
	}
	s.curType = t
	return nil
}

// CurrentType returns the type the server is using
func (s *Session) CurrentType() TransferType {
	return s.curType
}
