package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/rclone/ftpfetch/lib/terminal"
)

// prompter asks the user on the terminal
type prompter struct {
	in       *bufio.Reader
	out      io.Writer
	password func() (string, error) // reads a line without echo
}

// newPrompter makes a prompter reading stdin and writing stderr
func newPrompter() *prompter {
	p := &prompter{
		in:  bufio.NewReader(os.Stdin),
		out: os.Stderr,
	}
	p.password = func() (string, error) {
		password, err := terminal.ReadPassword(int(os.Stdin.Fd()))
		_, _ = fmt.Fprintln(p.out)
		return string(password), err
	}
	return p
}

// readLine reads a line of input without the line ending
func (p *prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", errors.Wrap(err, "failed to read line")
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Credentials asks for a user name and password for realm on host
func (p *prompter) Credentials(host, realm string) (user, pass string, err error) {
	_, _ = fmt.Fprintf(p.out, "Username for `%s' on %s: ", realm, host)
	user, err = p.readLine()
	if err != nil {
		return "", "", err
	}
	_, _ = fmt.Fprint(p.out, "Password: ")
	pass, err = p.password()
	if err != nil {
		return "", "", errors.Wrap(err, "failed to read password")
	}
	return user, pass, nil
}

// Confirm asks a yes or no question, defaulting to no
func (p *prompter) Confirm(question string) bool {
	for {
		_, _ = fmt.Fprintf(p.out, "%s? [y/n] ", question)
		answer, err := p.readLine()
		if err != nil {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			return true
		case "n", "no", "":
			return false
		}
	}
}
