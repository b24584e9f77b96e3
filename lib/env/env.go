// Package env contains functions for dealing with environment variables
package env

import (
	"os"
	"os/user"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
)

// ShellExpand replaces a leading "~" with the home directory" and
// expands all environment variables afterwards.
func ShellExpand(s string) string {
	if s != "" {
		if s[0] == '~' {
			newS, err := homedir.Expand(s)
			if err == nil {
				s = newS
			}
		}
		s = os.ExpandEnv(s)
	}
	return s
}

// CurrentUser finds the current user name or "" if not found
func CurrentUser() (userName string) {
	usr, err := user.Current()
	if err == nil && usr.Username != "" {
		return usr.Username
	}
	userName = os.Getenv("USER")
	if userName != "" {
		return userName
	}
	return os.Getenv("LOGNAME")
}

// Lookup reads the environment variable name, trying the lower case
// spelling first and then the upper case one, as proxy variables are
// conventionally looked up.
func Lookup(name string) (value string, ok bool) {
	value, ok = os.LookupEnv(strings.ToLower(name))
	if ok {
		return value, ok
	}
	return os.LookupEnv(strings.ToUpper(name))
}

// Getter is a configmap.Getter reading config items from the
// environment.  Names maps a config key to the variable which holds
// it.  Keys not in Names are looked up as the upper case key with
// Prefix prepended.
type Getter struct {
	Prefix string
	Names  map[string]string
}

// Get a config item from the environment
func (g Getter) Get(key string) (value string, ok bool) {
	if name, found := g.Names[key]; found {
		return Lookup(name)
	}
	if g.Prefix == "" {
		return "", false
	}
	return os.LookupEnv(g.Prefix + strings.ToUpper(key))
}
