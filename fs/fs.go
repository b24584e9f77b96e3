// Package fs holds the configuration, logging and value types shared
// by the ftp client engine and the fetch front end
package fs

import (
	"io"
	"strings"
)

// EnvPrefix is prepended to the upper case name of a flag or option
// to find the environment variable which sets it
const EnvPrefix = "FTPFETCH_"

// OptionToEnv converts an option name, e.g. "log-file" into an
// environment variable name, e.g. "FTPFETCH_LOG_FILE"
func OptionToEnv(name string) string {
	return EnvPrefix + strings.ToUpper(strings.Replace(name, "-", "_", -1))
}

// CheckClose is a utility function used to check the return from
// Close in a defer statement.
func CheckClose(c io.Closer, err *error) {
	cerr := c.Close()
	if *err == nil {
		*err = cerr
	}
}
