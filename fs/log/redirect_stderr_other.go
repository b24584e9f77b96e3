//go:build !unix

package log

import "os"

// redirectStderr is a no-op where stderr can't be re-pointed
func redirectStderr(f *os.File) {}
