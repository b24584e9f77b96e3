// Keep log lines clear of the progress meter

package cmd

import (
	"io"
	"os"

	"github.com/rclone/ftpfetch/fs"
	"github.com/rclone/ftpfetch/fs/log"
	"github.com/rclone/ftpfetch/lib/terminal"
)

// startProgress makes log lines written to the terminal erase the
// partly drawn progress meter line first.
//
// It returns a func which should be called to restore the logger.
func startProgress(out io.Writer) func() {
	if log.Redirected() || !terminal.IsTerminal(int(os.Stderr.Fd())) {
		return func() {}
	}
	oldLogPrint := fs.LogPrint
	fs.LogPrint = func(level fs.LogLevel, text string) {
		_, _ = io.WriteString(out, terminal.EraseLine+terminal.MoveToStartOfLine)
		oldLogPrint(level, text)
	}
	return func() {
		fs.LogPrint = oldLogPrint
	}
}
