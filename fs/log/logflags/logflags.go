// Package logflags implements command line flags to set up the log
package logflags

import (
	"github.com/rclone/ftpfetch/fs/config/flags"
	"github.com/rclone/ftpfetch/fs/log"
	"github.com/spf13/pflag"
)

// AddFlags adds the log flags to the flagSet
func AddFlags(flagSet *pflag.FlagSet) {
	flags.StringVarP(flagSet, &log.Opt.File, "log-file", "", log.Opt.File, "Log everything to this file")
	flags.StringVarP(flagSet, &log.Opt.Format, "log-format", "", log.Opt.Format, "Comma separated list of log format options")
	flags.VarP(flagSet, &log.Opt.MaxSize, "log-file-max-size", "", "Rotate the log file when it reaches this size, 0 to never rotate")
	flags.IntVarP(flagSet, &log.Opt.MaxBackups, "log-file-max-backups", "", log.Opt.MaxBackups, "Maximum number of rotated log files to keep, 0 for all")
	flags.VarP(flagSet, &log.Opt.MaxAge, "log-file-max-age", "", "Maximum age of rotated log files to keep, 0 for forever")
	flags.BoolVarP(flagSet, &log.Opt.Compress, "log-file-compress", "", log.Opt.Compress, "Compress rotated log files")
}
