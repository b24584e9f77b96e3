// Package log provides logging setup for ftpfetch
package log

import (
	"context"
	"io"
	"log"
	"os"
	"time"

	"github.com/rclone/ftpfetch/fs"
	"github.com/rclone/ftpfetch/lib/env"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options contains options for controlling the logging
type Options struct {
	File       string        // Log everything to this file
	MaxSize    fs.SizeSuffix // Rotate the log file at this size, 0 to never rotate
	MaxBackups int           // Max number of rotated log files to keep
	MaxAge     fs.Duration   // Max age of rotated log files
	Compress   bool          // Compress rotated log files
	Format     string        // Comma separated list of log format options
}

// DefaultOpt is the default values used for Opt
var DefaultOpt = Options{
	Format: "date,time",
}

// Opt is the options for the logger
var Opt = DefaultOpt

// logFlags converts the Format option into flags for the std logger
func logFlags(format string) (flags int) {
	for _, f := range splitComma(format) {
		switch f {
		case "date":
			flags |= log.Ldate
		case "time":
			flags |= log.Ltime
		case "microseconds":
			flags |= log.Lmicroseconds
		case "UTC":
			flags |= log.LUTC
		case "longfile":
			flags |= log.Llongfile
		case "shortfile":
			flags |= log.Lshortfile
		case "pid":
			log.SetPrefix(fmtPid())
		}
	}
	return flags
}

func splitComma(s string) (out []string) {
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

// round a float to an int with a minimum of 1 if set
func round(x float64) int {
	if x <= 0 {
		return 0
	} else if x <= 1 {
		return 1
	}
	return int(x + 0.5)
}

// InitLogging start the logging as per the command line flags
func InitLogging() {
	ci := fs.GetConfig(context.Background())

	flags := logFlags(Opt.Format)
	log.SetFlags(flags)

	// Log file output
	if Opt.File != "" {
		var w io.Writer
		path := env.ShellExpand(Opt.File)
		if Opt.MaxSize <= 0 {
			f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0640)
			if err != nil {
				log.Fatalf("Failed to open log file: %v", err)
			}
			_, err = f.Seek(0, io.SeekEnd)
			if err != nil {
				fs.Errorf(nil, "Failed to seek log file to end: %v", err)
			}
			redirectStderr(f)
			w = f
		} else {
			w = &lumberjack.Logger{
				Filename:   path,
				MaxSize:    round(float64(Opt.MaxSize) / float64(fs.Mebi)), // MiB
				MaxBackups: Opt.MaxBackups,
				MaxAge:     round(time.Duration(Opt.MaxAge).Hours() / 24), // Days
				Compress:   Opt.Compress,
				LocalTime:  true,
			}
		}
		log.SetOutput(w)
		logrus.SetOutput(w)
	}

	if ci.UseJSONLog {
		logrus.AddHook(fileLineHook{})
		logrus.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.999999-07:00",
		})
		logrus.SetLevel(logrus.DebugLevel)
		switch ci.LogLevel {
		case fs.LogLevelEmergency, fs.LogLevelAlert:
			logrus.SetLevel(logrus.PanicLevel)
		case fs.LogLevelError:
			logrus.SetLevel(logrus.ErrorLevel)
		case fs.LogLevelWarning, fs.LogLevelNotice:
			logrus.SetLevel(logrus.WarnLevel)
		case fs.LogLevelInfo:
			logrus.SetLevel(logrus.InfoLevel)
		case fs.LogLevelDebug:
			logrus.SetLevel(logrus.DebugLevel)
		}
	}
}

// Redirected returns true if the log has been redirected from stdout
func Redirected() bool {
	return Opt.File != ""
}
