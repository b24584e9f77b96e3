package log

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// fileLineHook adds the source location of the log call to JSON logs
type fileLineHook struct{}

// Levels implements logrus.Hook
func (fileLineHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire implements logrus.Hook
func (fileLineHook) Fire(entry *logrus.Entry) error {
	entry.Data["source"] = getCaller(2)
	return nil
}

// getCaller finds the first frame outside logrus and the logging
// helpers in fs
func getCaller(skip int) string {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(skip, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.Function, "github.com/sirupsen/logrus") &&
			!strings.HasSuffix(frame.File, "/fs/log.go") &&
			!strings.HasSuffix(frame.File, "/caller_hook.go") {
			return fmt.Sprintf("%s:%d", trimPath(frame.File), frame.Line)
		}
		if !more {
			return ""
		}
	}
}

// trimPath keeps the last two elements of a source path
func trimPath(file string) string {
	parts := strings.Split(file, "/")
	if len(parts) > 2 {
		parts = parts[len(parts)-2:]
	}
	return strings.Join(parts, "/")
}

func fmtPid() string {
	return fmt.Sprintf("[%d] ", os.Getpid())
}
