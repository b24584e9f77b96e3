package configflags

import (
	"net"
	"testing"
	"time"

	"github.com/rclone/ftpfetch/fs"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddFlags(t *testing.T) {
	defer func() {
		verbose, quiet, bindAddr = 0, false, ""
	}()
	ci := fs.NewConfig()
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(ci, flagSet)
	err := flagSet.Parse([]string{"-vv", "--timeout", "5s", "--dump", "headers,auth", "--bind", "127.0.0.1", "--user-agent", "agent/1"})
	require.NoError(t, err)
	SetFlags(ci)

	assert.Equal(t, fs.LogLevelDebug, ci.LogLevel)
	assert.Equal(t, 5*time.Second, ci.Timeout)
	assert.Equal(t, fs.DumpHeaders|fs.DumpAuth, ci.Dump)
	assert.True(t, ci.BindAddr.Equal(net.ParseIP("127.0.0.1")))
	assert.Equal(t, "agent/1", ci.UserAgent)
	assert.Equal(t, 60*time.Second, ci.ConnectTimeout)
}

func TestSetFlagsQuiet(t *testing.T) {
	defer func() {
		verbose, quiet, bindAddr = 0, false, ""
	}()
	ci := fs.NewConfig()
	quiet = true
	SetFlags(ci)
	assert.Equal(t, fs.LogLevelError, ci.LogLevel)
}
