package env

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rclone/ftpfetch/fs/config/configmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShellExpand(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("EXPAND_TEST", "potato")
	for _, test := range []struct {
		in, want string
	}{
		{"", ""},
		{"~", filepath.FromSlash(home)},
		{filepath.FromSlash("~/dir/file.txt"), filepath.FromSlash(home + "/dir/file.txt")},
		{filepath.FromSlash("/dir/~/file.txt"), filepath.FromSlash("/dir/~/file.txt")},
		{filepath.FromSlash("~/${EXPAND_TEST}"), filepath.FromSlash(home + "/potato")},
	} {
		got := ShellExpand(test.in)
		assert.Equal(t, test.want, got, test.in)
	}
}

func TestCurrentUser(t *testing.T) {
	assert.NotEqual(t, "", CurrentUser())
}

func TestLookup(t *testing.T) {
	t.Setenv("ftpfetch_test_proxy", "lower")
	t.Setenv("FTPFETCH_TEST_PROXY", "upper")
	t.Setenv("FTPFETCH_ONLY_UPPER", "upper")

	value, ok := Lookup("FTPFETCH_TEST_PROXY")
	assert.True(t, ok)
	assert.Equal(t, "lower", value)

	value, ok = Lookup("ftpfetch_only_upper")
	assert.True(t, ok)
	assert.Equal(t, "upper", value)

	_, ok = Lookup("FTPFETCH_NOT_SET_AT_ALL")
	assert.False(t, ok)
}

func TestGetter(t *testing.T) {
	t.Setenv("FTPFETCH_RATE_GET", "10k")
	t.Setenv("http_proxy", "http://proxy:3128/")
	var g configmap.Getter = Getter{
		Prefix: "FTPFETCH_",
		Names:  map[string]string{"http_proxy": "http_proxy"},
	}

	value, ok := g.Get("rate_get")
	assert.True(t, ok)
	assert.Equal(t, "10k", value)

	value, ok = g.Get("http_proxy")
	assert.True(t, ok)
	assert.Equal(t, "http://proxy:3128/", value)

	_, ok = g.Get("rate_put")
	assert.False(t, ok)

	_, ok = Getter{}.Get("rate_get")
	assert.False(t, ok)
}
