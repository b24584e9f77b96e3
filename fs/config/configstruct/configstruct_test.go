package configstruct_test

import (
	"testing"
	"time"

	"github.com/rclone/ftpfetch/fs"
	"github.com/rclone/ftpfetch/fs/config/configmap"
	"github.com/rclone/ftpfetch/fs/config/configstruct"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type conf struct {
	Passive   bool
	EPSV4     bool `config:"epsv4"`
	Rate      fs.SizeSuffix
	Timeout   fs.Duration
	UserAgent string
	Retries   int
	Ignored   string `config:"-"`
}

func defaults() conf {
	return conf{
		Passive:   true,
		EPSV4:     true,
		Timeout:   fs.Duration(60 * time.Second),
		UserAgent: "ua",
		Retries:   1,
	}
}

func TestItems(t *testing.T) {
	c := defaults()
	items, err := configstruct.Items(&c)
	require.NoError(t, err)
	var names []string
	for _, item := range items {
		names = append(names, item.Name)
	}
	assert.Equal(t, []string{"passive", "epsv4", "rate", "timeout", "user_agent", "retries"}, names)

	_, err = configstruct.Items(c)
	assert.Error(t, err)
	i := 1
	_, err = configstruct.Items(&i)
	assert.Error(t, err)
}

func TestSet(t *testing.T) {
	c := defaults()
	m := configmap.Simple{
		"passive":    "false",
		"rate":       "10k",
		"timeout":    "5m",
		"user_agent": "my agent",
		"retries":    "",
		"Ignored":    "potato",
	}
	require.NoError(t, configstruct.Set(m, &c))
	assert.False(t, c.Passive)
	assert.True(t, c.EPSV4)
	assert.Equal(t, fs.SizeSuffix(10*1024), c.Rate)
	assert.Equal(t, fs.Duration(5*time.Minute), c.Timeout)
	assert.Equal(t, "my agent", c.UserAgent)
	assert.Equal(t, 1, c.Retries)
	assert.Equal(t, "", c.Ignored)
}

func TestSetBad(t *testing.T) {
	c := defaults()
	err := configstruct.Set(configmap.Simple{"retries": "many"}, &c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"retries"`)
}
