package fs

import (
	"context"
	"net"
	"time"
)

// Version of ftpfetch
var Version = "v0.1.0-DEV"

// ConfigInfo is the global config for the client engine
type ConfigInfo struct {
	LogLevel       LogLevel
	UseJSONLog     bool
	Dump           DumpFlags
	ConnectTimeout time.Duration // Connect timeout
	Timeout        time.Duration // Timeout for each read on the control channel
	AbortTimeout   time.Duration // Time to wait for the server to settle after ABOR
	UserAgent      string
	BindAddr       net.IP
}

// NewConfig creates a new config with everything set to the default
// value.  These are the ultimate defaults and are overridden by the
// command line.
func NewConfig() *ConfigInfo {
	c := new(ConfigInfo)

	// Set any values which aren't the zero for the type
	c.LogLevel = LogLevelNotice
	c.ConnectTimeout = 60 * time.Second
	c.Timeout = 60 * time.Second
	c.AbortTimeout = 10 * time.Second
	c.UserAgent = "ftpfetch/" + Version

	return c
}

type configContextKeyType struct{}

// Context key for config
var configContextKey = configContextKeyType{}

// global config
var globalConfig = NewConfig()

// GetConfig returns the global or context sensitive context
func GetConfig(ctx context.Context) *ConfigInfo {
	if ctx == nil {
		return globalConfig
	}
	c := ctx.Value(configContextKey)
	if c == nil {
		return globalConfig
	}
	return c.(*ConfigInfo)
}

// AddConfig returns a mutable config structure based on a shallow
// copy of that found in ctx and returns a new context with that added
// to it.
func AddConfig(ctx context.Context) (context.Context, *ConfigInfo) {
	c := GetConfig(ctx)
	cCopy := new(ConfigInfo)
	*cCopy = *c
	newCtx := context.WithValue(ctx, configContextKey, cCopy)
	return newCtx, cCopy
}
