// Package cmd implements the ftpfetch command
//
// It is in a sub package so it's internals can be re-used elsewhere
package cmd

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"github.com/rclone/ftpfetch/fetch"
	"github.com/rclone/ftpfetch/fs"
	"github.com/rclone/ftpfetch/fs/config/configflags"
	"github.com/rclone/ftpfetch/fs/config/flags"
	"github.com/rclone/ftpfetch/fs/fserrors"
	fslog "github.com/rclone/ftpfetch/fs/log"
	"github.com/rclone/ftpfetch/fs/log/logflags"
	"github.com/rclone/ftpfetch/ftp"
	"github.com/rclone/ftpfetch/lib/buildinfo"
	"github.com/rclone/ftpfetch/lib/exitcode"
	"github.com/rclone/ftpfetch/lib/metrics"
	"github.com/rclone/ftpfetch/lib/terminal"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Globals
var (
	// Flags
	opt               fetch.Options
	version           bool
	active            bool
	user              string
	pass              string
	retryConnect      int
	retryConnectSleep time.Duration
	metricsAddr       string
	// Errors
	errorNotEnoughArguments = errors.New("not enough arguments")
)

// Root is the main ftpfetch command
var Root = &cobra.Command{
	Use:   "ftpfetch [flags] URL...",
	Short: "Fetch files named by ftp, http or file URLs",
	Long: `
Fetch each URL to a local file named after the last part of its path,
or to the file given with --output.

URLs may be

    ftp://[user[:password]@]host[:port]/path[;type=a|i]
    http://[user[:password]@]host[:port]/path
    file:///path
    [user@]host:path

The last is the classic form, where path is sent to the server as it
is rather than being split and decoded.

The proxy for ftp:// and http:// URLs is taken from the ftp_proxy and
http_proxy environment variables, or --proxy, unless the host matches
no_proxy.
`,
	Run: func(command *cobra.Command, args []string) {
		if version {
			ShowVersion()
			resolveExitCode(nil)
		}
		CheckArgs(1, math.MaxInt32, command, args)
		Run(command, args)
	},
}

// ShowVersion prints the version to stdout
func ShowVersion() {
	osVersion, osKernel := buildinfo.GetOSVersion()
	if osVersion == "" {
		osVersion = "unknown"
	}
	if osKernel == "" {
		osKernel = "unknown"
	}

	linking, tagString := buildinfo.GetLinkingAndTags()

	fmt.Printf("ftpfetch %s\n", fs.Version)
	fmt.Printf("- os/version: %s\n", osVersion)
	fmt.Printf("- os/kernel: %s\n", osKernel)
	fmt.Printf("- os/type: %s\n", runtime.GOOS)
	fmt.Printf("- os/arch: %s\n", runtime.GOARCH)
	fmt.Printf("- go/version: %s\n", runtime.Version())
	fmt.Printf("- go/linking: %s\n", linking)
	fmt.Printf("- go/tags: %s\n", tagString)
}

// CheckArgs checks there are enough arguments and prints a message if not
func CheckArgs(MinArgs, MaxArgs int, cmd *cobra.Command, args []string) {
	if len(args) < MinArgs {
		_ = cmd.Usage()
		_, _ = fmt.Fprintf(os.Stderr, "Command %s needs %d arguments minimum: you provided %d non flag arguments: %q\n", cmd.Name(), MinArgs, len(args), args)
		resolveExitCode(errorNotEnoughArguments)
	} else if len(args) > MaxArgs {
		_ = cmd.Usage()
		_, _ = fmt.Fprintf(os.Stderr, "Command %s needs %d arguments maximum: you provided %d non flag arguments: %q\n", cmd.Name(), MaxArgs, len(args), args)
		resolveExitCode(errorNotEnoughArguments)
	}
}

// AddFlags adds the fetch and ftp flags to flagSet with the defaults
// from o
func AddFlags(o *fetch.Options, flagSet *pflag.FlagSet) {
	flags.StringVarP(flagSet, &o.Output, "output", "o", o.Output, "Save to this local file, - for stdout")
	flags.BoolVarP(flagSet, &o.Resume, "resume", "R", o.Resume, "Restart transfers from the end of existing local files")
	flags.StringVarP(flagSet, &o.Proxy, "proxy", "", o.Proxy, "HTTP proxy for ftp and http URLs, overrides ftp_proxy and http_proxy")
	flags.StringVarP(flagSet, &o.NoProxy, "no-proxy", "", o.NoProxy, "Comma or space separated hosts to reach without a proxy")

	f := &o.FTP
	flags.BoolVarP(flagSet, &f.Passive, "passive", "", f.Passive, "Use passive mode data connections")
	flags.BoolVarP(flagSet, &active, "active", "A", false, "Use active mode data connections")
	flags.BoolVarP(flagSet, &f.ActiveFallback, "active-fallback", "", f.ActiveFallback, "Fall back to active mode if passive mode fails")
	flags.BoolVarP(flagSet, &f.EPSV4, "epsv4", "", f.EPSV4, "Try EPSV before PASV on IPv4 connections")
	flags.BoolVarP(flagSet, &f.EPSV6, "epsv6", "", f.EPSV6, "Try EPSV before LPSV on IPv6 connections")
	flags.VarP(flagSet, &f.SendPort, "send-port", "", "Send PORT for active connections: default|on|off")
	flags.IntVarP(flagSet, &f.DataPort, "data-port", "", f.DataPort, "Local port for active data connections, 0 for any")
	flags.VarP(flagSet, &f.RateGet, "rate-get", "", "Limit downloads to this many bytes per second, 0 for no limit")
	flags.VarP(flagSet, &f.RatePut, "rate-put", "", "Limit uploads to this many bytes per second, 0 for no limit")
	flags.VarP(flagSet, &f.RateStep, "rate-step", "", "Change the rate limits by this much on SIGUSR1 and SIGUSR2")
	flags.BoolVarP(flagSet, &f.Hash, "hash", "", f.Hash, "Print a # for each --hash-bytes transferred")
	flags.VarP(flagSet, &f.HashBytes, "hash-bytes", "", "Bytes per hash mark")
	flags.BoolVarP(flagSet, &f.Progress, "progress", "P", f.Progress, "Show a progress meter")
	flags.BoolVarP(flagSet, &f.Preserve, "preserve", "", f.Preserve, "Set the modification time of fetched files from the server")
	flags.BoolVarP(flagSet, &f.Runique, "runique", "", f.Runique, "Save to name.1, name.2... rather than overwrite existing files")
	flags.StringVarP(flagSet, &f.AnonPass, "anon-pass", "", f.AnonPass, "Password for anonymous logins, default user@")
	flags.IntVarP(flagSet, &f.MaxReplyLine, "max-reply-line", "", f.MaxReplyLine, "Longest control connection reply line accepted")

	flags.StringVarP(flagSet, &user, "user", "u", "", "User to log in to ftp servers as when the URL has none")
	flags.StringVarP(flagSet, &pass, "pass", "", "", "Password for --user")
	flags.IntVarP(flagSet, &retryConnect, "retry-connect", "", 0, "Retry failed connections this many times")
	flags.DurationVarP(flagSet, &retryConnectSleep, "retry-connect-sleep", "", 5*time.Second, "Interval between connection retries")
	flags.StringVarP(flagSet, &metricsAddr, "metrics-addr", "", "", "IPaddress:Port or :Port to serve prometheus metrics on")
}

func init() {
	var err error
	opt, err = fetch.NewOptionsFromEnv()
	if err != nil {
		log.Fatalf("Failed to read options from the environment: %v", err)
	}
	ci := fs.GetConfig(context.Background())
	Root.Flags().BoolVarP(&version, "version", "V", false, "Print the version number")
	// cobra adds pflag.CommandLine to the root command
	flagSet := pflag.CommandLine
	configflags.AddFlags(ci, flagSet)
	logflags.AddFlags(flagSet)
	AddFlags(&opt, flagSet)
	cobra.OnInitialize(initConfig)
}

// initConfig is run by cobra after initialising the flags
func initConfig() {
	ci := fs.GetConfig(context.Background())

	// Finish parsing any command line flags
	configflags.SetFlags(ci)
	if active {
		opt.FTP.Passive = false
	}

	// Start the logger
	fslog.InitLogging()

	// Write the args for debug purposes
	fs.Debugf("ftpfetch", "Version %q starting with parameters %q", fs.Version, os.Args)
}

// newFetcher makes the Fetcher for the command line options
func newFetcher(o fetch.Options) *fetch.Fetcher {
	var prompt fetch.Prompter
	if terminal.IsTerminal(int(os.Stdin.Fd())) {
		prompt = newPrompter()
	}
	var creds ftp.Credentials
	if user != "" {
		creds = ftp.StaticCredentials{User: user, Pass: pass}
	}
	if o.Output == "-" && o.FTP.Feedback == nil {
		o.FTP.Feedback = os.Stderr
	}
	return fetch.NewFetcher(o, prompt, creds)
}

// fetchRetry fetches target, trying again up to retries times if the
// connection could not be made
func fetchRetry(ctx context.Context, f *fetch.Fetcher, target string, retries int, sleep time.Duration) (err error) {
	for try := 1; ; try++ {
		err = f.Fetch(ctx, target)
		if err == nil || try > retries || !isConnectFailure(err) || ctx.Err() != nil {
			return err
		}
		fs.Errorf(nil, "Attempt %d/%d failed: %v", try, retries+1, err)
		select {
		case <-ctx.Done():
			return err
		case <-time.After(sleep):
		}
	}
}

// isConnectFailure returns true if err is a retriable failure to
// connect to the server
func isConnectFailure(err error) bool {
	var connectErr *ftp.ConnectError
	return errors.As(err, &connectErr) && fserrors.ShouldRetry(connectErr.Err)
}

// displayName returns target for the logs without any password
func displayName(target string) string {
	t, err := fetch.Parse(target)
	if err != nil {
		return target
	}
	return t.URL()
}

// Run fetches each target in turn
func Run(command *cobra.Command, targets []string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFetcher(opt)
	stopInterrupts := interruptHandler(cancel, f)
	stopRateSignals := rateSignalHandler(f)
	stopProgress := func() {}
	if opt.FTP.Progress {
		stopProgress = startProgress(os.Stderr)
	}
	var metricsServer *metrics.Server
	if metricsAddr != "" {
		var err error
		metricsServer, err = metrics.Start(ctx, metricsAddr)
		if err != nil {
			log.Fatalf("Failed to start metrics server: %v", err)
		}
	}

	var lastErr error
	nerrs := 0
	for _, target := range targets {
		err := fetchRetry(ctx, f, target, retryConnect, retryConnectSleep)
		if err != nil {
			nerrs++
			lastErr = err
			fs.Errorf(nil, "Failed to fetch %s: %v", displayName(target), err)
		}
		if ctx.Err() != nil {
			break
		}
	}

	stopProgress()
	stopRateSignals()
	stopInterrupts()
	if metricsServer != nil {
		if err := metricsServer.Shutdown(context.Background()); err != nil {
			fs.Errorf(nil, "Failed to stop metrics server: %v", err)
		}
	}
	fs.Debugf(nil, "%d go routines active\n", runtime.NumGoroutine())

	if nerrs > 1 {
		log.Printf("Failed to %s %d of %d URLs: last error was: %v", command.Name(), nerrs, len(targets), lastErr)
	}
	resolveExitCode(lastErr)
}

// exitCode works out the exit status for err
func exitCode(err error) int {
	if err == nil {
		return exitcode.Success
	}
	switch {
	case errors.Is(err, errorNotEnoughArguments):
		return exitcode.UsageError
	case errors.Is(err, ftp.ErrAborted), errors.Is(err, context.Canceled):
		return exitcode.Aborted
	case errors.Is(err, fetch.ErrAuthFailed):
		return exitcode.AuthError
	case errors.Is(err, fetch.ErrNoFile), errors.Is(err, os.ErrNotExist):
		return exitcode.FileNotFound
	case fserrors.ShouldRetry(err):
		return exitcode.RetryError
	case fserrors.IsNoRetryError(err):
		return exitcode.NoRetryError
	case fserrors.IsFatalError(err):
		return exitcode.FatalError
	}
	return exitcode.UncategorizedError
}

func resolveExitCode(err error) {
	os.Exit(exitCode(err))
}

// Main runs ftpfetch interpreting flags and arguments out of os.Args
func Main() {
	if err := Root.Execute(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}
