//go:build !windows && !plan9 && !js

package cmd

import (
	"os"
	"os/signal"
	"syscall"
)

// rateSignalHandler steps the rate limits up on SIGUSR1 and down on
// SIGUSR2.
//
// It returns a func which should be called to stop handling signals.
func rateSignalHandler(s stepper) func() {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGUSR1, syscall.SIGUSR2)
	return handleRateSignals(signals, syscall.SIGUSR1, s)
}
