package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rclone/ftpfetch/fs"
)

// killer is the part of the fetcher the interrupt handler needs
type killer interface {
	Kill()
}

// interruptHandler cancels the fetch on the first interrupt, which
// aborts the transfer cleanly, and drops the connection on any
// further one.
//
// It returns a func which should be called to stop handling signals.
func interruptHandler(cancel context.CancelFunc, k killer) func() {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	return handleInterrupts(signals, cancel, k)
}

func handleInterrupts(signals chan os.Signal, cancel context.CancelFunc, k killer) func() {
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		interrupts := 0
		for {
			select {
			case sig := <-signals:
				interrupts++
				if interrupts == 1 {
					fs.Logf(nil, "Received %v, aborting", sig)
					cancel()
				} else {
					fs.Logf(nil, "Received %v again, dropping the connection", sig)
					k.Kill()
				}
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(signals)
		close(done)
		<-finished
	}
}

// stepper is the part of the fetcher the rate signal handler needs
type stepper interface {
	StepRate(up bool)
}

// handleRateSignals steps the rate up when up arrives and down for
// any other signal
func handleRateSignals(signals chan os.Signal, up os.Signal, s stepper) func() {
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for {
			select {
			case sig := <-signals:
				s.StepRate(sig == up)
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(signals)
		close(done)
		<-finished
	}
}
