//go:build windows || plan9 || js

package cmd

// rateSignalHandler does nothing as there are no user signals here
func rateSignalHandler(s stepper) func() {
	return func() {}
}
