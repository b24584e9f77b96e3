// Package exitcode exports ftpfetch's exit status numbers.
package exitcode

const (
	// Success is returned when every target was fetched.
	Success = iota
	// UsageError is returned when there was a syntax or usage error in the arguments.
	UsageError
	// UncategorizedError is returned for any error not categorised otherwise.
	UncategorizedError
	// FileNotFound is returned when a target names no file or the local file can't be made.
	FileNotFound
	// RetryError is returned for temporary network errors which may go away if retried.
	RetryError
	// NoRetryError is returned when the server refused the transfer.
	NoRetryError
	// FatalError is returned when the connection could not be made or was lost.
	FatalError
	// AuthError is returned when the credentials were refused.
	AuthError
	// Aborted is returned when the user interrupted the transfer.
	Aborted
)
