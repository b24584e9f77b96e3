//go:build !plan9

package fserrors

import (
	"syscall"
)

// Errors from the network stack which mean another attempt at the
// connection could succeed
func init() {
	retriableErrors = append(retriableErrors,
		syscall.EPIPE,
		syscall.ETIMEDOUT,
		syscall.ECONNREFUSED,
		syscall.ECONNRESET,
		syscall.ECONNABORTED,
		syscall.EHOSTDOWN,
		syscall.EHOSTUNREACH,
		syscall.ENETDOWN,
		syscall.ENETUNREACH,
		syscall.EAGAIN,
		syscall.EWOULDBLOCK,
	)
}
