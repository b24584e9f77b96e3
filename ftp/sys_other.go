//go:build !unix

package ftp

import (
	"net"
	"syscall"
)

// sendUrgent writes b in band as urgent data isn't available
func sendUrgent(conn net.Conn, b []byte) error {
	_, err := conn.Write(b)
	return err
}

// noReuseAddr leaves the socket alone
func noReuseAddr(network, address string, c syscall.RawConn) error {
	return nil
}

// writable can't be checked ahead of opening the file
func writable(path string) error {
	return nil
}
