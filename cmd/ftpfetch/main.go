// Fetch files named by ftp, http and file URLs
package main

import (
	"github.com/rclone/ftpfetch/cmd"
)

func main() {
	cmd.Main()
}
