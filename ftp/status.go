package ftp

import (
	jftp "github.com/jlaffaye/ftp"
)

// Reply codes the session acts on
const (
	StatusAboutToSend         = jftp.StatusAboutToSend
	StatusCommandOK           = jftp.StatusCommandOK
	StatusFile                = jftp.StatusFile
	StatusName                = jftp.StatusName
	StatusClosing             = jftp.StatusClosing
	StatusPassiveMode         = jftp.StatusPassiveMode
	StatusLongPassiveMode     = jftp.StatusLongPassiveMode
	StatusExtendedPassiveMode = jftp.StatusExtendedPassiveMode
	StatusPathCreated         = jftp.StatusPathCreated
	StatusNotAvailable        = jftp.StatusNotAvailable
	StatusTransferAborted     = jftp.StatusTransfertAborted
	StatusBadCommand          = jftp.StatusBadCommand
	StatusNotImplemented      = jftp.StatusNotImplemented
	StatusFileUnavailable     = jftp.StatusFileUnavailable
	StatusExceededStorage     = jftp.StatusExceededStorage
)

// StatusText returns a description of the reply code
func StatusText(code int) string {
	return jftp.StatusText(code)
}
